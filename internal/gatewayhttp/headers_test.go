package gatewayhttp

import (
	"testing"

	"github.com/tgstream/gateway/internal/mtproto"
)

func TestResolveMimeType(t *testing.T) {
	tests := []struct {
		name string
		desc *mtproto.FileDescriptor
		want string
	}{
		{
			name: "uses descriptor mime type when present",
			desc: &mtproto.FileDescriptor{MimeType: "video/mp4"},
			want: "video/mp4",
		},
		{
			name: "guesses from file name extension",
			desc: &mtproto.FileDescriptor{FileName: "movie.mp4"},
			want: "video/mp4",
		},
		{
			name: "falls back to octet-stream",
			desc: &mtproto.FileDescriptor{FileName: "noext"},
			want: "application/octet-stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveMimeType(tt.desc); got != tt.want {
				t.Errorf("resolveMimeType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFilename(t *testing.T) {
	desc := &mtproto.FileDescriptor{FileName: "video"}
	got := resolveFilename(desc, "video/mp4")
	if got != "video.mp4" {
		t.Errorf("resolveFilename() = %q, want %q", got, "video.mp4")
	}

	descNamed := &mtproto.FileDescriptor{FileName: "clip.mkv"}
	if got := resolveFilename(descNamed, "video/mp4"); got != "clip.mkv" {
		t.Errorf("resolveFilename() with extension already present = %q, want unchanged %q", got, "clip.mkv")
	}

	descEmpty := &mtproto.FileDescriptor{}
	got = resolveFilename(descEmpty, "application/octet-stream")
	if len(got) == 0 {
		t.Fatal("resolveFilename() returned empty name for a nameless file")
	}
}
