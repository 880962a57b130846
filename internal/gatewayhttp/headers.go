package gatewayhttp

import (
	"crypto/rand"
	"encoding/hex"
	"mime"
	"path/filepath"
	"strings"

	"github.com/tgstream/gateway/internal/mtproto"
)

// randomFilename mirrors secrets.token_hex(4) + ".bin", the original's
// fallback when a message carries no file name at all.
func randomFilename() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "stream.bin"
	}
	return hex.EncodeToString(buf) + ".bin"
}

// resolveFilename picks the name to send in Content-Disposition, following
// media_streamer's fallback chain: the descriptor's own name, or a random
// one, with an extension appended from the MIME type when the name has
// none.
func resolveFilename(desc *mtproto.FileDescriptor, mimeType string) string {
	name := desc.FileName
	if name == "" {
		name = randomFilename()
	}
	if !strings.Contains(name, ".") {
		if slash := strings.IndexByte(mimeType, '/'); slash >= 0 {
			name = name + "." + mimeType[slash+1:]
		}
	}
	return name
}

// resolveMimeType falls back from the descriptor's own MIME type to a guess
// from the file name's extension, then to a generic octet stream.
func resolveMimeType(desc *mtproto.FileDescriptor) string {
	if desc.MimeType != "" {
		return desc.MimeType
	}
	if guessed := mime.TypeByExtension(filepath.Ext(desc.FileName)); guessed != "" {
		return guessed
	}
	return "application/octet-stream"
}
