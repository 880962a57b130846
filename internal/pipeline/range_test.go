package pipeline

import "testing"

func TestAlign(t *testing.T) {
	const chunkSize = 10

	tests := []struct {
		name  string
		start int64
		end   int64
		want  Alignment
	}{
		{
			name:  "whole small file, one chunk",
			start: 0, end: 9,
			want: Alignment{Start: 0, End: 9, Offset: 0, FirstPartCut: 0, LastPartCut: 10, PartCount: 1},
		},
		{
			name:  "unaligned start mid chunk",
			start: 3, end: 9,
			want: Alignment{Start: 3, End: 9, Offset: 0, FirstPartCut: 3, LastPartCut: 10, PartCount: 1},
		},
		{
			name:  "spans two chunks",
			start: 15, end: 28,
			want: Alignment{Start: 15, End: 28, Offset: 10, FirstPartCut: 5, LastPartCut: 9, PartCount: 2},
		},
		{
			name:  "single byte at start",
			start: 0, end: 0,
			want: Alignment{Start: 0, End: 0, Offset: 0, FirstPartCut: 0, LastPartCut: 1, PartCount: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Align(tt.start, tt.end, chunkSize)
			if got != tt.want {
				t.Errorf("Align(%d, %d, %d) = %+v, want %+v", tt.start, tt.end, chunkSize, got, tt.want)
			}
		})
	}
}
