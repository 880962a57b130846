package pipeline

// Alignment is the chunk-aligned view of an HTTP byte range over a file of
// a known size, computed the same way media_streamer does in the original
// implementation: align the start down to a chunk boundary, then derive how
// much of the first and last fetched chunks actually belong to the
// response.
type Alignment struct {
	Start        int64 // first requested byte (inclusive)
	End          int64 // last requested byte (inclusive)
	Offset       int64 // chunk-aligned fetch start
	FirstPartCut int
	LastPartCut  int
	PartCount    int
}

// Align computes the alignment for [start, end] (inclusive) against
// chunkSize-sized parts.
func Align(start, end, chunkSize int64) Alignment {
	offset := start - (start % chunkSize)
	firstCut := int(start - offset)
	lastCut := int(end%chunkSize) + 1
	// Index of the chunk holding "end" (the last requested byte) minus the
	// index of the chunk holding "offset", plus one; an empty range (end <
	// start, as for a zero-byte file) needs no parts at all.
	partCount := 0
	if end >= start {
		partCount = int(end/chunkSize - offset/chunkSize + 1)
	}

	return Alignment{
		Start:        start,
		End:          end,
		Offset:       offset,
		FirstPartCut: firstCut,
		LastPartCut:  lastCut,
		PartCount:    partCount,
	}
}
