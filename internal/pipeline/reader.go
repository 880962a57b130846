package pipeline

import (
	"context"
	"io"
	"time"
)

// ChunkObserver is notified once per delivered chunk, before any
// first/last-part trimming is applied, with the wall-clock time since the
// previous delivery. The gateway wires this to the stream registry's
// rolling-throughput sample.
type ChunkObserver func(bytes int, elapsed time.Duration)

// Reader streams PartCount chunk_size-aligned parts as a single ordered
// byte stream, trimming the first and last parts to the caller's requested
// byte range. It implements io.ReadCloser; Close cancels any outstanding
// fetches and waits briefly for the producer to wind down, mirroring the
// original's 2-second bounded producer-cancellation grace.
type Reader struct {
	pl     *pipeline
	cancel context.CancelFunc

	params  Params
	observe ChunkObserver
	lastTs  time.Time

	pending []byte
	err     error
}

// cancelGrace bounds how long Close waits for the producer goroutine to
// observe cancellation before giving up, matching consumer_generator's
// asyncio.wait_for(producer_task, timeout=2.0).
const cancelGrace = 2 * time.Second

// NewReader starts the prefetch pipeline for params and returns a Reader
// ready to be consumed. ctx bounds the whole stream's lifetime; Close (or
// ctx's own cancellation) stops it early.
func NewReader(ctx context.Context, fetch FetchFunc, params Params, observe ChunkObserver) *Reader {
	innerCtx, cancel := context.WithCancel(ctx)
	pl := newPipeline(fetch, params)
	go pl.run(innerCtx)

	return &Reader{
		pl:      pl,
		cancel:  cancel,
		params:  params,
		observe: observe,
		lastTs:  time.Now(),
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}

		chunk, ok := <-r.pl.ordered
		if !ok {
			if err := r.pl.getErr(); err != nil {
				r.err = err
				return 0, err
			}
			return 0, io.EOF
		}

		now := time.Now()
		elapsed := now.Sub(r.lastTs)
		r.lastTs = now
		if r.observe != nil {
			r.observe(len(chunk.data), elapsed)
		}

		r.pending = r.trim(chunk)
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// trim applies the first/last-part byte cuts the caller's Range request
// implies, using the chunk's own sequence number to know its position —
// chunks always arrive in order, so seq doubles as the part index.
func (r *Reader) trim(c orderedChunk) []byte {
	data := c.data
	switch {
	case r.params.PartCount == 1:
		return sliceClamped(data, r.params.FirstPartCut, r.params.LastPartCut)
	case c.seq == 0:
		return sliceClamped(data, r.params.FirstPartCut, len(data))
	case c.seq == r.params.PartCount-1:
		return sliceClamped(data, 0, r.params.LastPartCut)
	default:
		return data
	}
}

func sliceClamped(data []byte, lo, hi int) []byte {
	if lo < 0 {
		lo = 0
	}
	if hi > len(data) {
		hi = len(data)
	}
	if lo >= hi {
		return nil
	}
	return data[lo:hi]
}

// Close stops the pipeline early. Safe to call after the stream has already
// finished; a second Close is a no-op wait on an already-closed done
// channel.
func (r *Reader) Close() error {
	r.cancel()
	select {
	case <-r.pl.done:
	case <-time.After(cancelGrace):
	}
	return nil
}
