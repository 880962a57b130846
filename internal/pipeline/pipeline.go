// Package pipeline implements the Prefetch Pipeline (spec §4.E): bounded
// parallel chunk fetching with strict in-order delivery. It is grounded on
// prefetch_stream/producer/consumer_generator in the original implementation
// (Backend/helper/custom_dl.py), re-expressed with goroutines and channels
// in the worker-pool idiom the teacher already uses for multi-stream
// downloads (internal/core/downloader/multistream.go's chunk/chunkChan
// pattern).
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchFunc retrieves one chunk_size-aligned part of the file, identified by
// its zero-based sequence number and absolute byte offset.
type FetchFunc func(ctx context.Context, seq int, offset int64) ([]byte, error)

// Params describes one prefetch run: the byte window to cover and how
// aggressively to parallelize it.
type Params struct {
	Offset       int64 // absolute byte offset of part 0
	ChunkSize    int64
	PartCount    int
	FirstPartCut int // bytes to drop from the start of part 0
	LastPartCut  int // bytes to keep from the start of the final part

	// QueueCap bounds how many reordered chunks may sit ahead of the
	// consumer before producing blocks (spec's Parallel).
	QueueCap int
	// InFlight bounds how many chunk fetches may be outstanding at once
	// (spec's PreFetch).
	InFlight int
}

type orderedChunk struct {
	seq  int
	data []byte
}

type seqResult struct {
	seq  int
	data []byte
}

// pipeline runs the bounded producer described above. It is unexported:
// callers only ever see it through a Reader.
type pipeline struct {
	params Params
	fetch  FetchFunc

	ordered chan orderedChunk
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func newPipeline(fetch FetchFunc, p Params) *pipeline {
	queueCap := p.QueueCap
	if queueCap < 1 {
		queueCap = 1
	}
	return &pipeline{
		params:  p,
		fetch:   fetch,
		ordered: make(chan orderedChunk, queueCap),
		done:    make(chan struct{}),
	}
}

func (p *pipeline) setErr(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
}

func (p *pipeline) getErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// run schedules up to InFlight concurrent fetches across PartCount parts
// under an errgroup.Group, then reorders completions back into sequence
// order before handing them to the consumer through p.ordered. The first
// fetch to fail cancels the group's derived context, so sibling fetches
// stop early instead of running to completion uselessly. It returns once
// every part has been delivered, a fetch has failed, or ctx is cancelled.
func (p *pipeline) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.ordered)

	if p.params.PartCount <= 0 {
		return
	}

	inFlight := p.params.InFlight
	if inFlight < 1 {
		inFlight = 1
	}

	eg, egCtx := errgroup.WithContext(ctx)
	results := make(chan seqResult, inFlight)
	sem := make(chan struct{}, inFlight)

	go func() {
		defer close(results)
	dispatch:
		for seq := 0; seq < p.params.PartCount; seq++ {
			seq := seq
			select {
			case sem <- struct{}{}:
			case <-egCtx.Done():
				break dispatch
			}
			eg.Go(func() error {
				defer func() { <-sem }()

				off := p.params.Offset + int64(seq)*p.params.ChunkSize
				data, err := p.fetch(egCtx, seq, off)
				if err != nil {
					return fmt.Errorf("fetch part %d: %w", seq, err)
				}

				select {
				case results <- seqResult{seq: seq, data: data}:
				case <-egCtx.Done():
				}
				return nil
			})
		}
		eg.Wait()
	}()

	buffer := make(map[int][]byte)
	next := 0

	for r := range results {
		buffer[r.seq] = r.data
		for {
			data, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)

			select {
			case p.ordered <- orderedChunk{seq: next, data: data}:
			case <-ctx.Done():
				return
			}
			next++
		}
	}

	if err := eg.Wait(); err != nil {
		p.setErr(fmt.Errorf("pipeline: %w", err))
	}
}
