package mtproto

import (
	"context"
	"fmt"
	"time"
)

const (
	fetchAttempts    = 4
	fetchBackoffUnit = 150 * time.Millisecond
)

// Fetcher is the Chunk Fetcher (spec §4.D): given a resolved file and a
// client/session, pulls one upload.getFile chunk with bounded retry. It
// mirrors fetch_chunk_with_retries in the original implementation, including
// the escalating 0.15s*attempt backoff between tries, and gives up early if
// ctx is cancelled (the pipeline's stop_event equivalent).
type Fetcher struct {
	pool     *SessionPool
	upstream Upstream
}

func NewFetcher(pool *SessionPool, upstream Upstream) *Fetcher {
	return &Fetcher{pool: pool, upstream: upstream}
}

// Fetch retrieves [offset, offset+limit) of desc's location using client c,
// making up to fetchAttempts attempts in total on RPC failures.
func (f *Fetcher) Fetch(ctx context.Context, c *Client, desc *FileDescriptor, offset int64, limit int) ([]byte, error) {
	sess, err := f.pool.SessionFor(ctx, c, desc.DCID)
	if err != nil {
		return nil, fmt.Errorf("mtproto: session for dc %d: %w", desc.DCID, err)
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := f.upstream.FetchChunk(ctx, sess, desc.Location, offset, limit)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * fetchBackoffUnit):
		}
	}

	return nil, fmt.Errorf("mtproto: fetch chunk offset=%d limit=%d: %w", offset, limit, lastErr)
}
