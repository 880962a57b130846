package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tgstream/gateway/internal/registry"
)

const (
	// startupGrace mirrors track_usage_from_stats' initial asyncio.sleep(2):
	// give the stream a moment to accumulate bytes before the first tick.
	startupGrace = 2 * time.Second
	tickInterval = 10 * time.Second
)

// streamLookup is the subset of *registry.Registry Tracker depends on,
// narrowed for testability.
type streamLookup interface {
	Lookup(streamID string) (registry.Record, bool)
}

// Tracker periodically folds a stream's accumulated bytes into its token's
// usage counters, and performs one last catch-up update once the stream
// leaves the active set (finished, cancelled, or errored) or ctx is
// cancelled, matching track_usage_from_stats.
type Tracker struct {
	store Store
	reg   streamLookup
	log   *zap.Logger
}

func NewTracker(store Store, reg streamLookup, log *zap.Logger) *Tracker {
	return &Tracker{store: store, reg: reg, log: log}
}

// Track launches the background accounting loop for one stream. It returns
// immediately; the loop runs until ctx is cancelled, the stream's record
// disappears from the registry entirely (pruned out of recent history), or
// a tick finds the record in a terminal status and has made its final
// catch-up update.
func (t *Tracker) Track(ctx context.Context, streamID, token string) {
	go t.run(ctx, streamID, token)
}

func (t *Tracker) run(ctx context.Context, streamID, token string) {
	select {
	case <-time.After(startupGrace):
	case <-ctx.Done():
		t.flush(streamID, token, 0)
		return
	}

	var lastTracked int64
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flush(streamID, token, lastTracked)
			return
		case <-ticker.C:
			rec, ok := t.reg.Lookup(streamID)
			if !ok {
				return
			}
			lastTracked = t.update(token, rec.TotalBytes, lastTracked)
			if rec.Status != registry.StatusActive {
				return
			}
		}
	}
}

func (t *Tracker) flush(streamID, token string, lastTracked int64) {
	rec, ok := t.reg.Lookup(streamID)
	if !ok {
		return
	}
	t.update(token, rec.TotalBytes, lastTracked)
}

func (t *Tracker) update(token string, totalBytes, lastTracked int64) int64 {
	delta := totalBytes - lastTracked
	if delta <= 0 {
		return lastTracked
	}
	if err := t.store.UpdateTokenUsage(context.Background(), token, delta); err != nil {
		if t.log != nil {
			t.log.Warn("usage update failed", zap.String("token", token), zap.Error(err))
		}
		return lastTracked
	}
	return totalBytes
}
