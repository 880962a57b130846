package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tgstream/gateway/internal/registry"
)

type fakeLookup struct {
	mu   sync.Mutex
	recs map[string]registry.Record
}

func (f *fakeLookup) set(rec registry.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.StreamID] = rec
}

func (f *fakeLookup) Lookup(streamID string) (registry.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[streamID]
	return rec, ok
}

type countingStore struct {
	mu    sync.Mutex
	total int64
	calls int32
}

func (s *countingStore) GetAPIToken(ctx context.Context, token string) (*TokenData, error) {
	return &TokenData{Token: token}, nil
}

func (s *countingStore) UpdateTokenUsage(ctx context.Context, token string, deltaBytes int64) error {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.total += deltaBytes
	s.mu.Unlock()
	return nil
}

func (s *countingStore) snapshot() (int64, int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, atomic.LoadInt32(&s.calls)
}

func TestTrackerFlushesOnCancellationDuringStartupGrace(t *testing.T) {
	lookup := &fakeLookup{recs: make(map[string]registry.Record)}
	lookup.set(registry.Record{StreamID: "s1", TotalBytes: 4096, Status: registry.StatusActive})

	store := &countingStore{}
	tr := NewTracker(store, lookup, nil)

	ctx, cancel := context.WithCancel(context.Background())
	tr.Track(ctx, "s1", "tok")

	// Cancel before the startup grace elapses, exercising the ctx.Done()
	// branch of run()'s initial sleep.
	time.Sleep(20 * time.Millisecond)
	cancel()

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		if total, calls := store.snapshot(); calls > 0 {
			if total != 4096 {
				t.Fatalf("flushed total = %d, want 4096", total)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("tracker never flushed usage after cancellation")
}

func TestTrackerUpdateOnlyCallsStoreOnPositiveDelta(t *testing.T) {
	store := &countingStore{}
	tr := NewTracker(store, &fakeLookup{recs: make(map[string]registry.Record)}, nil)

	last := tr.update("tok", 100, 100) // no growth since last tick
	if last != 100 {
		t.Errorf("update() = %d, want 100 unchanged", last)
	}
	if _, calls := store.snapshot(); calls != 0 {
		t.Fatalf("UpdateTokenUsage called %d times for a zero delta, want 0", calls)
	}

	last = tr.update("tok", 500, 100)
	if last != 500 {
		t.Errorf("update() = %d, want 500 after a positive delta", last)
	}
	if total, calls := store.snapshot(); calls != 1 || total != 400 {
		t.Fatalf("store saw total=%d calls=%d, want total=400 calls=1", total, calls)
	}
}

func TestTrackerFlushIgnoresUnknownStream(t *testing.T) {
	lookup := &fakeLookup{recs: make(map[string]registry.Record)}
	store := &countingStore{}
	tr := NewTracker(store, lookup, nil)

	tr.flush("unknown", "tok", 0)

	if _, calls := store.snapshot(); calls != 0 {
		t.Fatalf("UpdateTokenUsage called %d times for a missing stream, want 0", calls)
	}
}
