package mtproto

import (
	"context"
	"sync"
	"time"
)

// cacheTTL mirrors _clean_cache's 30-minute sweep interval in the original
// implementation: resolved file properties are cheap to refetch, so the
// cache trades a little staleness for memory bounded by activity rather
// than by total catalog size.
const cacheTTL = 30 * time.Minute

type cacheEntry struct {
	desc     *FileDescriptor
	storedAt time.Time
}

// FileCache is the File-Property Cache (spec §4.B): resolve_file results
// keyed by (chat_id, msg_id), shared across every client so repeated
// requests for the same file do not re-hit the upstream RPC until the next
// periodic wipe. Concurrent misses for the same key each resolve upstream.
type FileCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	stop    chan struct{}
}

type cacheKey struct {
	chatID int64
	msgID  int64
}

func NewFileCache() *FileCache {
	c := &FileCache{
		entries: make(map[cacheKey]cacheEntry),
		stop:    make(chan struct{}),
	}
	go c.cleanLoop()
	return c
}

func (c *FileCache) Close() {
	close(c.stop)
}

func (c *FileCache) Get(chatID, msgID int64) (*FileDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{chatID, msgID}]
	if !ok {
		return nil, false
	}
	return e.desc, true
}

func (c *FileCache) Put(chatID, msgID int64, desc *FileDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{chatID, msgID}] = cacheEntry{desc: desc, storedAt: time.Now()}
}

// cleanLoop drops every entry on each tick, matching the original's
// _clean_cache: a full-cache wipe every cacheTTL rather than per-entry
// expiry, since file properties rarely change and the goal is bounding
// memory, not correctness of staleness.
func (c *FileCache) cleanLoop() {
	ticker := time.NewTicker(cacheTTL)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.entries = make(map[cacheKey]cacheEntry)
			c.mu.Unlock()
		}
	}
}

// Resolve returns the cached descriptor for (chatID, msgID), resolving and
// caching it via resolve if absent.
func (c *FileCache) Resolve(ctx context.Context, chatID, msgID int64, resolve func(ctx context.Context) (*FileDescriptor, error)) (*FileDescriptor, error) {
	if desc, ok := c.Get(chatID, msgID); ok {
		return desc, nil
	}
	desc, err := resolve(ctx)
	if err != nil {
		return nil, err
	}
	c.Put(chatID, msgID, desc)
	return desc, nil
}
