package fetcher

import (
	"sync"
	"time"
)

// Cache is an in-memory TTL response cache keyed by normalized request
// signature. It is safe for concurrent use; on racing writers the last
// write wins, which is acceptable because entries are idempotent
// re-derivations of upstream responses, not authoritative state.
//
// The cache is passed explicitly to fetch calls rather than living as
// package state so tests can inject isolated instances and assert TTL
// behavior deterministically.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewCache creates an empty response cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached payload for key, or (nil, false) if the key is
// absent or expired. Expired entries are pruned on read.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// refreshed the entry since the read.
		if cur, stillThere := c.entries[key]; stillThere && !cur.expiresAt.After(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.payload, true
}

// Set stores payload under key for ttl. A non-positive ttl is a no-op.
func (c *Cache) Set(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been pruned.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
