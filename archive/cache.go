package archive

import (
	"sync"
	"time"
)

// seriesCache remembers recent appliance responses. A window of
// archived history never changes once it is in the past, so a short
// TTL only bounds memory, not staleness.
type seriesCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]cacheEntry

	hits   int64
	misses int64
}

type cacheEntry struct {
	series    *Series
	expiresAt time.Time
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	return &seriesCache{
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

func (c *seriesCache) get(key string) (*Series, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		if ok {
			delete(c.items, key)
		}
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.series, true
}

func (c *seriesCache) put(key string, series *Series) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	// Sweep expired entries while we hold the write lock anyway.
	for k, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, k)
		}
	}
	c.items[key] = cacheEntry{series: series, expiresAt: now.Add(c.ttl)}
}

func (c *seriesCache) stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
