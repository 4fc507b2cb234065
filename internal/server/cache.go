package server

import (
	"sync"
	"time"

	"github.com/epheterson/energy-dashboard/internal/metrics"
)

type cacheEntry struct {
	value  any
	stored time.Time
}

// Cache is a small in-memory result cache with per-lookup TTLs. Entries are
// never evicted, only aged out; the key space is a handful of report names
// so unbounded growth is not a concern.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the cached value for key if it is younger than ttl.
func (c *Cache) Get(key string, ttl time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	hit := ok && c.now().Sub(e.stored) < ttl
	metrics.ObserveCache(hit)
	if !hit {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, resetting its age.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, stored: c.now()}
}

// Invalidate drops one key so the next lookup rebuilds it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
