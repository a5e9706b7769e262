package apiclient

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// responseCache holds parsed GET payloads keyed by full URL.
type responseCache struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newResponseCache(now func() time.Time) *responseCache {
	return &responseCache{now: now, entries: make(map[string]cacheEntry)}
}

func (c *responseCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *responseCache) set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(ttl)}
}

func (c *responseCache) invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *responseCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
