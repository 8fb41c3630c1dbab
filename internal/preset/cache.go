package preset

import (
	"sync"
	"time"
)

// Cache is an explicit TTL cache for parsed presets. It is owned by the
// caller and passed into the pipeline entry point; the transformation core
// itself holds no implicit server-wide state. Invalidation hooks let the
// caller drop entries when a preset document changes.
type Cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	preset  *Preset
	expires time.Time
}

// NewCache creates a cache with the given TTL; zero or negative disables
// expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached preset for name if present and not expired.
func (c *Cache) Get(name string) (*Preset, bool) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(entry.expires) {
		c.Invalidate(name)
		return nil, false
	}
	return entry.preset, true
}

// Put stores a preset under name.
func (c *Cache) Put(name string, p *Preset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cacheEntry{preset: p, expires: time.Now().Add(c.ttl)}
}

// Invalidate drops one entry.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Sweep removes expired entries and returns how many were dropped. Wired
// to a periodic job by the server.
func (c *Cache) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for name, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, name)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
