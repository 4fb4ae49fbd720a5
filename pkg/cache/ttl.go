package cache

import (
	"sync"
	"time"
)

// entry holds a value with its expiry deadline.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Stats are cumulative hit/miss counters. Always collected.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// TTL is a thread-safe time-to-live cache. Expired entries are evicted
// lazily; there is no background goroutine to manage or close.
type TTL[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[V]
	stats Stats
}

// NewTTL creates a cache whose entries live for ttl.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[V]),
	}
}

// NewTTLWithClock creates a cache using now for expiry decisions, so
// tests can drive virtual time.
func NewTTLWithClock[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	c := NewTTL[V](ttl)
	c.now = now
	return c
}

// Get returns the live value under key, evicting it when expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.items, key)
		c.stats.Evictions++
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key, resetting its TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes key. Returns true if a live entry was removed.
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

// Clear removes all entries.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
}

// Len returns the number of live entries, evicting expired ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, k)
			c.stats.Evictions++
		}
	}
	return len(c.items)
}

// StatsSnapshot returns a copy of the cumulative counters.
func (c *TTL[V]) StatsSnapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
