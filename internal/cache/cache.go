// Package cache provides a TTL-based memoization cache for API calls.
package cache

import (
	"sync"
	"time"
)

const (
	// DefaultTTL matches the reference refresh behavior of the dashboard.
	DefaultTTL = 30 * time.Second

	// evictMultiple controls how many TTLs an entry may outlive its
	// freshness before the sweeper drops it. Fill cache keys embed the
	// exact window bounds, so every poll cycle mints new keys and old
	// ones become unreachable garbage.
	evictMultiple = 4

	// sweepInterval is the minimum spacing between opportunistic sweeps.
	sweepInterval = 1 * time.Minute
)

type entry struct {
	mu        sync.Mutex
	value     any
	createdAt time.Time
	storedAt  time.Time
	ttl       time.Duration
	gen       uint64
	ready     bool
}

// Cache memoizes computed values by key for a bounded duration. It is safe
// for concurrent use; callers racing on the same uncached key serialize so
// the computation runs once and later callers see the stored value.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	gen       uint64
	lastSweep time.Time

	// now is overridable in tests
	now func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// GetOrCompute returns the cached value for key if it is younger than ttl,
// otherwise invokes fn and stores its result. Errors from fn are returned
// to the caller and never cached.
func (c *Cache) GetOrCompute(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{createdAt: c.now(), ttl: ttl, gen: c.gen}
		c.entries[key] = e
	}
	c.maybeSweepLocked()
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// A hit is only honored if the entry survived any intervening Clear;
	// a caller holding a pre-Clear entry recomputes instead.
	if e.ready && e.gen == c.currentGen() && c.now().Sub(e.storedAt) < ttl {
		return e.value, nil
	}

	value, err := fn()
	if err != nil {
		e.ready = false
		return nil, err
	}

	e.value = value
	e.storedAt = c.now()
	e.ttl = ttl
	e.gen = c.currentGen()
	e.ready = true
	return value, nil
}

// Clear drops every entry immediately. Used when the caller forces a
// refresh and wants the next cycle to hit upstream. Values stored before
// Clear are not served afterward, even to callers already mid-lookup.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]*entry)
}

// currentGen reads the Clear generation. Safe to call while holding an
// entry lock; the sweeper never blocks on entry locks.
func (c *Cache) currentGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// maybeSweepLocked evicts entries that have outlived their TTL by
// evictMultiple. Entries whose compute never succeeded age from creation,
// so a key whose upstream keeps failing is dropped too. Caller must hold
// c.mu.
func (c *Cache) maybeSweepLocked() {
	now := c.now()
	if now.Sub(c.lastSweep) < sweepInterval {
		return
	}
	c.lastSweep = now

	for key, e := range c.entries {
		// Skip entries mid-computation.
		if !e.mu.TryLock() {
			continue
		}
		ref := e.createdAt
		if e.ready {
			ref = e.storedAt
		}
		expired := now.Sub(ref) > e.ttl*evictMultiple
		e.mu.Unlock()
		if expired {
			delete(c.entries, key)
		}
	}
}
