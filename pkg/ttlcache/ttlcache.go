// Package ttlcache provides a small TTL cache with single-flight fetch
// de-duplication. Time is injected so expiry is testable.
package ttlcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
}

// Cache is a process-wide TTL cache. Concurrent misses for the same key
// collapse into a single in-flight fetch; all callers receive the same
// result. Failed fetches are remembered for a shorter TTL so retries
// back off without hammering the upstream.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	clock      Clock
	ttl        time.Duration
	failureTTL time.Duration
	group      singleflight.Group
}

// New creates a cache. failureTTL bounds how long a fetch error is
// served from cache; zero disables negative caching.
func New[V any](clock Clock, ttl, failureTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		clock:      clock,
		ttl:        ttl,
		failureTTL: failureTTL,
	}
}

// Get returns a cached value if present, unexpired, and not a cached
// failure.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.err != nil || c.clock.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrFetch returns the cached value, or runs fetch exactly once per
// key regardless of how many goroutines miss concurrently.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a racing caller may have filled
		// the entry while we waited for the flight slot.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && !c.clock.Now().After(e.expiresAt) {
			return e.value, e.err
		}

		val, err := fetch(ctx)
		c.store(key, val, err)
		return val, err
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *Cache[V]) store(key string, v V, err error) {
	ttl := c.ttl
	if err != nil {
		ttl = c.failureTTL
		if ttl == 0 {
			return
		}
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, err: err, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// Set stores a value directly with the success TTL.
func (c *Cache[V]) Set(key string, v V) {
	c.store(key, v, nil)
}

// Invalidate drops an entry.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
