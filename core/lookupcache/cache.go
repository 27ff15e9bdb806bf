package lookupcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a TTL-bounded lookup cache with stampede protection.
// It is constructed once at the dependency-injection root and passed by
// reference to consumers; there is no process-wide instance.
type Cache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry[V]
	sf      singleflight.Group
}

type entry[V any] struct {
	value V
	built time.Time
}

// New creates a cache whose entries expire after ttl.
// A zero ttl disables caching: every GetOrLoad calls the loader.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

// GetOrLoad returns the cached value for key, or builds it with load.
// Concurrent callers for the same key share a single load (singleflight).
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}

	result, err, _ := c.sf.Do(key, func() (any, error) {
		// Double-check after acquiring the singleflight slot.
		if v, ok := c.get(key); ok {
			return v, nil
		}

		v, err := load(ctx)
		if err != nil {
			var zero V
			return zero, err
		}

		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = entry[V]{value: v, built: time.Now()}
			c.mu.Unlock()
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return result.(V), nil
}

// Invalidate removes the entry for key, forcing the next GetOrLoad to rebuild.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[V]) get(key string) (V, bool) {
	if c.ttl == 0 {
		var zero V
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.built) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}
