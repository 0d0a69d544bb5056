// Package refcache holds slowly changing reference data in memory with a TTL.
// Concurrent loads of the same key share one call to the loader.
package refcache

import (
	"context"
	"sync"
	"time"

	"follicle-match/internal/common/metrics"

	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 2 * time.Hour

// Loader fetches the value for a key on a miss.
type Loader[V any] func(ctx context.Context) (V, error)

// Getter is satisfied by Cache and Noop.
type Getter[V any] interface {
	Get(ctx context.Context, key string, load Loader[V]) (V, error)
	Invalidate(key string)
}

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

// Cache is safe for concurrent use. Failed loads are not cached.
type Cache[V any] struct {
	name    string
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group
}

func New[V any](name string, ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		name:    name,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]entry[V]{},
	}
}

// WithClock replaces the clock used for expiry.
func (c *Cache[V]) WithClock(now func() time.Time) *Cache[V] {
	c.now = now
	return c
}

func (c *Cache[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return e.value, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		c.mu.Lock()
		c.entries[key] = entry[V]{value: value, loadedAt: c.now()}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Noop always calls the loader.
type Noop[V any] struct{}

func (Noop[V]) Get(ctx context.Context, _ string, load Loader[V]) (V, error) {
	return load(ctx)
}

func (Noop[V]) Invalidate(string) {}
