// Package memory provides a process-local cache.Cache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/aichat/pkg/cache"
)

type item struct {
	value   string
	expires time.Time // zero = never
}

// Cache is a mutex-guarded map with lazy expiry.
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

var _ cache.Cache = (*Cache)(nil)

// New returns an empty cache. now may be nil, in which case time.Now is
// used.
func New(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{items: make(map[string]item), now: now}
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !it.expires.IsZero() && !c.now().Before(it.expires) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.items[key]; ok && cur.expires.Equal(it.expires) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return it.value, true, nil
}

// Set stores value under key.
func (c *Cache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	it := item{value: value}
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}
