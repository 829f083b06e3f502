// Package redis provides a cache.Cache on Redis, shared across server
// processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/aichat/pkg/cache"
)

// Cache stores values with SET ... EX.
type Cache struct {
	client goredis.UniversalClient
}

var _ cache.Cache = (*Cache)(nil)

// New wraps client. The caller keeps ownership of the client.
func New(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Get returns the value for key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
