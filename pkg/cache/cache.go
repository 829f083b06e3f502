// Package cache defines the small TTL key-value cache used to hold the
// resolved system prompt.
package cache

import (
	"context"
	"time"
)

// Cache is a string-valued cache with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value for ttl. A ttl of zero stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
