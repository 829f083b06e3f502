package prompt

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rhuss/aichat/pkg/cache"
	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/observability"
	"github.com/rhuss/aichat/pkg/storage"
)

// CacheKey is the cache entry holding the resolved prompt.
const CacheKey = storage.SystemPromptKey

// Resolver picks the system prompt for an exchange: a cached record,
// else the current record from the Store, else the static prompt.
type Resolver struct {
	static string
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
}

// NewResolver creates a Resolver. store may be nil to use only the static
// prompt. Caching is active when c is non-nil and ttl > 0.
func NewResolver(static string, store Store, c cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{static: static, store: store, cache: c, ttl: ttl}
}

func (r *Resolver) cachingEnabled() bool {
	return r.cache != nil && r.ttl > 0
}

// Resolve returns the system prompt, or "" when none is configured.
// Store and cache failures are logged and fall through to the static
// prompt so an exchange is never blocked on prompt lookup.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.store == nil {
		return r.static, nil
	}

	if r.cachingEnabled() {
		v, ok, err := r.cache.Get(ctx, CacheKey)
		if err != nil {
			slog.Warn("system prompt cache read failed", "error", err)
		}
		// An empty cached value counts as a miss.
		if ok && v != "" {
			observability.PromptCacheTotal.WithLabelValues("hit").Inc()
			debug.Log("prompt", "cache hit")
			return v, nil
		}
		observability.PromptCacheTotal.WithLabelValues("miss").Inc()
	}

	// Concurrent misses share one store query, which must outlive the
	// caller that started it.
	v, err, _ := r.group.Do(CacheKey, func() (any, error) {
		return r.load(context.WithoutCancel(ctx)), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) load(ctx context.Context) string {
	content, ok, err := r.store.Current(ctx)
	if err != nil {
		slog.Warn("system prompt lookup failed, using static prompt", "error", err)
		return r.static
	}
	if !ok {
		debug.Log("prompt", "no prompt record, using static prompt")
		return r.static
	}

	if r.cachingEnabled() {
		if err := r.cache.Set(ctx, CacheKey, content, r.ttl); err != nil {
			slog.Warn("system prompt cache write failed", "error", err)
		}
	}
	return content
}
