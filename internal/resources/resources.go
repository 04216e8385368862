// Package resources holds what the per-feature API modules share: the read
// options every cached read accepts and the read-through helper that applies
// them.
package resources

import (
	"context"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
)

// Unbounded is the TTL for per-entity records that are only replaced by an
// explicit invalidation.
const Unbounded = 365 * 24 * time.Hour

// ReadOptions tunes a cached read. ForceRefresh skips the cache lookup but
// still writes the fresh result through.
type ReadOptions struct {
	ForceRefresh bool
}

// Engine is the request engine as seen by resource modules.
type Engine interface {
	Do(ctx context.Context, req apiclient.Request) (apiclient.Response, error)
}

// Read returns the cached value under key or calls fetch and caches its
// result for ttl. Errors from fetch are returned as-is and never cached.
func Read[T any](ctx context.Context, c *cache.Store, key string, ttl time.Duration, opts ReadOptions, fetch func(context.Context) (T, error)) (T, error) {
	if !opts.ForceRefresh {
		if cached, ok := cache.GetJSON[T](ctx, c, key); ok {
			return cached, nil
		}
	}
	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// Mutate executes a write and runs invalidate as soon as the server accepts
// it, before the reply is decoded. A reply that fails to decode still
// reports an error, but the server-side change has happened and the stale
// cache entries are already gone.
func Mutate[T any](ctx context.Context, engine Engine, req apiclient.Request, invalidate func(context.Context)) (T, error) {
	var out T
	resp, err := engine.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if invalidate != nil {
		invalidate(ctx)
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// Call executes req and decodes the JSON reply into T.
func Call[T any](ctx context.Context, engine Engine, req apiclient.Request) (T, error) {
	var out T
	resp, err := engine.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
