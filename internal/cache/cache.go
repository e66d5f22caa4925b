// Package cache defines the Cache interface and a
// Redis-backed implementation, grounded on internal/database/redis.go's
// client setup. Idempotency, CSRF tokens, rate-limit windows, and the
// diagnostic-log prune counter all share this interface so multiple
// writers converge on one source of truth.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a minimal key-value store with TTLs and an atomic
// increment-with-expiry, sufficient for every caller in this codebase.
type Cache interface {
	// Get returns the stored value and true, or ("", false) if absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key only if key is absent, returning
	// whether the set happened. Used for single-use tokens and
	// idempotency sentinels.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Incr increments the integer stored at key (0 if absent) and
	// ensures it carries ttl if this call created it. Returns the new
	// value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Redis wraps a *redis.Client to implement Cache.
type Redis struct {
	client *redis.Client
}

// NewRedis adapts an existing *redis.Client (see internal/database.NewRedis)
// to the Cache interface.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// ExpireNX only sets the TTL the first time the key is created, so a
	// fixed window does not keep sliding forward on every increment.
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
