package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

// Every key lives under one namespace so a Redis shared with other services
// can be flushed per application, and so DeleteByPattern can never scan past
// our own keys.
const cacheNamespace = "campushub:"

// deleteChunkSize bounds a single DEL call when clearing a pattern.
const deleteChunkSize = 100

// CacheRepository stores the computed attendance and finance summaries in
// Redis. All methods tolerate a nil client so the API degrades to cache-off
// instead of failing.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, cacheNamespace+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL. A small
// random jitter is added to the TTL so the summaries cached during a burst
// (a class list, a billing page) do not all expire and recompute at once.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if ttl > 0 {
		ttl += time.Duration(rand.Int63n(int64(ttl)/10 + 1))
	}
	if err := r.client.Set(ctx, cacheNamespace+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern,
// deleting in chunks so a wide invalidation does not turn into one huge DEL.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	chunk := make([]string, 0, deleteChunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := r.client.Del(ctx, chunk...).Err(); err != nil {
			return fmt.Errorf("redis delete %d keys for %s: %w", len(chunk), pattern, err)
		}
		chunk = chunk[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, cacheNamespace+pattern, 0).Iterator()
	for iter.Next(ctx) {
		chunk = append(chunk, iter.Val())
		if len(chunk) == deleteChunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}

	return flush()
}

// Ping reports whether Redis is reachable. Used by the readiness probe; a
// down cache is reported but never fails readiness.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
