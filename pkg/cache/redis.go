package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by RedisBackend.
const DefaultRedisPrefix = "apicache:"

// RedisBackend stores values in Redis with native key expiry.
type RedisBackend struct {
	redis      *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisBackend creates a backend over redisClient.
// A defaultTTL <= 0 falls back to DefaultStoreTTL.
func NewRedisBackend(redisClient *redis.Client, defaultTTL time.Duration) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultStoreTTL
	}
	return &RedisBackend{
		redis:      redisClient,
		prefix:     DefaultRedisPrefix,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a value by key.
// Returns ErrCacheMiss if the key doesn't exist; Redis handles expiry.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.redis.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(string(BackendRedis)).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.WithLabelValues(string(BackendRedis)).Inc()
	return data, nil
}

// Set stores a value with the given TTL (or the default when ttl <= 0).
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = b.defaultTTL
	}

	if err := b.redis.Set(ctx, b.prefix+key, value, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.redis.Del(ctx, b.prefix+key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear deletes every key under the backend prefix.
// It scans instead of flushing so unrelated keys in the same DB survive.
func (b *RedisBackend) Clear(ctx context.Context) error {
	iter := b.redis.Scan(ctx, 0, b.prefix+"*", 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := b.redis.Del(ctx, batch...).Err(); err != nil {
				CacheErrors.WithLabelValues("clear").Inc()
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(batch) > 0 {
		if err := b.redis.Del(ctx, batch...).Err(); err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Stats counts the keys under the backend prefix. Redis enforces its own
// memory bound, so MaxSize is 0.
func (b *RedisBackend) Stats(ctx context.Context) Stats {
	stats := Stats{
		Backend: BackendRedis,
		TTL:     b.defaultTTL,
	}

	iter := b.redis.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.Size++
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("stats").Inc()
	}
	return stats
}

// Type implements Backend.
func (b *RedisBackend) Type() BackendType {
	return BackendRedis
}

// Close closes the Redis connection pool.
func (b *RedisBackend) Close() error {
	return b.redis.Close()
}

var _ Backend = (*RedisBackend)(nil)
