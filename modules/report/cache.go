package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	domain "github.com/example/task-tracker/domain/report"
	"github.com/redis/go-redis/v9"
)

// Cache stores finished reports for a short time.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Report, bool, error)
	Set(ctx context.Context, key string, r domain.Report) error
	// Invalidate drops every cached report.
	Invalidate(ctx context.Context) error
	Stats() CacheStats
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Flushes uint64  `json:"flushes"`
	Errors  uint64  `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// RedisCache is a cache-aside store for reports backed by Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	flushes atomic.Uint64
	errs    atomic.Uint64
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache using client. Keys are prefixed with prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get returns the cached report for key. A miss is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.Report, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return domain.Report{}, false, nil
		}
		c.errs.Add(1)
		return domain.Report{}, false, fmt.Errorf("cache get error: %w", err)
	}

	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		c.errs.Add(1)
		return domain.Report{}, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	c.hits.Add(1)
	return r, true, nil
}

// Set stores r under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, r domain.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		c.errs.Add(1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("cache set error: %w", err)
	}

	c.sets.Add(1)
	return nil
}

// invalidateBatch is the SCAN page size used by Invalidate.
const invalidateBatch = 100

// Invalidate deletes every key under the cache prefix.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", invalidateBatch).Iterator()
	keys := make([]string, 0, invalidateBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == invalidateBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.errs.Add(1)
				return fmt.Errorf("cache invalidate error: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("cache scan error: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.errs.Add(1)
			return fmt.Errorf("cache invalidate error: %w", err)
		}
	}

	c.flushes.Add(1)
	return nil
}

// Stats returns the current counters.
func (c *RedisCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Flushes: c.flushes.Load(),
		Errors:  c.errs.Load(),
		HitRate: hitRate,
	}
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
