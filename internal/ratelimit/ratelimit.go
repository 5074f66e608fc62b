package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments a key within a fixed window and reports the count after
// the increment. The window resets when the key expires.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter over redis INCR + EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a counter from a redis URL.
func NewRedisCounter(url string) (*RedisCounter, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCounter{client: redis.NewClient(opt)}, nil
}

// Compile-time interface check.
var _ Counter = (*RedisCounter)(nil)

// Incr increments key and sets the window expiry on first increment.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Close closes the underlying redis client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

// MemoryCounter is an in-process Counter for tests and redis-less deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Compile-time interface check.
var _ Counter = (*MemoryCounter)(nil)

// Incr increments key, resetting it when its window has passed.
func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiry, ok := c.expires[key]; ok && now.After(expiry) {
		delete(c.counts, key)
		delete(c.expires, key)
	}

	c.counts[key]++
	if c.counts[key] == 1 {
		c.expires[key] = now.Add(window)
	}
	return c.counts[key], nil
}
