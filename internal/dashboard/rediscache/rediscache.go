// Package rediscache provides a Redis-backed dashboard.Cache.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache implements dashboard.Cache over a Redis client.
type Cache struct {
	client *redis.Client
}

// New wraps an existing Redis client. The caller owns the client's lifecycle.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the cached value for key, or (nil, false, nil) on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// SetWithTTL stores value under key with the given expiry.
func (c *Cache) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
