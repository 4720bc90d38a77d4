// Package redis implements the distributed cache tier on top of a shared
// Redis instance. Expiry is enforced by Redis itself via SET EX.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/ember/internal/cache"
	"github.com/davidbz/ember/internal/observability"
)

const connectTimeout = 5 * time.Second

// Cache is a thin wrapper over a Redis client implementing cache.Remote.
type Cache struct {
	client *redis.Client
}

// New connects to the Redis instance at url (redis:// form) and verifies
// the connection with a ping. A failed ping is returned as an error so the
// caller can run without this tier.
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	observability.FromContext(ctx).Info("redis cache tier connected",
		observability.String("addr", opts.Addr))

	return &Cache{client: client}, nil
}

// Get retrieves the raw value for key, or cache.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set stores value under key. A zero ttl stores without expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
