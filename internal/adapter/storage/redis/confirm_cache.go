package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ConfirmCache implements ports.ConfirmationCache using Redis.
type ConfirmCache struct {
	client *goredis.Client
	prefix string
}

// NewConfirmCache creates a new Redis-backed confirmation cache.
func NewConfirmCache(client *goredis.Client) *ConfirmCache {
	return &ConfirmCache{
		client: client,
		prefix: "confirm:",
	}
}

// Get retrieves a cached confirmation response by gateway reference.
// Returns nil, nil if the key does not exist.
func (c *ConfirmCache) Get(ctx context.Context, gatewayRef string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+gatewayRef).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis confirm get: %w", err)
	}
	return val, nil
}

// Set stores a confirmation response with TTL.
func (c *ConfirmCache) Set(ctx context.Context, gatewayRef string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+gatewayRef, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis confirm set: %w", err)
	}
	return nil
}
