package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// OddsCache implements ports.OddsCache using Redis. Odds are stored as
// decimal strings keyed by market option id.
type OddsCache struct {
	client *goredis.Client
	prefix string
}

// NewOddsCache creates a new Redis-backed odds cache.
func NewOddsCache(client *goredis.Client) *OddsCache {
	return &OddsCache{
		client: client,
		prefix: "odds:",
	}
}

// Get retrieves cached odds for a market option. The second return value
// is false on a cache miss.
func (c *OddsCache) Get(ctx context.Context, optionID uuid.UUID) (float64, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+optionID.String()).Result()
	if err != nil {
		if err == goredis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis odds get: %w", err)
	}

	odds, err := strconv.ParseFloat(val, 64)
	if err != nil {
		// A corrupt entry is treated as a miss so the caller falls back
		// to the catalog.
		return 0, false, nil
	}
	return odds, true, nil
}

// Set stores odds for a market option with TTL.
func (c *OddsCache) Set(ctx context.Context, optionID uuid.UUID, odds float64, ttl time.Duration) error {
	val := strconv.FormatFloat(odds, 'f', -1, 64)
	if err := c.client.Set(ctx, c.prefix+optionID.String(), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis odds set: %w", err)
	}
	return nil
}
