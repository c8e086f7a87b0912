package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carpoolhq/carpool-go/internal/domain"
	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
)

const keyPrefix = "driver_rating:"

// RatingCache implements repository.RatingCache using Redis. Entries are
// invalidated whenever a new review lands, so the TTL only bounds staleness
// if an invalidation is lost.
type RatingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRatingCache creates a new Redis-backed rating cache.
func NewRatingCache(client *redis.Client, ttl time.Duration) *RatingCache {
	return &RatingCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached rating summary by driver ID.
func (c *RatingCache) Get(ctx context.Context, driverID string) (*domain.RatingSummary, error) {
	key := keyPrefix + driverID

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get rating summary: %w", err)
	}

	var summary domain.RatingSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal rating summary: %w", err)
	}

	return &summary, nil
}

// Set stores a rating summary with the configured TTL.
func (c *RatingCache) Set(ctx context.Context, summary *domain.RatingSummary) error {
	key := keyPrefix + summary.DriverID

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal rating summary: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set rating summary: %w", err)
	}

	return nil
}

// Invalidate drops the cached summary for a driver.
func (c *RatingCache) Invalidate(ctx context.Context, driverID string) error {
	key := keyPrefix + driverID

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del rating summary: %w", err)
	}

	return nil
}
