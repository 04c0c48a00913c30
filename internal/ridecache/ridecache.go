// Package ridecache is a short-TTL Redis lookup cache for ride snapshots,
// sparing repeated callers a database round trip during an active ride.
package ridecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/models"
)

const ttl = 300 * time.Second

// ErrMiss is returned when the ride isn't present in the cache.
var ErrMiss = errors.New("ridecache: miss")

type redisPort interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// Cache is the ride snapshot cache.
type Cache struct {
	redis redisPort
}

func New(redis redisPort) *Cache {
	return &Cache{redis: redis}
}

func key(id uuid.UUID) string {
	return fmt.Sprintf("ride:%s", id)
}

// Set stores a JSON snapshot of ride with a 300s TTL.
func (c *Cache) Set(ctx context.Context, ride *models.Ride) error {
	data, err := json.Marshal(ride)
	if err != nil {
		return fmt.Errorf("ridecache: marshal ride: %w", err)
	}
	return c.redis.SetWithExpiration(ctx, key(ride.ID), string(data), ttl)
}

// Get returns the cached snapshot for id, or ErrMiss if absent or expired.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	data, err := c.redis.GetString(ctx, key(id))
	if err != nil {
		return nil, ErrMiss
	}
	var ride models.Ride
	if err := json.Unmarshal([]byte(data), &ride); err != nil {
		return nil, fmt.Errorf("ridecache: unmarshal ride: %w", err)
	}
	return &ride, nil
}

// Invalidate removes the cached snapshot for id, used whenever the ride's
// persisted state changes so the cache never serves a stale status.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.redis.Delete(ctx, key(id))
}
