package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"backend/internal/reconcile"
)

// Client caches tracking snapshots in redis so the storefront tracking page
// does not hit the shipping provider on every view.
type Client struct {
	rdb *redis.Client
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

func trackingKey(orderID string) string {
	return "tracking:" + orderID
}

func (c *Client) SetTracking(ctx context.Context, orderID string, snap reconcile.TrackingSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal tracking snapshot: %w", err)
	}
	return c.rdb.Set(ctx, trackingKey(orderID), data, ttl).Err()
}

func (c *Client) GetTracking(ctx context.Context, orderID string) (*reconcile.TrackingSnapshot, error) {
	val, err := c.rdb.Get(ctx, trackingKey(orderID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking snapshot: %w", err)
	}

	var snap reconcile.TrackingSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracking snapshot: %w", err)
	}
	return &snap, nil
}
