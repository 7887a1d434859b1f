// Package redis wraps the go-redis client and the small coordination
// primitives built on it: a keyed fetch lock and a fetch cooldown marker.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
}

// New creates a new Redis client from a redis:// URL.
// Returns nil if the URL is empty (Redis not configured).
func New(url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

const (
	fetchLockKeyPrefix     = "fetch:lock:"
	fetchCooldownKeyPrefix = "fetch:cooldown:"
)

// AcquireFetchLock takes the cross-process mutual-exclusion lock for one
// subject key (platform + identity), so identical fetches from concurrent
// schedulers serialize instead of racing the same writes. Returns false when
// another holder has the lock. The TTL bounds how long a crashed holder can
// block the subject.
func (c *Client) AcquireFetchLock(ctx context.Context, subject string, ttl time.Duration) (bool, error) {
	ok, err := c.SetNX(ctx, fetchLockKeyPrefix+subject, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire fetch lock: %w", err)
	}
	return ok, nil
}

// ReleaseFetchLock releases the subject lock. Safe to call when the TTL has
// already expired the key.
func (c *Client) ReleaseFetchLock(ctx context.Context, subject string) error {
	if err := c.Del(ctx, fetchLockKeyPrefix+subject).Err(); err != nil {
		return fmt.Errorf("release fetch lock: %w", err)
	}
	return nil
}

// MarkFetched records that a subject was fetched, for cooldown checks.
func (c *Client) MarkFetched(ctx context.Context, subject string, ttl time.Duration) error {
	return c.Set(ctx, fetchCooldownKeyPrefix+subject, "1", ttl).Err()
}

// RecentlyFetched reports whether a subject is still inside its cooldown
// window. A missing key means the cooldown has lapsed.
func (c *Client) RecentlyFetched(ctx context.Context, subject string) (bool, error) {
	n, err := c.Exists(ctx, fetchCooldownKeyPrefix+subject).Result()
	if err != nil {
		return false, fmt.Errorf("check fetch cooldown: %w", err)
	}
	return n > 0, nil
}
