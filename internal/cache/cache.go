// Package cache provides the Redis-backed hot cache for served timelines.
// The cache is strictly an accelerator: every operation degrades to a miss on
// error, and a nil cache is valid and means caching is disabled.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"terrasol/internal/types"
)

// Store is the minimal key-value surface the engine needs from Redis.
// Satisfied by *Client; tests substitute an in-memory fake.
type Store interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// Client wraps redis.Client with JSON marshaling and error normalization.
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient creates a Client for the given address. The connection is
// verified with a short ping; failure is returned rather than fatal so the
// caller can decide to run uncached.
func NewClient(addr, password string, db int, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeCacheUnavailable, "failed to connect to redis", err)
	}

	logger.Info("connected to redis", "addr", addr, "db", db)
	return &Client{rdb: rdb, logger: logger}, nil
}

// GetJSON fetches and unmarshals the value at key. Returns (false, nil) on a
// miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeCacheUnavailable, "redis get failed", err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to unmarshal cached value", err)
	}
	return true, nil
}

// SetJSON marshals value and stores it at key with the given TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal cache value", err)
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return types.NewAppError(types.ErrCodeCacheUnavailable, "redis set failed", err)
	}
	return nil
}

// Incr atomically increments the counter at key, creating it at 1.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeCacheUnavailable, "redis incr failed", err)
	}
	return n, nil
}

// Delete removes the given keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return types.NewAppError(types.ErrCodeCacheUnavailable, "redis del failed", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
