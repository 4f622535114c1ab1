package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storeops/backend/internal/domain/returns"
	"github.com/storeops/backend/internal/infrastructure/config"
)

const returnStatsKey = "storeops:returns:stats"

// RedisReturnStatsCache caches the return statistics aggregate in Redis.
// The stats query scans the whole returns table; the list-view header
// polls it on every page load, so a short TTL pays for itself.
type RedisReturnStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReturnStatsCache creates a cache backed by a new Redis client
func NewRedisReturnStatsCache(cfg config.RedisConfig, ttl time.Duration) (*RedisReturnStatsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 3,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisReturnStatsCacheWithClient(client, ttl), nil
}

// NewRedisReturnStatsCacheWithClient creates a cache using an existing client
func NewRedisReturnStatsCacheWithClient(client *redis.Client, ttl time.Duration) *RedisReturnStatsCache {
	return &RedisReturnStatsCache{client: client, ttl: ttl}
}

// Get returns the cached stats, or (nil, nil) on a miss
func (c *RedisReturnStatsCache) Get(ctx context.Context) (*returns.ReturnStats, error) {
	payload, err := c.client.Get(ctx, returnStatsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats returns.ReturnStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the
		// next Set
		return nil, nil
	}
	return &stats, nil
}

// Set stores the stats with the configured TTL
func (c *RedisReturnStatsCache) Set(ctx context.Context, stats *returns.ReturnStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, returnStatsKey, payload, c.ttl).Err()
}

// Invalidate drops the cached stats; called whenever a return is
// created or decided
func (c *RedisReturnStatsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, returnStatsKey).Err()
}

// Close closes the underlying Redis client
func (c *RedisReturnStatsCache) Close() error {
	return c.client.Close()
}
