package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
)

const statsKey = "catalog:stats"

// RedisStatsCache caches the catalog statistics view so repeated stats
// requests do not issue count queries on every call
type RedisStatsCache struct {
	client *redis.Client
}

// NewRedisStatsCache creates a stats cache with an existing Redis client
func NewRedisStatsCache(client *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{client: client}
}

// Set writes the stats with a TTL
func (c *RedisStatsCache) Set(ctx context.Context, stats catalog.Stats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store catalog stats: %w", err)
	}
	return nil
}

// Get reads the cached stats, shared.ErrNotFound on a cache miss
func (c *RedisStatsCache) Get(ctx context.Context) (catalog.Stats, error) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return catalog.Stats{}, shared.ErrNotFound
		}
		return catalog.Stats{}, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	var stats catalog.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return catalog.Stats{}, fmt.Errorf("failed to unmarshal catalog stats: %w", err)
	}
	return stats, nil
}

// Invalidate drops the cached stats
func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, statsKey).Err()
}
