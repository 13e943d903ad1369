package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
)

const progressKeyPrefix = "upload:progress:"

// RedisProgressStore implements upload.ProgressStore using Redis.
// Suitable for distributed deployments where the worker writing
// progress and the API serving status polls are different processes.
type RedisProgressStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisProgressStore creates a progress store with an existing Redis
// client
func NewRedisProgressStore(client *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{
		client:    client,
		keyPrefix: progressKeyPrefix,
	}
}

// Set writes a progress snapshot with a TTL
func (s *RedisProgressStore) Set(ctx context.Context, jobID string, snapshot upload.ProgressSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal progress snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+jobID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store progress snapshot: %w", err)
	}
	return nil
}

// Get reads a progress snapshot, shared.ErrNotFound on a cache miss
func (s *RedisProgressStore) Get(ctx context.Context, jobID string) (upload.ProgressSnapshot, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return upload.ProgressSnapshot{}, shared.ErrNotFound
		}
		return upload.ProgressSnapshot{}, fmt.Errorf("failed to read progress snapshot: %w", err)
	}
	var snapshot upload.ProgressSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return upload.ProgressSnapshot{}, fmt.Errorf("failed to unmarshal progress snapshot: %w", err)
	}
	return snapshot, nil
}

// Delete removes a cached snapshot
func (s *RedisProgressStore) Delete(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, s.keyPrefix+jobID).Err()
}

// Ensure RedisProgressStore implements ProgressStore
var _ upload.ProgressStore = (*RedisProgressStore)(nil)
