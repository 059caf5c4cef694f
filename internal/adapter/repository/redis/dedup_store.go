package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/tenant-provisioner/internal/domain"
)

// DedupStore implements domain.DedupStore on plain Redis keys, making job
// deduplication and supersede markers visible to every worker instance.
type DedupStore struct {
	client *redis.Client
}

func NewDedupStore(client *redis.Client) *DedupStore {
	return &DedupStore{client: client}
}

var _ domain.DedupStore = (*DedupStore)(nil)

func (s *DedupStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to SETNX %s: %w", key, err)
	}
	return ok, nil
}

func (s *DedupStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

func (s *DedupStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return v, nil
}

func (s *DedupStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to DEL %s: %w", key, err)
	}
	return nil
}
