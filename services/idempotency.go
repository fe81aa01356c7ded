package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore grants short-lived named locks. Payouts take one per placement so
// concurrent requests for the same commission cannot both reach the transfer
// call.
type LockStore interface {
	// Acquire returns true when the lock was taken, false when it is held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisLockStore struct {
	client *redis.Client
}

func NewRedisLockStore(client *redis.Client) *RedisLockStore {
	return &RedisLockStore{client: client}
}

func (s *RedisLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, fmt.Sprintf("lock:%s", key), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
