package kbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wizard:kb_id:"

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore stores ids with ttl; zero keeps them forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, operatorID uuid.UUID) (string, error) {
	id, err := s.rdb.Get(ctx, keyPrefix+operatorID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read kb id: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Save(ctx context.Context, operatorID uuid.UUID, kbID string) error {
	if err := s.rdb.Set(ctx, keyPrefix+operatorID.String(), kbID, s.ttl).Err(); err != nil {
		return fmt.Errorf("write kb id: %w", err)
	}
	return nil
}
