package kbstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// MemoryStore is used when Redis is unreachable and in tests.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, 10*time.Minute)}
}

func (s *MemoryStore) Get(ctx context.Context, operatorID uuid.UUID) (string, error) {
	if x, found := s.cache.Get(operatorID.String()); found {
		return x.(string), nil
	}
	return "", nil
}

func (s *MemoryStore) Save(ctx context.Context, operatorID uuid.UUID, kbID string) error {
	s.cache.Set(operatorID.String(), kbID, cache.DefaultExpiration)
	return nil
}
