package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	"FinProfile/pkg/cache"
)

// CacheNakedStore keeps each symbol's naked POC registry as one JSON value
// in a cache.Service (Redis in production, memory in tests and dev).
type CacheNakedStore struct {
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.NakedStore = (*CacheNakedStore)(nil)

func NewCacheNakedStore(c cache.Service, ttl time.Duration) *CacheNakedStore {
	return &CacheNakedStore{cache: c, ttl: ttl}
}

func nakedKey(symbol string) string {
	return cache.Key("naked", symbol)
}

func (s *CacheNakedStore) Load(ctx context.Context, symbol string) ([]models.NakedPOC, error) {
	var entries []models.NakedPOC
	if err := s.cache.Get(ctx, nakedKey(symbol), &entries); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load naked %s: %w", symbol, err)
	}
	return entries, nil
}

func (s *CacheNakedStore) Save(ctx context.Context, symbol string, entries []models.NakedPOC) error {
	if len(entries) == 0 {
		return s.cache.Delete(ctx, nakedKey(symbol))
	}
	if err := s.cache.Set(ctx, nakedKey(symbol), entries, s.ttl); err != nil {
		return fmt.Errorf("save naked %s: %w", symbol, err)
	}
	return nil
}
