package store

import (
	"context"
	"sync"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of
// weather.Store. It holds a single slot: every Save replaces the last one.
type MemoryStore struct {
	mu     sync.RWMutex
	record weather.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save overwrites the stored record.
func (s *MemoryStore) Save(ctx context.Context, rec weather.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = rec
	return nil
}

// Load returns the last saved record, or the zero Record if nothing was saved.
func (s *MemoryStore) Load(ctx context.Context) (weather.Record, error) {
	if err := ctx.Err(); err != nil {
		return weather.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
