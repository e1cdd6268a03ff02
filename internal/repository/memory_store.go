package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used by tests and the offline CLI.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec.Data = append([]byte(nil), rec.Data...)
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.records[key].Version
	if current != expectedVersion {
		return 0, ErrVersionConflict
	}
	next := expectedVersion + 1
	s.records[key] = Record{
		Key:       key,
		Data:      append([]byte(nil), data...),
		Version:   next,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.records, k)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
