package storage

import (
	"context"
	"sync"

	"github.com/dyike/StockAnalyzer/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.JobRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.JobRecord)}
}

func (s *MemoryStore) Put(_ context.Context, id string, rec *models.JobRecord) error {
	if err := checkStatus(rec.Status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u models.JobUpdate) error {
	if err := checkStatus(u.Status); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Apply(u)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }
