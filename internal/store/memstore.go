package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemStore implements Store in memory. It is used in tests and when no
// database path is configured.
type MemStore struct {
	mu      sync.Mutex
	records []*DecisionRecord
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) SaveDecision(_ context.Context, rec *DecisionRecord) (int64, error) {
	if rec == nil {
		return 0, errors.New("decision record is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.ID = int64(len(s.records) + 1)
	if cp.CreatedAt == "" {
		cp.CreatedAt = nowUTC()
	}
	s.records = append(s.records, &cp)
	return cp.ID, nil
}

func (s *MemStore) GetDecision(_ context.Context, id int64) (*DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || id > int64(len(s.records)) {
		return nil, fmt.Errorf("decision %d: %w", id, ErrNotFound)
	}
	cp := *s.records[id-1]
	return &cp, nil
}

func (s *MemStore) ListDecisions(_ context.Context, f Filter) ([]*DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*DecisionRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if !f.matches(s.records[i]) {
			continue
		}
		cp := *s.records[i]
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }
