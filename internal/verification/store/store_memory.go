package store

import (
	"context"
	"sync"
	"time"

	"veristamp/internal/verification/models"
	"veristamp/pkg/platform/sentinel"
)

// InMemory keeps records in a mutex-guarded map. It intentionally favors
// clarity over performance and is the reference implementation for the
// Execute locking contract.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*models.VerificationRecord
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*models.VerificationRecord)}
}

func (s *InMemory) Create(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.ID.String()
	if _, exists := s.records[key]; exists {
		return sentinel.ErrConflict
	}
	s.records[key] = record.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id models.VerificationID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[id.String()]; ok {
		return record.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// Execute holds the write lock across validate and mutate, which is what makes
// concurrent resolve deliveries race-safe against this store.
func (s *InMemory) Execute(
	_ context.Context,
	id models.VerificationID,
	validate func(*models.VerificationRecord) error,
	mutate func(*models.VerificationRecord),
) (*models.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(record); err != nil {
		return nil, err
	}
	mutate(record)
	return record.Clone(), nil
}

func (s *InMemory) ListStale(_ context.Context, cutoff time.Time) ([]*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []*models.VerificationRecord
	for _, record := range s.records {
		if record.Status == models.StatusPending && record.CreatedAt.Before(cutoff) {
			stale = append(stale, record.Clone())
		}
	}
	return stale, nil
}
