package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veristamp/internal/verification/models"
	"veristamp/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newRecord() *models.VerificationRecord {
	record, err := models.NewVerificationRecord(models.NewVerificationID(), models.SubmitContent{
		Prompt:           "prompt",
		Output:           "output",
		Model:            "gpt-4o",
		OutputHash:       strings.Repeat("ab", 32),
		RequesterAddress: "0xabc",
	}, time.Now())
	s.Require().NoError(err)
	return record
}

// TestCreationAndLookups verifies the store creates and retrieves records.
func (s *MemoryStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds record by ID", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		found, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(record.ID, found.ID)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, models.NewVerificationID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate ID", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		err := s.store.Create(s.ctx, record)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returned records do not share state with the store", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		found, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		found.Status = models.StatusVerified

		again, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, again.Status)
	})
}

// TestExecute verifies the conditional-update contract: validate and mutate
// run under one lock, and a failed validation leaves the record untouched.
func (s *MemoryStoreSuite) TestExecute() {
	fulfillment := models.Fulfillment{AttestationID: "att-1", Verified: true}

	s.Run("applies the mutation when validation passes", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		updated, err := s.store.Execute(s.ctx, record.ID,
			func(r *models.VerificationRecord) error { return r.CanResolve() },
			func(r *models.VerificationRecord) { r.ApplyResolution(fulfillment, time.Now()) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, updated.Status)

		found, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, found.Status)
	})

	s.Run("propagates validation failure without mutating", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		_, err := s.store.Execute(s.ctx, record.ID,
			func(r *models.VerificationRecord) error { return sentinel.ErrConflict },
			func(r *models.VerificationRecord) { r.ApplyResolution(fulfillment, time.Now()) },
		)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		found, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Execute(s.ctx, models.NewVerificationID(),
			func(r *models.VerificationRecord) error { return nil },
			func(r *models.VerificationRecord) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exactly one of many concurrent updates commits", func() {
		record := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, record))

		const workers = 16
		var wg sync.WaitGroup
		committed := make(chan models.Fulfillment, workers)

		for i := 0; i < workers; i++ {
			verified := i%2 == 0
			wg.Add(1)
			go func() {
				defer wg.Done()
				f := models.Fulfillment{AttestationID: "att-race", Verified: verified}
				_, err := s.store.Execute(s.ctx, record.ID,
					func(r *models.VerificationRecord) error {
						if r.Status != models.StatusPending {
							return sentinel.ErrConflict
						}
						return nil
					},
					func(r *models.VerificationRecord) { r.ApplyResolution(f, time.Now()) },
				)
				if err == nil {
					committed <- f
				}
			}()
		}
		wg.Wait()
		close(committed)

		winners := make([]models.Fulfillment, 0, workers)
		for f := range committed {
			winners = append(winners, f)
		}
		s.Require().Len(winners, 1)

		found, err := s.store.FindByID(s.ctx, record.ID)
		s.Require().NoError(err)
		s.True(found.Status.IsTerminalish())
		if winners[0].Verified {
			s.Equal(models.StatusVerified, found.Status)
		} else {
			s.Equal(models.StatusRejected, found.Status)
		}
	})
}

// TestListStale verifies the stale-pending scan.
func (s *MemoryStoreSuite) TestListStale() {
	s.Run("returns only pending records older than the cutoff", func() {
		old := s.newRecord()
		old.CreatedAt = time.Now().Add(-1 * time.Hour)
		s.Require().NoError(s.store.Create(s.ctx, old))

		fresh := s.newRecord()
		s.Require().NoError(s.store.Create(s.ctx, fresh))

		resolved := s.newRecord()
		resolved.CreatedAt = time.Now().Add(-1 * time.Hour)
		resolved.ApplyResolution(models.Fulfillment{AttestationID: "a", Verified: true}, time.Now())
		s.Require().NoError(s.store.Create(s.ctx, resolved))

		stale, err := s.store.ListStale(s.ctx, time.Now().Add(-30*time.Minute))
		s.Require().NoError(err)
		s.Require().Len(stale, 1)
		s.Equal(old.ID, stale[0].ID)
	})
}
