// Package challenge records third-party disputes against verified records.
package challenge

import (
	"context"
	"errors"
	"log/slog"

	"veristamp/internal/events"
	"veristamp/internal/platform/metrics"
	"veristamp/internal/verification/models"
	"veristamp/internal/verification/store"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/sentinel"
	"veristamp/pkg/requestcontext"
)

// Service files challenges and transitions the owning record to challenged.
type Service struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(st store.Store, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: st, publisher: publisher, metrics: m, logger: logger}
}

// Challenge appends a ChallengeRecord and flips the record to challenged.
// The status precondition is checked under the store's lock so a concurrent
// retry cannot reopen the record between check and append.
func (s *Service) Challenge(ctx context.Context, verificationID models.VerificationID, challengerAddress, reason, evidence string) (*models.ChallengeRecord, error) {
	if challengerAddress == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "challenger address cannot be empty")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "challenge reason cannot be empty")
	}

	now := requestcontext.Now(ctx)
	record := models.ChallengeRecord{
		ID:                models.NewChallengeID(),
		VerificationID:    verificationID,
		ChallengerAddress: challengerAddress,
		Reason:            reason,
		Evidence:          evidence,
		Status:            models.ChallengePending,
		Timestamp:         now,
	}

	updated, err := s.store.Execute(ctx, verificationID,
		func(r *models.VerificationRecord) error {
			if err := r.CanChallenge(); err != nil {
				return dErrors.New(dErrors.CodeInvalidState, "only verified records can be challenged")
			}
			return nil
		},
		func(r *models.VerificationRecord) {
			r.ApplyChallenge(record)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to file challenge")
	}

	if s.metrics != nil {
		s.metrics.Challenges.Inc()
	}
	if err := s.publisher.Publish(ctx, events.TransitionEvent{
		VerificationID: updated.ID.String(),
		Transition:     events.TransitionChallenged,
		AttestationID:  updated.AttestationID,
		Timestamp:      now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish challenge event",
			"verification_id", updated.ID.String(),
			"error", err,
		)
	}
	return &record, nil
}
