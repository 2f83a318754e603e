// Package retry re-admits rejected records into a fresh oracle round.
package retry

import (
	"context"
	"errors"
	"log/slog"

	"veristamp/internal/attestation"
	"veristamp/internal/events"
	"veristamp/internal/platform/metrics"
	"veristamp/internal/verification/models"
	"veristamp/internal/verification/store"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/sentinel"
	"veristamp/pkg/requestcontext"
)

// Dispatcher re-invokes the same oracle dispatch path submit uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, id models.VerificationID, subject attestation.Subject)
}

// Service resets rejected records back to pending.
type Service struct {
	store      store.Store
	dispatcher Dispatcher
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(st store.Store, dispatcher Dispatcher, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: st, dispatcher: dispatcher, publisher: publisher, metrics: m, logger: logger}
}

// Retry archives the prior round's attestation fields, resets the record to
// pending, and dispatches a fresh oracle round for the same id. Content
// fields are never mutated. The precondition runs under the store's lock so
// a concurrent challenge cannot interleave.
func (s *Service) Retry(ctx context.Context, id models.VerificationID) (*models.VerificationRecord, error) {
	updated, err := s.store.Execute(ctx, id,
		func(r *models.VerificationRecord) error {
			if err := r.CanRetry(); err != nil {
				return dErrors.New(dErrors.CodeInvalidState, "only rejected records can be retried")
			}
			return nil
		},
		func(r *models.VerificationRecord) {
			r.ApplyRetry()
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to retry verification")
	}

	s.dispatcher.Dispatch(ctx, updated.ID, attestation.Subject{
		OutputHash: updated.OutputHash,
		Model:      updated.Model,
	})

	if s.metrics != nil {
		s.metrics.Retries.Inc()
	}
	if err := s.publisher.Publish(ctx, events.TransitionEvent{
		VerificationID: updated.ID.String(),
		Transition:     events.TransitionRetried,
		Timestamp:      requestcontext.Now(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish retry event",
			"verification_id", updated.ID.String(),
			"error", err,
		)
	}
	return updated, nil
}
