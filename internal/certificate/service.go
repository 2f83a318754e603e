// Package certificate mints certificate tokens for verified records.
//
// Minting is a best-effort side effect: failures are recorded and logged but
// never alter the verification status, and at-most-once delivery is enforced
// by the mint lock plus the store's conditional write.
package certificate

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

// MintRequest is what the external ledger needs to mint a certificate token.
type MintRequest struct {
	Owner          string `json:"owner"`
	Prompt         string `json:"prompt"`
	Output         string `json:"output"`
	Model          string `json:"model"`
	VerificationID string `json:"verification_id"`
}

// Ledger is the external mint endpoint.
type Ledger interface {
	Mint(ctx context.Context, req MintRequest) (models.Certificate, error)
}

// ErrNotEligible reports that the record is not (or no longer) eligible for
// minting: not verified, already minted, or a mint is in flight elsewhere.
var ErrNotEligible = dErrors.New(dErrors.CodeInvalidState, "verification not eligible for minting")

// Service coordinates certificate minting.
type Service struct {
	store     store.Store
	ledger    Ledger
	lock      Locker
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(st store.Store, ledger Ledger, lock Locker, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: st, ledger: ledger, lock: lock, publisher: publisher, metrics: m, logger: logger}
}

// MintIfVerified attempts the mint for a verified record. Re-delivery of the
// same verified event is harmless: the lock serializes concurrent calls and
// the conditional begin-mint write skips records that already carry a
// certificate. Returns ErrNotEligible for skips; ledger failures surface as
// CodeInternal after being recorded on the record's mint status.
func (s *Service) MintIfVerified(ctx context.Context, id models.VerificationID) (*models.Certificate, error) {
	acquired, err := s.lock.Acquire(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire mint lock")
	}
	if !acquired {
		return nil, ErrNotEligible
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), id); err != nil {
			s.logger.WarnContext(ctx, "failed to release mint lock",
				"verification_id", id.String(),
				"error", err,
			)
		}
	}()

	// Conditional begin: only verified records with no certificate and no
	// live in-flight mint pass. This is the same discipline resolve uses.
	now := requestcontext.Now(ctx)
	record, err := s.store.Execute(ctx, id,
		func(r *models.VerificationRecord) error {
			if err := r.CanBeginMint(now); err != nil {
				return ErrNotEligible
			}
			return nil
		},
		func(r *models.VerificationRecord) {
			r.ApplyBeginMint(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MintAttempts.Inc()
	}

	cert, mintErr := s.ledger.Mint(ctx, MintRequest{
		Owner:          record.RequesterAddress,
		Prompt:         record.Prompt,
		Output:         record.Output,
		Model:          record.Model,
		VerificationID: record.ID.String(),
	})
	if mintErr != nil {
		s.recordMintFailure(ctx, id, mintErr)
		return nil, dErrors.Wrap(mintErr, dErrors.CodeInternal, "ledger mint failed")
	}

	updated, err := s.store.Execute(ctx, id,
		func(r *models.VerificationRecord) error { return nil },
		func(r *models.VerificationRecord) {
			r.ApplyMintSuccess(cert)
		},
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist certificate")
	}

	if err := s.publisher.Publish(ctx, events.TransitionEvent{
		VerificationID: updated.ID.String(),
		Transition:     events.TransitionMinted,
		AttestationID:  updated.AttestationID,
		Timestamp:      requestcontext.Now(ctx),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish mint event",
			"verification_id", updated.ID.String(),
			"error", err,
		)
	}
	return updated.Certificate, nil
}

// recordMintFailure marks the mint as failed so "verified, mint failed" is
// distinguishable from "verified, not yet attempted". Verification status is
// deliberately untouched.
func (s *Service) recordMintFailure(ctx context.Context, id models.VerificationID, mintErr error) {
	if s.metrics != nil {
		s.metrics.MintFailures.Inc()
	}
	s.logger.WarnContext(ctx, "certificate mint failed, verification status unchanged",
		"verification_id", id.String(),
		"error", mintErr,
	)
	// The ledger call may have consumed the caller's deadline; the failure
	// write must still land or the record would sit in_flight until expiry.
	_, err := s.store.Execute(context.WithoutCancel(ctx), id,
		func(r *models.VerificationRecord) error { return nil },
		func(r *models.VerificationRecord) {
			r.ApplyMintFailure()
		},
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record mint failure",
			"verification_id", id.String(),
			"error", err,
		)
	}
}
