// Package service implements the verification state machine: the single
// owner of lifecycle transitions for verification records.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veristamp/internal/attestation"
	"veristamp/internal/events"
	"veristamp/internal/platform/metrics"
	"veristamp/internal/verification/models"
	"veristamp/internal/verification/store"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/sentinel"
	"veristamp/pkg/requestcontext"
)

// OracleClient dispatches attestation requests to the oracle network. The
// oracle is responsible for eventually delivering a fulfillment back through
// the HTTP callback or the chain event listener.
type OracleClient interface {
	RequestAttestation(ctx context.Context, id models.VerificationID, subject attestation.Subject) error
}

// Minter attempts the certificate mint side effect after a verified
// resolution. Implementations must isolate their failures from the caller.
type Minter interface {
	MintIfVerified(ctx context.Context, id models.VerificationID) (*models.Certificate, error)
}

// dispatchTimeout bounds the fire-and-forget oracle dispatch. A failed
// dispatch leaves the record pending; the stale scanner picks it up.
const dispatchTimeout = 10 * time.Second

// Service is the verification state machine.
type Service struct {
	store     store.Store
	oracle    OracleClient
	publisher events.Publisher
	minter    Minter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithMetrics attaches prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMinter attaches the certificate mint coordinator. Without it, verified
// records simply carry no certificate.
func WithMinter(m Minter) Option {
	return func(s *Service) { s.minter = m }
}

func New(st store.Store, oracle OracleClient, publisher events.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     st,
		oracle:    oracle,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("veristamp/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit constructs a pending record, persists it, and dispatches the oracle
// request asynchronously. The caller gets the pending record immediately.
func (s *Service) Submit(ctx context.Context, content models.SubmitContent) (*models.VerificationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "verification.submit")
	defer span.End()

	record, err := models.NewVerificationRecord(models.NewVerificationID(), content, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification")
	}

	s.dispatchAsync(record.ID, attestation.Subject{OutputHash: record.OutputHash, Model: record.Model})
	s.publish(ctx, events.TransitionEvent{
		VerificationID: record.ID.String(),
		Transition:     events.TransitionSubmitted,
		Timestamp:      requestcontext.Now(ctx),
	})
	if s.metrics != nil {
		s.metrics.Submissions.Inc()
	}
	return record, nil
}

// Resolve is the single mutating entry point for oracle fulfillments. It is
// idempotent and race-safe: validation happens before the conditional write,
// and whichever delivery path wins the store's atomic update is authoritative.
// Losing deliveries observe the committed record and are success-as-no-op.
func (s *Service) Resolve(ctx context.Context, id models.VerificationID, fulfillment models.Fulfillment) (*models.VerificationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "verification.resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveResolveDuration(time.Since(start))
		}
	}()

	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	// Already resolved: the other delivery path won. Nothing to validate, the
	// losing payload is discarded.
	if record.Status != models.StatusPending {
		if s.metrics != nil {
			s.metrics.DuplicateDeliveries.Inc()
		}
		return record, nil
	}

	subject := attestation.Subject{OutputHash: record.OutputHash, Model: record.Model}
	if !attestation.Verify(subject, fulfillment) {
		if s.metrics != nil {
			s.metrics.InvalidAttestations.Inc()
		}
		// The record stays pending; the oracle gateway should redeliver.
		return nil, dErrors.New(dErrors.CodeInvalidAttestation, "fulfillment proof failed validation")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, id,
		func(r *models.VerificationRecord) error {
			if r.Status != models.StatusPending {
				return sentinel.ErrConflict
			}
			return nil
		},
		func(r *models.VerificationRecord) {
			r.ApplyResolution(fulfillment, now)
		},
	)
	if errors.Is(err, sentinel.ErrConflict) {
		// Lost the race between validation and commit. The committed
		// resolution is authoritative; this delivery becomes a no-op.
		if s.metrics != nil {
			s.metrics.DuplicateDeliveries.Inc()
		}
		committed, findErr := s.store.FindByID(ctx, id)
		if findErr != nil {
			return nil, wrapStoreErr(findErr)
		}
		return committed, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	outcome := events.TransitionRejected
	if updated.Status == models.StatusVerified {
		outcome = events.TransitionVerified
	}
	if s.metrics != nil {
		s.metrics.Resolutions.WithLabelValues(string(updated.Status)).Inc()
	}
	s.publish(ctx, events.TransitionEvent{
		VerificationID: updated.ID.String(),
		Transition:     outcome,
		AttestationID:  updated.AttestationID,
		Timestamp:      now,
	})

	if updated.Status == models.StatusVerified && s.minter != nil {
		s.mintAsync(updated.ID)
	}
	return updated, nil
}

// Get returns the record or NotFound.
func (s *Service) Get(ctx context.Context, id models.VerificationID) (*models.VerificationRecord, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return record, nil
}

// ListStale returns pending records older than the cutoff, for the external
// scheduler that decides on operator retry or manual rejection.
func (s *Service) ListStale(ctx context.Context, cutoff time.Time) ([]*models.VerificationRecord, error) {
	stale, err := s.store.ListStale(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale verifications")
	}
	return stale, nil
}

// Dispatch re-requests attestation for an existing record. Used by the retry
// coordinator to open a fresh oracle round through the same path as submit.
func (s *Service) Dispatch(_ context.Context, id models.VerificationID, subject attestation.Subject) {
	s.dispatchAsync(id, subject)
}

func (s *Service) dispatchAsync(id models.VerificationID, subject attestation.Subject) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.oracle.RequestAttestation(ctx, id, subject); err != nil {
			s.logger.ErrorContext(ctx, "oracle dispatch failed, record stays pending",
				"verification_id", id.String(),
				"error", err,
			)
		}
	}()
}

// mintAsync triggers the certificate mint without blocking or failing the
// resolve path. Mint errors are the coordinator's to record.
func (s *Service) mintAsync(id models.VerificationID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.minter.MintIfVerified(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "certificate mint attempt failed",
				"verification_id", id.String(),
				"error", err,
			)
		}
	}()
}

func (s *Service) publish(ctx context.Context, event events.TransitionEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish transition event",
			"verification_id", event.VerificationID,
			"transition", event.Transition,
			"error", err,
		)
	}
}

func wrapStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "verification not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "verification store failure")
}
