package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	dErrors "veristamp/pkg/domain-errors"

	"veristamp/internal/verification/models"
)

// AttestationEvent is a finalized attestation observed on chain.
type AttestationEvent struct {
	Sequence       uint64             `json:"sequence"`
	VerificationID string             `json:"verification_id"`
	Fulfillment    models.Fulfillment `json:"fulfillment"`
}

// EventSource yields finalized attestation events after a cursor.
type EventSource interface {
	FetchFinalized(ctx context.Context, afterSequence uint64) ([]AttestationEvent, error)
}

// Resolver is the state machine's resolve entry point.
type Resolver interface {
	Resolve(ctx context.Context, id models.VerificationID, fulfillment models.Fulfillment) (*models.VerificationRecord, error)
}

// Listener polls the chain for finalized attestation events and feeds them to
// the resolver. It is the second delivery path, racing the HTTP callback;
// duplicates are expected and absorbed by resolve's conditional write.
type Listener struct {
	source   EventSource
	resolver Resolver
	interval time.Duration
	logger   *slog.Logger

	cursor uint64
}

func NewListener(source EventSource, resolver Resolver, interval time.Duration, logger *slog.Logger) *Listener {
	return &Listener{
		source:   source,
		resolver: resolver,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is cancelled. Invalid attestations leave the
// cursor in place so the event is re-fetched next tick; everything else
// advances past the event.
func (l *Listener) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

func (l *Listener) poll(ctx context.Context) {
	batch, err := l.source.FetchFinalized(ctx, l.cursor)
	if err != nil {
		l.logger.WarnContext(ctx, "chain event fetch failed",
			"cursor", l.cursor,
			"error", err,
		)
		return
	}

	for _, event := range batch {
		id, err := models.ParseVerificationID(event.VerificationID)
		if err != nil {
			l.logger.WarnContext(ctx, "chain event carries malformed verification id",
				"sequence", event.Sequence,
				"verification_id", event.VerificationID,
			)
			l.cursor = event.Sequence
			continue
		}

		if _, err := l.resolver.Resolve(ctx, id, event.Fulfillment); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvalidAttestation) {
				// Transient per the resolution contract: hold the cursor and
				// let the next poll redeliver.
				l.logger.WarnContext(ctx, "chain event failed proof validation, will redeliver",
					"sequence", event.Sequence,
					"verification_id", event.VerificationID,
				)
				return
			}
			l.logger.ErrorContext(ctx, "chain event resolution failed",
				"sequence", event.Sequence,
				"verification_id", event.VerificationID,
				"error", err,
			)
		}
		l.cursor = event.Sequence
	}
}

// HTTPEventSource reads finalized events from the oracle gateway's event API.
type HTTPEventSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEventSource(baseURL string) *HTTPEventSource {
	return &HTTPEventSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPEventSource) FetchFinalized(ctx context.Context, afterSequence uint64) ([]AttestationEvent, error) {
	endpoint := s.baseURL + "/events/finalized?after=" + url.QueryEscape(strconv.FormatUint(afterSequence, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build event fetch request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch finalized events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event source returned status %d", resp.StatusCode)
	}

	var batch []AttestationEvent
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode finalized events: %w", err)
	}
	return batch, nil
}
