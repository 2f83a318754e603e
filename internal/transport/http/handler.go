// Package http exposes the verification lifecycle over REST. Routing and
// validation live here; all state-machine semantics live in the services.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veristamp/internal/verification/models"
	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/httputil"
	"veristamp/pkg/requestcontext"
)

// VerificationService is the state machine surface the transport needs.
type VerificationService interface {
	Submit(ctx context.Context, content models.SubmitContent) (*models.VerificationRecord, error)
	Resolve(ctx context.Context, id models.VerificationID, fulfillment models.Fulfillment) (*models.VerificationRecord, error)
	Get(ctx context.Context, id models.VerificationID) (*models.VerificationRecord, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.VerificationRecord, error)
}

// ChallengeService files disputes.
type ChallengeService interface {
	Challenge(ctx context.Context, verificationID models.VerificationID, challengerAddress, reason, evidence string) (*models.ChallengeRecord, error)
}

// RetryService re-admits rejected records.
type RetryService interface {
	Retry(ctx context.Context, id models.VerificationID) (*models.VerificationRecord, error)
}

// Handler handles verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification VerificationService
	challenges   ChallengeService
	retries      RetryService
}

func NewHandler(verification VerificationService, challenges ChallengeService, retries RetryService, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
		challenges:   challenges,
		retries:      retries,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	record, err := h.verification.Submit(r.Context(), req.toContent())
	if err != nil {
		h.logFailure(r.Context(), "submit failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVerificationResponse(record))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.verification.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(record))
}

// handleResolve is the oracle gateway's fulfillment callback. A duplicate
// delivery is not an error: the committed record comes back with 200 either
// way, so the gateway can treat the callback as idempotent.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	record, err := h.verification.Resolve(r.Context(), id, req.toFulfillment())
	if err != nil {
		h.logFailure(r.Context(), "resolve failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(record))
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	record, err := h.challenges.Challenge(r.Context(), id, req.ChallengerAddress, req.Reason, req.Evidence)
	if err != nil {
		h.logFailure(r.Context(), "challenge failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toChallengeResponse(*record))
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.retries.Retry(r.Context(), id)
	if err != nil {
		h.logFailure(r.Context(), "retry failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(record))
}

func (h *Handler) handleListStale(w http.ResponseWriter, r *http.Request) {
	olderThan := 30 * time.Minute
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "older_than must be a positive duration"))
			return
		}
		olderThan = parsed
	}

	cutoff := requestcontext.Now(r.Context()).Add(-olderThan)
	stale, err := h.verification.ListStale(r.Context(), cutoff)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]verificationResponse, 0, len(stale))
	for _, record := range stale {
		out = append(out, toVerificationResponse(record))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
