package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veristamp/internal/platform/middleware"
	"veristamp/internal/verification/models"
	dErrors "veristamp/pkg/domain-errors"
)

const callbackSecret = "test-callback-secret"

// stubVerification drives the handler with canned outcomes so the tests pin
// the transport mapping, not the state machine.
type stubVerification struct {
	record     *models.VerificationRecord
	submitErr  error
	resolveErr error
	getErr     error
	stale      []*models.VerificationRecord

	lastFulfillment models.Fulfillment
}

func (s *stubVerification) Submit(_ context.Context, _ models.SubmitContent) (*models.VerificationRecord, error) {
	return s.record, s.submitErr
}

func (s *stubVerification) Resolve(_ context.Context, _ models.VerificationID, f models.Fulfillment) (*models.VerificationRecord, error) {
	s.lastFulfillment = f
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return s.record, nil
}

func (s *stubVerification) Get(_ context.Context, _ models.VerificationID) (*models.VerificationRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.record, nil
}

func (s *stubVerification) ListStale(_ context.Context, _ time.Time) ([]*models.VerificationRecord, error) {
	return s.stale, nil
}

type stubChallenges struct {
	record *models.ChallengeRecord
	err    error
}

func (s *stubChallenges) Challenge(_ context.Context, id models.VerificationID, addr, reason, evidence string) (*models.ChallengeRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

type stubRetries struct {
	record *models.VerificationRecord
	err    error
}

func (s *stubRetries) Retry(_ context.Context, _ models.VerificationID) (*models.VerificationRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func testRecord(t *testing.T) *models.VerificationRecord {
	t.Helper()
	record, err := models.NewVerificationRecord(models.NewVerificationID(), models.SubmitContent{
		Prompt:           "prompt",
		Output:           "output",
		Model:            "gpt-4o",
		OutputHash:       strings.Repeat("ab", 32),
		RequesterAddress: "0xabc",
	}, time.Now())
	require.NoError(t, err)
	return record
}

func newTestRouter(verification *stubVerification, challenges *stubChallenges, retries *stubRetries) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(verification, challenges, retries, log)
	return NewRouter(handler, middleware.NewCallbackTokenValidator(callbackSecret), log)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("returns 201 with the pending record", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{record: record}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications", submitRequest{
			Prompt:           "prompt",
			Output:           "output",
			Model:            "gpt-4o",
			OutputHash:       strings.Repeat("ab", 32),
			RequesterAddress: "0xabc",
		}, nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp verificationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, record.ID.String(), resp.ID)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, "none", resp.MintStatus)
	})

	t.Run("maps invalid input to 400", func(t *testing.T) {
		router := newTestRouter(&stubVerification{
			submitErr: dErrors.New(dErrors.CodeInvalidInput, "output hash must be a 64-character hex digest"),
		}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications", submitRequest{}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{})
		req := httptest.NewRequest(http.MethodPost, "/v1/verifications", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a non-JSON content type", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{})
		req := httptest.NewRequest(http.MethodPost, "/v1/verifications", strings.NewReader("prompt=hi"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestGetEndpoint(t *testing.T) {
	t.Run("returns the record", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{record: record}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodGet, "/v1/verifications/"+record.ID.String(), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("maps not found to 404", func(t *testing.T) {
		router := newTestRouter(&stubVerification{
			getErr: dErrors.New(dErrors.CodeNotFound, "verification not found"),
		}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodGet, "/v1/verifications/"+models.NewVerificationID().String(), nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{})
		rec := doJSON(t, router, http.MethodGet, "/v1/verifications/not-a-uuid", nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResolveEndpoint(t *testing.T) {
	issueToken := func(t *testing.T, id string) string {
		t.Helper()
		token, err := middleware.NewCallbackTokenValidator(callbackSecret).IssueToken(id, time.Minute)
		require.NoError(t, err)
		return token
	}

	callback := resolveRequest{
		AttestationID: "att-1",
		Root:          strings.Repeat("cd", 32),
		Proof:         []models.ProofStep{{Side: "L", SiblingHash: strings.Repeat("ef", 32)}},
		Verified:      true,
	}

	t.Run("requires a bearer token", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{record: record}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications/"+record.ID.String()+"/resolve", callback, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a token signed with the wrong secret", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{record: record}, &stubChallenges{}, &stubRetries{})

		forged, err := middleware.NewCallbackTokenValidator("other-secret").IssueToken(record.ID.String(), time.Minute)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications/"+record.ID.String()+"/resolve", callback,
			map[string]string{"Authorization": "Bearer " + forged})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns 200 with the committed record", func(t *testing.T) {
		record := testRecord(t)
		record.ApplyResolution(models.Fulfillment{AttestationID: "att-1", Verified: true}, time.Now())
		verification := &stubVerification{record: record}
		router := newTestRouter(verification, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications/"+record.ID.String()+"/resolve", callback,
			map[string]string{"Authorization": "Bearer " + issueToken(t, record.ID.String())})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp verificationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "verified", resp.Status)
		assert.Equal(t, "att-1", verification.lastFulfillment.AttestationID)
		require.Len(t, verification.lastFulfillment.Proof, 1)
	})

	t.Run("maps a failed proof to 422", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{
			record:     record,
			resolveErr: dErrors.New(dErrors.CodeInvalidAttestation, "fulfillment proof failed validation"),
		}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications/"+record.ID.String()+"/resolve", callback,
			map[string]string{"Authorization": "Bearer " + issueToken(t, record.ID.String())})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestChallengeEndpoint(t *testing.T) {
	t.Run("returns 201 with the filed challenge", func(t *testing.T) {
		id := models.NewVerificationID()
		filed := &models.ChallengeRecord{
			ID:                models.NewChallengeID(),
			VerificationID:    id,
			ChallengerAddress: "0xchallenger",
			Reason:            "fabricated",
			Status:            models.ChallengePending,
			Timestamp:         time.Now(),
		}
		router := newTestRouter(&stubVerification{}, &stubChallenges{record: filed}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications/"+id.String()+"/challenges", challengeRequest{
			ChallengerAddress: "0xchallenger",
			Reason:            "fabricated",
		}, nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp challengeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, filed.ID.String(), resp.ID)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("maps invalid state to 409", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{
			err: dErrors.New(dErrors.CodeInvalidState, "only verified records can be challenged"),
		}, &stubRetries{})

		rec := doJSON(t, router, http.MethodPost,
			"/v1/verifications/"+models.NewVerificationID().String()+"/challenges",
			challengeRequest{ChallengerAddress: "0x1", Reason: "r"}, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRetryEndpoint(t *testing.T) {
	t.Run("returns the reopened record", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{record: record})

		rec := doJSON(t, router, http.MethodPost, "/v1/verifications/"+record.ID.String()+"/retry", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("maps invalid state to 409", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{
			err: dErrors.New(dErrors.CodeInvalidState, "only rejected records can be retried"),
		})

		rec := doJSON(t, router, http.MethodPost,
			"/v1/verifications/"+models.NewVerificationID().String()+"/retry", nil, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestListStaleEndpoint(t *testing.T) {
	t.Run("returns stale pending records", func(t *testing.T) {
		record := testRecord(t)
		router := newTestRouter(&stubVerification{stale: []*models.VerificationRecord{record}}, &stubChallenges{}, &stubRetries{})

		rec := doJSON(t, router, http.MethodGet, "/v1/verifications/stale?older_than=15m", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp []verificationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, record.ID.String(), resp[0].ID)
	})

	t.Run("returns an empty array when nothing is stale", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{})
		rec := doJSON(t, router, http.MethodGet, "/v1/verifications/stale", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("rejects a malformed duration", func(t *testing.T) {
		router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{})
		for _, q := range []string{"older_than=soon", "older_than=-5m", "older_than=0s"} {
			rec := doJSON(t, router, http.MethodGet, "/v1/verifications/stale?"+q, nil, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubVerification{}, &stubChallenges{}, &stubRetries{})
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
