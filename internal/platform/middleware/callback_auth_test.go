package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veristamp/pkg/domain-errors"
)

func TestCallbackTokenValidator(t *testing.T) {
	validator := NewCallbackTokenValidator("secret")

	t.Run("round-trips a valid token", func(t *testing.T) {
		token, err := validator.IssueToken("verification-1", time.Minute)
		require.NoError(t, err)

		claims, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "verification-1", claims.VerificationID)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token, err := validator.IssueToken("verification-1", -time.Minute)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects a token signed with a different secret", func(t *testing.T) {
		other := NewCallbackTokenValidator("other-secret")
		token, err := other.IssueToken("verification-1", time.Minute)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := validator.ValidateToken("not.a.jwt")
		require.Error(t, err)
	})
}

func TestRequireCallbackAuth(t *testing.T) {
	validator := NewCallbackTokenValidator("secret")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	protected := RequireCallbackAuth(validator, log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("passes a valid bearer token", func(t *testing.T) {
		token, err := validator.IssueToken("verification-1", time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/resolve", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/resolve", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/resolve", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/resolve", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
