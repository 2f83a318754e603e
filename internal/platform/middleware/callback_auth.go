package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "veristamp/pkg/domain-errors"
	"veristamp/pkg/platform/httputil"
	"veristamp/pkg/requestcontext"
)

// CallbackClaims are the claims the oracle gateway signs onto its callback
// tokens.
type CallbackClaims struct {
	VerificationID string `json:"verification_id"`
	jwt.RegisteredClaims
}

// CallbackTokenValidator validates HMAC tokens presented on oracle callbacks.
type CallbackTokenValidator struct {
	signingKey []byte
}

func NewCallbackTokenValidator(secret string) *CallbackTokenValidator {
	return &CallbackTokenValidator{signingKey: []byte(secret)}
}

// ValidateToken parses and validates a callback token.
func (v *CallbackTokenValidator) ValidateToken(tokenString string) (*CallbackClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &CallbackClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "callback token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token")
	}
	claims, ok := parsed.Claims.(*CallbackClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token claims")
	}
	return claims, nil
}

// IssueToken signs a callback token. Exported for tests and for the local
// oracle stub used in development.
func (v *CallbackTokenValidator) IssueToken(verificationID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CallbackClaims{
		VerificationID: verificationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	return token.SignedString(v.signingKey)
}

// RequireCallbackAuth gates the oracle callback route behind a bearer token.
func RequireCallbackAuth(validator *CallbackTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			if _, err := validator.ValidateToken(token); err != nil {
				logger.WarnContext(r.Context(), "unauthorized oracle callback",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
