package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veristamp/internal/platform/middleware"
)

// NewRouter mounts all routes with the shared middleware chain. The resolve
// callback additionally requires the oracle gateway's bearer token.
func NewRouter(h *Handler, callbackValidator *middleware.CallbackTokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/verifications", func(r chi.Router) {
		r.Post("/", h.handleSubmit)
		r.Get("/stale", h.handleListStale)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/challenges", h.handleChallenge)
		r.Post("/{id}/retry", h.handleRetry)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCallbackAuth(callbackValidator, logger))
			r.Post("/{id}/resolve", h.handleResolve)
		})
	})

	return r
}
