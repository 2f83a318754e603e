package httpserver

import (
	"net/http"
	"time"

	"veristamp/internal/platform/config"
)

// New builds the API server from config. WriteTimeout stays above the
// per-request timeout middleware so the middleware's 504 is what callers see,
// not a severed connection.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
