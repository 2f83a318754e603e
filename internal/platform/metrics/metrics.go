// Package metrics holds the Prometheus instruments for the verification
// lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups all lifecycle counters and histograms.
type Metrics struct {
	Submissions         prometheus.Counter
	Resolutions         *prometheus.CounterVec
	DuplicateDeliveries prometheus.Counter
	InvalidAttestations prometheus.Counter
	Challenges          prometheus.Counter
	Retries             prometheus.Counter
	MintAttempts        prometheus.Counter
	MintFailures        prometheus.Counter
	ResolveDurationMs   prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_submissions_total",
			Help: "Total verification submissions accepted",
		}),
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veristamp_resolutions_total",
			Help: "Committed oracle resolutions by outcome",
		}, []string{"outcome"}),
		DuplicateDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_duplicate_deliveries_total",
			Help: "Fulfillment deliveries that lost the resolution race",
		}),
		InvalidAttestations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_invalid_attestations_total",
			Help: "Fulfillments rejected by proof validation",
		}),
		Challenges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_challenges_total",
			Help: "Challenges filed against verified records",
		}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_retries_total",
			Help: "Rejected records re-admitted for a fresh oracle round",
		}),
		MintAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_mint_attempts_total",
			Help: "Certificate mint attempts",
		}),
		MintFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veristamp_mint_failures_total",
			Help: "Certificate mint attempts that failed",
		}),
		ResolveDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veristamp_resolve_duration_ms",
			Help:    "Latency of resolve calls in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// ObserveResolveDuration records a resolve latency sample.
func (m *Metrics) ObserveResolveDuration(d time.Duration) {
	m.ResolveDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}
