// Package config builds service configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Server captures everything the binary needs to wire itself.
type Server struct {
	Addr string

	// DatabaseURL selects the Postgres store; empty falls back to in-memory.
	DatabaseURL string

	Redis RedisConfig

	// KafkaBrokers selects the Kafka transition publisher; empty falls back
	// to the in-memory publisher.
	KafkaBrokers []string
	KafkaTopic   string

	// OracleURL is the oracle gateway's attestation-request endpoint.
	OracleURL string
	// CallbackSecret signs/validates the HMAC tokens on oracle callbacks.
	CallbackSecret string
	// ListenerPollInterval is how often the chain event listener polls for
	// finalized attestation events.
	ListenerPollInterval time.Duration

	// LedgerURL is the certificate mint endpoint.
	LedgerURL string
}

// RedisConfig configures the mint-lock Redis client.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                 envOr("VERISTAMP_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("VERISTAMP_DATABASE_URL"),
		OracleURL:            os.Getenv("VERISTAMP_ORACLE_URL"),
		CallbackSecret:       os.Getenv("VERISTAMP_CALLBACK_SECRET"),
		LedgerURL:            os.Getenv("VERISTAMP_LEDGER_URL"),
		KafkaTopic:           envOr("VERISTAMP_KAFKA_TOPIC", "veristamp.transitions"),
		ListenerPollInterval: durationOr("VERISTAMP_LISTENER_POLL_INTERVAL", 15*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("VERISTAMP_REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	if brokers := os.Getenv("VERISTAMP_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.CallbackSecret == "" {
		// Development default; override in any real deployment.
		cfg.CallbackSecret = "dev-callback-secret-change-in-production"
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
