package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"veristamp/internal/certificate"
	"veristamp/internal/challenge"
	"veristamp/internal/events"
	"veristamp/internal/oracle"
	"veristamp/internal/platform/config"
	"veristamp/internal/platform/httpserver"
	"veristamp/internal/platform/logger"
	"veristamp/internal/platform/metrics"
	"veristamp/internal/platform/middleware"
	platformredis "veristamp/internal/platform/redis"
	"veristamp/internal/retry"
	httptransport "veristamp/internal/transport/http"
	verificationservice "veristamp/internal/verification/service"
	"veristamp/internal/verification/store"
)

// main wires the dependencies and keeps the process lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store: Postgres when configured, in-memory otherwise.
	var recordStore store.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		recordStore = pg
	} else {
		log.Warn("no database configured, using in-memory store")
		recordStore = store.NewInMemory()
	}

	// Transition events: Kafka behind a non-blocking channel, or in-memory.
	var sink events.Publisher = events.NewInMemory()
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		sink = kafka
	}
	channel := events.NewChannel(1024, log)
	worker := events.NewWorker(channel.Inbox(), sink, log)

	// Mint lock: Redis when configured, process-local otherwise.
	var lock certificate.Locker = certificate.NewLocalLock()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lock = certificate.NewRedisLock(redisClient.Client)
	}

	oracleClient := oracle.NewHTTPClient(cfg.OracleURL)

	serviceOpts := []verificationservice.Option{
		verificationservice.WithMetrics(m),
	}
	if cfg.LedgerURL != "" {
		minter := certificate.New(recordStore, certificate.NewHTTPLedger(cfg.LedgerURL), lock, channel, m, log)
		serviceOpts = append(serviceOpts, verificationservice.WithMinter(minter))
	} else {
		log.Warn("no ledger configured, verified records will carry no certificate")
	}

	verification := verificationservice.New(recordStore, oracleClient, channel, log, serviceOpts...)
	challenges := challenge.New(recordStore, channel, m, log)
	retries := retry.New(recordStore, verification, channel, m, log)

	callbackValidator := middleware.NewCallbackTokenValidator(cfg.CallbackSecret)
	handler := httptransport.NewHandler(verification, challenges, retries, log)
	router := httptransport.NewRouter(handler, callbackValidator, log)
	srv := httpserver.New(cfg, router)

	listener := oracle.NewListener(
		oracle.NewHTTPEventSource(cfg.OracleURL),
		verification,
		cfg.ListenerPollInterval,
		log,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting veristamp", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.OracleURL != "" {
		g.Go(func() error {
			err := listener.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Warn("no oracle configured, chain event listener disabled")
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
