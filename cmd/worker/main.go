// Package main is the entry point for the stevedore background worker.
// It relays outbox messages and prunes expired idempotency keys.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stevedore/internal/config"
	appctx "stevedore/internal/core/context"
	"stevedore/internal/infrastructure/storage/postgres"
	"stevedore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting stevedore worker")

	// The worker needs far fewer connections than the API server.
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	relay := postgres.NewOutboxRelay(txManager, cfg.Worker.BatchSize, &logDeliveryHandler{log: log})
	idempotency := postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL)

	worker := NewWorker(relay, idempotency, cfg.Worker.Interval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drains the outbox on a fixed interval and runs hourly housekeeping.
type Worker struct {
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	interval    time.Duration
	log         *logger.Logger
}

func NewWorker(relay *postgres.OutboxRelay, idempotency *postgres.IdempotencyStore, interval time.Duration, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		relay:       relay,
		idempotency: idempotency,
		interval:    interval,
		log:         log.WithComponent("worker"),
	}
}

// Run loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) drainOutbox(ctx context.Context) {
	// Fresh trace per batch so log lines correlate.
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(""))

	processed, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox batch failed", "error", err)
		return
	}
	if processed > 0 {
		w.log.Debugw("processed outbox batch", "count", processed)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	removed, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}

// logDeliveryHandler emits each outbox message as a structured log line.
// Real destinations (webhooks, a broker) plug in behind OutboxHandler
// without touching the relay.
type logDeliveryHandler struct {
	log *logger.Logger
}

func (h *logDeliveryHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("event delivered",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID.String(),
		"payload", json.RawMessage(msg.Payload),
	)
	return nil
}
