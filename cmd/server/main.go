// Package main is the entry point for the stevedore API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stevedore/internal/config"
	"stevedore/internal/domain/allocation"
	"stevedore/internal/infrastructure/cache"
	v1 "stevedore/internal/infrastructure/http/v1"
	"stevedore/internal/infrastructure/http/v1/middleware"
	"stevedore/internal/infrastructure/storage/postgres"
	"stevedore/pkg/logger"
)

func main() {
	// A missing .env is fine; real deployments set environment variables.
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

	ctx := context.Background()
	log.Info("starting stevedore server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Feature flags ---
	// Configured values act as defaults; rows in sys_feature_flags override
	// them and NOTIFY keeps the cache current without restarts.
	flags := cache.NewFlagCache(pool, cfg.Features)
	if err := flags.Start(ctx); err != nil {
		log.Fatalw("failed to start feature flag cache", "error", err)
	}
	defer flags.Stop()

	// --- Cross-dock policy ---
	// Compiled once here so a bad expression fails the deployment, not the
	// first tally of the morning.
	policy, err := allocation.NewCELPolicy(cfg.CrossDock.Policy)
	if err != nil {
		log.Fatalw("invalid cross-dock policy expression",
			"error", err, "expression", cfg.CrossDock.Policy)
	}

	// --- Router ---
	router, err := v1.NewRouter(v1.RouterConfig{
		Pool:            pool,
		TxManager:       txManager,
		Logger:          log,
		TokenValidator:  middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Numerator:       postgres.NewNumerator(pool),
		Flags:           flags,
		CrossDockPolicy: policy,
		IdempotencyTTL:  cfg.Idempotency.TTL,
	})
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
