package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadmarket_backend/internal/adapters/storage"
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/http/router"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/notification"
	"leadmarket_backend/internal/notification/outbox"
	"leadmarket_backend/internal/purchases"
	"leadmarket_backend/internal/scheduler"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/db"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module records outbox rows for domain events; delivery
	// happens in the worker process.
	notificationModule := notification.New(outbox.New(pool), nil, log)
	notificationModule.RegisterHandlers(eventBus)

	leadsModule := leads.NewModule(pool, eventBus, cfg, val, log)
	purchasesModule := purchases.NewModule(pool, eventBus, val, log)

	// Chat provisioning runs in the worker; the API only enqueues tasks.
	if cfg.GetRedisURL() != "" {
		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer func() { _ = schedClient.Close() }()
		purchasesModule.Service().SetChatProvisioner(schedClient)
	} else {
		log.Warn("REDIS_URL not configured; chat provisioning disabled")
	}

	// Storage service for payment proof uploads (MinIO)
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure payment proof bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err)
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		purchasesModule.Service().SetProofStorage(storageSvc)
		log.Info("storage service initialized", "proofBucket", cfg.GetMinioBucketPaymentProofs())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; payment proof presigning disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			purchasesModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
