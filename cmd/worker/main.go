// Worker periodically deletes sessions whose expiry has passed. The hot path
// never depends on this; it only keeps the table from growing without bound.
// Set DATABASE_URL and optionally CLEANUP_INTERVAL (default 1h).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tokenvault/internal/config"
	"tokenvault/internal/db"
	"tokenvault/internal/observe"
	"tokenvault/internal/retry"
	"tokenvault/internal/session/repository"
	"tokenvault/internal/session/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Open(openCtx, cfg.DatabaseURL)
	openCancel()
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	exec := retry.NewExecutor(retry.DefaultPolicy(), retry.TransientStorage)
	sessions := store.New(repository.NewPostgresRepository(pool), exec)
	emitter := observe.NewZapEmitter(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker: shutting down")
		cancel()
	}()

	interval := cfg.CleanupEvery()
	logger.Info("worker: cleaning expired sessions", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	clean(ctx, sessions, emitter, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker: stopped")
			return
		case <-ticker.C:
			clean(ctx, sessions, emitter, logger)
		}
	}
}

func clean(ctx context.Context, sessions *store.Store, emitter *observe.ZapEmitter, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := sessions.CleanExpired(runCtx)
	if err != nil {
		logger.Error("worker: cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		emitter.Emit(runCtx, observe.Event{
			Name:   observe.EventSessionsCleaned,
			Detail: strconv.FormatInt(n, 10) + " sessions deleted",
		})
	}
}
