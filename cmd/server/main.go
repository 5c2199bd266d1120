package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	authhandler "tokenvault/internal/auth/handler"
	authservice "tokenvault/internal/auth/service"
	"tokenvault/internal/config"
	"tokenvault/internal/db"
	"tokenvault/internal/db/migrate"
	"tokenvault/internal/health"
	"tokenvault/internal/observe"
	"tokenvault/internal/retry"
	"tokenvault/internal/server"
	sessionhandler "tokenvault/internal/session/handler"
	"tokenvault/internal/session/repository"
	"tokenvault/internal/session/store"
	"tokenvault/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	privateKey, err := token.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		logger.Fatal("JWT_PRIVATE_KEY", zap.Error(err))
	}
	publicKey, err := token.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		logger.Fatal("JWT_PUBLIC_KEY", zap.Error(err))
	}

	if cfg.MigrateOnBoot {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	codec := token.NewCodec(privateKey, publicKey, cfg.JWTIssuer)
	exec := retry.NewExecutor(retry.DefaultPolicy(), retry.TransientStorage)
	sessions := store.New(repository.NewPostgresRepository(pool), exec)
	emitter := observe.NewZapEmitter(logger)
	auth := authservice.NewAuthService(codec, sessions, emitter, cfg.AccessTTL(), cfg.RefreshTTL())

	router := server.NewRouter(server.Deps{
		Log:      logger,
		Auth:     authhandler.NewHandler(auth),
		Sessions: sessionhandler.NewHandler(sessions, cfg.RefreshTTL()),
		Health:   health.NewHandler(pool),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("http server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
