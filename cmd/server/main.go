package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/selfmodel/mirror/internal/api"
	"github.com/selfmodel/mirror/internal/config"
	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/store"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	var eventStore domain.EventStore
	switch driver := config.LedgerDriver(); driver {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		st, err := store.NewPostgresEventStore(ctx, pool)
		if err != nil {
			logger.Fatal("failed to initialize event store", zap.Error(err))
		}
		eventStore = st
		logger.Info("ledger opened", zap.String("driver", driver))
	case "memory":
		eventStore = store.NewMemoryEventStore()
		logger.Warn("using in-memory ledger, events will not survive restart")
	default:
		st, err := store.OpenSQLite(config.LedgerPath())
		if err != nil {
			logger.Fatal("failed to open ledger database", zap.Error(err))
		}
		eventStore = st
		logger.Info("ledger opened",
			zap.String("driver", "sqlite"),
			zap.String("path", config.LedgerPath()))
	}
	defer func() { _ = eventStore.Close() }()

	app, err := api.NewApp(ctx, eventStore, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	// Start background services
	app.Checkpoint.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// Stop background services
	app.Checkpoint.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
