package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/selfmodel/mirror/internal/api/handlers"
	mw "github.com/selfmodel/mirror/internal/api/middleware"
	"github.com/selfmodel/mirror/internal/config"
	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/ledger"
	"github.com/selfmodel/mirror/internal/selfmodel"
	"github.com/selfmodel/mirror/internal/service"
	"github.com/selfmodel/mirror/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Checkpoint   *service.CheckpointWorker
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires the full service graph over the given event store and runs
// the boot sequence: verify the chain, backfill unregistered claims, then
// rebuild the self-model so the projection matches the ledger before the
// first request lands.
func NewApp(ctx context.Context, eventStore domain.EventStore, logger *zap.Logger) (*App, error) {
	led, err := ledger.New(ctx, eventStore, logger)
	if err != nil {
		return nil, err
	}

	projection := selfmodel.NewProjection()

	registrarSvc := service.NewRegistrarService(led, logger)
	modelSvc := service.NewModelService(led, projection, logger)
	statementSvc := service.NewStatementService(led, registrarSvc, modelSvc, logger)
	checkpointWorker := service.NewCheckpointWorker(modelSvc, logger)
	checkpointWorker.SetInterval(config.CheckpointInterval())

	// Boot sequence: backfill first so the rebuild sees every claim.
	registered, err := registrarSvc.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	if registered > 0 {
		logger.Info("registered claims from prior events", zap.Int("count", registered))
	}
	if err := modelSvc.Rebuild(ctx); err != nil {
		return nil, err
	}

	// Handlers
	statementHandler := handlers.NewStatementHandler(statementSvc)
	claimHandler := handlers.NewClaimHandler(modelSvc)
	modelHandler := handlers.NewModelHandler(modelSvc)
	ledgerHandler := handlers.NewLedgerHandler(led)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Checkpoint: checkpointWorker,
		startTime:  time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(eventStore))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		if key := config.APIKey(); key != "" {
			r.Use(mw.APIKeyAuth(key))
		}

		r.Post("/statements", statementHandler.Record)

		r.Route("/claims", func(r chi.Router) {
			r.Get("/", claimHandler.List)
			r.Get("/{id}", claimHandler.GetByID)
		})

		r.Get("/snapshot", modelHandler.GetSnapshot)
		r.Post("/snapshot/rebuild", modelHandler.Rebuild)
		r.Post("/checkpoint", modelHandler.Checkpoint)

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/events", ledgerHandler.Events)
			r.Get("/verify", ledgerHandler.Verify)
		})
	})

	return app, nil
}

func healthHandler(st domain.EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy the event store interface at compile time.
var (
	_ domain.EventStore = (*store.MemoryEventStore)(nil)
	_ domain.EventStore = (*store.SQLiteEventStore)(nil)
	_ domain.EventStore = (*store.PostgresEventStore)(nil)
)
