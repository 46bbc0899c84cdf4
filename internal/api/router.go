package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/playerwatch/internal/api/handler"
	"github.com/mcoot/playerwatch/internal/api/middleware"
	"github.com/mcoot/playerwatch/internal/cache"
	"github.com/mcoot/playerwatch/internal/dependencies/clock"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/services/polling"
	"github.com/mcoot/playerwatch/internal/services/query"
	"github.com/mcoot/playerwatch/internal/services/scheduler"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	Clock          clock.Clock
	PollingService *polling.Service
	QueryService   *query.Service
	Scheduler      *scheduler.Scheduler
	Cache          cache.Cache
	Metrics        metrics.Recorder
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Noop()
	}

	// Create handlers
	healthHandler := handler.NewHealthHandler(cfg.Clock)
	playerHandler := handler.NewPlayerHandler(cfg.PollingService, cfg.QueryService, cfg.Cache, recorder)
	pollingHandler := handler.NewPollingHandler(cfg.QueryService, cfg.Scheduler, cfg.Cache, recorder)

	// Logging wraps Recovery so panics are logged with their request id and counted as 500s
	r.Use(middleware.Logging(cfg.Logger, recorder))
	r.Use(middleware.Recovery(cfg.Logger))

	r.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	// Player routes
	r.HandleFunc("/players", playerHandler.List).Methods(http.MethodGet)
	r.HandleFunc("/players", playerHandler.Add).Methods(http.MethodPost)
	r.HandleFunc("/players/{id}", playerHandler.Remove).Methods(http.MethodDelete)
	r.HandleFunc("/players/{id}/snapshots", playerHandler.Snapshots).Methods(http.MethodGet)
	r.HandleFunc("/players/{id}/names", playerHandler.Names).Methods(http.MethodGet)
	r.HandleFunc("/players/{id}/activity", playerHandler.Activity).Methods(http.MethodGet)

	// Polling routes
	r.HandleFunc("/polling/stats", pollingHandler.Stats).Methods(http.MethodGet)
	r.HandleFunc("/polling/summary", pollingHandler.Summary).Methods(http.MethodGet)
	r.HandleFunc("/polling/status", pollingHandler.Status).Methods(http.MethodGet)
	r.HandleFunc("/polling/trigger", pollingHandler.Trigger).Methods(http.MethodPost)

	if h := recorder.Handler(); h != nil {
		r.Handle("/metrics", h).Methods(http.MethodGet)
	}

	return r
}
