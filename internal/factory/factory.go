package factory

import (
	"io"
	"log/slog"

	"github.com/mcoot/playerwatch/internal/cache"
	"github.com/mcoot/playerwatch/internal/config"
	"github.com/mcoot/playerwatch/internal/dependencies/clock"
	"github.com/mcoot/playerwatch/internal/metrics"
	"github.com/mcoot/playerwatch/internal/services/polling"
	"github.com/mcoot/playerwatch/internal/services/query"
	"github.com/mcoot/playerwatch/internal/services/scheduler"
	"github.com/mcoot/playerwatch/internal/storage"
	redisstorage "github.com/mcoot/playerwatch/internal/storage/redis"
	"github.com/mcoot/playerwatch/internal/upstream"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock    clock.Clock
	Upstream polling.Upstream

	// Cross-cutting
	Metrics metrics.Recorder
	Cache   cache.Cache

	// Services
	PollingService *polling.Service
	QueryService   *query.Service
	Scheduler      *scheduler.Scheduler
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageURL selects the storage backend; empty means in-memory
	StorageURL string
	// RedisConfig tunes the Redis pool when StorageURL is a redis URL (optional)
	RedisConfig *redisstorage.Config
	Upstream    upstream.Config
	Polling     polling.Config
	Scheduler   scheduler.Config
	Cache       cache.Config
	// MetricsEnabled registers Prometheus collectors and serves /metrics
	MetricsEnabled bool
}

// ConfigFrom maps the loaded service configuration onto factory settings
func ConfigFrom(cfg *config.Config, logger *slog.Logger) Config {
	return Config{
		Logger:     logger,
		StorageURL: cfg.Storage.URL,
		Upstream: upstream.Config{
			BaseURL:           cfg.Upstream.BaseURL,
			Token:             cfg.Upstream.Token,
			Timeout:           cfg.Upstream.Timeout,
			RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		},
		Polling: polling.Config{
			ServerID:    cfg.Upstream.ServerID,
			MaxAttempts: cfg.Polling.MaxRetries,
			RetryDelay:  cfg.Polling.RetryDelay,
		},
		Scheduler: scheduler.Config{
			Interval:         cfg.Polling.Interval(),
			RunOnStart:       cfg.Polling.RunOnStart,
			StopPollInterval: scheduler.DefaultConfig().StopPollInterval,
		},
		Cache: cache.Config{
			Enabled: cfg.Cache.Enabled,
			SizeMB:  cfg.Cache.SizeMB,
			TTL:     cfg.Cache.TTL,
		},
		MetricsEnabled: cfg.Metrics.Enabled,
	}
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := OpenStorage(cfg.StorageURL, cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	logger.Info("storage opened", slog.String("type", StorageType(cfg.StorageURL)))

	var recorder metrics.Recorder = metrics.Noop()
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	upCfg := cfg.Upstream
	defaults := upstream.DefaultConfig()
	if upCfg.BaseURL == "" {
		upCfg.BaseURL = defaults.BaseURL
	}
	if upCfg.Timeout == 0 {
		upCfg.Timeout = defaults.Timeout
	}
	client := upstream.New(upCfg, recorder, logger)

	return newWithDependencies(store, client, clock.New(), recorder, cache.New(cfg.Cache, logger), cfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	up polling.Upstream,
	clk clock.Clock,
	recorder metrics.Recorder,
	responseCache cache.Cache,
	cfg Config,
	logger *slog.Logger,
) *App {
	pollCfg := cfg.Polling
	if pollCfg.MaxAttempts == 0 {
		serverID := pollCfg.ServerID
		pollCfg = polling.DefaultConfig()
		pollCfg.ServerID = serverID
	}
	schedCfg := cfg.Scheduler
	if schedCfg.Interval == 0 {
		schedCfg = scheduler.DefaultConfig()
	}

	pollingService := polling.New(store, up, clk, recorder, pollCfg, logger)
	pollingService.OnChange(responseCache.Clear)
	queryService := query.New(store, clk, logger)
	sched := scheduler.New(pollingService, store, clk, recorder, schedCfg, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Upstream:       up,
		Metrics:        recorder,
		Cache:          responseCache,
		PollingService: pollingService,
		QueryService:   queryService,
		Scheduler:      sched,
	}
}
