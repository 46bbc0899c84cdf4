// Package daemon runs the polling scheduler and, optionally, the query API
// until its context is cancelled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/playerwatch/internal/api"
	"github.com/mcoot/playerwatch/internal/config"
	"github.com/mcoot/playerwatch/internal/factory"
)

// Options controls what Serve runs alongside the scheduler
type Options struct {
	WithAPI bool
	Server  api.ServerConfig
}

// Run wires the application from cfg and serves it until ctx is done
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, withAPI bool) error {
	app, err := factory.New(factory.ConfigFrom(cfg, logger))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port

	return Serve(ctx, app, Options{WithAPI: withAPI, Server: serverCfg}, logger)
}

// Serve starts the scheduler and the HTTP server and returns once ctx is
// cancelled or the server fails. The server is drained before the scheduler
// stops, and stopping waits for any in-flight cycle.
func Serve(ctx context.Context, app *factory.App, opts Options, logger *slog.Logger) error {
	if err := app.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("playerwatch started",
		slog.Bool("api", opts.WithAPI),
		slog.String("server_id", app.PollingService.ServerID()),
		slog.Duration("interval", app.Scheduler.Status().Interval),
	)

	var runErr error
	if opts.WithAPI {
		router := api.NewRouter(api.RouterConfig{
			Logger:         logger,
			Clock:          app.Clock,
			PollingService: app.PollingService,
			QueryService:   app.QueryService,
			Scheduler:      app.Scheduler,
			Cache:          app.Cache,
			Metrics:        app.Metrics,
		})
		runErr = api.NewServer(router, opts.Server, logger).Run(ctx)
	} else {
		<-ctx.Done()
	}

	if ctx.Err() != nil {
		logger.Info("shutdown signal received")
	}

	if err := app.Scheduler.Stop(context.WithoutCancel(ctx)); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop scheduler: %w", err))
	}

	logger.Info("playerwatch stopped")
	return runErr
}
