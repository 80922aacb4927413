// Package app assembles the gatekeeper HTTP handler from configuration. The
// standalone server and the Lambda entrypoint share it so both enforce the
// same limits with the same routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gatekeeper/internal/api"
	"gatekeeper/internal/greeting"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/version"
)

// App owns the handler and the resources behind it.
type App struct {
	Handler http.Handler
	Store   storage.Store
	Limiter ratelimit.Limiter

	stopPurger context.CancelFunc
}

// New wires storage, the limiter and the router. With cfg.Metrics.Enabled
// the store and limiter are wrapped with OpenTelemetry instruments, which
// report to whatever meter provider observability.Setup installed.
func New(ctx context.Context, cfg *models.Config, ver version.Info) (*App, error) {
	a := &App{stopPurger: func() {}}

	var pinger api.Pinger
	if cfg.RateLimit.Enabled {
		if err := a.buildLimiter(ctx, cfg); err != nil {
			a.Close()
			return nil, err
		}
		if a.Store != nil {
			pinger = a.Store
		}
	}

	handlers := api.NewHandlers(greeting.NewService(), pinger, ver)

	var routeOpts []api.RouteOption
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if a.Limiter != nil {
		mw := ratelimit.Middleware(a.Limiter, ratelimit.OptionsFromConfig(cfg.RateLimit))
		routeOpts = append(routeOpts, api.WithRateLimiter(mw))
	}

	a.Handler = api.SetupRoutes(handlers, cfg, routeOpts...)
	return a, nil
}

func (a *App) buildLimiter(ctx context.Context, cfg *models.Config) error {
	rl := cfg.RateLimit

	// The token bucket keeps its state in memory and has no use for a store.
	if rl.Algorithm != models.AlgorithmTokenBucket {
		store, err := storage.NewFactory(rl).Create(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.Store = store

		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedStore(store, cfg.Storage.Type)
			if err != nil {
				return fmt.Errorf("failed to instrument storage: %w", err)
			}
			a.Store = instrumented
		}

		if cfg.Storage.Type == models.StorageTypeSQLite || cfg.Storage.Type == models.StorageTypePostgres {
			purgeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			a.stopPurger = cancel
			go storage.RunPurger(purgeCtx, a.Store, rl.Window, rl.CleanupInterval)
		}
	}

	limiter, err := ratelimit.New(rl, a.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	a.Limiter = limiter

	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedLimiter(limiter, rl.Algorithm)
		if err != nil {
			return fmt.Errorf("failed to instrument rate limiter: %w", err)
		}
		a.Limiter = instrumented
	}

	slog.InfoContext(ctx, "Rate limiter initialized",
		"algorithm", rl.Algorithm,
		"limit", rl.Limit,
		"window", rl.Window,
		"mode", rl.Mode,
		"storage", cfg.Storage.Type,
	)
	return nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.stopPurger()
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
