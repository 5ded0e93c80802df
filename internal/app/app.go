// Package app wires configuration, store backends, the sweeper and the HTTP
// surface into a runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/config"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/router"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/sweeper"
)

type App struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	backend *backend
	sweeper *sweeper.Sweeper
	server  *http.Server
}

// New opens the configured backend and builds a stopped sweeper over it.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	b, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger, b)
}

func newApp(cfg *config.Config, logger *zap.SugaredLogger, b *backend, opts ...sweeper.Option) (*App, error) {
	opts = append([]sweeper.Option{sweeper.WithLogger(logger.Named("sweeper"))}, opts...)
	sw, err := sweeper.New(cfg.Sweep.IntervalSeconds, b.stores, opts...)
	if err != nil {
		if b.close != nil {
			_ = b.close()
		}
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, backend: b, sweeper: sw}
	if cfg.HTTP.Addr != "" {
		a.server = &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: router.RegisterRoutes(logger, sw.Running, cfg.HTTP.MetricsEnabled),
		}
	}
	return a, nil
}

// Migrate creates the tables, collections and indexes the stores need.
func (a *App) Migrate(ctx context.Context) error {
	for _, m := range a.backend.migrate {
		if err := m(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	a.logger.Infow("store schema ready", "backend", a.cfg.Store.Backend)
	return nil
}

// Start launches the sweeper and, if configured, the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if err := a.sweeper.Start(ctx); err != nil {
		return err
	}
	if a.server != nil {
		go func() {
			a.logger.Infow("http server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Errorw("http server failed", "err", err)
			}
		}()
	}
	return nil
}

// Shutdown stops the sweeper, drains the HTTP server and closes the backend.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.sweeper.Running() {
		if err := a.sweeper.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if a.backend.close != nil {
		if err := a.backend.close(); err != nil {
			errs = append(errs, fmt.Errorf("close store backend: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Running reports whether the sweeper loop is active.
func (a *App) Running() bool {
	return a.sweeper.Running()
}
