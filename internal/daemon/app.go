// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/ratewait/internal/config"
	xglog "github.com/ManuGH/ratewait/internal/log"
	"github.com/ManuGH/ratewait/internal/ratelimit"
)

// ConfigApplier receives every successfully reloaded configuration.
type ConfigApplier interface {
	ApplyConfig(cfg config.Config) error
}

// App owns the long-lived runtime: server, config watcher, reload signal
// and store sweeper. All of them stop when Run's context ends.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	applier      ConfigApplier
	sweeper      ratelimit.Sweeper
	sweepEvery   time.Duration
	reloadSignal os.Signal
}

// AppOption customizes an App.
type AppOption func(*App)

// WithSweeper periodically removes expired keys from s.
func WithSweeper(s ratelimit.Sweeper, interval time.Duration) AppOption {
	return func(a *App) {
		a.sweeper = s
		a.sweepEvery = interval
	}
}

// WithReloadSignal overrides SIGHUP as the manual reload trigger. Nil disables it.
func WithReloadSignal(sig os.Signal) AppOption {
	return func(a *App) { a.reloadSignal = sig }
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, applier ConfigApplier, opts ...AppOption) *App {
	a := &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		applier:      applier,
		reloadSignal: syscall.SIGHUP,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every subsystem and blocks until ctx is cancelled or the server
// fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		// The watcher is best-effort: SIGHUP still reloads without it.
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.cfgHolder.Stop()
	}

	if a.cfgHolder != nil && a.applier != nil {
		applyCh := make(chan config.Config, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.sweeper != nil && a.sweepEvery > 0 {
		g.Go(func() error {
			ratelimit.RunSweeper(ctx, a.sweeper, a.sweepEvery, a.logger)
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

func (a *App) apply(cfg config.Config) {
	if err := xglog.SetLevel(cfg.LogLevel); err != nil {
		a.logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("ignoring invalid log level")
	}
	if err := a.applier.ApplyConfig(cfg); err != nil {
		a.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.apply_failed").
			Msg("reloaded configuration could not be applied")
	}
}
