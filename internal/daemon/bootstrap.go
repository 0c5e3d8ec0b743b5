// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"io"

	"github.com/ManuGH/ratewait/internal/api"
	"github.com/ManuGH/ratewait/internal/config"
	xglog "github.com/ManuGH/ratewait/internal/log"
	"github.com/ManuGH/ratewait/internal/ratelimit"
	"github.com/ManuGH/ratewait/internal/ratelimit/store"
	"github.com/ManuGH/ratewait/internal/telemetry"
)

// Options controls Bootstrap.
type Options struct {
	ConfigPath string
	Version    string
	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// Runtime is a fully wired daemon ready to Run.
type Runtime struct {
	Config  config.Config
	Store   ratelimit.Store
	API     *api.Server
	Manager Manager
	App     *App
}

// Bootstrap loads configuration and wires logging, tracing, the state
// store, the API server and the lifecycle app. On error everything already
// opened is released.
func Bootstrap(ctx context.Context, opts Options) (rt *Runtime, err error) {
	loader := config.NewLoader(opts.ConfigPath, opts.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  opts.LogOutput,
		Service: cfg.LogService,
		Version: opts.Version,
	})
	logger := xglog.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, cfg.TelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tp.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	st, err := store.Open(ctx, cfg.StoreOptions(), xglog.WithComponent("store"))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if err != nil {
			_ = st.Close()
		}
	}()

	srv, err := api.New(cfg, st)
	if err != nil {
		return nil, err
	}

	mgr, err := NewManager(ServerConfig{
		ListenAddr:      cfg.ListenAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, srv.Handler(), logger)
	if err != nil {
		return nil, err
	}
	mgr.RegisterShutdownHook("store", func(context.Context) error { return st.Close() })
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)

	holder := config.NewConfigHolder(cfg, loader, opts.ConfigPath)

	var appOpts []AppOption
	if sw, ok := st.(ratelimit.Sweeper); ok {
		appOpts = append(appOpts, WithSweeper(sw, cfg.Store.SweepInterval))
	}

	logger.Info().
		Str(xglog.FieldEvent, "daemon.bootstrapped").
		Str(xglog.FieldBackend, st.Backend()).
		Str(xglog.FieldAlgorithm, cfg.Limits.Algorithm).
		Bool("tracing", cfg.Tracing.Enabled).
		Msg("ratewait daemon wired")

	return &Runtime{
		Config:  cfg,
		Store:   st,
		API:     srv,
		Manager: mgr,
		App:     NewApp(logger, mgr, holder, srv, appOpts...),
	}, nil
}

// Run blocks until ctx ends. Resources are released through the manager's
// shutdown hooks.
func (r *Runtime) Run(ctx context.Context) error {
	return r.App.Run(ctx)
}
