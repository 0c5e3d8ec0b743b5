// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/ratelimit"
	"github.com/ManuGH/ratewait/internal/ratelimit/store"
	"github.com/ManuGH/ratewait/internal/telemetry"
)

// Validate checks cross-field invariants. All problems are reported together.
func Validate(cfg Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		add("listenAddr %q: %w", cfg.ListenAddr, err)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		add("logLevel %q: %w", cfg.LogLevel, err)
	}
	if cfg.MaxWait <= 0 {
		add("maxWait must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		add("shutdownTimeout must be positive")
	}

	switch cfg.Store.Backend {
	case store.BackendMemory:
	case store.BackendRedis:
		if cfg.Store.Redis.Addr == "" {
			add("store.redis.addr is required for the redis backend")
		}
	case store.BackendBadger:
	case store.BackendSQLite:
		if cfg.Store.SQLitePath == "" {
			add("store.sqlitePath is required for the sqlite backend")
		}
	default:
		add("store.backend %q: %w", cfg.Store.Backend, store.ErrUnknownBackend)
	}
	if cfg.Store.SweepInterval < 0 {
		add("store.sweepInterval must not be negative")
	}

	switch cfg.Limits.Algorithm {
	case ratelimit.AlgorithmGCRA, ratelimit.AlgorithmLeakyBucket, ratelimit.AlgorithmTokenBucket:
	default:
		add("limits.algorithm %q: %w", cfg.Limits.Algorithm, ratelimit.ErrUnknownAlgorithm)
	}
	if cfg.Limits.KeyTTL < 0 {
		add("limits.keyTTL must not be negative")
	}
	if _, err := cfg.Limits.Global.Quota(); err != nil {
		add("limits.global: %w", err)
	}
	if _, err := cfg.Limits.PerClient.Quota(); err != nil {
		add("limits.perClient: %w", err)
	}
	for name, rc := range cfg.Limits.Classes {
		if name == "" {
			add("limits.classes: empty class name")
			continue
		}
		if _, err := rc.Quota(); err != nil {
			add("limits.classes.%s: %w", name, err)
		}
	}

	if cfg.Guard.Requests < 0 {
		add("guard.requests must not be negative")
	}
	if cfg.Guard.Requests > 0 && cfg.Guard.Window <= 0 {
		add("guard.window must be positive when guard.requests is set")
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != telemetry.ExporterGRPC && cfg.Tracing.Exporter != telemetry.ExporterHTTP {
			add("tracing.exporter %q: must be %q or %q", cfg.Tracing.Exporter, telemetry.ExporterGRPC, telemetry.ExporterHTTP)
		}
		if cfg.Tracing.Endpoint == "" {
			add("tracing.endpoint is required when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		add("tracing.samplingRate must be within [0, 1]")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
