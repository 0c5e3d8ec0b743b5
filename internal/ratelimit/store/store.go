// SPDX-License-Identifier: MIT

// Package store provides shared and persistent backends for keyed limiter
// state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/ratelimit"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

var (
	// ErrUnknownBackend reports a backend name Open does not know.
	ErrUnknownBackend = errors.New("store: unknown backend")

	// ErrMissingPath reports a file-backed store configured without a path.
	ErrMissingPath = errors.New("store: missing path")
)

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Redis      RedisConfig
	BadgerPath string
	SQLitePath string
}

// Open builds the configured store.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (ratelimit.Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return ratelimit.NewMemoryStore(), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.Redis, logger)
	case BackendBadger:
		return OpenBadger(cfg.BadgerPath, logger)
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("%w: sqlite", ErrMissingPath)
		}
		return OpenSQLite(ctx, cfg.SQLitePath, DefaultSQLiteConfig(), logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
