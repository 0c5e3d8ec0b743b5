// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/metrics"
)

// Sweeper is a store that needs periodic removal of expired keys.
type Sweeper interface {
	Backend() string
	Sweep(ctx context.Context) (int, error)
}

// RunSweeper calls s.Sweep every interval until ctx ends.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				metrics.RecordStoreError(s.Backend(), "sweep")
				logger.Warn().
					Err(err).
					Str("event", "store.sweep_failed").
					Str("backend", s.Backend()).
					Msg("failed to sweep expired limiter keys")
				continue
			}
			metrics.RecordStoreSwept(s.Backend(), removed)
			if removed > 0 {
				logger.Debug().
					Str("event", "store.swept").
					Str("backend", s.Backend()).
					Int("removed", removed).
					Msg("removed expired limiter keys")
			}
		}
	}
}
