// SPDX-License-Identifier: MIT

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/ratewait/internal/metrics"
)

// GuardConfig holds the sliding-window request guard settings.
type GuardConfig struct {
	// RequestLimit is the maximum number of requests per key in the window.
	// Zero disables the guard.
	RequestLimit int
	// WindowSize is the sliding window length.
	WindowSize time.Duration
	// KeyFunc extracts the guard key. Defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// Guard bounds how often one caller may hit the API at all, independently
// of the limits the API itself hands out. It uses httprate's sliding window
// counter.
func Guard(cfg GuardConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 || cfg.WindowSize <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	retryAfter := int(math.Ceil(cfg.WindowSize.Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitExceeded("guard", "default")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = fmt.Fprintf(w, `{"error":"guard_exceeded","retry_after_ms":%d}`+"\n", cfg.WindowSize.Milliseconds())
		}),
	)
}
