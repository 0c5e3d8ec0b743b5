// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/ratewait/internal/log"
	"github.com/ManuGH/ratewait/internal/ratelimit"
	"github.com/ManuGH/ratewait/internal/telemetry"
)

// statusClientClosedRequest is logged when the caller went away mid-wait.
const statusClientClosedRequest = 499

// AcquireResponse is the body of a successful acquire.
type AcquireResponse struct {
	Allowed  bool   `json:"allowed"`
	Key      string `json:"key"`
	WaitedMS int64  `json:"waited_ms"`
}

// ErrorResponse is the body of every failed acquire.
type ErrorResponse struct {
	Error        string `json:"error"`
	Detail       string `json:"detail,omitempty"`
	Limiter      string `json:"limiter,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

// Error codes carried in ErrorResponse.Error.
const (
	CodeRateLimited          = "rate_limited"
	CodeInsufficientCapacity = "insufficient_capacity"
	CodeBadRequest           = "bad_request"
	CodeWaitDeadline         = "wait_deadline"
	CodeStoreUnavailable     = "store_unavailable"
	CodeInternal             = "internal_error"
)

type acquireParams struct {
	class   string
	cells   uint32
	wait    bool
	timeout time.Duration
}

func parseAcquireParams(q url.Values, maxWait time.Duration) (acquireParams, error) {
	p := acquireParams{class: q.Get("class"), cells: 1, timeout: maxWait}

	if v := q.Get("n"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return p, fmt.Errorf("n: %w", err)
		}
		p.cells = uint32(n)
	}
	if v := q.Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("wait: %w", err)
		}
		p.wait = b
	}
	if v := q.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return p, fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return p, errors.New("timeout: must be positive")
		}
		p.timeout = min(d, maxWait)
	}
	return p, nil
}

func (s *Server) acquireHandler(st *runtimeState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := xglog.WithComponentFromContext(ctx, "acquire")

		key := chi.URLParam(r, "key")
		if r.URL.RawPath != "" {
			// Routing ran on the escaped path so keys may contain slashes.
			unescaped, err := url.PathUnescape(key)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Detail: "malformed key"})
				return
			}
			key = unescaped
		}
		if key == "" {
			key = ratelimit.ClientIP(r)
		}
		if len(key) > maxKeyLength {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Detail: "key too long"})
			return
		}

		p, err := parseAcquireParams(r.URL.Query(), st.cfg.MaxWait)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Detail: err.Error()})
			return
		}

		trace.SpanFromContext(ctx).SetAttributes(
			telemetry.LimiterAttributes("policy", st.cfg.Limits.Algorithm, key, p.class, p.cells)...,
		)

		if p.wait {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			err = st.policy.WaitN(ctx, key, p.class, p.cells)
			cancel()
		} else {
			err = st.policy.CheckN(ctx, key, p.class, p.cells)
		}
		waited := time.Since(start)

		if err == nil {
			logger.Debug().
				Str(xglog.FieldEvent, "acquire.allowed").
				Str(xglog.FieldKey, key).
				Str(xglog.FieldClass, p.class).
				Uint32(xglog.FieldCells, p.cells).
				Dur(xglog.FieldWaited, waited).
				Msg("cells admitted")
			writeJSON(w, http.StatusOK, AcquireResponse{Allowed: true, Key: key, WaitedMS: waited.Milliseconds()})
			return
		}

		s.writeAcquireError(w, r, err, key, p)
	}
}

func (s *Server) writeAcquireError(w http.ResponseWriter, r *http.Request, err error, key string, p acquireParams) {
	logger := xglog.WithComponentFromContext(r.Context(), "acquire")
	span := trace.SpanFromContext(r.Context())

	var nu *ratelimit.NotUntil
	switch {
	case errors.As(err, &nu):
		d := nu.WaitTimeFrom(s.clock.Now())
		span.SetAttributes(telemetry.ErrorAttributes(CodeRateLimited)...)
		logger.Debug().
			Str(xglog.FieldEvent, "acquire.denied").
			Str(xglog.FieldKey, key).
			Str(xglog.FieldClass, p.class).
			Str(xglog.FieldLimiter, nu.Limiter).
			Dur(xglog.FieldRetryAfter, d).
			Msg("cells denied")
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(d), 10))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:        CodeRateLimited,
			Limiter:      nu.Limiter,
			RetryAfterMS: max(d.Milliseconds(), 1),
		})

	case errors.Is(err, ratelimit.ErrInsufficientCapacity):
		span.SetAttributes(telemetry.ErrorAttributes(CodeInsufficientCapacity)...)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: CodeInsufficientCapacity, Detail: err.Error()})

	case errors.Is(err, ratelimit.ErrWaitExceedsDeadline), errors.Is(err, context.DeadlineExceeded):
		span.SetAttributes(telemetry.ErrorAttributes(CodeWaitDeadline)...)
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: CodeWaitDeadline, Detail: err.Error()})

	case errors.Is(err, context.Canceled):
		logger.Debug().
			Str(xglog.FieldEvent, "acquire.client_gone").
			Str(xglog.FieldKey, key).
			Msg("caller cancelled the wait")
		w.WriteHeader(statusClientClosedRequest)

	case errors.Is(err, ratelimit.ErrStore):
		span.SetAttributes(telemetry.ErrorAttributes(CodeStoreUnavailable)...)
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "acquire.store_error").
			Str(xglog.FieldKey, key).
			Msg("limiter state store failed")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: CodeStoreUnavailable})

	default:
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "acquire.failed").
			Str(xglog.FieldKey, key).
			Msg("acquire failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: CodeInternal})
	}
}
