// SPDX-License-Identifier: MIT

// Package api serves the ratewait HTTP surface: acquire endpoints backed by
// the tiered limiter policy, health probes and Prometheus metrics.
package api

import (
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ratewait/internal/api/middleware"
	"github.com/ManuGH/ratewait/internal/config"
	"github.com/ManuGH/ratewait/internal/health"
	xglog "github.com/ManuGH/ratewait/internal/log"
	"github.com/ManuGH/ratewait/internal/ratelimit"
)

// Server owns the router and the hot-swappable limiter state.
type Server struct {
	store   ratelimit.Store
	health  *health.Manager
	clock   ratelimit.Clock
	tracing string
	logger  zerolog.Logger

	applyMu sync.Mutex
	state   atomic.Pointer[runtimeState]
	router  chi.Router
}

// runtimeState is everything a config reload may replace.
type runtimeState struct {
	cfg    config.Config
	policy *ratelimit.Policy
	guard  func(http.Handler) http.Handler
	v1     http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithClock drives the limiter policy from c.
func WithClock(c ratelimit.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithHealth uses m for the probe endpoints instead of a private manager.
func WithHealth(m *health.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.health = m
		}
	}
}

// New builds a server over store. The store's readiness is registered with
// the health manager.
func New(cfg config.Config, store ratelimit.Store, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("api: %w: nil store", ratelimit.ErrStore)
	}
	s := &Server{
		store:  store,
		clock:  ratelimit.SystemClock,
		logger: xglog.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.NewManager(cfg.Version)
	}
	s.health.RegisterChecker(health.NewPingChecker("store:"+store.Backend(), store))
	if cfg.Tracing.Enabled {
		s.tracing = cfg.LogService
	}

	if err := s.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Policy returns the policy currently serving requests.
func (s *Server) Policy() *ratelimit.Policy {
	return s.state.Load().policy
}

// ApplyConfig swaps limits, wait cap and request guard atomically. In-flight
// requests finish on the state they started with. Each limiter tier and the
// guard keep their counters unless their own settings changed.
func (s *Server) ApplyConfig(cfg config.Config) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	prev := s.state.Load()
	var prevPolicy *ratelimit.Policy
	if prev != nil {
		prevPolicy = prev.policy
	}
	policy := prevPolicy
	if prev == nil || !reflect.DeepEqual(prev.cfg.Limits, cfg.Limits) {
		pc, err := cfg.PolicyConfig()
		if err != nil {
			return fmt.Errorf("api: policy config: %w", err)
		}
		policy, err = ratelimit.NewPolicyFrom(prevPolicy, pc, s.store, s.clock)
		if err != nil {
			return fmt.Errorf("api: build policy: %w", err)
		}
	}

	next := &runtimeState{cfg: cfg, policy: policy}
	if prev != nil && prev.cfg.Guard == cfg.Guard {
		// httprate keeps its window counters inside the middleware.
		next.guard = prev.guard
	} else {
		next.guard = middleware.Guard(middleware.GuardConfig{
			RequestLimit: cfg.Guard.Requests,
			WindowSize:   cfg.Guard.Window,
			KeyFunc: func(r *http.Request) (string, error) {
				return ratelimit.ClientIP(r), nil
			},
		})
	}
	next.v1 = s.v1Routes(next)
	s.state.Store(next)

	s.logger.Info().
		Str(xglog.FieldEvent, "api.config_applied").
		Str(xglog.FieldAlgorithm, cfg.Limits.Algorithm).
		Strs("classes", policy.Classes()).
		Dur("max_wait", cfg.MaxWait).
		Int("guard_requests", cfg.Guard.Requests).
		Msg("limiter configuration applied")
	return nil
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.tracing,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	// The v1 sub-router is rebuilt on reload; mount a trampoline to the
	// current one.
	r.Mount("/v1", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.state.Load().v1.ServeHTTP(w, r)
	}))
	return r
}

func (s *Server) v1Routes(st *runtimeState) http.Handler {
	r := chi.NewRouter()
	r.Use(st.guard)
	acquire := s.acquireHandler(st)
	r.Post("/acquire", acquire)
	r.Post("/acquire/{key}", acquire)
	return r
}

// maxKeyLength bounds keys accepted from the URL.
const maxKeyLength = 256

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
