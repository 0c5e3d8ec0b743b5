// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics registers the Prometheus collectors ratewait exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes recorded by limiters.
const (
	OutcomeAllowed      = "allowed"
	OutcomeDenied       = "denied"
	OutcomeInsufficient = "insufficient"
)

// Wait results recorded by waiters.
const (
	WaitAdmitted  = "admitted"
	WaitCancelled = "cancelled"
	WaitDeadline  = "deadline"
	WaitRejected  = "rejected"
)

var (
	limiterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratewait",
		Name:      "limiter_decisions_total",
		Help:      "Limiter decisions by limiter name, algorithm and outcome",
	}, []string{"limiter", "algorithm", "outcome"})

	waitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ratewait",
		Name:      "wait_duration_seconds",
		Help:      "Time spent waiting for a limiter to admit a caller",
		Buckets:   []float64{0, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"limiter", "result"})

	waitRechecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratewait",
		Name:      "wait_rechecks_total",
		Help:      "Negative decisions observed after a wait timer fired (wait extended)",
	}, []string{"limiter"})

	rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratewait",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total policy rejections by tier",
	}, []string{"limit_type", "class"})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratewait",
		Name:      "store_errors_total",
		Help:      "Keyed state store failures by backend and operation",
	}, []string{"backend", "op"})

	storeSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratewait",
		Name:      "store_swept_keys_total",
		Help:      "Expired limiter keys removed by the sweeper",
	}, []string{"backend"})
)

// RecordDecision counts a single limiter decision.
func RecordDecision(limiter, algorithm, outcome string) {
	limiterDecisions.WithLabelValues(limiter, algorithm, outcome).Inc()
}

// ObserveWait records how long a waiter blocked and how it ended.
func ObserveWait(limiter, result string, d time.Duration) {
	waitDuration.WithLabelValues(limiter, result).Observe(d.Seconds())
}

// RecordWaitRecheck counts a re-armed wait.
func RecordWaitRecheck(limiter string) {
	waitRechecks.WithLabelValues(limiter).Inc()
}

// RecordRateLimitExceeded counts a policy rejection at the given tier.
func RecordRateLimitExceeded(limitType, class string) {
	rateLimitExceeded.WithLabelValues(limitType, class).Inc()
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, op string) {
	storeErrors.WithLabelValues(backend, op).Inc()
}

// RecordStoreSwept adds n removed keys for backend.
func RecordStoreSwept(backend string, n int) {
	if n <= 0 {
		return
	}
	storeSwept.WithLabelValues(backend).Add(float64(n))
}
