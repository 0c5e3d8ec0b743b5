// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/ratewait/internal/metrics"
)

// DirectLimiter is an in-memory limiter around one Algorithm. Clones share
// the algorithm state, so every clone counts against the same limit.
type DirectLimiter struct {
	name  string
	alg   Algorithm
	clock Clock
}

// Option configures a DirectLimiter.
type Option func(*DirectLimiter)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(l *DirectLimiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithName labels the limiter in errors, logs and metrics.
func WithName(name string) Option {
	return func(l *DirectLimiter) { l.name = name }
}

// NewDirect wraps alg.
func NewDirect(alg Algorithm, opts ...Option) *DirectLimiter {
	l := &DirectLimiter{
		name:  "direct",
		alg:   alg,
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewDirectQuota builds a DirectLimiter running the named algorithm over q.
func NewDirectQuota(algorithm string, q Quota, opts ...Option) (*DirectLimiter, error) {
	alg, err := NewAlgorithm(algorithm, q)
	if err != nil {
		return nil, err
	}
	return NewDirect(alg, opts...), nil
}

// Name returns the limiter label.
func (l *DirectLimiter) Name() string { return l.name }

// Algorithm returns the algorithm name.
func (l *DirectLimiter) Algorithm() string { return l.alg.Name() }

// Clone returns a handle sharing this limiter's state.
func (l *DirectLimiter) Clone() *DirectLimiter {
	c := *l
	return &c
}

// Check tests a single cell.
func (l *DirectLimiter) Check() error {
	return l.CheckN(1)
}

// CheckN tests n cells at the current time.
func (l *DirectLimiter) CheckN(n uint32) error {
	return l.CheckAt(l.clock.Now(), n)
}

// CheckAt tests n cells at now. Conforming cells are consumed.
func (l *DirectLimiter) CheckAt(now time.Time, n uint32) error {
	err := l.alg.TestN(now, n)
	switch {
	case err == nil:
		metrics.RecordDecision(l.name, l.alg.Name(), metrics.OutcomeAllowed)
		return nil
	case errors.Is(err, ErrInsufficientCapacity):
		metrics.RecordDecision(l.name, l.alg.Name(), metrics.OutcomeInsufficient)
		return err
	}
	var nu *NotUntil
	if errors.As(err, &nu) {
		nu.Limiter = l.name
		metrics.RecordDecision(l.name, l.alg.Name(), metrics.OutcomeDenied)
	}
	return err
}

// Wait blocks until one cell conforms or ctx ends.
func (l *DirectLimiter) Wait(ctx context.Context) error {
	return l.WaitN(ctx, 1)
}

// WaitN blocks until n cells conform or ctx ends.
func (l *DirectLimiter) WaitN(ctx context.Context, n uint32) error {
	return NewWaiterN(l, n).Wait(ctx)
}
