// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/ratewait/internal/metrics"
	"github.com/ManuGH/ratewait/internal/telemetry"
)

// UpdateFunc receives the stored theoretical arrival time (unix nanoseconds)
// and whether one was found, and returns the value to store. Returning an
// error aborts the update without writing.
type UpdateFunc func(tat int64, found bool) (int64, error)

// Store holds per-key GCRA state. Update must run fn and the write that
// follows atomically with respect to other updates of the same key.
type Store interface {
	Backend() string
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// KeyedLimiter applies one GCRA quota independently to every key.
type KeyedLimiter struct {
	name  string
	quota Quota
	t     int64
	tau   int64
	ttl   time.Duration
	store Store
	clock Clock
}

// KeyedOption configures a KeyedLimiter.
type KeyedOption func(*KeyedLimiter)

// WithKeyedClock overrides the wall clock.
func WithKeyedClock(c Clock) KeyedOption {
	return func(k *KeyedLimiter) {
		if c != nil {
			k.clock = c
		}
	}
}

// WithKeyTTL keeps idle keys at least ttl. The effective TTL is never shorter
// than the quota period.
func WithKeyTTL(ttl time.Duration) KeyedOption {
	return func(k *KeyedLimiter) { k.ttl = ttl }
}

// NewKeyed builds a keyed limiter over store.
func NewKeyed(name string, q Quota, store Store, opts ...KeyedOption) (*KeyedLimiter, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrStore)
	}
	k := &KeyedLimiter{
		name:  name,
		quota: q,
		t:     int64(q.EmissionInterval()),
		tau:   int64(q.Period),
		store: store,
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.ttl < q.Period {
		k.ttl = q.Period
	}
	return k, nil
}

// Name returns the limiter label.
func (k *KeyedLimiter) Name() string { return k.name }

// Quota returns the per-key quota.
func (k *KeyedLimiter) Quota() Quota { return k.quota }

// Check tests a single cell for key.
func (k *KeyedLimiter) Check(ctx context.Context, key string) error {
	return k.CheckN(ctx, key, 1)
}

// CheckN tests n cells for key, consuming them if they conform.
func (k *KeyedLimiter) CheckN(ctx context.Context, key string, n uint32) error {
	if n == 0 {
		return nil
	}
	if n > k.quota.Burst {
		metrics.RecordDecision(k.name, AlgorithmGCRA, metrics.OutcomeInsufficient)
		return ErrInsufficientCapacity
	}

	now := k.clock.Now().UnixNano()
	inc := k.t * int64(n)
	err := k.store.Update(ctx, key, k.ttl, func(tat int64, found bool) (int64, error) {
		if !found {
			tat = 0
		}
		next, allowAt := gcraStep(tat, now, inc, k.tau)
		if now < allowAt {
			return 0, &NotUntil{At: time.Unix(0, allowAt), Limiter: k.name}
		}
		return next, nil
	})
	if err == nil {
		metrics.RecordDecision(k.name, AlgorithmGCRA, metrics.OutcomeAllowed)
		return nil
	}
	var nu *NotUntil
	if errors.As(err, &nu) {
		metrics.RecordDecision(k.name, AlgorithmGCRA, metrics.OutcomeDenied)
		return nu
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	metrics.RecordStoreError(k.store.Backend(), "update")
	return fmt.Errorf("%w: %s: %w", ErrStore, k.store.Backend(), err)
}

// Wait blocks until one cell for key conforms or ctx ends.
func (k *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return k.WaitN(ctx, key, 1)
}

// WaitN blocks until n cells for key conform or ctx ends.
func (k *KeyedLimiter) WaitN(ctx context.Context, key string, n uint32) error {
	attrs := telemetry.LimiterAttributes(k.name, AlgorithmGCRA, key, "", n)
	return waitUntilConforming(ctx, k.clock, k.name, attrs, func(ctx context.Context) error {
		return k.CheckN(ctx, key, n)
	})
}
