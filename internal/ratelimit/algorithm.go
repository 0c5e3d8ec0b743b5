// SPDX-License-Identifier: MIT

package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Algorithm names understood by NewAlgorithm.
const (
	AlgorithmGCRA        = "gcra"
	AlgorithmLeakyBucket = "leaky_bucket"
	AlgorithmTokenBucket = "token_bucket"
)

// Algorithm decides whether n cells conform at now. Implementations own and
// synchronise their state; a negative decision is a *NotUntil.
type Algorithm interface {
	Name() string
	TestN(now time.Time, n uint32) error
}

// NewAlgorithm builds the named algorithm for q.
func NewAlgorithm(name string, q Quota) (Algorithm, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	switch name {
	case AlgorithmGCRA, "":
		return newGCRA(q), nil
	case AlgorithmLeakyBucket:
		return newLeakyBucket(q), nil
	case AlgorithmTokenBucket:
		return newTokenBucket(q), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// gcraStep computes the new theoretical arrival time for inc worth of cells
// and the instant from which that TAT is acceptable.
func gcraStep(tat, now, inc, tau int64) (next, allowAt int64) {
	base := tat
	if now > base {
		base = now
	}
	next = base + inc
	return next, next - tau
}

// GCRA is the generic cell rate algorithm. Its whole state is one
// theoretical arrival time, updated lock-free.
type GCRA struct {
	t     int64
	tau   int64
	burst uint32
	tat   atomic.Int64
}

func newGCRA(q Quota) *GCRA {
	return &GCRA{
		t:     int64(q.EmissionInterval()),
		tau:   int64(q.Period),
		burst: q.Burst,
	}
}

func (g *GCRA) Name() string { return AlgorithmGCRA }

func (g *GCRA) TestN(now time.Time, n uint32) error {
	if n == 0 {
		return nil
	}
	if n > g.burst {
		return ErrInsufficientCapacity
	}
	nowNs := now.UnixNano()
	inc := g.t * int64(n)
	for {
		tat := g.tat.Load()
		next, allowAt := gcraStep(tat, nowNs, inc, g.tau)
		if nowNs < allowAt {
			return &NotUntil{At: time.Unix(0, allowAt)}
		}
		if g.tat.CompareAndSwap(tat, next) {
			return nil
		}
	}
}

// LeakyBucket fills by one emission interval per cell and drains in real
// time. A bucket holding more than one period of work overflows.
type LeakyBucket struct {
	mu       sync.Mutex
	capacity time.Duration
	t        time.Duration
	burst    uint32
	level    time.Duration
	last     time.Time
}

func newLeakyBucket(q Quota) *LeakyBucket {
	return &LeakyBucket{
		capacity: q.Period,
		t:        q.EmissionInterval(),
		burst:    q.Burst,
	}
}

func (b *LeakyBucket) Name() string { return AlgorithmLeakyBucket }

func (b *LeakyBucket) TestN(now time.Time, n uint32) error {
	if n == 0 {
		return nil
	}
	if n > b.burst {
		return ErrInsufficientCapacity
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.last.IsZero() && now.After(b.last) {
		b.level -= now.Sub(b.last)
		if b.level < 0 {
			b.level = 0
		}
	}
	if b.last.IsZero() || now.After(b.last) {
		b.last = now
	}

	add := b.t * time.Duration(n)
	if overflow := b.level + add - b.capacity; overflow > 0 {
		return &NotUntil{At: now.Add(overflow)}
	}
	b.level += add
	return nil
}

// TokenBucket delegates to golang.org/x/time/rate. Reservations that would
// need a delay are cancelled so a negative decision consumes nothing.
type TokenBucket struct {
	burst uint32
	lim   *rate.Limiter
}

func newTokenBucket(q Quota) *TokenBucket {
	return &TokenBucket{
		burst: q.Burst,
		lim:   rate.NewLimiter(rate.Limit(q.Rate()), int(q.Burst)),
	}
}

func (b *TokenBucket) Name() string { return AlgorithmTokenBucket }

func (b *TokenBucket) TestN(now time.Time, n uint32) error {
	if n == 0 {
		return nil
	}
	if n > b.burst {
		return ErrInsufficientCapacity
	}
	r := b.lim.ReserveN(now, int(n))
	if !r.OK() {
		return ErrInsufficientCapacity
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return &NotUntil{At: now.Add(d)}
	}
	return nil
}
