// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/ratewait/internal/metrics"
	"github.com/ManuGH/ratewait/internal/telemetry"
)

const tracerName = "github.com/ManuGH/ratewait/internal/ratelimit"

// Waiter completes once its limiter admits the requested cells. The first
// check happens immediately; after a negative decision the waiter sleeps
// until the earliest conforming instant and checks again, extending the wait
// whenever another caller took the slot in the meantime.
type Waiter struct {
	limiter *DirectLimiter
	n       uint32
}

// NewWaiter waits for a single cell on l.
func NewWaiter(l *DirectLimiter) *Waiter {
	return NewWaiterN(l, 1)
}

// NewWaiterN waits for n cells on l.
func NewWaiterN(l *DirectLimiter, n uint32) *Waiter {
	return &Waiter{limiter: l, n: n}
}

// Wait blocks until the cells conform or ctx ends. A cancelled or expired
// wait consumes nothing.
func (w *Waiter) Wait(ctx context.Context) error {
	l := w.limiter
	attrs := telemetry.LimiterAttributes(l.name, l.alg.Name(), "", "", w.n)
	return waitUntilConforming(ctx, l.clock, l.name, attrs, func(context.Context) error {
		return l.CheckN(w.n)
	})
}

// Wait blocks until l admits one cell.
func Wait(ctx context.Context, l *DirectLimiter) error {
	return NewWaiter(l).Wait(ctx)
}

type waitOutcome struct {
	result   string
	rechecks int
}

func waitUntilConforming(ctx context.Context, clock Clock, name string, attrs []attribute.KeyValue, check func(context.Context) error) (err error) {
	start := clock.Now()
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "ratelimit.wait", trace.WithAttributes(attrs...))
	out := waitOutcome{result: metrics.WaitAdmitted}
	defer func() {
		elapsed := clock.Now().Sub(start)
		metrics.ObserveWait(name, out.result, elapsed)
		span.SetAttributes(telemetry.WaitAttributes(out.result, out.rechecks, elapsed.Milliseconds())...)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(telemetry.ErrorAttributes(out.result)...)
		}
		span.End()
	}()

	first := true
	for {
		if err := ctx.Err(); err != nil {
			out.result = metrics.WaitCancelled
			return err
		}

		err := check(ctx)
		if err == nil {
			return nil
		}
		var nu *NotUntil
		if !errors.As(err, &nu) {
			out.result = metrics.WaitRejected
			return err
		}
		if !first {
			out.rechecks++
			metrics.RecordWaitRecheck(name)
		}
		first = false

		delay := nu.WaitTimeFrom(clock.Now())
		if deadline, ok := ctx.Deadline(); ok && delay > deadline.Sub(clock.Now()) {
			out.result = metrics.WaitDeadline
			return fmt.Errorf("%w: %s needs %s", ErrWaitExceedsDeadline, name, delay)
		}

		select {
		case <-ctx.Done():
			out.result = metrics.WaitCancelled
			return ctx.Err()
		case <-clock.After(delay):
		}
	}
}
