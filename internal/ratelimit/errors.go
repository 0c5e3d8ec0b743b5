// SPDX-License-Identifier: MIT

package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientCapacity is returned when a request asks for more cells
	// than the limiter's burst. Such a request can never conform.
	ErrInsufficientCapacity = errors.New("ratelimit: request exceeds burst capacity")

	// ErrInvalidQuota reports a quota with zero burst or non-positive period.
	ErrInvalidQuota = errors.New("ratelimit: invalid quota")

	// ErrUnknownAlgorithm reports an algorithm name NewAlgorithm does not know.
	ErrUnknownAlgorithm = errors.New("ratelimit: unknown algorithm")

	// ErrWaitExceedsDeadline is returned by waits whose earliest conforming
	// instant lies past the context deadline.
	ErrWaitExceedsDeadline = errors.New("ratelimit: wait would exceed context deadline")

	// ErrStore classifies failures of the keyed state store.
	ErrStore = errors.New("ratelimit: state store failure")
)

// NotUntil is the negative decision of a limiter: the cells did not conform
// now and will not before At.
type NotUntil struct {
	At      time.Time
	Limiter string
}

func (e *NotUntil) Error() string {
	if e.Limiter == "" {
		return fmt.Sprintf("ratelimit: not conforming until %s", e.At.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("ratelimit: %s not conforming until %s", e.Limiter, e.At.Format(time.RFC3339Nano))
}

// EarliestPossible returns the earliest instant the same request could conform.
func (e *NotUntil) EarliestPossible() time.Time {
	return e.At
}

// WaitTimeFrom returns how long a caller at now must wait. Zero if At has passed.
func (e *NotUntil) WaitTimeFrom(now time.Time) time.Duration {
	if d := e.At.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RetryAfter extracts the wait duration from a negative decision anywhere in
// err's chain.
func RetryAfter(err error, now time.Time) (time.Duration, bool) {
	var nu *NotUntil
	if !errors.As(err, &nu) {
		return 0, false
	}
	return nu.WaitTimeFrom(now), true
}
