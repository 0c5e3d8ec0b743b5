// SPDX-License-Identifier: MIT

package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// Quota admits at most Burst cells per Period, all of them at once if the
// limiter has been idle for a full Period.
type Quota struct {
	Burst  uint32
	Period time.Duration
}

// NewQuota validates and returns a quota of burst cells per period.
func NewQuota(burst uint32, period time.Duration) (Quota, error) {
	q := Quota{Burst: burst, Period: period}
	if err := q.Validate(); err != nil {
		return Quota{}, err
	}
	return q, nil
}

// PerSecond returns a quota of n cells per second.
func PerSecond(n uint32) Quota { return Quota{Burst: n, Period: time.Second} }

// PerMinute returns a quota of n cells per minute.
func PerMinute(n uint32) Quota { return Quota{Burst: n, Period: time.Minute} }

// PerHour returns a quota of n cells per hour.
func PerHour(n uint32) Quota { return Quota{Burst: n, Period: time.Hour} }

// QuotaFromRate converts a sustained rate (cells per second) and a burst size
// into a Quota: the period is the time the rate needs to refill the burst.
func QuotaFromRate(rate float64, burst int) (Quota, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Quota{}, fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidQuota, rate)
	}
	if burst <= 0 || burst > math.MaxUint32 {
		return Quota{}, fmt.Errorf("%w: burst must be positive, got %d", ErrInvalidQuota, burst)
	}
	period := time.Duration(float64(burst) / rate * float64(time.Second))
	return NewQuota(uint32(burst), period)
}

// Validate reports whether the quota can drive a limiter.
func (q Quota) Validate() error {
	if q.Burst == 0 {
		return fmt.Errorf("%w: burst must be positive", ErrInvalidQuota)
	}
	if q.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %s", ErrInvalidQuota, q.Period)
	}
	if q.EmissionInterval() <= 0 {
		return fmt.Errorf("%w: period %s too short for burst %d", ErrInvalidQuota, q.Period, q.Burst)
	}
	return nil
}

// IsZero reports whether the quota is unset (tier disabled).
func (q Quota) IsZero() bool {
	return q.Burst == 0 && q.Period == 0
}

// EmissionInterval is the steady-state spacing between two cells.
func (q Quota) EmissionInterval() time.Duration {
	if q.Burst == 0 {
		return 0
	}
	return q.Period / time.Duration(q.Burst)
}

// Rate is the sustained rate in cells per second.
func (q Quota) Rate() float64 {
	if q.Period <= 0 {
		return 0
	}
	return float64(q.Burst) / q.Period.Seconds()
}

func (q Quota) String() string {
	return fmt.Sprintf("%d/%s", q.Burst, q.Period)
}
