// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/ratewait/internal/testutil"
)

func newManualLimiter(t *testing.T, q Quota) (*DirectLimiter, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock(epoch)
	l, err := NewDirectQuota(AlgorithmGCRA, q, WithName("wait-test"), WithClock(clock))
	require.NoError(t, err)
	return l, clock
}

func TestWait_ConformingLimiterReturnsWithoutSleeping(t *testing.T) {
	l, clock := newManualLimiter(t, PerSecond(5))

	require.NoError(t, Wait(context.Background(), l))
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, epoch, clock.Now())
}

func TestWait_SleepsUntilEarliestPossible(t *testing.T) {
	l, clock := newManualLimiter(t, PerSecond(5))
	require.NoError(t, l.CheckN(5))

	require.NoError(t, NewWaiter(l).Wait(context.Background()))
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, epoch.Add(200*time.Millisecond), clock.Now())
}

// stealingClock lets a competing handle take the slot the waiter slept for.
type stealingClock struct {
	*testutil.ManualClock
	competitor *DirectLimiter
	steals     int
}

func (c *stealingClock) After(d time.Duration) <-chan time.Time {
	ch := c.ManualClock.After(d)
	if c.steals > 0 {
		c.steals--
		_ = c.competitor.CheckAt(c.ManualClock.Now(), 1)
	}
	return ch
}

func TestWait_ExtendsWhenAnotherHandleTakesTheSlot(t *testing.T) {
	base := testutil.NewManualClock(epoch)
	clock := &stealingClock{ManualClock: base, steals: 2}
	l, err := NewDirectQuota(AlgorithmGCRA, PerSecond(5), WithName("contended"), WithClock(clock))
	require.NoError(t, err)
	clock.competitor = l.Clone()

	require.NoError(t, l.CheckN(5))
	require.NoError(t, l.Wait(context.Background()))

	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		200 * time.Millisecond,
		200 * time.Millisecond,
	}, base.Sleeps())
	assert.Equal(t, epoch.Add(600*time.Millisecond), base.Now())
}

func TestWait_CancelledContextConsumesNothing(t *testing.T) {
	l, _ := newManualLimiter(t, PerSecond(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
	assert.NoError(t, l.Check(), "cancelled wait must not take the only cell")
}

func TestWait_DeadlineTooSoon(t *testing.T) {
	clock := testutil.NewManualClock(time.Now())
	l, err := NewDirectQuota(AlgorithmGCRA, PerMinute(1), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, l.Check())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = l.Wait(ctx)
	assert.ErrorIs(t, err, ErrWaitExceedsDeadline)
	assert.Empty(t, clock.Sleeps(), "must fail before sleeping")
}

func TestWait_DeadlineMeasuredOnLimiterClock(t *testing.T) {
	// The limiter clock runs an hour ahead of the wall clock, so a deadline
	// half an hour away on the wall clock has already passed for the limiter.
	clock := testutil.NewManualClock(time.Now().Add(time.Hour))
	l, err := NewDirectQuota(AlgorithmGCRA, PerSecond(5), WithName("skewed"), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, l.CheckN(5))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	err = l.Wait(ctx)
	assert.ErrorIs(t, err, ErrWaitExceedsDeadline)
	assert.Empty(t, clock.Sleeps())
}

func TestWait_InsufficientCapacityFailsFast(t *testing.T) {
	l, clock := newManualLimiter(t, PerSecond(2))

	err := l.WaitN(context.Background(), 3)
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Empty(t, clock.Sleeps())
}

func TestWait_RealClockBlocksUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l, err := NewDirectQuota(AlgorithmLeakyBucket, PerHour(1))
	require.NoError(t, err)
	require.NoError(t, l.Check())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after cancel")
	}
}

func TestWait_RealClockSharedLimiter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l, err := NewDirectQuota(AlgorithmGCRA, Quota{Burst: 1, Period: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(h *DirectLimiter) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			errs <- h.Wait(ctx)
		}(l.Clone())
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond,
		"four cells at one per 20ms need at least three intervals")
}
