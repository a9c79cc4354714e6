package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilSatisfiedImmediately(t *testing.T) {
	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return true, nil
	}, time.Second, WithInterval(10*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntilSatisfiedOnLaterTick(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	}, 3*time.Second, WithInterval(10*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestUntilTimeout(t *testing.T) {
	start := time.Now()
	err := Until(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	}, 100*time.Millisecond, WithInterval(10*time.Millisecond))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)
	assert.Greater(t, timeoutErr.Attempts, 1)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestUntilPropagatesConditionError(t *testing.T) {
	boom := errors.New("no such element")
	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return false, boom
	}, time.Second, WithInterval(10*time.Millisecond))

	assert.Same(t, boom, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, calls, "a failing condition must not be retried")
}

func TestUntilDeadlineInsideConditionIsTimeout(t *testing.T) {
	err := Until(context.Background(), func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}, 50*time.Millisecond, WithInterval(10*time.Millisecond))

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntilParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Until(ctx, func(context.Context) (bool, error) {
		return false, nil
	}, 5*time.Second, WithInterval(10*time.Millisecond))

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestUntilInvalidTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		err := Until(context.Background(), func(context.Context) (bool, error) {
			t.Fatal("condition must not run")
			return false, nil
		}, timeout)
		assert.ErrorIs(t, err, ErrInvalidTimeout)
	}
}

func TestUntilNoOverlap(t *testing.T) {
	var inFlight, maxInFlight int32
	err := Until(context.Background(), func(context.Context) (bool, error) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		time.Sleep(15 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return false, nil
	}, 120*time.Millisecond, WithInterval(time.Millisecond))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestUntilObserver(t *testing.T) {
	var attempts []Attempt
	calls := 0
	err := Until(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls == 2, nil
	}, time.Second, WithInterval(5*time.Millisecond), WithObserver(func(a Attempt) {
		attempts = append(attempts, a)
	}))

	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Number)
	assert.False(t, attempts[0].Satisfied)
	assert.Equal(t, 2, attempts[1].Number)
	assert.True(t, attempts[1].Satisfied)
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	o := options{interval: DefaultInterval}
	WithInterval(0)(&o)
	assert.Equal(t, DefaultInterval, o.interval)
	WithInterval(-time.Second)(&o)
	assert.Equal(t, DefaultInterval, o.interval)
	WithInterval(time.Millisecond)(&o)
	assert.Equal(t, time.Millisecond, o.interval)
}
