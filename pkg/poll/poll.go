// Package poll evaluates a condition repeatedly until it holds or a deadline
// passes.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the pause between evaluations when no interval is given.
const DefaultInterval = 500 * time.Millisecond

var (
	// ErrTimeout matches every *TimeoutError returned by Until.
	ErrTimeout = errors.New("poll: timed out")

	// ErrInvalidTimeout is returned when Until is called without a positive timeout.
	ErrInvalidTimeout = errors.New("poll: timeout must be positive")
)

// Condition reports whether the awaited state has been reached. The context
// carries the poll deadline.
type Condition func(ctx context.Context) (bool, error)

// Attempt describes one evaluation of a Condition.
type Attempt struct {
	Number    int
	Elapsed   time.Duration
	Satisfied bool
	Err       error
}

// TimeoutError reports that the deadline elapsed before the condition held.
type TimeoutError struct {
	Timeout  time.Duration
	Elapsed  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %dms (%d attempts)", e.Timeout.Milliseconds(), e.Attempts)
}

// Is makes errors.Is(err, ErrTimeout) hold for any *TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Option configures a single Until call.
type Option func(*options)

type options struct {
	interval time.Duration
	observe  func(Attempt)
}

// WithInterval sets the pause between evaluations. Non-positive values keep
// DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithObserver registers a hook called after every evaluation.
func WithObserver(fn func(Attempt)) Option {
	return func(o *options) {
		o.observe = fn
	}
}

// Until evaluates cond immediately and then once per interval until it
// returns true, in which case Until returns nil.
//
// If timeout elapses first, Until returns a *TimeoutError. An error returned
// by cond is passed through unchanged, except a context.DeadlineExceeded
// caused by the poll deadline itself, which counts as a timeout. Evaluations
// never overlap. Cancelling ctx ends the poll with ctx.Err().
func Until(ctx context.Context, cond Condition, timeout time.Duration, opts ...Option) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTimeout, timeout)
	}

	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := time.NewTimer(o.interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		ok, err := cond(pollCtx)
		if o.observe != nil {
			o.observe(Attempt{
				Number:    attempt,
				Elapsed:   time.Since(start),
				Satisfied: ok && err == nil,
				Err:       err,
			})
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && pollCtx.Err() != nil {
				return &TimeoutError{Timeout: timeout, Elapsed: time.Since(start), Attempts: attempt}
			}
			return err
		}
		if ok {
			return nil
		}

		timer.Reset(o.interval)
		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return &TimeoutError{Timeout: timeout, Elapsed: time.Since(start), Attempts: attempt}
		case <-timer.C:
		}
	}
}
