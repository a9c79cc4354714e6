// Package wait implements element-state wait commands on top of the poll
// package: a state query is polled until its aggregated result holds, and a
// poll timeout becomes a *TimeoutError describing the element.
package wait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/poll"
)

// DefaultTimeout applies when neither Options nor Config set a timeout.
const DefaultTimeout = 500 * time.Millisecond

// Query reads the current state of the elements addressed by target.
type Query[T any] func(ctx context.Context, target string) (State[T], error)

// Outcome classifies how a wait ended.
type Outcome string

const (
	OutcomeSatisfied Outcome = "satisfied"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeError     Outcome = "error"
)

// Record summarizes one finished wait invocation.
type Record struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Target    string        `json:"target"`
	Reverse   bool          `json:"reverse"`
	Timeout   time.Duration `json:"timeout"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Recorder persists wait records.
type Recorder interface {
	Record(rec Record) error
}

// Config carries the collaborators shared by every invocation of a command.
type Config struct {
	// DefaultTimeout is used when Options.Timeout is not positive.
	DefaultTimeout time.Duration
	// Interval is the pause between state queries; zero means poll.DefaultInterval.
	Interval time.Duration
	// LastTarget names the most recently addressed target. It is consulted
	// only to describe an empty target in a timeout message.
	LastTarget func() string

	Bus      events.EventBus
	Logger   *slog.Logger
	Recorder Recorder
}

// Options are the per-invocation parameters. The zero value waits for the
// positive condition with the configured default timeout.
type Options struct {
	Timeout time.Duration
	Reverse bool
}

// Waiter is the type-erased form of a Command, used where commands of
// different state types are dispatched by name.
type Waiter interface {
	Name() string
	Wait(ctx context.Context, target string, opts Options) error
}

var (
	_ Waiter = (*Command[bool])(nil)
	_ Waiter = (*Command[string])(nil)
)

// Command waits for one kind of element state.
type Command[T any] struct {
	name     string
	query    Query[T]
	positive func(T) bool
	describe func(reverse bool) string
	cfg      Config
}

// Name returns the command name, e.g. "waitForEnabled".
func (c *Command[T]) Name() string {
	return c.name
}

// Wait polls the state query for target until the aggregated state holds.
//
// The query always receives target as given. A poll timeout is returned as
// *TimeoutError; any other failure, including one from the query, is returned
// unchanged.
func (c *Command[T]) Wait(ctx context.Context, target string, opts Options) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	id := uuid.NewString()
	logger := c.logger().With("command", c.name, "wait_id", id, "target", target, "reverse", opts.Reverse)
	c.publish(events.WaitEvent(events.EventWaitStart, id, map[string]any{
		"command":    c.name,
		"target":     target,
		"reverse":    opts.Reverse,
		"timeout_ms": timeout.Milliseconds(),
	}))
	logger.Debug("wait started", "timeout", timeout)

	start := time.Now()
	attempts := 0
	err := poll.Until(ctx, func(ctx context.Context) (bool, error) {
		state, err := c.query(ctx, target)
		if err != nil {
			return false, err
		}
		return Aggregate(state, c.positive, opts.Reverse), nil
	}, timeout,
		poll.WithInterval(c.cfg.Interval),
		poll.WithObserver(func(a poll.Attempt) {
			attempts = a.Number
			ev := events.WaitEvent(events.EventWaitPoll, id, a.Satisfied)
			ev.Attempt = a.Number
			ev.Duration = a.Elapsed
			c.publish(ev)
		}),
	)

	rec := Record{
		ID:        id,
		Command:   c.name,
		Target:    c.displayTarget(target),
		Reverse:   opts.Reverse,
		Timeout:   timeout,
		Attempts:  attempts,
		StartedAt: start,
		Duration:  time.Since(start),
	}

	var pollTimeout *poll.TimeoutError
	switch {
	case err == nil:
		rec.Outcome = OutcomeSatisfied
		logger.Debug("wait satisfied", "attempts", attempts, "duration", rec.Duration)
		c.publish(events.WaitEvent(events.EventWaitSatisfied, id, rec))
	case errors.As(err, &pollTimeout):
		err = &TimeoutError{
			Command:   c.name,
			Target:    rec.Target,
			Reverse:   opts.Reverse,
			Timeout:   timeout,
			Condition: c.describe(opts.Reverse),
			cause:     pollTimeout,
		}
		rec.Outcome = OutcomeTimeout
		rec.Error = err.Error()
		logger.Info("wait timed out", "attempts", attempts)
		c.publish(events.WaitEvent(events.EventWaitTimeout, id, rec))
	default:
		rec.Outcome = OutcomeError
		rec.Error = err.Error()
		logger.Warn("wait failed", "error", err)
		c.publish(events.WaitEvent(events.EventWaitError, id, rec))
	}

	if c.cfg.Recorder != nil {
		if recErr := c.cfg.Recorder.Record(rec); recErr != nil {
			logger.Warn("record wait", "error", recErr)
		}
	}
	return err
}

func (c *Command[T]) displayTarget(target string) string {
	if target == "" && c.cfg.LastTarget != nil {
		return c.cfg.LastTarget()
	}
	return target
}

func (c *Command[T]) publish(ev events.Event) {
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(ev)
	}
}

func (c *Command[T]) logger() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.New(slog.DiscardHandler)
}
