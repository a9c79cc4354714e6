package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/wait"
)

// Option configures the Runner.
type Option func(*Runner)

// WithFailFast stops the plan on the first failed step.
func WithFailFast(ff bool) Option {
	return func(r *Runner) {
		r.failFast = ff
	}
}

// WithBus publishes plan.start, plan.step and plan.end events.
func WithBus(bus events.EventBus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithTracker is called with each step's selector before the step runs.
func WithTracker(track func(target string) error) Option {
	return func(r *Runner) {
		r.track = track
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner executes plans against a fixed set of wait commands.
type Runner struct {
	waiters  map[string]wait.Waiter
	failFast bool
	bus      events.EventBus
	track    func(string) error
	logger   *slog.Logger
}

// NewRunner creates a runner dispatching to waiters by name.
func NewRunner(waiters []wait.Waiter, opts ...Option) *Runner {
	r := &Runner{
		waiters: make(map[string]wait.Waiter, len(waiters)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, w := range waiters {
		r.waiters[w.Name()] = w
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates p and executes its steps in order. A step without a selector
// reuses the previous step's selector. Step failures are reported in the
// Result; the returned error is for invalid plans and cancellation.
func (r *Runner) Run(ctx context.Context, p Plan) (Result, error) {
	if vr := Validate(p); !vr.Valid() {
		return Result{}, vr
	}

	result := Result{
		Passed:    true,
		StartedAt: time.Now(),
		Steps:     make([]StepResult, 0, len(p.Steps)),
	}
	r.publish(events.NewEvent(events.EventPlanStart, p.Meta.Name))

	selector := ""
	for i, step := range p.Steps {
		if step.Selector != "" {
			selector = step.Selector
		}
		step.Selector = selector

		sr, err := r.runStep(ctx, step)
		if err != nil {
			result.Duration = time.Since(result.StartedAt)
			return result, err
		}
		result.Steps = append(result.Steps, sr)

		ev := events.NewEvent(events.EventPlanStep, sr)
		ev.Attempt = i + 1
		r.publish(ev)

		if !sr.Passed {
			result.Passed = false
			if r.failFast {
				break
			}
		}
	}

	result.Duration = time.Since(result.StartedAt)
	r.publish(events.NewEvent(events.EventPlanEnd, map[string]any{
		"plan":   p.Meta.Name,
		"passed": result.Passed,
	}))
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, step Step) (StepResult, error) {
	sr := StepResult{Step: step}

	name, _ := CommandName(step.Command)
	w, ok := r.waiters[name]
	if !ok {
		sr.Outcome = wait.OutcomeError
		sr.Message = fmt.Sprintf("command not available: %s", name)
		return sr, nil
	}

	if r.track != nil {
		if err := r.track(step.Selector); err != nil {
			r.logger.Warn("track target", "target", step.Selector, "error", err)
		}
	}

	start := time.Now()
	err := w.Wait(ctx, step.Selector, step.Options())
	sr.Duration = time.Since(start)

	var timeoutErr *wait.TimeoutError
	switch {
	case err == nil:
		sr.Passed = true
		sr.Outcome = wait.OutcomeSatisfied
	case errors.As(err, &timeoutErr):
		sr.Outcome = wait.OutcomeTimeout
		sr.Message = err.Error()
	case ctx.Err() != nil:
		return sr, ctx.Err()
	default:
		sr.Outcome = wait.OutcomeError
		sr.Message = err.Error()
	}
	return sr, nil
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
