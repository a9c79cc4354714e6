package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/wait"
)

// fakeWaiter returns scripted errors and records the targets it was given.
type fakeWaiter struct {
	name    string
	errs    map[string]error
	targets []string
	opts    []wait.Options
}

func (f *fakeWaiter) Name() string { return f.name }

func (f *fakeWaiter) Wait(_ context.Context, target string, opts wait.Options) error {
	f.targets = append(f.targets, target)
	f.opts = append(f.opts, opts)
	return f.errs[target]
}

func testPlan(steps ...Step) Plan {
	return Plan{APIVersion: APIVersion, Kind: Kind, Meta: Meta{Name: "t"}, Steps: steps}
}

func TestRunnerAllPass(t *testing.T) {
	enabled := &fakeWaiter{name: wait.NameEnabled}
	value := &fakeWaiter{name: wait.NameValue}
	var tracked []string
	r := NewRunner([]wait.Waiter{enabled, value}, WithTracker(func(target string) error {
		tracked = append(tracked, target)
		return nil
	}))

	res, err := r.Run(context.Background(), testPlan(
		Step{Command: "enabled", Selector: "#a", TimeoutMS: 3000},
		Step{Command: "value", Reverse: true},
	))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, wait.OutcomeSatisfied, res.Steps[1].Outcome)

	assert.Equal(t, []string{"#a"}, enabled.targets)
	assert.Equal(t, 3*time.Second, enabled.opts[0].Timeout)
	assert.Equal(t, []string{"#a"}, value.targets, "selector carries over from the previous step")
	assert.True(t, value.opts[0].Reverse)
	assert.Equal(t, []string{"#a", "#a"}, tracked)
}

func TestRunnerReportsFailures(t *testing.T) {
	enabled := &fakeWaiter{name: wait.NameEnabled, errs: map[string]error{
		"#slow":   &wait.TimeoutError{Target: "#slow", Condition: "not enabled", Timeout: time.Second},
		"#broken": errors.New("no such element"),
	}}
	r := NewRunner([]wait.Waiter{enabled})

	res, err := r.Run(context.Background(), testPlan(
		Step{Command: "enabled", Selector: "#slow"},
		Step{Command: "enabled", Selector: "#broken"},
		Step{Command: "enabled", Selector: "#ok"},
	))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, wait.OutcomeTimeout, res.Steps[0].Outcome)
	assert.Equal(t, "element (#slow) still not enabled after 1000ms", res.Steps[0].Message)
	assert.Equal(t, wait.OutcomeError, res.Steps[1].Outcome)
	assert.True(t, res.Steps[2].Passed)
}

func TestRunnerFailFast(t *testing.T) {
	enabled := &fakeWaiter{name: wait.NameEnabled, errs: map[string]error{"#a": errors.New("boom")}}
	r := NewRunner([]wait.Waiter{enabled}, WithFailFast(true))

	res, err := r.Run(context.Background(), testPlan(
		Step{Command: "enabled", Selector: "#a"},
		Step{Command: "enabled", Selector: "#b"},
	))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Len(t, res.Steps, 1)
}

func TestRunnerMissingCommand(t *testing.T) {
	r := NewRunner([]wait.Waiter{&fakeWaiter{name: wait.NameEnabled}})

	res, err := r.Run(context.Background(), testPlan(Step{Command: "value", Selector: "#a"}))
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Steps[0].Message, "command not available")
}

func TestRunnerInvalidPlan(t *testing.T) {
	r := NewRunner(nil)
	_, err := r.Run(context.Background(), Plan{})

	var vr ValidationResult
	require.ErrorAs(t, err, &vr)
	assert.False(t, vr.Valid())
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enabled := &fakeWaiter{name: wait.NameEnabled, errs: map[string]error{"#a": context.Canceled}}

	_, err := NewRunner([]wait.Waiter{enabled}).Run(ctx, testPlan(Step{Command: "enabled", Selector: "#a"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerPublishesEvents(t *testing.T) {
	bus := events.NewMemoryBus()
	r := NewRunner([]wait.Waiter{&fakeWaiter{name: wait.NameEnabled}}, WithBus(bus))

	_, err := r.Run(context.Background(), testPlan(Step{Command: "enabled", Selector: "#a"}))
	require.NoError(t, err)

	history := bus.History(time.Time{})
	require.Len(t, history, 3)
	assert.Equal(t, events.EventPlanStart, history[0].Type)
	assert.Equal(t, events.EventPlanStep, history[1].Type)
	assert.Equal(t, events.EventPlanEnd, history[2].Type)
}
