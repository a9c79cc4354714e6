package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cgast/agwait/pkg/page"
	"github.com/cgast/agwait/pkg/plan"
	"github.com/cgast/agwait/pkg/wait"
)

// handleRun implements `agwait run <plan.yaml> [--var key=value ...] [--fail-fast]`.
func handleRun(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, common := newFlagSet("run", stderr)
	vars := fs.StringToString("var", nil, "plan variables (key=value)")
	failFast := fs.Bool("fail-fast", false, "stop at the first failed step")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: agwait run <plan.yaml> [flags]")
		return exitFailure
	}

	p, err := plan.Load(fs.Arg(0), *vars)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	rt, err := openRuntime(common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer rt.Close()

	if rt.cfg.Fixture.Path == "" {
		fmt.Fprintln(stderr, "error: no page fixture: pass --fixture or set fixture.path")
		return exitFailure
	}
	src := page.NewFile(rt.cfg.Fixture.Path)

	fmt.Fprintf(stderr, "Plan: %s\n", p.Meta.Name)
	res, err := rt.planRunner(src.IsEnabled, src.Value, *failFast).Run(ctx, p)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	printPlanResult(stdout, res)
	return planExitCode(res)
}

// planExitCode follows the single-wait rule: a plan whose failed steps all
// timed out exits with exitTimeout.
func planExitCode(res plan.Result) int {
	if res.Passed {
		return exitOK
	}
	for _, sr := range res.Steps {
		if !sr.Passed && sr.Outcome != wait.OutcomeTimeout {
			return exitFailure
		}
	}
	return exitTimeout
}

func (rt *runtime) planRunner(enabled wait.Query[bool], value wait.Query[string], failFast bool) *plan.Runner {
	cfg := rt.waitConfig()
	return plan.NewRunner(
		[]wait.Waiter{wait.NewEnabled(enabled, cfg), wait.NewValue(value, cfg)},
		plan.WithFailFast(failFast),
		plan.WithBus(rt.bus),
		plan.WithTracker(rt.track),
		plan.WithLogger(rt.logger),
	)
}

func printPlanResult(w io.Writer, res plan.Result) {
	for i, sr := range res.Steps {
		status := "PASS"
		if !sr.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  [%d] %s %s %s (%dms)", i+1, status, sr.Step.Command, sr.Step.Selector, sr.Duration.Milliseconds())
		if sr.Message != "" {
			fmt.Fprintf(w, ": %s", sr.Message)
		}
		fmt.Fprintln(w)
	}
	if res.Passed {
		fmt.Fprintf(w, "plan passed in %dms\n", res.Duration.Milliseconds())
	} else {
		fmt.Fprintf(w, "plan failed in %dms\n", res.Duration.Milliseconds())
	}
}
