package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cgast/agwait/pkg/page"
	"github.com/cgast/agwait/pkg/wait"
)

// handleWait implements `agwait enabled|value <selector> [--timeout-ms N] [--reverse]`.
func handleWait(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
	fs, common := newFlagSet(name, stderr)
	timeoutMS := fs.Int("timeout-ms", 0, "time to wait in ms (default: wait.timeout_ms)")
	reverse := fs.Bool("reverse", false, "wait for the opposite state")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "usage: agwait %s <selector> [flags]\n", name)
		return exitFailure
	}
	selector := fs.Arg(0)

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
	var w wait.Waiter
	if name == "enabled" {
		w = wait.NewEnabled(src.IsEnabled, rt.waitConfig())
	} else {
		w = wait.NewValue(src.Value, rt.waitConfig())
	}

	if err := rt.track(selector); err != nil {
		rt.logger.Warn("track target", "target", selector, "error", err)
	}

	start := time.Now()
	err = w.Wait(ctx, selector, wait.Options{Timeout: millis(*timeoutMS), Reverse: *reverse})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}

	fmt.Fprintf(stdout, "ok: %s %s (%dms)\n", w.Name(), selector, time.Since(start).Milliseconds())
	return exitOK
}
