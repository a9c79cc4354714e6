package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cgast/agwait/internal/inspector"
	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/page"
	"github.com/cgast/agwait/pkg/plan"
	"github.com/cgast/agwait/pkg/protocol"
	"github.com/cgast/agwait/pkg/wait"
)

// handleAgent implements `agwait agent`: JSON-RPC over stdin/stdout against
// an in-memory page seeded from the fixture, if any.
func handleAgent(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, common := newFlagSet("agent", stderr)
	inspectAddr := fs.String("inspect", "", "serve the HTTP inspector on this address (overrides inspector.addr)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	rt, err := openRuntime(common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer rt.Close()

	pg := page.New(rt.bus)
	if rt.cfg.Fixture.Path != "" {
		if pg, err = page.Load(rt.cfg.Fixture.Path, rt.bus); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitFailure
		}
	}

	handler := protocol.NewHandler()
	registerAgentMethods(handler, rt, pg)

	if *inspectAddr != "" {
		rt.cfg.Inspector.Addr = *inspectAddr
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if addr := rt.cfg.Inspector.Addr; addr != "" {
		insp := inspector.New(rt.bus, rt.store, rt.logger)
		go func() {
			if err := insp.Serve(ctx, addr); err != nil {
				rt.logger.Error("inspector stopped", "error", err)
			}
		}()
	}

	rt.logger.Info("agent mode started", "methods", handler.Methods())
	if err := handler.Serve(ctx, stdin, stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// registerAgentMethods registers every JSON-RPC method served in agent mode.
func registerAgentMethods(h *protocol.Handler, rt *runtime, pg *page.Page) {
	cfg := rt.waitConfig()
	enabled := wait.NewEnabled(pg.IsEnabled, cfg)
	value := wait.NewValue(pg.Value, cfg)

	h.Register(protocol.MethodWaitEnabled, waitMethod(rt, enabled))
	h.Register(protocol.MethodWaitValue, waitMethod(rt, value))

	h.Register(protocol.MethodPageSet, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.PageSetParams](params)
		if perr != nil {
			return nil, perr
		}
		if p.Selector == "" {
			return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: "selector is required"}
		}
		if p.Remove {
			pg.Remove(p.Selector)
			return map[string]any{"selector": p.Selector, "removed": true}, nil
		}
		els := make([]page.Element, len(p.Elements))
		for i, def := range p.Elements {
			els[i] = page.Element{Enabled: def.Enabled == nil || *def.Enabled, Value: def.Value}
		}
		pg.Set(p.Selector, els...)
		return map[string]any{"selector": p.Selector, "elements": els}, nil
	})

	h.Register(protocol.MethodPageGet, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.PageGetParams](params)
		if perr != nil {
			return nil, perr
		}
		if p.Selector == "" {
			return map[string]any{"selectors": pg.Selectors()}, nil
		}
		els, err := pg.Elements(p.Selector)
		if err != nil {
			return nil, &protocol.Error{Code: protocol.CodeQueryFailed, Message: err.Error()}
		}
		return map[string]any{"selector": p.Selector, "elements": els}, nil
	})

	h.Register(protocol.MethodContextLastTarget, func(context.Context, json.RawMessage) (any, *protocol.Error) {
		target, err := rt.store.LastTarget()
		if err != nil {
			return nil, &protocol.Error{Code: protocol.CodeStoreFailure, Message: err.Error()}
		}
		return map[string]string{"target": target}, nil
	})

	h.Register(protocol.MethodHistory, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.HistoryParams](params)
		if perr != nil {
			return nil, perr
		}
		records, err := rt.store.History(p.Limit)
		if err != nil {
			return nil, &protocol.Error{Code: protocol.CodeStoreFailure, Message: err.Error()}
		}
		if records == nil {
			records = []wait.Record{}
		}
		return records, nil
	})

	h.Register(protocol.MethodPlanRun, func(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.PlanRunParams](params)
		if perr != nil {
			return nil, perr
		}
		if err := rt.sandbox.CheckFile(p.Path); err != nil {
			return nil, &protocol.Error{Code: protocol.CodePlanInvalid, Message: err.Error()}
		}
		pl, err := plan.Load(p.Path, p.Vars)
		if err != nil {
			return nil, &protocol.Error{Code: protocol.CodePlanInvalid, Message: err.Error()}
		}
		res, err := rt.planRunner(pg.IsEnabled, pg.Value, p.FailFast).Run(ctx, pl)
		if err != nil {
			var vr plan.ValidationResult
			if errors.As(err, &vr) {
				return nil, &protocol.Error{Code: protocol.CodePlanInvalid, Message: vr.Error()}
			}
			return nil, &protocol.Error{Code: protocol.CodeInternalError, Message: err.Error()}
		}
		return res, nil
	})

	rt.bus.Publish(events.NewEvent(events.EventContextChange, map[string]any{
		"mode":    "agent",
		"methods": h.Methods(),
	}))
}

// waitMethod adapts a wait command to a JSON-RPC handler.
func waitMethod(rt *runtime, w wait.Waiter) protocol.HandlerFunc {
	return func(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.WaitParams](params)
		if perr != nil {
			return nil, perr
		}

		opts := wait.Options{Reverse: p.Reverse}
		if p.TimeoutMS != nil {
			opts.Timeout = millis(*p.TimeoutMS)
		}
		if err := rt.track(p.Selector); err != nil {
			rt.logger.Warn("track target", "target", p.Selector, "error", err)
		}

		start := time.Now()
		if err := w.Wait(ctx, p.Selector, opts); err != nil {
			return nil, waitError(w.Name(), err)
		}
		return protocol.WaitResult{
			Command:   w.Name(),
			Selector:  p.Selector,
			Reverse:   p.Reverse,
			ElapsedMS: time.Since(start).Milliseconds(),
		}, nil
	}
}

func waitError(command string, err error) *protocol.Error {
	var timeoutErr *wait.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &protocol.Error{
			Code:    protocol.CodeWaitTimeout,
			Message: timeoutErr.Error(),
			Data: protocol.WaitErrorData{
				Command:   command,
				Selector:  timeoutErr.Target,
				Reverse:   timeoutErr.Reverse,
				TimeoutMS: timeoutErr.Timeout.Milliseconds(),
			},
		}
	}
	return &protocol.Error{Code: protocol.CodeQueryFailed, Message: err.Error()}
}
