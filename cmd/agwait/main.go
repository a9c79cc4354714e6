package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/cgast/agwait/internal/config"
	"github.com/cgast/agwait/internal/logging"
	"github.com/cgast/agwait/internal/sandbox"
	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/session"
	"github.com/cgast/agwait/pkg/wait"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitTimeout = 2
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(exitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1], os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	switch name {
	case "enabled", "value":
		return handleWait(ctx, name, args, stdout, stderr)
	case "run":
		return handleRun(ctx, args, stdout, stderr)
	case "agent":
		return handleAgent(ctx, args, stdin, stdout, stderr)
	case "history":
		return handleHistory(args, stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", name)
		usage(stderr)
		return exitFailure
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: agwait <command> [flags]

Commands:
  enabled <selector>   wait until the element is enabled (--reverse: disabled)
  value <selector>     wait until the element has a value (--reverse: is empty)
  run <plan.yaml>      run a wait plan
  agent                serve JSON-RPC requests on stdin/stdout
  history              show recorded waits

Exit status is 0 on success, 2 when a wait (or every failed plan step) timed
out, and 1 on any other failure.`)
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath  string
	fixturePath string
	storePath   string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", filepath.Join(".agwait", "config.yaml"), "config file")
	fs.StringVar(&c.fixturePath, "fixture", "", "page fixture file (overrides fixture.path)")
	fs.StringVar(&c.storePath, "store", "", "session database (overrides store.path)")
}

func newFlagSet(name string, stderr io.Writer) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	common := &commonFlags{}
	common.register(fs)
	return fs, common
}

// parseFlags returns false with the exit code to use when parsing stops the command.
func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, false
		}
		return exitFailure, false
	}
	return exitOK, true
}

// runtime holds the collaborators shared by the subcommands.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	bus     *events.MemoryBus
	store   *session.Store
	sandbox *sandbox.Sandbox
}

func openRuntime(flags *commonFlags, stderr io.Writer) (*runtime, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.fixturePath != "" {
		cfg.Fixture.Path = flags.fixturePath
	}
	if flags.storePath != "" {
		cfg.Store.Path = flags.storePath
	}
	return newRuntime(cfg, logging.New(cfg.LogLevel, stderr))
}

func newRuntime(cfg config.Config, logger *slog.Logger) (*runtime, error) {
	sb, err := sandbox.New(cfg.Sandbox)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	store, err := session.Open(cfg.Store.Path, session.WithMaxEntries(cfg.History.MaxEntries))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		bus:     events.NewBoundedBus(cfg.History.EventBuffer),
		store:   store,
		sandbox: sb,
	}, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// waitConfig wires the runtime into the wait commands.
func (rt *runtime) waitConfig() wait.Config {
	cfg := wait.Config{
		DefaultTimeout: rt.cfg.Wait.Timeout(),
		Interval:       rt.cfg.Wait.Interval(),
		LastTarget:     rt.lastTarget,
		Bus:            rt.bus,
		Logger:         rt.logger,
	}
	if rt.cfg.History.Persist {
		cfg.Recorder = rt.store
	}
	return cfg
}

// lastTarget is the wait.Config hook. It only names targets in messages, so a
// store failure is logged and reported as no target.
func (rt *runtime) lastTarget() string {
	target, err := rt.store.LastTarget()
	if err != nil {
		rt.logger.Warn("last target", "error", err)
	}
	return target
}

// track remembers target as the last addressed one. Empty targets are ignored.
func (rt *runtime) track(target string) error {
	if target == "" {
		return nil
	}
	return rt.store.SetLastTarget(target)
}

func exitCode(err error) int {
	var timeoutErr *wait.TimeoutError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &timeoutErr):
		return exitTimeout
	default:
		return exitFailure
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
