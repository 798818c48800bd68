// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

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
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/bureau-foundation/ruleagents/lib/action"
	"github.com/bureau-foundation/ruleagents/lib/agent"
	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/command"
	"github.com/bureau-foundation/ruleagents/lib/config"
	"github.com/bureau-foundation/ruleagents/lib/engine"
	"github.com/bureau-foundation/ruleagents/lib/limiter"
	"github.com/bureau-foundation/ruleagents/lib/observe"
	"github.com/bureau-foundation/ruleagents/lib/process"
	"github.com/bureau-foundation/ruleagents/lib/queue"
	"github.com/bureau-foundation/ruleagents/lib/rules"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
	"github.com/bureau-foundation/ruleagents/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath string
	debug      bool
	logFormat  string
	check      bool
	version    bool
	help       bool
}

func parseFlags(args []string, output io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("ruleagents", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default $RULEAGENTS_CONFIG, then "+config.DefaultPath+")")
	flagSet.BoolVar(&opts.debug, "debug", false, "log at debug level")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "log format: text or json (default text on a terminal, json otherwise)")
	flagSet.BoolVar(&opts.check, "check", false, "load and validate the configuration, then exit")
	flagSet.BoolVar(&opts.version, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		return opts, flagSet, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, flagSet, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	switch opts.logFormat {
	case "", "text", "json":
	default:
		return opts, flagSet, fmt.Errorf("--log-format must be text or json, got %q", opts.logFormat)
	}
	return opts, flagSet, nil
}

// newLogger picks a text handler for terminals and JSON otherwise,
// unless format forces one.
func newLogger(output *os.File, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	if format == "" {
		format = "json"
		if term.IsTerminal(int(output.Fd())) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(output, handlerOptions))
	}
	return slog.New(slog.NewJSONHandler(output, handlerOptions))
}

func run() error {
	opts, flagSet, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage(err)
	}
	if opts.help {
		printHelp(flagSet)
		return nil
	}
	if opts.version {
		fmt.Fprintln(os.Stdout, "ruleagents", version.Full())
		return nil
	}

	logger := newLogger(os.Stderr, opts.logFormat, opts.debug)

	path := config.Path(opts.configPath)
	cfg, err := config.LoadFile(path)
	if err != nil {
		return process.Usage(err)
	}
	plan, err := cfg.Build()
	if err != nil {
		return process.Usage(fmt.Errorf("invalid configuration %s:\n%w", path, err))
	}
	if opts.check {
		logger.Info("configuration valid",
			"path", path,
			"agents", plan.PoolSize,
			"entries", len(plan.Entries),
			"rules", len(plan.Rules),
			"workflows", len(plan.Workflows),
		)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, plan, logger)
}

func serve(ctx context.Context, plan *config.Plan, logger *slog.Logger) error {
	spawner, cleanup, err := newSpawner(plan, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	clk := clock.Real()
	pool, err := agent.Spawn(ctx, spawner, agent.SpawnOptions{
		Size:    plan.PoolSize,
		Screen:  plan.Screen,
		Monitor: plan.Monitor,
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	queues := queue.NewManager(queue.Options{SeenLimit: plan.SeenLimit, Logger: logger})
	executor := &action.Executor{
		Queues:    queues,
		Runner:    &command.Runner{Logger: logger},
		Workflows: plan.Workflows,
		Lookup: func(index int) (action.Target, bool) {
			a, ok := pool.At(index)
			return a, ok
		},
		Clock:  clk,
		Logger: logger,
	}
	ruleSet, err := rules.NewSet(plan.Rules)
	if err != nil {
		return err
	}
	eng, err := engine.New(engine.Config{
		Pool:        pool,
		Rules:       ruleSet,
		Entries:     plan.Entries,
		Executor:    executor,
		Queues:      queues,
		Limiter:     limiter.New(),
		Placeholder: plan.Placeholder,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := eng.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if plan.WebUI.Enabled {
		server := observe.NewServer(pool, plan.Screen, logger)
		group.Go(func() error {
			return server.ListenAndServe(groupCtx, plan.WebUI.Address())
		})
	}

	err = group.Wait()
	logger.Info("shutting down")
	return err
}

func newSpawner(plan *config.Plan, logger *slog.Logger) (terminal.Spawner, func(), error) {
	switch plan.Backend {
	case "tmux":
		runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
		if runtimeDir == "" {
			runtimeDir = os.TempDir()
		}
		socketPath := filepath.Join(runtimeDir, fmt.Sprintf("ruleagents-%d.sock", os.Getpid()))
		server := terminal.NewTmuxServer(socketPath, "/dev/null")
		logger.Info("tmux sessions available", "attach", "tmux -S "+socketPath+" attach -t agent-0")
		cleanup := func() {
			if err := server.KillServer(context.Background()); err != nil {
				logger.Warn("stopping tmux server failed", "error", err)
			}
		}
		return &terminal.TmuxSpawner{Server: server, Command: []string{plan.Shell}}, cleanup, nil
	case "pty":
		return &terminal.PTYSpawner{Shell: plan.Shell, Logger: logger}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", plan.Backend)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ruleagents drives a pool of terminal sessions with pattern rules,
timers, and work queues.

Usage:
  ruleagents [flags]

Examples:
  # Run with ./ruleagents.yaml
  ruleagents

  # Validate a configuration without starting any sessions
  ruleagents --config agents.yaml --check

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
