// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/ruleagents/lib/action"
	"github.com/bureau-foundation/ruleagents/lib/agent"
	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/command"
	"github.com/bureau-foundation/ruleagents/lib/limiter"
	"github.com/bureau-foundation/ruleagents/lib/monitor"
	"github.com/bureau-foundation/ruleagents/lib/queue"
	"github.com/bureau-foundation/ruleagents/lib/rules"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// DefaultPlaceholder is replaced by the queue item in queue-triggered
// entries.
const DefaultPlaceholder = "${1}"

// Config wires an Engine. Pool, Executor, and Queues are required.
type Config struct {
	Pool     *agent.Pool
	Rules    *rules.Set
	Entries  []Entry
	Executor *action.Executor
	Queues   *queue.Manager

	// Limiter defaults to a fresh limiter.New().
	Limiter *limiter.Limiter

	// Placeholder defaults to DefaultPlaceholder.
	Placeholder string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Engine drives rules and entries over a pool.
type Engine struct {
	pool        *agent.Pool
	rules       *rules.Set
	entries     []Entry
	executor    *action.Executor
	queues      *queue.Manager
	limiter     *limiter.Limiter
	placeholder string
	clock       clock.Clock
	logger      *slog.Logger

	inflight sync.WaitGroup
}

// New validates the entries against the executor's workflows and sizes
// the limiter. All configuration errors surface here, before Run.
func New(config Config) (*Engine, error) {
	if config.Pool == nil || config.Executor == nil || config.Queues == nil {
		return nil, errors.New("engine needs a pool, an executor, and a queue manager")
	}
	if config.Rules == nil {
		config.Rules, _ = rules.NewSet(nil)
	}
	if config.Limiter == nil {
		config.Limiter = limiter.New()
	}
	if config.Placeholder == "" {
		config.Placeholder = DefaultPlaceholder
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	names := make(map[string]bool, len(config.Entries))
	for _, entry := range config.Entries {
		if err := entry.Validate(); err != nil {
			return nil, err
		}
		if names[entry.Name] {
			return nil, fmt.Errorf("duplicate entry name %q", entry.Name)
		}
		names[entry.Name] = true
		if err := checkWorkflow(config.Executor, entry.Action); err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry.Name, err)
		}
		concurrency := entry.Concurrency
		if concurrency == 0 {
			concurrency = limiter.DefaultCapacity
		}
		if err := config.Limiter.Set(entry.Name, concurrency); err != nil {
			return nil, err
		}
	}
	for _, rule := range config.Rules.QuietRules() {
		if err := checkWorkflow(config.Executor, rule.Action); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Name, err)
		}
	}

	return &Engine{
		pool:        config.Pool,
		rules:       config.Rules,
		entries:     config.Entries,
		executor:    config.Executor,
		queues:      config.Queues,
		limiter:     config.Limiter,
		placeholder: config.Placeholder,
		clock:       config.Clock,
		logger:      config.Logger,
	}, nil
}

func checkWorkflow(executor *action.Executor, act action.Action) error {
	if act.Kind != action.RunWorkflow {
		return nil
	}
	if _, ok := executor.Workflows[act.Workflow]; !ok {
		return fmt.Errorf("%w %q", action.ErrUnknownWorkflow, act.Workflow)
	}
	return nil
}

// Pool returns the agent pool.
func (e *Engine) Pool() *agent.Pool { return e.pool }

// Run starts every agent monitor and entry trigger and blocks until ctx
// is done. In-flight actions see the cancellation and Run waits for
// them to return.
func (e *Engine) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, a := range e.pool.Agents() {
		a := a
		group.Go(func() error {
			err := a.Run(groupCtx, e.agentHandler(a))
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s monitor: %w", a.ID(), err)
			}
			return nil
		})
	}

	// Listeners first, so items produced by startup entries have a
	// consumer registered before they are enqueued.
	for _, entry := range e.entries {
		if entry.Trigger.Kind != OnEnqueue {
			continue
		}
		entry := entry
		stop := e.queues.Listen(groupCtx, entry.Trigger.Queue, func(ctx context.Context, item string) {
			e.dispatch(ctx, entry, action.Vars{e.placeholder: item})
		})
		group.Go(func() error {
			<-groupCtx.Done()
			stop()
			return nil
		})
	}

	for _, entry := range e.entries {
		entry := entry
		switch entry.Trigger.Kind {
		case OnStart:
			group.Go(func() error {
				e.dispatch(groupCtx, entry, nil)
				return nil
			})
		case Periodic:
			group.Go(func() error {
				e.runPeriodic(groupCtx, entry)
				return nil
			})
		}
	}

	e.logger.Info("engine running",
		"agents", e.pool.Len(),
		"rules", e.rules.Len(),
		"quiet_rules", len(e.rules.QuietRules()),
		"entries", len(e.entries),
	)

	err := group.Wait()
	e.inflight.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// runPeriodic fires once immediately and once per elapsed interval.
// Firings are counted from the clock rather than from ticks, so ticks
// merged while dispatch waits on the limiter are still run, in a burst
// once permits free up.
func (e *Engine) runPeriodic(ctx context.Context, entry Entry) {
	interval := entry.Trigger.Interval
	start := e.clock.Now()
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()
	e.dispatch(ctx, entry, nil)

	var fired int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		due := int64(e.clock.Now().Sub(start) / interval)
		for fired < due {
			if ctx.Err() != nil {
				return
			}
			fired++
			e.dispatch(ctx, entry, nil)
		}
	}
}

// dispatch waits for a permit, picks the next agent, and starts the
// action. It returns once the action has started, not finished.
func (e *Engine) dispatch(ctx context.Context, entry Entry, vars action.Vars) {
	release, err := e.limiter.Acquire(ctx, entry.Name)
	if err != nil {
		return
	}
	target := e.pool.Next()
	logger := e.logger.With("entry", entry.Name, "agent", target.ID())
	logger.Debug("entry fired", "trigger", entry.Trigger.String(), "action", entry.Action.Kind)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer release()
		outcome, err := e.executor.Execute(ctx, target, entry.Action, vars)
		if err != nil {
			e.report(logger, err)
			return
		}
		logger.Debug("entry finished", "keys", outcome.KeysSent, "enqueued", outcome.Enqueued, "duplicates", outcome.Duplicates)
	}()
}

// agentHandler evaluates rules for one agent. It runs on the agent's
// event goroutine, so rule actions for one agent run one at a time in
// output order.
func (e *Engine) agentHandler(a *agent.Agent) func(context.Context, monitor.Event) {
	quiet := e.rules.NewQuietTracker(e.clock.Now())
	logger := e.logger.With("agent", a.ID())
	return func(ctx context.Context, event monitor.Event) {
		switch event.Kind {
		case monitor.EventOutput:
			quiet.Output(event.At)
			match, ok := e.rules.Match(event.Chunk)
			if !ok {
				return
			}
			logger.Info("rule matched", "rule", match.Rule.Name, "action", match.Rule.Action.Kind)
			e.runRule(ctx, logger, a, match.Rule, match.Vars())
		case monitor.EventSnapshot:
			for _, rule := range quiet.Due(event.At) {
				logger.Info("quiet rule fired", "rule", rule.Name, "quiet", rule.Quiet)
				e.runRule(ctx, logger, a, rule, nil)
			}
		case monitor.EventTransition:
			logger.Info("agent state changed", "from", event.Transition.From, "to", event.Transition.To)
		case monitor.EventStuck:
			logger.Warn("agent waiting without output", "quiet", event.Quiet)
		}
	}
}

func (e *Engine) runRule(ctx context.Context, logger *slog.Logger, a *agent.Agent, rule *rules.Rule, vars action.Vars) {
	if _, err := e.executor.Execute(ctx, a, rule.Action, vars); err != nil {
		e.report(logger.With("rule", rule.Name), err)
	}
}

// report logs an action failure at a level matching its kind.
func (e *Engine) report(logger *slog.Logger, err error) {
	var executionErr *command.ExecutionError
	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("action cancelled")
	case errors.Is(err, terminal.ErrBackendUnavailable):
		logger.Warn("session unavailable, action skipped", "error", err)
	case errors.As(err, &executionErr):
		logger.Warn("source command failed, nothing enqueued",
			"command", executionErr.Command, "exit_code", executionErr.ExitCode, "error", err)
	default:
		logger.Error("action failed", "error", err)
	}
}
