// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/command"
)

// DefaultKeyDelay separates consecutive keys of one SendKeys action.
const DefaultKeyDelay = 100 * time.Millisecond

// Target is the agent an action runs against.
type Target interface {
	ID() string
	SendKeys(ctx context.Context, data []byte) error
}

// Queues is the subset of the queue manager actions push to.
type Queues interface {
	Enqueue(name, item string)
	EnqueueDedupe(name, item string) bool
}

// Runner executes enqueue source commands.
type Runner interface {
	Run(ctx context.Context, commandLine string) (command.Result, error)
}

// ErrUnknownWorkflow is returned for a RunWorkflow naming a workflow
// the executor does not have.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// ErrUnknownAgent is returned when a workflow step's agent override
// is outside the pool.
var ErrUnknownAgent = errors.New("unknown agent")

// Executor performs actions.
type Executor struct {
	Queues    Queues
	Runner    Runner
	Workflows map[string]Workflow

	// Lookup resolves a workflow step's agent override. Nil rejects
	// every override.
	Lookup func(index int) (Target, bool)

	// KeyDelay separates keys; zero means DefaultKeyDelay, negative
	// means no delay.
	KeyDelay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Outcome summarises one Execute call for logging and tests.
type Outcome struct {
	KeysSent   int
	Enqueued   int
	Duplicates int
	Steps      int
}

// Execute performs act against target, substituting vars into keys and
// commands.
func (e *Executor) Execute(ctx context.Context, target Target, act Action, vars Vars) (Outcome, error) {
	var outcome Outcome
	err := e.execute(ctx, target, act, vars, &outcome)
	return outcome, err
}

func (e *Executor) execute(ctx context.Context, target Target, act Action, vars Vars, outcome *Outcome) error {
	switch act.Kind {
	case SendKeys:
		return e.sendKeys(ctx, target, act.Keys, vars, outcome)
	case RunWorkflow:
		return e.runWorkflow(ctx, target, act.Workflow, vars, outcome)
	case Enqueue, EnqueueDedupe:
		return e.enqueue(ctx, act, vars, outcome)
	case Pause:
		return e.sleep(ctx, act.Duration)
	default:
		return fmt.Errorf("unknown action kind %d", int(act.Kind))
	}
}

func (e *Executor) sendKeys(ctx context.Context, target Target, keys []string, vars Vars, outcome *Outcome) error {
	delay := e.KeyDelay
	if delay == 0 {
		delay = DefaultKeyDelay
	}
	for index, key := range keys {
		if index > 0 && delay > 0 {
			if err := e.sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := target.SendKeys(ctx, []byte(vars.Apply(key))); err != nil {
			return fmt.Errorf("sending key %d: %w", index, err)
		}
		outcome.KeysSent++
	}
	return nil
}

// runWorkflow is the step interpreter: each step runs to completion
// before the next starts, and the first failure stops the workflow.
func (e *Executor) runWorkflow(ctx context.Context, target Target, name string, vars Vars, outcome *Outcome) error {
	workflow, ok := e.Workflows[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownWorkflow, name)
	}
	for index, step := range workflow.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepTarget := target
		if step.Agent != nil {
			var found bool
			if e.Lookup != nil {
				stepTarget, found = e.Lookup(*step.Agent)
			}
			if !found {
				return fmt.Errorf("workflow %q step %d: %w %d", name, index, ErrUnknownAgent, *step.Agent)
			}
		}
		if step.Kind == RunWorkflow {
			return fmt.Errorf("workflow %q step %d: nested workflow %q", name, index, step.Workflow)
		}
		e.logger().Debug("workflow step", "workflow", name, "step", index, "action", step.Kind, "agent", stepTarget.ID())
		if err := e.execute(ctx, stepTarget, step, vars, outcome); err != nil {
			return fmt.Errorf("workflow %q step %d (%s): %w", name, index, step.Kind, err)
		}
		outcome.Steps++
	}
	return nil
}

func (e *Executor) enqueue(ctx context.Context, act Action, vars Vars, outcome *Outcome) error {
	if e.Runner == nil || e.Queues == nil {
		return fmt.Errorf("%s: executor has no runner or queues", act.Kind)
	}
	commandLine := vars.Apply(act.Command)
	result, err := e.Runner.Run(ctx, commandLine)
	if err != nil {
		return err
	}
	for _, line := range result.Lines {
		item := strings.TrimSpace(line)
		if item == "" {
			continue
		}
		if act.Kind == EnqueueDedupe {
			if !e.Queues.EnqueueDedupe(act.Queue, item) {
				outcome.Duplicates++
				continue
			}
		} else {
			e.Queues.Enqueue(act.Queue, item)
		}
		outcome.Enqueued++
	}
	e.logger().Debug("enqueued command output", "queue", act.Queue, "items", outcome.Enqueued, "duplicates", outcome.Duplicates)
	return nil
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	clk := e.Clock
	if clk == nil {
		clk = clock.Real()
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
