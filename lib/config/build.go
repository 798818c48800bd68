// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/bureau-foundation/ruleagents/lib/action"
	"github.com/bureau-foundation/ruleagents/lib/engine"
	"github.com/bureau-foundation/ruleagents/lib/monitor"
	"github.com/bureau-foundation/ruleagents/lib/rules"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// PatternCompileError reports a regular expression that does not
// compile. Field locates it, e.g. "rules[2].when".
type PatternCompileError struct {
	Field   string
	Pattern string
	Err     error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("%s: invalid pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }

// Plan is a validated configuration in the engine's types.
type Plan struct {
	PoolSize int
	Screen   terminal.Size
	Backend  string
	Shell    string

	Monitor     monitor.Config
	Entries     []engine.Entry
	Rules       []rules.Rule
	Workflows   map[string]action.Workflow
	SeenLimit   int
	Placeholder string
	WebUI       WebUIConfig
}

// Build validates c and converts it to a Plan. All problems found are
// joined into one error.
func (c *Config) Build() (*Plan, error) {
	var errs []error
	fail := func(err error) { errs = append(errs, err) }

	plan := &Plan{
		PoolSize:    c.Agents.Pool,
		Screen:      terminal.Size{Cols: c.Agents.Cols, Rows: c.Agents.Rows},
		Backend:     c.Agents.Backend,
		Shell:       c.Agents.Shell,
		SeenLimit:   c.Queue.SeenLimit,
		Placeholder: c.Queue.Placeholder,
		WebUI:       c.WebUI,
		Workflows:   make(map[string]action.Workflow, len(c.Workflows)),
	}
	if plan.Shell == "" {
		plan.Shell = os.Getenv("SHELL")
	}
	if plan.Shell == "" {
		plan.Shell = "/bin/sh"
	}

	if c.Agents.Pool < 1 {
		fail(fmt.Errorf("agents.pool must be at least 1, got %d", c.Agents.Pool))
	}
	if err := plan.Screen.Validate(); err != nil {
		fail(fmt.Errorf("agents: %w", err))
	}
	switch c.Agents.Backend {
	case "pty", "tmux":
	default:
		fail(fmt.Errorf("agents.backend must be pty or tmux, got %q", c.Agents.Backend))
	}
	if c.Queue.SeenLimit < 0 {
		fail(fmt.Errorf("queue.seen_limit must not be negative"))
	}
	if c.Queue.Placeholder == "" {
		fail(fmt.Errorf("queue.placeholder must not be empty"))
	}
	if c.WebUI.Enabled && (c.WebUI.BasePort < 1 || c.WebUI.BasePort > 65535) {
		fail(fmt.Errorf("web_ui.base_port %d out of range", c.WebUI.BasePort))
	}

	monitorConfig, err := c.Monitor.build()
	if err != nil {
		fail(err)
	}
	plan.Monitor = monitorConfig

	for index, workflowConfig := range c.Workflows {
		field := fmt.Sprintf("workflows[%d]", index)
		workflow, err := workflowConfig.build(field)
		if err != nil {
			fail(err)
			continue
		}
		if _, duplicate := plan.Workflows[workflow.Name]; duplicate {
			fail(fmt.Errorf("%s: duplicate workflow name %q", field, workflow.Name))
			continue
		}
		plan.Workflows[workflow.Name] = workflow
	}

	for name, workflow := range plan.Workflows {
		for step, act := range workflow.Steps {
			if act.Agent != nil && (*act.Agent < 0 || *act.Agent >= c.Agents.Pool) {
				fail(fmt.Errorf("workflow %q step %d: agent %d outside pool of %d", name, step, *act.Agent, c.Agents.Pool))
			}
		}
	}

	names := make(map[string]bool, len(c.Entries))
	for index, entryConfig := range c.Entries {
		field := fmt.Sprintf("entries[%d]", index)
		entries, err := entryConfig.build(field)
		if err != nil {
			fail(err)
			continue
		}
		for _, entry := range entries {
			if names[entry.Name] {
				fail(fmt.Errorf("%s: duplicate entry name %q", field, entry.Name))
				continue
			}
			names[entry.Name] = true
			if err := plan.checkWorkflow(field, entry.Action); err != nil {
				fail(err)
				continue
			}
			plan.Entries = append(plan.Entries, entry)
		}
	}

	for index, ruleConfig := range c.Rules {
		field := fmt.Sprintf("rules[%d]", index)
		rule, err := ruleConfig.build(field, index)
		if err != nil {
			fail(err)
			continue
		}
		if err := plan.checkWorkflow(field, rule.Action); err != nil {
			fail(err)
			continue
		}
		plan.Rules = append(plan.Rules, rule)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return plan, nil
}

func (p *Plan) checkWorkflow(field string, act action.Action) error {
	if act.Kind != action.RunWorkflow {
		return nil
	}
	if _, ok := p.Workflows[act.Workflow]; !ok {
		return fmt.Errorf("%s: %w %q", field, action.ErrUnknownWorkflow, act.Workflow)
	}
	return nil
}

func (m MonitorConfig) build() (monitor.Config, error) {
	config := monitor.Config{
		Interval:     m.Interval.Std(),
		WaitTimeout:  m.WaitTimeout.Std(),
		StuckTimeout: m.StuckTimeout.Std(),
		HistorySize:  m.HistorySize,
	}
	if config.Interval <= 0 || config.WaitTimeout <= 0 || config.StuckTimeout <= 0 {
		return config, fmt.Errorf("monitor: interval, wait_timeout, and stuck_timeout must be positive")
	}
	if m.HistorySize < 1 {
		return config, fmt.Errorf("monitor.history_size must be at least 1, got %d", m.HistorySize)
	}
	for index, source := range m.PromptPatterns {
		pattern, err := regexp.Compile(source)
		if err != nil {
			return config, &PatternCompileError{
				Field:   fmt.Sprintf("monitor.prompt_patterns[%d]", index),
				Pattern: source,
				Err:     err,
			}
		}
		config.PromptPatterns = append(config.PromptPatterns, pattern)
	}
	return config, nil
}

func (a ActionConfig) build(field string) (action.Action, error) {
	if a.Action == "" {
		return action.Action{}, fmt.Errorf("%s: action required", field)
	}
	kind, err := action.ParseKind(a.Action)
	if err != nil {
		return action.Action{}, fmt.Errorf("%s: %w", field, err)
	}
	if kind == action.Pause {
		return action.Action{}, fmt.Errorf("%s: use a wait step for pauses", field)
	}
	act := action.Action{
		Kind:     kind,
		Workflow: a.Workflow,
		Queue:    a.Queue,
		Command:  a.Command,
	}
	for _, key := range a.Keys {
		act.Keys = append(act.Keys, action.NormalizeKey(key))
	}
	if err := act.Validate(); err != nil {
		return action.Action{}, fmt.Errorf("%s: %w", field, err)
	}
	return act, nil
}

// build returns the engine entries for e: one, or two for a source
// entry.
func (e EntryConfig) build(field string) ([]engine.Entry, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%s: name required", field)
	}
	field = fmt.Sprintf("%s (%s)", field, e.Name)
	trigger, err := ParseTrigger(e.Trigger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	act, err := e.ActionConfig.build(field)
	if err != nil {
		return nil, err
	}

	var entries []engine.Entry
	switch {
	case e.Source == "" && e.Dedupe:
		return nil, fmt.Errorf("%s: dedupe needs a source command", field)
	case e.Source == "":
		entries = []engine.Entry{{
			Name:        e.Name,
			Trigger:     trigger,
			Action:      act,
			Concurrency: e.Concurrency,
		}}
	case act.Kind == action.Enqueue || act.Kind == action.EnqueueDedupe:
		return nil, fmt.Errorf("%s: source cannot feed a %s action", field, act.Kind)
	default:
		produce := action.Action{Kind: action.Enqueue, Queue: SourceQueue(e.Name), Command: e.Source}
		if e.Dedupe {
			produce.Kind = action.EnqueueDedupe
		}
		entries = []engine.Entry{
			{Name: e.Name, Trigger: trigger, Action: produce, Concurrency: e.Concurrency},
			{
				Name:        SourceItemsEntry(e.Name),
				Trigger:     engine.Trigger{Kind: engine.OnEnqueue, Queue: produce.Queue},
				Action:      act,
				Concurrency: e.Concurrency,
			},
		}
	}
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
	}
	return entries, nil
}

// ParseTrigger parses "startup", "timer:<duration>", or "queue:<name>".
func ParseTrigger(text string) (engine.Trigger, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "startup":
		return engine.Trigger{Kind: engine.OnStart}, nil
	case strings.HasPrefix(text, "timer:"):
		interval, err := ParseDuration(strings.TrimPrefix(text, "timer:"))
		if err != nil {
			return engine.Trigger{}, fmt.Errorf("trigger %q: %w", text, err)
		}
		if interval == 0 {
			return engine.Trigger{}, fmt.Errorf("trigger %q: interval must be positive", text)
		}
		return engine.Trigger{Kind: engine.Periodic, Interval: interval}, nil
	case strings.HasPrefix(text, "queue:"):
		name := strings.TrimSpace(strings.TrimPrefix(text, "queue:"))
		if name == "" {
			return engine.Trigger{}, fmt.Errorf("trigger %q: queue name required", text)
		}
		return engine.Trigger{Kind: engine.OnEnqueue, Queue: name}, nil
	case text == "":
		return engine.Trigger{}, fmt.Errorf("trigger required")
	default:
		return engine.Trigger{}, fmt.Errorf("unknown trigger %q", text)
	}
}

func (r RuleConfig) build(field string, index int) (rules.Rule, error) {
	rule := rules.Rule{Name: r.Name, Quiet: r.DiffTimeout.Std()}
	if rule.Name == "" {
		rule.Name = fmt.Sprintf("rule-%d", index)
	}
	switch {
	case r.When != "" && r.DiffTimeout > 0:
		return rules.Rule{}, fmt.Errorf("%s: when and diff_timeout are exclusive", field)
	case r.When == "" && r.DiffTimeout == 0:
		return rules.Rule{}, fmt.Errorf("%s: needs when or diff_timeout", field)
	case r.When != "":
		pattern, err := regexp.Compile(r.When)
		if err != nil {
			return rules.Rule{}, &PatternCompileError{Field: field + ".when", Pattern: r.When, Err: err}
		}
		rule.Pattern = pattern
	}
	act, err := r.ActionConfig.build(field)
	if err != nil {
		return rules.Rule{}, err
	}
	rule.Action = act
	return rule, nil
}

func (w WorkflowConfig) build(field string) (action.Workflow, error) {
	if w.Name == "" {
		return action.Workflow{}, fmt.Errorf("%s: name required", field)
	}
	workflow := action.Workflow{Name: w.Name}
	for index, step := range w.Steps {
		stepField := fmt.Sprintf("%s (%s) steps[%d]", field, w.Name, index)
		var act action.Action
		switch {
		case step.Action == "" && step.Wait > 0:
			act = action.Action{Kind: action.Pause, Duration: step.Wait.Std()}
		case step.Action != "" && step.Wait > 0:
			return action.Workflow{}, fmt.Errorf("%s: wait must be its own step", stepField)
		default:
			built, err := step.ActionConfig.build(stepField)
			if err != nil {
				return action.Workflow{}, err
			}
			act = built
		}
		act.Agent = step.Agent
		workflow.Steps = append(workflow.Steps, act)
	}
	if err := workflow.Validate(); err != nil {
		return action.Workflow{}, fmt.Errorf("%s: %w", field, err)
	}
	return workflow, nil
}
