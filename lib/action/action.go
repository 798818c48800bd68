// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind discriminates Action.
type Kind int

const (
	// SendKeys writes Keys to the target agent, one key at a time.
	SendKeys Kind = iota + 1
	// RunWorkflow executes the workflow named by Workflow.
	RunWorkflow
	// Enqueue runs Command and pushes each non-empty stdout line onto
	// Queue.
	Enqueue
	// EnqueueDedupe is Enqueue that drops lines Queue has seen before.
	EnqueueDedupe
	// Pause sleeps for Duration. Only valid as a workflow step.
	Pause
)

var kindNames = map[Kind]string{
	SendKeys:      "send_keys",
	RunWorkflow:   "workflow",
	Enqueue:       "enqueue",
	EnqueueDedupe: "enqueue_dedupe",
	Pause:         "wait",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// Action is one effect. Fields beyond Kind are read according to Kind.
type Action struct {
	Kind Kind

	Keys     []string      // SendKeys
	Workflow string        // RunWorkflow
	Queue    string        // Enqueue, EnqueueDedupe
	Command  string        // Enqueue, EnqueueDedupe
	Duration time.Duration // Pause

	// Agent overrides the target for a workflow step with a pool
	// index. Nil means the workflow's own target.
	Agent *int
}

// Validate checks that the fields Kind needs are present.
func (a Action) Validate() error {
	switch a.Kind {
	case SendKeys:
		if len(a.Keys) == 0 {
			return fmt.Errorf("%s: keys must not be empty", a.Kind)
		}
	case RunWorkflow:
		if a.Workflow == "" {
			return fmt.Errorf("%s: workflow name required", a.Kind)
		}
	case Enqueue, EnqueueDedupe:
		if a.Queue == "" {
			return fmt.Errorf("%s: queue required", a.Kind)
		}
		if strings.TrimSpace(a.Command) == "" {
			return fmt.Errorf("%s: command required", a.Kind)
		}
	case Pause:
		if a.Duration <= 0 {
			return fmt.Errorf("%s: duration must be positive", a.Kind)
		}
	default:
		return fmt.Errorf("unknown action kind %d", int(a.Kind))
	}
	return nil
}

func (a Action) String() string {
	switch a.Kind {
	case SendKeys:
		return fmt.Sprintf("send_keys %q", a.Keys)
	case RunWorkflow:
		return "workflow " + a.Workflow
	case Enqueue, EnqueueDedupe:
		return fmt.Sprintf("%s %s <- %q", a.Kind, a.Queue, a.Command)
	case Pause:
		return "wait " + a.Duration.String()
	}
	return a.Kind.String()
}

// Workflow is a named sequence of steps run in order.
type Workflow struct {
	Name  string
	Steps []Action
}

// Validate rejects empty workflows and nested workflow steps.
func (w Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow name required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q: no steps", w.Name)
	}
	for index, step := range w.Steps {
		if step.Kind == RunWorkflow {
			return fmt.Errorf("workflow %q step %d: workflows cannot run other workflows", w.Name, index)
		}
		if err := step.Validate(); err != nil {
			return fmt.Errorf("workflow %q step %d: %w", w.Name, index, err)
		}
	}
	return nil
}

// NormalizeKey turns the two-character escapes \r, \n, \t, and \e that
// YAML single-quoted or plain scalars leave literal into the control
// characters they name.
func NormalizeKey(key string) string {
	if !strings.Contains(key, `\`) {
		return key
	}
	return keyEscapes.Replace(key)
}

var keyEscapes = strings.NewReplacer(
	`\r`, "\r",
	`\n`, "\n",
	`\t`, "\t",
	`\e`, "\x1b",
)

// Vars maps placeholder tokens to replacement text.
type Vars map[string]string

// Captures returns Vars binding ${0} to the whole match and ${N} to
// each group. Unmatched optional groups bind to "".
func Captures(groups []string) Vars {
	vars := make(Vars, len(groups))
	for index, group := range groups {
		vars[fmt.Sprintf("${%d}", index)] = group
	}
	return vars
}

// Apply replaces every token in text. Longer tokens are matched first
// so ${10} is not read as ${1} followed by "0". Replacement text is
// inserted verbatim and never re-expanded.
func (v Vars) Apply(text string) string {
	if len(v) == 0 || text == "" {
		return text
	}
	tokens := make([]string, 0, len(v))
	for token := range v {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	pairs := make([]string, 0, 2*len(tokens))
	for _, token := range tokens {
		pairs = append(pairs, token, v[token])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
