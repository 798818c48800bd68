// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/ruleagents/lib/action"
)

// TriggerKind discriminates Trigger.
type TriggerKind int

const (
	// OnStart fires once when the engine starts.
	OnStart TriggerKind = iota + 1
	// Periodic fires immediately and then every Interval.
	Periodic
	// OnEnqueue fires for each item delivered on Queue.
	OnEnqueue
)

func (k TriggerKind) String() string {
	switch k {
	case OnStart:
		return "startup"
	case Periodic:
		return "periodic"
	case OnEnqueue:
		return "enqueue"
	default:
		return fmt.Sprintf("trigger(%d)", int(k))
	}
}

// Trigger says when an entry fires.
type Trigger struct {
	Kind     TriggerKind
	Interval time.Duration // Periodic
	Queue    string        // OnEnqueue
}

func (t Trigger) String() string {
	switch t.Kind {
	case Periodic:
		return "timer:" + t.Interval.String()
	case OnEnqueue:
		return "queue:" + t.Queue
	}
	return t.Kind.String()
}

// Entry is an externally triggered automation.
type Entry struct {
	Name    string
	Trigger Trigger
	Action  action.Action

	// Concurrency bounds simultaneous executions. Zero means 1.
	Concurrency int
}

// Validate checks the trigger and action.
func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entry name required")
	}
	switch e.Trigger.Kind {
	case OnStart:
	case Periodic:
		if e.Trigger.Interval <= 0 {
			return fmt.Errorf("entry %q: periodic interval must be positive", e.Name)
		}
	case OnEnqueue:
		if e.Trigger.Queue == "" {
			return fmt.Errorf("entry %q: queue trigger needs a queue name", e.Name)
		}
	default:
		return fmt.Errorf("entry %q: unknown trigger kind %d", e.Name, int(e.Trigger.Kind))
	}
	if e.Concurrency < 0 {
		return fmt.Errorf("entry %q: concurrency %d is negative", e.Name, e.Concurrency)
	}
	if e.Action.Kind == action.Pause {
		return fmt.Errorf("entry %q: wait is only valid inside a workflow", e.Name)
	}
	if err := e.Action.Validate(); err != nil {
		return fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return nil
}
