// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// State classifies what a session is doing.
type State int

const (
	// Idle means the shell is showing a prompt.
	Idle State = iota
	// Wait means output stopped without returning to a prompt.
	Wait
	// Active means output is changing.
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Wait:
		return "wait"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name for JSON and CBOR observers.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Transition records a state change. It is emitted, never stored.
type Transition struct {
	From     State             `json:"from" cbor:"from"`
	To       State             `json:"to" cbor:"to"`
	At       time.Time         `json:"at" cbor:"at"`
	Snapshot terminal.Snapshot `json:"snapshot" cbor:"snapshot"`
}

// EventKind discriminates Event.
type EventKind int

const (
	// EventSnapshot carries every capture, for observers.
	EventSnapshot EventKind = iota
	// EventTransition carries a state change.
	EventTransition
	// EventOutput carries a chunk of newly appeared text.
	EventOutput
	// EventStuck reports a session in Wait beyond StuckTimeout.
	EventStuck
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventTransition:
		return "transition"
	case EventOutput:
		return "output"
	case EventStuck:
		return "stuck"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is one monitor output. Which fields are set depends on Kind:
// Transition for EventTransition, Chunk for EventOutput, Quiet for
// EventStuck. Snapshot is always the capture that produced the event.
type Event struct {
	Kind       EventKind         `json:"kind" cbor:"kind"`
	At         time.Time         `json:"at" cbor:"at"`
	Snapshot   terminal.Snapshot `json:"snapshot" cbor:"snapshot"`
	Transition *Transition       `json:"transition,omitempty" cbor:"transition,omitempty"`
	Chunk      string            `json:"chunk,omitempty" cbor:"chunk,omitempty"`
	Quiet      time.Duration     `json:"quiet,omitempty" cbor:"quiet,omitempty"`
}
