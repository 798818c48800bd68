// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package observe

import (
	"time"

	"github.com/bureau-foundation/ruleagents/lib/agent"
	"github.com/bureau-foundation/ruleagents/lib/monitor"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// Frame types.
const (
	FrameSnapshot = "snapshot"
	FrameState    = "state"
	FrameOutput   = "output"
	FrameStuck    = "stuck"
)

// Frame is one message to an observer.
type Frame struct {
	Type  string    `json:"type" cbor:"type"`
	Agent string    `json:"agent" cbor:"agent"`
	At    time.Time `json:"at" cbor:"at"`

	// State is the agent's state after this frame. From is set on
	// state frames only.
	State string `json:"state" cbor:"state"`
	From  string `json:"from,omitempty" cbor:"from,omitempty"`

	Snapshot *terminal.Snapshot `json:"snapshot,omitempty" cbor:"snapshot,omitempty"`
	Chunk    string             `json:"chunk,omitempty" cbor:"chunk,omitempty"`

	// QuietMillis is how long a stuck agent has shown no output.
	QuietMillis int64 `json:"quiet_ms,omitempty" cbor:"quiet_ms,omitempty"`
}

// Input is a message from an observer.
type Input struct {
	Keys string `json:"keys" cbor:"keys"`
}

// AgentInfo describes one agent in the /agents listing.
type AgentInfo struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	State string `json:"state"`
	Alive bool   `json:"alive"`
	Cols  int    `json:"cols,omitempty"`
	Rows  int    `json:"rows,omitempty"`
}

func describe(a *agent.Agent, screen terminal.Size) AgentInfo {
	return AgentInfo{
		ID:    a.ID(),
		Index: a.Index(),
		State: a.State().String(),
		Alive: a.Backend().Alive(),
		Cols:  screen.Cols,
		Rows:  screen.Rows,
	}
}

// frameFor converts a monitor event. state is the agent's state after
// the event.
func frameFor(agentID string, event monitor.Event, state monitor.State) Frame {
	frame := Frame{Agent: agentID, At: event.At, State: state.String()}
	switch event.Kind {
	case monitor.EventSnapshot:
		frame.Type = FrameSnapshot
		snapshot := event.Snapshot
		frame.Snapshot = &snapshot
	case monitor.EventTransition:
		frame.Type = FrameState
		frame.From = event.Transition.From.String()
		frame.State = event.Transition.To.String()
	case monitor.EventOutput:
		frame.Type = FrameOutput
		frame.Chunk = event.Chunk
	case monitor.EventStuck:
		frame.Type = FrameStuck
		frame.QuietMillis = event.Quiet.Milliseconds()
	}
	return frame
}
