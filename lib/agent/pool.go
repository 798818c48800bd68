// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/monitor"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// Pool is a fixed set of agents handed out round-robin.
type Pool struct {
	agents []*Agent
	byID   map[string]*Agent
	next   atomic.Uint64
}

// NewPool builds a pool over agents, which must be non-empty.
func NewPool(agents []*Agent) (*Pool, error) {
	if len(agents) == 0 {
		return nil, errors.New("agent pool needs at least one agent")
	}
	pool := &Pool{agents: agents, byID: make(map[string]*Agent, len(agents))}
	for _, agent := range agents {
		if _, duplicate := pool.byID[agent.ID()]; duplicate {
			return nil, fmt.Errorf("duplicate agent id %s", agent.ID())
		}
		pool.byID[agent.ID()] = agent
	}
	return pool, nil
}

// SpawnOptions describes how Spawn creates a pool.
type SpawnOptions struct {
	Size    int
	Screen  terminal.Size
	Monitor monitor.Config
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Spawn starts options.Size sessions with spawner. If any fails, the
// ones already started are closed.
func Spawn(ctx context.Context, spawner terminal.Spawner, options SpawnOptions) (*Pool, error) {
	if options.Size < 1 {
		return nil, fmt.Errorf("agent pool size %d: must be at least 1", options.Size)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	agents := make([]*Agent, 0, options.Size)
	for index := range options.Size {
		backend, err := spawner.Spawn(ctx, ID(index), options.Screen)
		if err != nil {
			for _, started := range agents {
				started.Close()
			}
			return nil, fmt.Errorf("spawning %s: %w", ID(index), err)
		}
		agents = append(agents, New(index, backend, options.Monitor, options.Clock, options.Logger))
	}
	return NewPool(agents)
}

// Next returns the agent for the next unit of work. The cursor is
// advanced exactly once per call.
func (p *Pool) Next() *Agent {
	index := (p.next.Add(1) - 1) % uint64(len(p.agents))
	return p.agents[index]
}

// At returns the agent at index.
func (p *Pool) At(index int) (*Agent, bool) {
	if index < 0 || index >= len(p.agents) {
		return nil, false
	}
	return p.agents[index], true
}

// Get returns the agent with the given id.
func (p *Pool) Get(id string) (*Agent, bool) {
	agent, ok := p.byID[id]
	return agent, ok
}

// Agents returns the agents in index order.
func (p *Pool) Agents() []*Agent { return append([]*Agent(nil), p.agents...) }

// Len returns the pool size.
func (p *Pool) Len() int { return len(p.agents) }

// Close closes every agent and joins their errors.
func (p *Pool) Close() error {
	var errs []error
	for _, agent := range p.agents {
		if err := agent.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
