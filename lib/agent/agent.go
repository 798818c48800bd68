// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/monitor"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// eventBuffer bounds the events waiting for the handler. When it is
// full the monitor loop blocks until the handler catches up.
const eventBuffer = 64

// observerBuffer bounds each observer's channel. Observers that fall
// behind lose events.
const observerBuffer = 32

// Agent is one managed terminal session.
type Agent struct {
	id      string
	index   int
	backend terminal.Backend
	monitor *monitor.Monitor
	logger  *slog.Logger

	mu        sync.Mutex
	observers map[int]chan monitor.Event
	nextID    int
}

// New wraps backend. The id is conventionally "agent-<index>".
func New(index int, backend terminal.Backend, config monitor.Config, clk clock.Clock, logger *slog.Logger) *Agent {
	id := ID(index)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("agent", id)
	return &Agent{
		id:        id,
		index:     index,
		backend:   backend,
		monitor:   monitor.New(backend, config, clk, logger),
		logger:    logger,
		observers: make(map[int]chan monitor.Event),
	}
}

// ID returns the agent id for a pool index.
func ID(index int) string { return fmt.Sprintf("agent-%d", index) }

// ID returns the agent's id.
func (a *Agent) ID() string { return a.id }

// Index returns the agent's position in its pool.
func (a *Agent) Index() int { return a.index }

// State returns the monitor's current classification.
func (a *Agent) State() monitor.State { return a.monitor.State() }

// Backend exposes the session for resizing and liveness checks.
func (a *Agent) Backend() terminal.Backend { return a.backend }

// SendKeys writes data to the session as one write.
func (a *Agent) SendKeys(ctx context.Context, data []byte) error {
	if err := a.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("%s: %w", a.id, err)
	}
	return nil
}

// Snapshot returns the latest capture taken by the monitor, or a fresh
// capture when the monitor has not polled yet.
func (a *Agent) Snapshot(ctx context.Context) (terminal.Snapshot, error) {
	if snapshot, ok := a.monitor.Latest(); ok {
		return snapshot, nil
	}
	snapshot, err := a.backend.Snapshot(ctx)
	if err != nil {
		return terminal.Snapshot{}, fmt.Errorf("%s: %w", a.id, err)
	}
	return snapshot, nil
}

// Subscribe registers an observer. The returned cancel function
// unregisters it and closes the channel.
func (a *Agent) Subscribe() (<-chan monitor.Event, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	channel := make(chan monitor.Event, observerBuffer)
	a.observers[id] = channel
	return channel, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if existing, ok := a.observers[id]; ok {
			delete(a.observers, id)
			close(existing)
		}
	}
}

func (a *Agent) publish(event monitor.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, channel := range a.observers {
		select {
		case channel <- event:
		default:
		}
	}
}

// Run polls the session until ctx is done. Every event goes to the
// observers and to handle; handle sees events one at a time in the
// order the monitor produced them. handle may be nil.
func (a *Agent) Run(ctx context.Context, handle func(context.Context, monitor.Event)) error {
	queue := make(chan monitor.Event, eventBuffer)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range queue {
			if handle != nil {
				handle(ctx, event)
			}
		}
	}()

	err := a.monitor.Run(ctx, func(event monitor.Event) {
		a.publish(event)
		select {
		case queue <- event:
		case <-ctx.Done():
		}
	})
	close(queue)
	wg.Wait()
	return err
}

// Close terminates the session and closes every observer channel.
func (a *Agent) Close() error {
	a.mu.Lock()
	for id, channel := range a.observers {
		delete(a.observers, id)
		close(channel)
	}
	a.mu.Unlock()
	if err := a.backend.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", a.id, err)
	}
	return nil
}
