// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/zeebo/blake3"
)

// Handler consumes one delivered item.
type Handler func(ctx context.Context, item string)

// Options configures a Manager.
type Options struct {
	// SeenLimit caps each queue's dedupe memory. Zero keeps every
	// accepted item for the process lifetime.
	SeenLimit int

	Logger *slog.Logger
}

// Stats is a point-in-time view of one queue.
type Stats struct {
	Held       int // items waiting for a first listener
	Backlog    int // items queued across listeners, not yet consumed
	Listeners  int
	Enqueued   int // items accepted
	Duplicates int // items dropped by EnqueueDedupe
	Seen       int // size of the dedupe memory
}

// Manager owns every named queue.
type Manager struct {
	seenLimit int
	logger    *slog.Logger

	mu     sync.Mutex
	queues map[string]*namedQueue
}

type digest = [32]byte

type namedQueue struct {
	name string

	mu         sync.Mutex
	held       []string
	seen       map[digest]struct{}
	seenOrder  []digest
	listeners  map[int]*listener
	nextID     int
	enqueued   int
	duplicates int
}

// NewManager returns an empty Manager.
func NewManager(options Options) *Manager {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		seenLimit: options.SeenLimit,
		logger:    logger,
		queues:    make(map[string]*namedQueue),
	}
}

func (m *Manager) queue(name string) *namedQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		q = &namedQueue{
			name:      name,
			seen:      make(map[digest]struct{}),
			listeners: make(map[int]*listener),
		}
		m.queues[name] = q
	}
	return q
}

// Enqueue appends item to the named queue and delivers it to every
// listener.
func (m *Manager) Enqueue(name, item string) {
	q := m.queue(name)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deliverLocked(item)
}

// EnqueueDedupe enqueues item unless the queue has accepted it before.
// It reports whether the item was accepted.
func (m *Manager) EnqueueDedupe(name, item string) bool {
	key := blake3.Sum256([]byte(item))
	q := m.queue(name)
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, duplicate := q.seen[key]; duplicate {
		q.duplicates++
		m.logger.Debug("dropped duplicate queue item", "queue", name, "item", item)
		return false
	}
	q.seen[key] = struct{}{}
	q.seenOrder = append(q.seenOrder, key)
	if m.seenLimit > 0 {
		for len(q.seenOrder) > m.seenLimit {
			delete(q.seen, q.seenOrder[0])
			q.seenOrder = q.seenOrder[1:]
		}
	}
	q.deliverLocked(item)
	return true
}

func (q *namedQueue) deliverLocked(item string) {
	q.enqueued++
	if len(q.listeners) == 0 {
		q.held = append(q.held, item)
		return
	}
	for _, l := range q.listeners {
		l.push(item)
	}
}

// Listen registers handler on the named queue and starts its delivery
// goroutine. Delivery stops when ctx is done or cancel is called;
// cancel waits for an in-progress handler call to return.
func (m *Manager) Listen(ctx context.Context, name string, handler Handler) (cancel func()) {
	q := m.queue(name)
	l := newListener()

	q.mu.Lock()
	id := q.nextID
	q.nextID++
	if len(q.listeners) == 0 && len(q.held) > 0 {
		for _, item := range q.held {
			l.push(item)
		}
		q.held = nil
	}
	q.listeners[id] = l
	q.mu.Unlock()

	listenCtx, stop := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		l.run(listenCtx, handler)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.listeners, id)
			q.mu.Unlock()
			stop()
			<-finished
		})
	}
}

// Stats reports on the named queue. Unknown names report zeros.
func (m *Manager) Stats(name string) Stats {
	m.mu.Lock()
	q, ok := m.queues[name]
	m.mu.Unlock()
	if !ok {
		return Stats{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{
		Held:       len(q.held),
		Listeners:  len(q.listeners),
		Enqueued:   q.enqueued,
		Duplicates: q.duplicates,
		Seen:       len(q.seen),
	}
	for _, l := range q.listeners {
		stats.Backlog += l.backlog()
	}
	return stats
}

// Names lists every queue that has been used, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
