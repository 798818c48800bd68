// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package limiter bounds how many executions of the same entry may run
// at once. Each entry name owns a weighted semaphore; an execution
// acquires one permit before it starts and releases it when its action,
// including every workflow step, has finished. Acquire blocks rather
// than dropping work, so an entry whose firings outpace its executions
// queues them instead of piling up concurrent runs.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the permit count for entries never passed to Set.
const DefaultCapacity = 1

// Limiter holds one semaphore per entry name.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*slot
}

type slot struct {
	capacity  int64
	semaphore *semaphore.Weighted
	inFlight  atomic.Int64
}

// New returns a Limiter with no entries configured.
func New() *Limiter {
	return &Limiter{entries: make(map[string]*slot)}
}

// Set fixes the capacity for entry. It must be called before the first
// Acquire for that entry; later calls return an error.
func (l *Limiter) Set(entry string, capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("entry %q: concurrency %d must be at least 1", entry, capacity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[entry]; ok {
		if existing.capacity == int64(capacity) {
			return nil
		}
		return fmt.Errorf("entry %q: concurrency already set to %d", entry, existing.capacity)
	}
	l.entries[entry] = newSlot(int64(capacity))
	return nil
}

func newSlot(capacity int64) *slot {
	return &slot{capacity: capacity, semaphore: semaphore.NewWeighted(capacity)}
}

func (l *Limiter) slot(entry string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.entries[entry]
	if !ok {
		s = newSlot(DefaultCapacity)
		l.entries[entry] = s
	}
	return s
}

// Acquire blocks until entry has a free permit or ctx is done. The
// returned release must be called exactly once; extra calls are
// ignored.
func (l *Limiter) Acquire(ctx context.Context, entry string) (release func(), err error) {
	s := l.slot(entry)
	if err := s.semaphore.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for %q permit: %w", entry, err)
	}
	s.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.inFlight.Add(-1)
			s.semaphore.Release(1)
		})
	}, nil
}

// TryAcquire takes a permit only if one is free.
func (l *Limiter) TryAcquire(entry string) (release func(), ok bool) {
	s := l.slot(entry)
	if !s.semaphore.TryAcquire(1) {
		return nil, false
	}
	s.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.inFlight.Add(-1)
			s.semaphore.Release(1)
		})
	}, true
}

// InFlight reports how many permits of entry are held.
func (l *Limiter) InFlight(entry string) int {
	return int(l.slot(entry).inFlight.Load())
}

// Capacity reports the permit count for entry.
func (l *Limiter) Capacity(entry string) int {
	return int(l.slot(entry).capacity)
}
