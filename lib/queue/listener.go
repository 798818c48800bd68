// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"sync"
)

// listener is one registered consumer: an unbounded FIFO of its own
// copies plus a wakeup channel for its delivery goroutine.
type listener struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

func newListener() *listener {
	return &listener{wake: make(chan struct{}, 1)}
}

func (l *listener) push(item string) {
	l.mu.Lock()
	l.items = append(l.items, item)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) pop() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return "", false
	}
	item := l.items[0]
	l.items[0] = ""
	l.items = l.items[1:]
	return item, true
}

func (l *listener) backlog() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *listener) run(ctx context.Context, handler Handler) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			item, ok := l.pop()
			if !ok {
				break
			}
			handler(ctx, item)
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}
