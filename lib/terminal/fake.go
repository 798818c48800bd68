// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"strings"
	"sync"
)

// Fake is an in-memory Backend. Tests set the screen with SetScreen and
// read back what the engine typed with Written or the Writes channel.
type Fake struct {
	mu       sync.Mutex
	screen   Snapshot
	size     Size
	written  []string
	dead     bool
	closed   bool
	writeErr error

	writes chan string

	// OnWrite, when set, runs after every successful Write with the
	// bytes written. It may call SetScreen to simulate the shell echoing.
	OnWrite func(fake *Fake, data string)
}

// NewFake returns a live Fake with an empty screen.
func NewFake(size Size) *Fake {
	return &Fake{size: size, writes: make(chan string, 256)}
}

// SetScreen replaces the visible content and cursor.
func (f *Fake) SetScreen(content string, cursorX, cursorY int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screen = Snapshot{Content: content, CursorX: cursorX, CursorY: cursorY}
}

// Kill makes the backend report itself dead.
func (f *Fake) Kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = true
}

// FailWrites makes every Write return err until called with nil.
func (f *Fake) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// Written returns everything written so far, concatenated.
func (f *Fake) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.written, "")
}

// Writes delivers each Write's data. Writes beyond the buffer are
// dropped from the channel but still recorded in Written.
func (f *Fake) Writes() <-chan string { return f.writes }

// Size is the most recent size set by construction or Resize.
func (f *Fake) Size() Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	if f.dead || f.closed {
		f.mu.Unlock()
		return unavailable("writing to fake", nil)
	}
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	f.written = append(f.written, string(data))
	hook := f.OnWrite
	f.mu.Unlock()

	select {
	case f.writes <- string(data):
	default:
	}
	if hook != nil {
		hook(f, string(data))
	}
	return nil
}

func (f *Fake) Snapshot(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead || f.closed {
		return Snapshot{}, unavailable("capturing fake", nil)
	}
	return f.screen, nil
}

func (f *Fake) Resize(ctx context.Context, size Size) error {
	if err := size.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.size = size
	return nil
}

func (f *Fake) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead && !f.closed
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FakeSpawner hands out Fakes and remembers them by name.
type FakeSpawner struct {
	mu       sync.Mutex
	backends map[string]*Fake
	order    []string

	// Configure, when set, runs on each new Fake before it is returned.
	Configure func(name string, fake *Fake)
}

func (s *FakeSpawner) Spawn(ctx context.Context, name string, size Size) (Backend, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	fake := NewFake(size)
	if s.Configure != nil {
		s.Configure(name, fake)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backends == nil {
		s.backends = make(map[string]*Fake)
	}
	s.backends[name] = fake
	s.order = append(s.order, name)
	return fake, nil
}

// Get returns the Fake spawned under name, or nil.
func (s *FakeSpawner) Get(name string) *Fake {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backends[name]
}

// Names lists spawned names in spawn order.
func (s *FakeSpawner) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
