// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBackendUnavailable reports that a session backend has exited or
// cannot be reached. Callers log it and skip the action; the agent
// stays in the pool.
var ErrBackendUnavailable = errors.New("session backend unavailable")

// Snapshot is a point-in-time capture of a terminal's visible screen.
type Snapshot struct {
	// Content is the visible grid, one line per row, joined with "\n".
	// Trailing spaces on each row are trimmed.
	Content string `json:"content" cbor:"content"`

	CursorX int `json:"cursor_x" cbor:"cursor_x"`
	CursorY int `json:"cursor_y" cbor:"cursor_y"`

	CapturedAt time.Time `json:"captured_at" cbor:"captured_at"`
}

// Lines splits Content into rows.
func (s Snapshot) Lines() []string {
	if s.Content == "" {
		return nil
	}
	return strings.Split(s.Content, "\n")
}

// Size is a terminal geometry in character cells.
type Size struct {
	Cols int
	Rows int
}

// Validate rejects geometries a terminal cannot have.
func (s Size) Validate() error {
	if s.Cols <= 0 || s.Rows <= 0 {
		return fmt.Errorf("invalid terminal size %dx%d", s.Cols, s.Rows)
	}
	return nil
}

// Backend is one live interactive session.
type Backend interface {
	// Write sends raw bytes to the session's input.
	Write(ctx context.Context, data []byte) error

	// Snapshot captures the current screen. CapturedAt may be left
	// zero; the monitor stamps it.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Resize changes the session's geometry.
	Resize(ctx context.Context, size Size) error

	// Alive reports whether the session process is still running.
	Alive() bool

	// Close terminates the session and releases its resources.
	Close() error
}

// Spawner creates backends. name is unique per process (the agent id).
type Spawner interface {
	Spawn(ctx context.Context, name string, size Size) (Backend, error)
}

// unavailable wraps ErrBackendUnavailable with the operation and cause.
func unavailable(operation string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", operation, ErrBackendUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", operation, ErrBackendUnavailable, cause)
}

// renderRows joins screen rows with right-trimmed spaces.
func renderRows(rows []string) string {
	for i, row := range rows {
		rows[i] = strings.TrimRight(row, " \x00")
	}
	return strings.Join(rows, "\n")
}
