// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package terminal defines the session backend contract that agents run
// on, and the backends that satisfy it.
//
// A [Backend] is a live interactive shell. The engine only ever writes
// bytes to it, asks it for a [Snapshot] of the visible screen, resizes
// it, and checks whether it is still alive. Three implementations ship:
//
//   - [PTY] runs the shell on a pseudo-terminal (creack/pty) and feeds
//     its output through a virtual screen (vt10x) so snapshots reflect
//     what a user would see, including cursor position.
//   - [Tmux] runs the shell inside a session on a private tmux server so
//     an operator can attach to it. Snapshots come from capture-pane.
//   - [Fake] is a scripted in-memory backend for tests.
//
// Spawners ([PTYSpawner], [TmuxSpawner]) create one backend per agent.
package terminal
