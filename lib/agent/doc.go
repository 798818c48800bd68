// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent pairs each terminal session with its monitor and hands
// sessions out to work.
//
// An [Agent] owns one [terminal.Backend] and one [monitor.Monitor]. Its
// Run loop polls the monitor and delivers events two ways: in order to
// a single handler (the engine's rule evaluation for that agent), and
// best-effort to any number of observers registered with Subscribe.
//
// A [Pool] is the fixed set of agents created at startup. Next hands
// out agents round-robin from an atomic cursor; every call advances the
// cursor exactly once and no health check is made, so work sent to a
// dead agent fails visibly instead of silently moving elsewhere.
package agent
