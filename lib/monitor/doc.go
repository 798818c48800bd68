// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor turns periodic screen captures of one terminal session
// into two streams: chunks of newly appeared text, and Idle/Wait/Active
// state transitions.
//
// # New content
//
// A terminal screen is a fixed grid that scrolls, so diffing two
// captures as text re-reports every line that moved. Instead each
// capture is compared line-by-line against the captures kept in a small
// ring (HistorySize entries). For each retained capture the monitor
// finds how many leading lines of the new capture are accounted for,
// either because the old capture's tail reappears at the top (scroll)
// or because both share a common head (append, in-place edit). The best
// alignment across the ring wins and only the lines after it are new.
// Aligning against more than the immediately previous capture absorbs
// momentary clears and redraws.
//
// Every emitted chunk is hashed with BLAKE3; a chunk identical to one
// emitted within the ring window is suppressed.
//
// # State
//
// Each poll classifies the session, first rule that applies:
//
//  1. Idle: the last non-blank line matches a prompt pattern.
//  2. Active: content or cursor differs from the previous capture.
//  3. Wait: nothing changed for at least WaitTimeout.
//
// Otherwise the state is unchanged. A session that stays in Wait past
// StuckTimeout produces one Stuck event per episode; the state does not
// change.
package monitor
