// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine runs the automation: it evaluates rules against each
// agent's output and drives entries from their triggers.
//
// Rules are agent-affine. Each agent's monitor events are consumed in
// order on that agent's own goroutine; when new output matches a rule,
// the rule's action runs there, against the agent that produced it.
// Quiet rules are checked on every capture.
//
// Entries are dispatched through the pool. Each firing first takes a
// permit from the entry's limiter slot, then takes the next agent from
// the pool, then runs the action on its own goroutine, releasing the
// permit when the action finishes. Trigger sources block while the
// entry is at capacity:
//
//   - startup entries fire once when Run begins;
//   - periodic entries fire immediately and then on every tick; a
//     blocked periodic loop keeps at most one pending tick;
//   - queue entries fire once per delivered item, in queue order, with
//     the item substituted for the placeholder.
//
// Failures are logged and isolated to the agent or entry involved.
// Nothing is retried.
package engine
