// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines what rules and entries can do and performs it.
//
// An [Action] is a tagged variant: send keys to an agent, run a named
// workflow, or run a command and push its output lines onto a queue
// (optionally deduplicated). A [Workflow] is an ordered list of steps,
// each an Action of a non-workflow kind, or a pause. The [Executor]
// interprets actions against a target agent; workflows run step by step
// in order on the same agent unless a step names another one.
//
// Text in keys and commands may contain variables. [Vars] substitutes
// them verbatim: regex captures as ${0}..${N} for rules, and the queue
// item under the configured placeholder for queue-triggered entries.
package action
