// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package command runs the shell commands behind enqueue actions.
//
// A [Runner] executes one command line through "sh -c", waits for it,
// and returns its standard output split into lines. A non-zero exit or
// a failure to start is reported as an [*ExecutionError]; callers log it
// and enqueue nothing, so the next firing of the same entry proceeds
// normally.
package command
