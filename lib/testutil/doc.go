// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the channel and polling helpers shared by the
// package tests. They are the only place tests use wall-clock timeouts;
// everything else runs on clock.FakeClock.
//
// Helpers call t.Fatalf on failure.
package testutil
