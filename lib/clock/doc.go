// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source for every timing-sensitive
// component: the terminal monitor's poll loop, wait and stuck timeouts,
// periodic entries, and the pause between injected keys.
//
// Production wiring passes Real(). Tests pass Fake(start), start the
// goroutine under test, call WaitForTimers until it has registered its
// ticker or sleep, then Advance to fire it deterministically:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop(ctx, c)
//	c.WaitForTimers(1)
//	c.Advance(500 * time.Millisecond)
package clock
