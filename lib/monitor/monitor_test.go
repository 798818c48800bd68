// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
	"github.com/bureau-foundation/ruleagents/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func snapshotAt(content string, x, y int, offset time.Duration) terminal.Snapshot {
	return terminal.Snapshot{Content: content, CursorX: x, CursorY: y, CapturedAt: epoch.Add(offset)}
}

func kinds(events []Event) map[EventKind]Event {
	found := map[EventKind]Event{}
	for _, event := range events {
		found[event.Kind] = event
	}
	return found
}

func newTestMonitor(t *testing.T, config Config) *Monitor {
	t.Helper()
	return New(nil, config, clock.Fake(epoch), nil)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	if config.Interval != 500*time.Millisecond {
		t.Errorf("Interval: got %v, want 500ms", config.Interval)
	}
	if config.WaitTimeout != 2*time.Second {
		t.Errorf("WaitTimeout: got %v, want 2s", config.WaitTimeout)
	}
	if config.StuckTimeout != 30*time.Second {
		t.Errorf("StuckTimeout: got %v, want 30s", config.StuckTimeout)
	}
	if config.HistorySize != 10 {
		t.Errorf("HistorySize: got %d, want 10", config.HistorySize)
	}
	if len(config.PromptPatterns) != len(DefaultPromptPatterns) {
		t.Errorf("PromptPatterns: got %d, want %d", len(config.PromptPatterns), len(DefaultPromptPatterns))
	}
}

func TestCompilePatternsReportsBadPattern(t *testing.T) {
	t.Parallel()
	if _, err := CompilePatterns([]string{`\$ $`, `([`}); err == nil {
		t.Fatal("CompilePatterns: expected error for unbalanced pattern")
	}
}

func TestIdleOnPrompt(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{PromptPatterns: []*regexp.Regexp{regexp.MustCompile(`\$ $`)}})

	events := monitor.Observe(snapshotAt("user@host:~$ ", 13, 0, 0))
	if monitor.State() != Idle {
		t.Errorf("State: got %v, want idle", monitor.State())
	}
	if _, ok := kinds(events)[EventTransition]; ok {
		t.Error("unexpected transition: monitor starts idle")
	}
}

func TestIdleOnTrimmedPromptWithCursor(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	// Rendered rows drop trailing spaces; the cursor position restores it.
	monitor.Observe(snapshotAt("output\nuser@host:~/src$\n\n", 17, 1, 0))
	if monitor.State() != Idle {
		t.Errorf("State: got %v, want idle", monitor.State())
	}
}

func TestFirstSnapshotCountsAsChange(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	events := kinds(monitor.Observe(snapshotAt("compiling", 9, 0, 0)))

	transition, ok := events[EventTransition]
	if !ok {
		t.Fatal("expected a transition on the first non-prompt snapshot")
	}
	if transition.Transition.From != Idle || transition.Transition.To != Active {
		t.Errorf("transition: got %v->%v, want idle->active", transition.Transition.From, transition.Transition.To)
	}
	if output := events[EventOutput]; output.Chunk != "compiling" {
		t.Errorf("first chunk: got %q, want %q", output.Chunk, "compiling")
	}
}

func TestActiveToWaitAfterTimeout(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})

	monitor.Observe(snapshotAt("running", 7, 0, 0))
	if monitor.State() != Active {
		t.Fatalf("State: got %v, want active", monitor.State())
	}

	events := monitor.Observe(snapshotAt("running", 7, 0, 1500*time.Millisecond))
	if _, ok := kinds(events)[EventTransition]; ok {
		t.Error("transitioned before wait timeout")
	}
	if monitor.State() != Active {
		t.Errorf("State before timeout: got %v, want active", monitor.State())
	}

	events = monitor.Observe(snapshotAt("running", 7, 0, 2*time.Second))
	transition, ok := kinds(events)[EventTransition]
	if !ok {
		t.Fatal("expected Active->Wait transition at wait timeout")
	}
	if transition.Transition.From != Active || transition.Transition.To != Wait {
		t.Errorf("transition: got %v->%v, want active->wait", transition.Transition.From, transition.Transition.To)
	}
}

func TestCursorMoveCountsAsChange(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	monitor.Observe(snapshotAt("progress", 0, 0, 0))
	monitor.Observe(snapshotAt("progress", 0, 0, 3*time.Second))
	if monitor.State() != Wait {
		t.Fatalf("State: got %v, want wait", monitor.State())
	}
	events := kinds(monitor.Observe(snapshotAt("progress", 4, 0, 3500*time.Millisecond)))
	if transition, ok := events[EventTransition]; !ok || transition.Transition.To != Active {
		t.Error("cursor movement should return the session to active")
	}
	if _, ok := events[EventOutput]; ok {
		t.Error("cursor movement alone should not produce output")
	}
}

func TestPromptOutranksChange(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	monitor.Observe(snapshotAt("make", 4, 0, 0))
	events := kinds(monitor.Observe(snapshotAt("make\ndone\n$ ", 2, 2, 500*time.Millisecond)))
	if transition, ok := events[EventTransition]; !ok || transition.Transition.To != Idle {
		t.Errorf("changed screen ending in a prompt: want transition to idle, got %+v", events[EventTransition])
	}
	if output := events[EventOutput]; output.Chunk != "done\n$ " {
		t.Errorf("chunk: got %q, want %q", output.Chunk, "done\n$ ")
	}
}

func TestStuckReportedOncePerEpisode(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	stuck := 0
	for second := 0; second <= 40; second++ {
		for _, event := range monitor.Observe(snapshotAt("hung", 4, 0, time.Duration(second)*time.Second)) {
			if event.Kind == EventStuck {
				stuck++
				if event.Quiet < 30*time.Second {
					t.Errorf("stuck after %v, want at least 30s", event.Quiet)
				}
			}
		}
	}
	if stuck != 1 {
		t.Errorf("stuck events: got %d, want 1", stuck)
	}
	if monitor.State() != Wait {
		t.Errorf("State: got %v, want wait (stuck does not change state)", monitor.State())
	}

	// New output ends the episode; a second long silence reports again.
	monitor.Observe(snapshotAt("hung\nmore", 4, 1, 41*time.Second))
	for second := 42; second <= 80; second++ {
		for _, event := range monitor.Observe(snapshotAt("hung\nmore", 4, 1, time.Duration(second)*time.Second)) {
			if event.Kind == EventStuck {
				stuck++
			}
		}
	}
	if stuck != 2 {
		t.Errorf("stuck events after second episode: got %d, want 2", stuck)
	}
}

func TestObserveEventOrder(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{WaitTimeout: 2 * time.Second, StuckTimeout: 2 * time.Second})

	sequence := func(events []Event) []EventKind {
		var got []EventKind
		for _, event := range events {
			got = append(got, event.Kind)
		}
		return got
	}
	check := func(label string, events []Event, want ...EventKind) {
		t.Helper()
		got := sequence(events)
		if len(got) != len(want) {
			t.Fatalf("%s: got %v, want %v", label, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: got %v, want %v", label, got, want)
			}
		}
	}

	check("first capture", monitor.Observe(snapshotAt("building...", 11, 0, 0)),
		EventSnapshot, EventOutput, EventTransition)
	check("quiet past both timeouts", monitor.Observe(snapshotAt("building...", 11, 0, 2*time.Second)),
		EventSnapshot, EventTransition, EventStuck)
}

func TestNoOutputWhenUnchanged(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	monitor.Observe(snapshotAt("a\nb", 1, 1, 0))
	for i := 1; i < 5; i++ {
		events := kinds(monitor.Observe(snapshotAt("a\nb", 1, 1, time.Duration(i)*500*time.Millisecond)))
		if _, ok := events[EventOutput]; ok {
			t.Fatalf("poll %d produced output for an unchanged screen", i)
		}
		if _, ok := events[EventSnapshot]; !ok {
			t.Fatalf("poll %d produced no snapshot event", i)
		}
	}
}

func TestRedrawnChunkSuppressed(t *testing.T) {
	t.Parallel()
	monitor := newTestMonitor(t, Config{})
	chunks := []string{}
	for i, screen := range []string{"a", "c", "c\na"} {
		for _, event := range monitor.Observe(snapshotAt(screen, 0, 0, time.Duration(i)*time.Second)) {
			if event.Kind == EventOutput {
				chunks = append(chunks, event.Chunk)
			}
		}
	}
	if len(chunks) != 2 || chunks[0] != "a" || chunks[1] != "c" {
		t.Errorf("chunks: got %q, want [a c]", chunks)
	}
}

func TestRunPollsOnInterval(t *testing.T) {
	t.Parallel()
	fakeClock := clock.Fake(epoch)
	backend := terminal.NewFake(terminal.Size{Cols: 80, Rows: 24})
	backend.SetScreen("building", 8, 0)

	monitor := New(backend, Config{}, fakeClock, nil)
	events := make(chan Event, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx, func(event Event) { events <- event }) }()

	next := func(kind EventKind) Event {
		t.Helper()
		for {
			event := testutil.RequireReceive(t, events, 5*time.Second, "waiting for %v", kind)
			if event.Kind == kind {
				return event
			}
		}
	}

	next(EventSnapshot)
	if transition := next(EventTransition); transition.Transition.To != Active {
		t.Fatalf("first transition: got %v, want active", transition.Transition.To)
	}

	for range 4 {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(500 * time.Millisecond)
		next(EventSnapshot)
	}
	// Four intervals of silence is the two-second wait timeout.
	select {
	case event := <-events:
		if event.Kind != EventTransition || event.Transition.To != Wait {
			t.Fatalf("after wait timeout: got %v event, want transition to wait", event.Kind)
		}
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("no transition to wait")
	}

	backend.SetScreen("building\n$ ", 2, 1)
	fakeClock.Advance(500 * time.Millisecond)
	if transition := next(EventTransition); transition.Transition.To != Idle {
		t.Errorf("after prompt: got %v, want idle", transition.Transition.To)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Run exit"); err != context.Canceled {
		t.Errorf("Run: got %v, want context.Canceled", err)
	}
}

func TestRunSurvivesBackendFailure(t *testing.T) {
	t.Parallel()
	fakeClock := clock.Fake(epoch)
	backend := terminal.NewFake(terminal.Size{Cols: 80, Rows: 24})
	backend.Kill()

	monitor := New(backend, Config{}, fakeClock, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx, func(Event) {}) }()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(500 * time.Millisecond)
	fakeClock.Advance(500 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}
	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "Run exit")
}
