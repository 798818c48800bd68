// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/ruleagents/lib/testutil"
)

func TestSplitKeys(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  []keyPart
	}{
		{"plain", "ls -la", []keyPart{{"ls -la", true}}},
		{"enter", "1\r", []keyPart{{"1", true}, {"Enter", false}}},
		{"escape between", "a\x1bb", []keyPart{{"a", true}, {"Escape", false}, {"b", true}}},
		{"ctrl-c", "\x03", []keyPart{{"C-c", false}}},
		{"empty", "", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := splitKeys(test.input)
			if len(got) != len(test.want) {
				t.Fatalf("splitKeys(%q): got %v, want %v", test.input, got, test.want)
			}
			for i := range got {
				if got[i] != test.want[i] {
					t.Errorf("splitKeys(%q)[%d]: got %+v, want %+v", test.input, i, got[i], test.want[i])
				}
			}
		})
	}
}

func TestParseCursor(t *testing.T) {
	t.Parallel()
	x, y, err := parseCursor("12 3\n")
	if err != nil {
		t.Fatalf("parseCursor: %v", err)
	}
	if x != 12 || y != 3 {
		t.Errorf("parseCursor: got (%d, %d), want (12, 3)", x, y)
	}
	if _, _, err := parseCursor("garbage"); err == nil {
		t.Error("parseCursor(garbage): expected error")
	}
}

func TestRenderRowsTrimsTrailingSpace(t *testing.T) {
	t.Parallel()
	got := renderRows([]string{"$ ls   ", "a b  ", "    "})
	if want := "$ ls\na b\n"; got != want {
		t.Errorf("renderRows: got %q, want %q", got, want)
	}
}

func TestFakeBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := NewFake(Size{Cols: 80, Rows: 24})
	fake.SetScreen("user@host:~$ ", 13, 0)

	if err := fake.Write(ctx, []byte("ls\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := testutil.RequireReceive(t, fake.Writes(), time.Second, "write notification"); got != "ls\r" {
		t.Errorf("Writes: got %q, want %q", got, "ls\r")
	}
	snapshot, err := fake.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.CursorX != 13 {
		t.Errorf("CursorX: got %d, want 13", snapshot.CursorX)
	}

	fake.Kill()
	if fake.Alive() {
		t.Error("Alive after Kill: got true")
	}
	if err := fake.Write(ctx, []byte("x")); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Write after Kill: got %v, want ErrBackendUnavailable", err)
	}
}

func TestPTYEchoesIntoSnapshot(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	session, err := StartPTY("agent-0", Size{Cols: 80, Rows: 24}, &PTYSpawner{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("StartPTY: %v", err)
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.Write(ctx, []byte("echo ruleagents-marker\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	testutil.Eventually(t, 10*time.Second, func() bool {
		snapshot, err := session.Snapshot(ctx)
		return err == nil && strings.Count(snapshot.Content, "ruleagents-marker") >= 2
	}, "echoed output in snapshot")

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if session.Alive() {
		t.Error("Alive after Close: got true")
	}
}

func TestPTYSnapshotFollowsResize(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	session, err := StartPTY("agent-0", Size{Cols: 80, Rows: 24}, &PTYSpawner{Shell: "/bin/sh"})
	if err != nil {
		t.Fatalf("StartPTY: %v", err)
	}
	defer session.Close()
	ctx := context.Background()

	// Capture continuously while the grid shrinks and grows.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			if _, err := session.Snapshot(ctx); err != nil {
				return
			}
		}
	}()
	for i := range 50 {
		size := Size{Cols: 40, Rows: 10}
		if i%2 == 1 {
			size = Size{Cols: 80, Rows: 24}
		}
		if err := session.Resize(ctx, size); err != nil {
			t.Fatalf("Resize: %v", err)
		}
	}
	testutil.RequireClosed(t, done, 10*time.Second, "snapshots during resize")

	if err := session.Resize(ctx, Size{Cols: 40, Rows: 10}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	snapshot, err := session.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if rows := strings.Count(snapshot.Content, "\n") + 1; rows != 10 {
		t.Errorf("rows after resize: got %d, want 10", rows)
	}
	for _, line := range snapshot.Lines() {
		if len([]rune(line)) > 40 {
			t.Errorf("line wider than 40 columns: %q", line)
		}
	}
}

func TestTmuxSession(t *testing.T) {
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
	ctx := context.Background()
	server := NewTmuxServer(filepath.Join(t.TempDir(), "tmux.sock"), "/dev/null")
	t.Cleanup(func() { server.KillServer(context.Background()) })

	spawner := &TmuxSpawner{Server: server, Command: []string{"/bin/sh"}}
	backend, err := spawner.Spawn(ctx, "agent-0", Size{Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !backend.Alive() {
		t.Fatal("Alive after Spawn: got false")
	}
	if err := backend.Write(ctx, []byte("echo tmux-marker\r")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	testutil.Eventually(t, 10*time.Second, func() bool {
		snapshot, err := backend.Snapshot(ctx)
		return err == nil && strings.Count(snapshot.Content, "tmux-marker") >= 2
	}, "echoed output in capture-pane")

	if err := backend.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if server.HasSession(ctx, "agent-0") {
		t.Error("session still exists after Close")
	}
}
