// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package observe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/bureau-foundation/ruleagents/lib/agent"
	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/codec"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
	"github.com/bureau-foundation/ruleagents/lib/testutil"
)

var screen = terminal.Size{Cols: 80, Rows: 24}

func newTestServer(t *testing.T, agents int) (*httptest.Server, *agent.Pool, *terminal.FakeSpawner) {
	t.Helper()
	spawner := &terminal.FakeSpawner{}
	pool, err := agent.Spawn(context.Background(), spawner, agent.SpawnOptions{
		Size:   agents,
		Screen: screen,
		Clock:  clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("agent.Spawn: %v", err)
	}
	server := httptest.NewServer(NewServer(pool, screen, nil).Handler())
	t.Cleanup(func() {
		server.Close()
		pool.Close()
	})
	return server, pool, spawner
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messageType, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame Frame
	if messageType == websocket.MessageBinary {
		err = codec.Unmarshal(data, &frame)
	} else {
		err = json.Unmarshal(data, &frame)
	}
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

// readUntil reads frames until one has the given type.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) Frame {
	t.Helper()
	for range 20 {
		if frame := readFrame(t, conn); frame.Type == frameType {
			return frame
		}
	}
	t.Fatalf("no %s frame within 20 frames", frameType)
	return Frame{}
}

func TestListAgents(t *testing.T) {
	t.Parallel()
	server, _, _ := newTestServer(t, 2)

	response, err := http.Get(server.URL + "/agents")
	if err != nil {
		t.Fatalf("GET /agents: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", response.StatusCode)
	}
	var infos []AgentInfo
	if err := json.NewDecoder(response.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != "agent-0" || infos[1].ID != "agent-1" {
		t.Fatalf("agents: got %+v", infos)
	}
	if infos[1].Index != 1 || infos[1].State != "idle" || !infos[1].Alive || infos[1].Cols != 80 {
		t.Errorf("agent-1: got %+v", infos[1])
	}
}

func TestStreamUnknownAgent(t *testing.T) {
	t.Parallel()
	server, _, _ := newTestServer(t, 1)
	response, err := http.Get(server.URL + "/agents/agent-7/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", response.StatusCode)
	}
}

func TestStreamUnknownFormat(t *testing.T) {
	t.Parallel()
	server, _, _ := newTestServer(t, 1)
	response, err := http.Get(server.URL + "/agents/agent-0/stream?format=xml")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", response.StatusCode)
	}
}

func TestStreamStateChangeAndInput(t *testing.T) {
	t.Parallel()
	server, pool, spawner := newTestServer(t, 1)
	fake := spawner.Get("agent-0")
	fake.SetScreen("user@host:~$ ", 13, 0)

	conn := dial(t, server, "/agents/agent-0/stream")
	initial := readFrame(t, conn)
	if initial.Type != FrameSnapshot || initial.Agent != "agent-0" || initial.State != "idle" {
		t.Fatalf("initial frame: got %+v", initial)
	}
	if initial.Snapshot == nil || initial.Snapshot.Content != "user@host:~$ " {
		t.Fatalf("initial snapshot: got %+v", initial.Snapshot)
	}

	fake.SetScreen("user@host:~$ make\nbuilding", 8, 1)
	a, _ := pool.At(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, nil) }()
	defer func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "agent run exit")
	}()

	state := readUntil(t, conn, FrameState)
	if state.From != "idle" || state.State != "active" {
		t.Errorf("state frame: got from=%s to=%s", state.From, state.State)
	}

	message, _ := json.Marshal(Input{Keys: "q\r"})
	writeCtx, writeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer writeCancel()
	if err := conn.Write(writeCtx, websocket.MessageText, message); err != nil {
		t.Fatalf("write input: %v", err)
	}
	testutil.Eventually(t, 5*time.Second, func() bool { return fake.Written() == "q\r" }, "keys forwarded")
}

func TestStreamCBOR(t *testing.T) {
	t.Parallel()
	server, _, spawner := newTestServer(t, 2)
	fake := spawner.Get("agent-1")
	fake.SetScreen("compiling", 9, 0)

	conn := dial(t, server, "/agents/agent-1/stream?format=cbor")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messageType, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if messageType != websocket.MessageBinary {
		t.Fatalf("message type: got %v, want binary", messageType)
	}
	var frame Frame
	if err := codec.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Type != FrameSnapshot || frame.Agent != "agent-1" || frame.Snapshot.Content != "compiling" {
		t.Errorf("frame: got %+v", frame)
	}

	input, err := codec.Marshal(Input{Keys: "y"})
	if err != nil {
		t.Fatalf("encode input: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, input); err != nil {
		t.Fatalf("write input: %v", err)
	}
	testutil.Eventually(t, 5*time.Second, func() bool { return fake.Written() == "y" }, "cbor keys forwarded")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()
	spawner := &terminal.FakeSpawner{}
	pool, err := agent.Spawn(context.Background(), spawner, agent.SpawnOptions{Size: 1, Screen: screen})
	if err != nil {
		t.Fatalf("agent.Spawn: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(pool, screen, nil).ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "server shutdown"); err != nil {
		t.Errorf("ListenAndServe: %v", err)
	}
}
