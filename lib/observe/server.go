// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package observe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/bureau-foundation/ruleagents/lib/agent"
	"github.com/bureau-foundation/ruleagents/lib/codec"
	"github.com/bureau-foundation/ruleagents/lib/monitor"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// inputLimit bounds one inbound websocket message.
const inputLimit = 64 * 1024

// Server exposes a pool to observers.
type Server struct {
	pool   *agent.Pool
	screen terminal.Size
	logger *slog.Logger
	router chi.Router
}

// NewServer builds the router. screen is reported in the agent listing.
func NewServer(pool *agent.Pool, screen terminal.Size, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{pool: pool, screen: screen, logger: logger}

	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Get("/agents", s.listAgents)
	router.Get("/agents/{id}/stream", s.stream)
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on address until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done. Open streams see ctx
// cancelled and close.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("observe server listening", "address", listener.Addr().String())

	errs := make(chan error, 1)
	go func() { errs <- server.Serve(listener) }()

	select {
	case err := <-errs:
		return fmt.Errorf("observe server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down observe server: %w", err)
	}
	return nil
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.pool.Agents()
	infos := make([]AgentInfo, 0, len(agents))
	for _, a := range agents {
		infos = append(infos, describe(a, s.screen))
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		s.logger.Debug("writing agent list failed", "error", err)
	}
}

// stream upgrades to a websocket and relays one agent's events.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	a, ok := s.pool.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "unknown agent", http.StatusNotFound)
		return
	}
	var messageType websocket.MessageType
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		format = "json"
		messageType = websocket.MessageText
	case "cbor":
		messageType = websocket.MessageBinary
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "agent", a.ID(), "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(inputLimit)

	logger := s.logger.With("agent", a.ID(), "subscriber", uuid.NewString())
	logger.Info("observer connected", "format", format, "remote", r.RemoteAddr)
	defer logger.Info("observer disconnected")

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		s.readInput(ctx, conn, a, logger)
	}()

	relay := &relay{conn: conn, messageType: messageType, agentID: a.ID()}
	snapshot, err := a.Snapshot(ctx)
	if err != nil {
		logger.Warn("initial snapshot failed", "error", err)
	} else if err := relay.snapshot(ctx, snapshot, a.State()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "agent closed")
				return
			}
			if err := relay.event(ctx, event, a.State()); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Debug("observer write failed", "error", err)
				}
				return
			}
		}
	}
}

// readInput forwards inbound keys until the connection closes.
func (s *Server) readInput(ctx context.Context, conn *websocket.Conn, a *agent.Agent, logger *slog.Logger) {
	for {
		messageType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var input Input
		if messageType == websocket.MessageBinary {
			err = codec.Unmarshal(data, &input)
		} else {
			err = json.Unmarshal(data, &input)
		}
		if err != nil {
			logger.Warn("malformed observer input", "error", err)
			continue
		}
		if input.Keys == "" {
			continue
		}
		if err := a.SendKeys(ctx, []byte(input.Keys)); err != nil {
			logger.Warn("forwarding observer keys failed", "error", err)
			continue
		}
		logger.Debug("observer keys forwarded", "bytes", len(input.Keys))
	}
}

// relay writes frames in one format and suppresses snapshot frames
// identical to the last one sent.
type relay struct {
	conn        *websocket.Conn
	messageType websocket.MessageType
	agentID     string
	last        *terminal.Snapshot
}

func (r *relay) snapshot(ctx context.Context, snapshot terminal.Snapshot, state monitor.State) error {
	return r.event(ctx, monitor.Event{Kind: monitor.EventSnapshot, At: snapshot.CapturedAt, Snapshot: snapshot}, state)
}

func (r *relay) event(ctx context.Context, event monitor.Event, state monitor.State) error {
	if event.Kind == monitor.EventSnapshot {
		if r.last != nil && sameScreen(*r.last, event.Snapshot) {
			return nil
		}
		snapshot := event.Snapshot
		r.last = &snapshot
	}
	return r.write(ctx, frameFor(r.agentID, event, state))
}

func (r *relay) write(ctx context.Context, frame Frame) error {
	var data []byte
	var err error
	if r.messageType == websocket.MessageBinary {
		data, err = codec.Marshal(frame)
	} else {
		data, err = json.Marshal(frame)
	}
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", frame.Type, err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return r.conn.Write(writeCtx, r.messageType, data)
}

func sameScreen(a, b terminal.Snapshot) bool {
	return a.Content == b.Content && a.CursorX == b.CursorX && a.CursorY == b.CursorY
}
