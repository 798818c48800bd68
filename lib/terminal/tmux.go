// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// TmuxServer is a private tmux server identified by its socket path.
// Every command carries -S, so the user's own tmux server is never
// touched.
type TmuxServer struct {
	socketPath string
	configFile string // "-f" on new-session; "/dev/null" skips ~/.tmux.conf
}

// NewTmuxServer returns a handle for the server at socketPath. The
// server itself starts lazily with the first session.
func NewTmuxServer(socketPath, configFile string) *TmuxServer {
	return &TmuxServer{socketPath: socketPath, configFile: configFile}
}

// SocketPath is what an operator passes to "tmux -S" to attach.
func (s *TmuxServer) SocketPath() string { return s.socketPath }

// Run executes a tmux subcommand against this server and returns its
// combined output.
func (s *TmuxServer) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-S", s.socketPath}, args...)
	output, err := exec.CommandContext(ctx, "tmux", fullArgs...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w (%s)",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// NewSession starts a detached session of the given size running
// command (or the default shell when command is empty).
func (s *TmuxServer) NewSession(ctx context.Context, name string, size Size, command ...string) error {
	var args []string
	if s.configFile != "" {
		args = append(args, "-f", s.configFile)
	}
	args = append(args, "-S", s.socketPath, "new-session", "-d", "-s", name,
		"-x", strconv.Itoa(size.Cols), "-y", strconv.Itoa(size.Rows))
	args = append(args, command...)
	if output, err := exec.CommandContext(ctx, "tmux", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("tmux new-session %q: %w (%s)", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// HasSession reports whether the named session exists.
func (s *TmuxServer) HasSession(ctx context.Context, name string) bool {
	_, err := s.Run(ctx, "has-session", "-t", name)
	return err == nil
}

// KillSession ends a session. A session or server that is already gone
// is not an error.
func (s *TmuxServer) KillSession(ctx context.Context, name string) error {
	_, err := s.Run(ctx, "kill-session", "-t", name)
	if err != nil && isGone(err) {
		return nil
	}
	return err
}

// KillServer stops the server and every session on it.
func (s *TmuxServer) KillServer(ctx context.Context) error {
	_, err := s.Run(ctx, "kill-server")
	if err != nil && (isGone(err) || strings.Contains(err.Error(), "server exited unexpectedly")) {
		return nil
	}
	return err
}

func isGone(err error) bool {
	message := err.Error()
	return strings.Contains(message, "can't find session") ||
		strings.Contains(message, "no server running")
}

// TmuxSpawner creates one tmux session per agent on Server.
type TmuxSpawner struct {
	Server *TmuxServer

	// Command replaces the session's default shell when non-empty.
	Command []string
}

// Spawn creates the session. An existing session with the same name is
// replaced.
func (s *TmuxSpawner) Spawn(ctx context.Context, name string, size Size) (Backend, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	if s.Server.HasSession(ctx, name) {
		if err := s.Server.KillSession(ctx, name); err != nil {
			return nil, fmt.Errorf("replacing stale session %s: %w", name, err)
		}
	}
	if err := s.Server.NewSession(ctx, name, size, s.Command...); err != nil {
		return nil, err
	}
	return &Tmux{server: s.Server, session: name}, nil
}

// Tmux is a session on a TmuxServer.
type Tmux struct {
	server  *TmuxServer
	session string
}

// Write types data into the session. Printable runs go through
// "send-keys -l"; control characters are mapped to tmux key names.
func (t *Tmux) Write(ctx context.Context, data []byte) error {
	for _, part := range splitKeys(string(data)) {
		args := []string{"send-keys", "-t", t.session}
		if part.literal {
			args = append(args, "-l", "--", part.text)
		} else {
			args = append(args, part.text)
		}
		if _, err := t.server.Run(ctx, args...); err != nil {
			return unavailable("writing to "+t.session, err)
		}
	}
	return nil
}

// Snapshot captures the visible pane and cursor.
func (t *Tmux) Snapshot(ctx context.Context) (Snapshot, error) {
	content, err := t.server.Run(ctx, "capture-pane", "-p", "-t", t.session)
	if err != nil {
		return Snapshot{}, unavailable("capturing "+t.session, err)
	}
	position, err := t.server.Run(ctx, "display-message", "-p", "-t", t.session, "#{cursor_x} #{cursor_y}")
	if err != nil {
		return Snapshot{}, unavailable("reading cursor of "+t.session, err)
	}
	x, y, err := parseCursor(position)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading cursor of %s: %w", t.session, err)
	}
	return Snapshot{
		Content: renderRows(strings.Split(strings.TrimSuffix(content, "\n"), "\n")),
		CursorX: x,
		CursorY: y,
	}, nil
}

// Resize changes the session's window size.
func (t *Tmux) Resize(ctx context.Context, size Size) error {
	if err := size.Validate(); err != nil {
		return err
	}
	_, err := t.server.Run(ctx, "resize-window", "-t", t.session,
		"-x", strconv.Itoa(size.Cols), "-y", strconv.Itoa(size.Rows))
	return err
}

// Alive checks both that the session exists and that its pane process
// still answers signal 0.
func (t *Tmux) Alive() bool {
	ctx := context.Background()
	output, err := t.server.Run(ctx, "display-message", "-p", "-t", t.session, "#{pane_pid}")
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil || pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// Close kills the session.
func (t *Tmux) Close() error {
	return t.server.KillSession(context.Background(), t.session)
}

// Session is the tmux session name.
func (t *Tmux) Session() string { return t.session }

type keyPart struct {
	text    string
	literal bool
}

var tmuxKeyNames = map[rune]string{
	'\r':   "Enter",
	'\n':   "Enter",
	'\t':   "Tab",
	'\x1b': "Escape",
	'\x7f': "BSpace",
	'\b':   "BSpace",
}

// splitKeys breaks text into literal runs and named control keys.
// Control characters without a tmux name are sent as C-<letter>.
func splitKeys(text string) []keyPart {
	var parts []keyPart
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, keyPart{text: literal.String(), literal: true})
			literal.Reset()
		}
	}
	for _, r := range text {
		if name, ok := tmuxKeyNames[r]; ok {
			flush()
			parts = append(parts, keyPart{text: name})
			continue
		}
		if r > 0 && r < 0x20 {
			flush()
			parts = append(parts, keyPart{text: "C-" + string(rune('a'+r-1))})
			continue
		}
		literal.WriteRune(r)
	}
	flush()
	return parts
}

func parseCursor(output string) (x, y int, err error) {
	fields := strings.Fields(output)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected cursor output %q", strings.TrimSpace(output))
	}
	if x, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("parsing cursor_x %q: %w", fields[0], err)
	}
	if y, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, fmt.Errorf("parsing cursor_y %q: %w", fields[1], err)
	}
	return x, y, nil
}
