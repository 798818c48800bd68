// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"
	"github.com/hinshun/vt10x"
)

// PTY is a shell running on a pseudo-terminal. A reader goroutine
// copies everything the shell prints into a vt10x virtual screen;
// Snapshot renders that screen.
type PTY struct {
	name   string
	logger *slog.Logger

	cmd    *exec.Cmd
	master *os.File
	screen vt10x.Terminal

	// writeMu serializes writes to master so keystrokes from concurrent
	// actions are not interleaved mid-sequence.
	writeMu sync.Mutex

	exited  chan struct{}
	waitErr error
}

// PTYSpawner starts shells on pseudo-terminals.
type PTYSpawner struct {
	// Shell is the program to run. Empty means $SHELL, then /bin/sh.
	Shell string

	// Args are passed to Shell.
	Args []string

	// Env is appended to the current process environment.
	Env []string

	// Dir is the working directory. Empty inherits the process's.
	Dir string

	Logger *slog.Logger
}

// Spawn starts a new shell.
func (s *PTYSpawner) Spawn(ctx context.Context, name string, size Size) (Backend, error) {
	return StartPTY(name, size, s)
}

// StartPTY starts the shell described by options on a new PTY.
func StartPTY(name string, size Size, options *PTYSpawner) (*PTY, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	shell := options.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.Command(shell, options.Args...)
	cmd.Dir = options.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, options.Env...)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(size.Cols),
		Rows: uint16(size.Rows),
	})
	if err != nil {
		return nil, fmt.Errorf("starting %s on pty for %s: %w", shell, name, err)
	}

	session := &PTY{
		name:   name,
		logger: logger.With("agent", name),
		cmd:    cmd,
		master: master,
		exited: make(chan struct{}),
	}
	// Device status queries (cursor position reports and the like) are
	// answered by the virtual screen straight back into the shell.
	session.screen = vt10x.New(vt10x.WithSize(size.Cols, size.Rows), vt10x.WithWriter(master))

	go session.pump()
	go func() {
		session.waitErr = cmd.Wait()
		close(session.exited)
	}()

	session.logger.Debug("pty session started", "shell", shell, "pid", cmd.Process.Pid)
	return session, nil
}

func (p *PTY) pump() {
	buffer := make([]byte, 32*1024)
	for {
		n, err := p.master.Read(buffer)
		if n > 0 {
			if _, writeErr := p.screen.Write(buffer[:n]); writeErr != nil {
				p.logger.Warn("virtual screen rejected output", "error", writeErr)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Debug("pty read ended", "error", err)
			}
			return
		}
	}
}

// Write sends data to the shell's input.
func (p *PTY) Write(ctx context.Context, data []byte) error {
	if !p.Alive() {
		return unavailable("writing to "+p.name, p.waitErr)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.master.Write(data); err != nil {
		return unavailable("writing to "+p.name, err)
	}
	return nil
}

// Snapshot renders the virtual screen.
func (p *PTY) Snapshot(ctx context.Context) (Snapshot, error) {
	if !p.Alive() {
		return Snapshot{}, unavailable("capturing "+p.name, p.waitErr)
	}
	// The geometry is read under the screen lock so a concurrent
	// Resize cannot shrink the grid mid-render.
	p.screen.Lock()
	defer p.screen.Unlock()
	cols, rowCount := p.screen.Size()
	rows := make([]string, rowCount)
	var line strings.Builder
	for y := 0; y < rowCount; y++ {
		line.Reset()
		for x := 0; x < cols; x++ {
			char := p.screen.Cell(x, y).Char
			if char == 0 {
				char = ' '
			}
			line.WriteRune(char)
		}
		rows[y] = line.String()
	}
	cursor := p.screen.Cursor()
	return Snapshot{
		Content: renderRows(rows),
		CursorX: cursor.X,
		CursorY: cursor.Y,
	}, nil
}

// Resize changes both the kernel window size and the virtual screen.
func (p *PTY) Resize(ctx context.Context, size Size) error {
	if err := size.Validate(); err != nil {
		return err
	}
	if err := pty.Setsize(p.master, &pty.Winsize{Cols: uint16(size.Cols), Rows: uint16(size.Rows)}); err != nil {
		return fmt.Errorf("resizing %s: %w", p.name, err)
	}
	p.screen.Resize(size.Cols, size.Rows)
	return nil
}

// Alive reports whether the shell is still running.
func (p *PTY) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Exited is closed when the shell process exits.
func (p *PTY) Exited() <-chan struct{} { return p.exited }

// Close kills the shell and closes the PTY.
func (p *PTY) Close() error {
	if p.Alive() && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("killing shell", "error", err)
		}
	}
	<-p.exited
	if err := p.master.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("closing pty for %s: %w", p.name, err)
	}
	return nil
}
