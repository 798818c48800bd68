// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// Result is the outcome of a command that exited zero.
type Result struct {
	// Lines is stdout split on newlines, with carriage returns and a
	// final empty line removed. Blank lines are kept.
	Lines    []string
	Stderr   string
	Duration time.Duration
}

// ExecutionError reports a command that could not start or exited
// non-zero.
type ExecutionError struct {
	Command string

	// ExitCode is the process exit status, or -1 when the process
	// never ran or was killed by a signal.
	ExitCode int

	// Stderr is the tail of the command's standard error.
	Stderr string

	Err error
}

func (e *ExecutionError) Error() string {
	message := fmt.Sprintf("command %q failed", e.Command)
	if e.ExitCode >= 0 {
		message = fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	if e.Stderr != "" {
		message += ": " + e.Stderr
	} else if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// stderrLimit caps how much stderr an ExecutionError carries.
const stderrLimit = 512

// Runner executes command lines with a shell.
type Runner struct {
	// Shell defaults to "sh". Commands run as Shell -c <command>.
	Shell string

	// Dir is the working directory; empty inherits the process's.
	Dir string

	// Env is appended to the process environment.
	Env []string

	Logger *slog.Logger
}

// Run executes commandLine and waits for it. Cancelling ctx kills the
// process.
func (r *Runner) Run(ctx context.Context, commandLine string) (Result, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.CommandContext(ctx, shell, "-c", commandLine)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	duration := time.Since(started)
	if err != nil {
		failure := &ExecutionError{
			Command:  commandLine,
			ExitCode: -1,
			Stderr:   tail(strings.TrimSpace(stderr.String()), stderrLimit),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
		logger.Debug("command failed", "command", commandLine, "exit_code", failure.ExitCode, "duration", duration)
		return Result{}, failure
	}

	logger.Debug("command finished", "command", commandLine, "bytes", stdout.Len(), "duration", duration)
	return Result{
		Lines:    SplitLines(stdout.String()),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}

// SplitLines splits output on "\n", drops a trailing "\r" from each
// line, and omits the empty string after a final newline.
func SplitLines(output string) []string {
	if output == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// tail keeps at most the last limit bytes of text, starting on a rune
// boundary.
func tail(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	start := len(text) - limit
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return "..." + text[start:]
}
