// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit statuses used by the binary.
const (
	// StatusFailure is a runtime failure after startup.
	StatusFailure = 1

	// StatusUsage is a bad flag or an invalid configuration: nothing
	// was started.
	StatusUsage = 2
)

// ExitError attaches an exit status to an error returned from run().
type ExitError struct {
	Status int
	Err    error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Usage marks err as a usage or configuration error.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Status: StatusUsage, Err: err}
}

// Report writes "error: err" to w and returns the exit status: the
// Status of the first ExitError in err's chain, otherwise
// StatusFailure.
func Report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Status != 0 {
		return exitErr.Status
	}
	return StatusFailure
}

// Fatal reports err on stderr and exits. Use it in main() for errors
// from run(), where the structured logger may not exist yet.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}
