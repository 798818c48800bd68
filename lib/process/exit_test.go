// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestReport(t *testing.T) {
	t.Parallel()
	base := errors.New("pool must be at least 1")
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantText   string
	}{
		{"plain", base, StatusFailure, "error: pool must be at least 1\n"},
		{"usage", Usage(base), StatusUsage, "error: pool must be at least 1\n"},
		{"wrapped usage", fmt.Errorf("loading: %w", Usage(base)), StatusUsage, "error: loading: pool must be at least 1\n"},
		{"zero status", &ExitError{Err: base}, StatusFailure, "error: pool must be at least 1\n"},
	}
	for _, test := range tests {
		var output bytes.Buffer
		if got := Report(&output, test.err); got != test.wantStatus {
			t.Errorf("%s: status %d, want %d", test.name, got, test.wantStatus)
		}
		if output.String() != test.wantText {
			t.Errorf("%s: wrote %q, want %q", test.name, output.String(), test.wantText)
		}
	}
}

func TestUsageKeepsChain(t *testing.T) {
	t.Parallel()
	base := errors.New("bad flag")
	if !errors.Is(Usage(base), base) {
		t.Error("Usage hides the wrapped error")
	}
	if Usage(nil) != nil {
		t.Error("Usage(nil) should be nil")
	}
}
