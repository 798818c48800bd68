// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestBuildString(t *testing.T) {
	tests := []struct {
		build Build
		want  string
	}{
		{Build{Version: "1.2.0", Commit: "abc1234", Time: "2026-02-10T00:00:00Z"}, "1.2.0 (abc1234, 2026-02-10T00:00:00Z)"},
		{Build{Version: "1.2.0", Commit: "abc1234", Dirty: true}, "1.2.0 (abc1234-dirty, unknown)"},
		{Build{Version: "0.1.0-dev"}, "0.1.0-dev (unknown, unknown)"},
	}
	for _, test := range tests {
		if got := test.build.String(); got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Version) || !strings.Contains(full, "Platform: ") {
		t.Errorf("unexpected Full output: %q", full)
	}
}
