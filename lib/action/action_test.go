// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"testing"
	"time"
)

func TestVarsApply(t *testing.T) {
	t.Parallel()
	vars := Captures([]string{"issue 12", "12", "a", "b", "c", "d", "e", "f", "g", "h", "TEN"})
	tests := []struct {
		input string
		want  string
	}{
		{"fix ${1}\r", "fix 12\r"},
		{"${0}", "issue 12"},
		{"${10}", "TEN"},
		{"${1}${1}", "1212"},
		{"no vars", "no vars"},
		{"${99}", "${99}"},
	}
	for _, test := range tests {
		if got := vars.Apply(test.input); got != test.want {
			t.Errorf("Apply(%q): got %q, want %q", test.input, got, test.want)
		}
	}
}

func TestVarsApplyIsVerbatim(t *testing.T) {
	t.Parallel()
	vars := Vars{"<task>": "echo ${1} <task>"}
	if got := vars.Apply("run <task>"); got != "run echo ${1} <task>" {
		t.Errorf("Apply: got %q, want replacement inserted without re-expansion", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		`\r`:      "\r",
		`y\r`:     "y\r",
		"\r":      "\r",
		`\e[A`:    "\x1b[A",
		`a\tb\n`:  "a\tb\n",
		`C:\path`: `C:\path`,
	}
	for input, want := range tests {
		if got := NormalizeKey(input); got != want {
			t.Errorf("NormalizeKey(%q): got %q, want %q", input, got, want)
		}
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{SendKeys, RunWorkflow, Enqueue, EnqueueDedupe, Pause} {
		parsed, err := ParseKind(kind.String())
		if err != nil || parsed != kind {
			t.Errorf("ParseKind(%q): got %v, %v", kind.String(), parsed, err)
		}
	}
	if _, err := ParseKind("explode"); err == nil {
		t.Error("ParseKind(explode): expected error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := []Action{
		{Kind: SendKeys, Keys: []string{"y"}},
		{Kind: RunWorkflow, Workflow: "w"},
		{Kind: Enqueue, Queue: "q", Command: "ls"},
		{Kind: EnqueueDedupe, Queue: "q", Command: "ls"},
		{Kind: Pause, Duration: time.Second},
	}
	for _, act := range valid {
		if err := act.Validate(); err != nil {
			t.Errorf("Validate(%v): %v", act, err)
		}
	}
	invalid := []Action{
		{Kind: SendKeys},
		{Kind: RunWorkflow},
		{Kind: Enqueue, Command: "ls"},
		{Kind: EnqueueDedupe, Queue: "q", Command: "  "},
		{Kind: Pause},
		{},
	}
	for _, act := range invalid {
		if err := act.Validate(); err == nil {
			t.Errorf("Validate(%+v): expected error", act)
		}
	}
}

func TestWorkflowValidateRejectsNesting(t *testing.T) {
	t.Parallel()
	workflow := Workflow{Name: "outer", Steps: []Action{{Kind: RunWorkflow, Workflow: "inner"}}}
	if err := workflow.Validate(); err == nil {
		t.Error("nested workflow: expected error")
	}
	if err := (Workflow{Name: "empty"}).Validate(); err == nil {
		t.Error("empty workflow: expected error")
	}
}
