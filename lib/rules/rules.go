// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules matches new terminal output against the ordered rule
// list.
//
// Order is priority: Match tries rules in declaration order and stops
// at the first whose pattern matches, so an earlier rule always shadows
// a later one for the same text. Output is stripped of ANSI escape
// sequences and tested line by line (lines split on "\n" and "\r"),
// then as a whole, before moving to the next rule.
//
// Quiet rules fire on the absence of output instead: once an agent has
// produced no new content for a rule's duration, the rule fires once,
// and rearms when output resumes. A [QuietTracker] holds that state for
// one agent.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/ruleagents/lib/action"
)

// Rule reacts to terminal content. Exactly one of Pattern and Quiet is
// set.
type Rule struct {
	// Name identifies the rule in logs. Defaults to "rule-<index>".
	Name string

	// Pattern fires the rule when it matches new output.
	Pattern *regexp.Regexp

	// Quiet fires the rule after this long without new output.
	Quiet time.Duration

	Action action.Action
}

// Set is an ordered, immutable rule list.
type Set struct {
	patterns []*Rule
	quiet    []*Rule
}

// NewSet validates rules and keeps their order.
func NewSet(rules []Rule) (*Set, error) {
	set := &Set{}
	for index := range rules {
		rule := rules[index]
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", index)
		}
		switch {
		case rule.Pattern != nil && rule.Quiet > 0:
			return nil, fmt.Errorf("%s: pattern and quiet duration are exclusive", rule.Name)
		case rule.Pattern != nil:
			set.patterns = append(set.patterns, &rule)
		case rule.Quiet > 0:
			set.quiet = append(set.quiet, &rule)
		default:
			return nil, fmt.Errorf("%s: needs a pattern or a quiet duration", rule.Name)
		}
		if err := rule.Action.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Name, err)
		}
	}
	return set, nil
}

// Len is the number of pattern rules.
func (s *Set) Len() int { return len(s.patterns) }

// QuietRules returns the quiet rules in order.
func (s *Set) QuietRules() []*Rule { return s.quiet }

// Match is a successful pattern match.
type Match struct {
	Rule *Rule

	// Groups holds the whole match followed by each capture group.
	Groups []string
}

// Vars binds the capture groups as ${0}..${N}.
func (m Match) Vars() action.Vars { return action.Captures(m.Groups) }

// Match returns the first rule matching chunk.
func (s *Set) Match(chunk string) (Match, bool) {
	if len(s.patterns) == 0 {
		return Match{}, false
	}
	clean := ansi.Strip(chunk)
	lines := strings.FieldsFunc(clean, func(r rune) bool { return r == '\n' || r == '\r' })
	for _, rule := range s.patterns {
		for _, line := range lines {
			if groups := rule.Pattern.FindStringSubmatch(line); groups != nil {
				return Match{Rule: rule, Groups: groups}, true
			}
		}
		if groups := rule.Pattern.FindStringSubmatch(clean); groups != nil {
			return Match{Rule: rule, Groups: groups}, true
		}
	}
	return Match{}, false
}

// QuietTracker decides when quiet rules fire for one agent. It is not
// safe for concurrent use; each agent's event loop owns one.
type QuietTracker struct {
	rules      []*Rule
	lastOutput time.Time
	fired      []bool
}

// NewQuietTracker starts the quiet clock at start.
func (s *Set) NewQuietTracker(start time.Time) *QuietTracker {
	return &QuietTracker{rules: s.quiet, lastOutput: start, fired: make([]bool, len(s.quiet))}
}

// Output records new output at now and rearms every rule.
func (q *QuietTracker) Output(now time.Time) {
	q.lastOutput = now
	for i := range q.fired {
		q.fired[i] = false
	}
}

// Due returns, in order, the rules whose quiet duration has elapsed at
// now and that have not fired since the last output.
func (q *QuietTracker) Due(now time.Time) []*Rule {
	var due []*Rule
	quiet := now.Sub(q.lastOutput)
	for i, rule := range q.rules {
		if !q.fired[i] && quiet >= rule.Quiet {
			q.fired[i] = true
			due = append(due, rule)
		}
	}
	return due
}
