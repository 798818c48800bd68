// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/ruleagents/lib/clock"
	"github.com/bureau-foundation/ruleagents/lib/terminal"
)

// DefaultPromptPatterns recognise common shell prompts: user@host:path$,
// a root "#", a ">" continuation, and bare "$ " / "# ".
var DefaultPromptPatterns = []string{
	`.*@.*:\S*\$ $`,
	`.*# $`,
	`.*> $`,
	`\$ $`,
	`# $`,
}

// Config tunes a Monitor. Zero durations and sizes take the defaults.
type Config struct {
	// Interval between captures. Default 500ms.
	Interval time.Duration

	// WaitTimeout is how long output must be unchanged before a
	// non-idle session is in Wait. Default 2s.
	WaitTimeout time.Duration

	// StuckTimeout is how long a session may sit in Wait before a
	// Stuck event. Default 30s.
	StuckTimeout time.Duration

	// HistorySize is the number of captures retained for alignment
	// and chunk deduplication. Default 10.
	HistorySize int

	// PromptPatterns are tried in order against the last non-blank
	// line. Nil means DefaultPromptPatterns.
	PromptPatterns []*regexp.Regexp
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	config := Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 500 * time.Millisecond
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 2 * time.Second
	}
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = 30 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 10
	}
	if c.PromptPatterns == nil {
		patterns, err := CompilePatterns(DefaultPromptPatterns)
		if err != nil {
			panic(err)
		}
		c.PromptPatterns = patterns
	}
}

// CompilePatterns compiles prompt patterns in order, reporting the
// first that fails.
func CompilePatterns(sources []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(sources))
	for index, source := range sources {
		pattern, err := regexp.Compile(source)
		if err != nil {
			return nil, fmt.Errorf("prompt pattern %d %q: %w", index, source, err)
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

// Source is the part of a session backend the monitor reads.
type Source interface {
	Snapshot(ctx context.Context) (terminal.Snapshot, error)
}

// Monitor watches one session. Observe is the pure step; Run drives it
// from a ticker. Only one goroutine may call Observe or Run; State and
// Latest are safe from any goroutine.
type Monitor struct {
	config Config
	source Source
	clock  clock.Clock
	logger *slog.Logger

	history *history

	// Fields below are owned by the polling goroutine.
	lastChange    time.Time
	waitSince     time.Time
	stuckReported bool
	started       bool

	mu     sync.Mutex
	state  State
	latest terminal.Snapshot
	seen   bool
}

// New returns a Monitor for source. A nil logger discards.
func New(source Source, config Config, clk clock.Clock, logger *slog.Logger) *Monitor {
	config.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		config:  config,
		source:  source,
		clock:   clk,
		logger:  logger,
		history: newHistory(config.HistorySize),
		state:   Idle,
	}
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config { return m.config }

// State returns the current classification.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Latest returns the most recent capture, if any.
func (m *Monitor) Latest() (terminal.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.seen
}

// Run captures immediately and then every Interval until ctx is done,
// passing each event to emit in order. Capture failures are logged and
// the loop continues. Returns ctx.Err().
func (m *Monitor) Run(ctx context.Context, emit func(Event)) error {
	ticker := m.clock.NewTicker(m.config.Interval)
	defer ticker.Stop()

	failing := false
	for {
		events, err := m.Poll(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			if !failing {
				m.logger.Warn("capturing terminal failed", "error", err)
			}
			failing = true
		default:
			if failing {
				m.logger.Info("terminal capture recovered")
			}
			failing = false
			for _, event := range events {
				emit(event)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll takes one capture from the source and runs Observe on it.
func (m *Monitor) Poll(ctx context.Context) ([]Event, error) {
	snapshot, err := m.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = m.clock.Now()
	}
	return m.Observe(snapshot), nil
}

// Observe folds one capture into the monitor and returns the resulting
// events in this order: always a snapshot event, then an output event
// if new text appeared, a transition if the state changed, and a stuck
// event when the Wait episode first crosses StuckTimeout.
func (m *Monitor) Observe(snapshot terminal.Snapshot) []Event {
	now := snapshot.CapturedAt
	if now.IsZero() {
		now = m.clock.Now()
		snapshot.CapturedAt = now
	}
	if !m.started {
		m.started = true
		m.lastChange = now
	}

	current := screenLines(snapshot.Content)
	previous, hasPrevious := m.history.latest()
	changed := !hasPrevious ||
		previous.snapshot.Content != snapshot.Content ||
		previous.snapshot.CursorX != snapshot.CursorX ||
		previous.snapshot.CursorY != snapshot.CursorY
	if changed {
		m.lastChange = now
	}

	events := []Event{{Kind: EventSnapshot, At: now, Snapshot: snapshot}}

	currentFrame := frame{snapshot: snapshot, lines: current}
	if changed {
		if chunk, hash, ok := m.extract(current); ok {
			currentFrame.chunkHash = hash
			currentFrame.emitted = true
			events = append(events, Event{Kind: EventOutput, At: now, Snapshot: snapshot, Chunk: chunk})
		}
	}

	m.mu.Lock()
	from := m.state
	to := m.classify(snapshot, changed, now)
	m.state = to
	m.latest = snapshot
	m.seen = true
	m.mu.Unlock()

	if to != from {
		m.logger.Debug("session state changed", "from", from, "to", to)
		events = append(events, Event{
			Kind:       EventTransition,
			At:         now,
			Snapshot:   snapshot,
			Transition: &Transition{From: from, To: to, At: now, Snapshot: snapshot},
		})
		if to == Wait {
			m.waitSince = m.lastChange
			m.stuckReported = false
		}
	}

	if to == Wait && !m.stuckReported {
		if quiet := now.Sub(m.waitSince); quiet >= m.config.StuckTimeout {
			m.stuckReported = true
			m.logger.Warn("session appears stuck", "quiet", quiet)
			events = append(events, Event{Kind: EventStuck, At: now, Snapshot: snapshot, Quiet: quiet})
		}
	}

	m.history.push(currentFrame)
	return events
}

// classify applies Idle > Active > Wait. Called with m.mu held.
func (m *Monitor) classify(snapshot terminal.Snapshot, changed bool, now time.Time) State {
	if m.atPrompt(snapshot) {
		return Idle
	}
	if changed {
		return Active
	}
	if now.Sub(m.lastChange) >= m.config.WaitTimeout {
		return Wait
	}
	return m.state
}

// atPrompt tests the last non-blank line against the prompt patterns.
// Screen rows are stored right-trimmed, so when the cursor sits on
// that line beyond its text the line is padded out to the cursor to
// restore the space most prompts end with.
func (m *Monitor) atPrompt(snapshot terminal.Snapshot) bool {
	lines := snapshot.Lines()
	index, line := lastNonBlank(lines)
	if index < 0 {
		return false
	}
	if snapshot.CursorY == index {
		if width := utf8.RuneCountInString(line); snapshot.CursorX > width {
			line += strings.Repeat(" ", snapshot.CursorX-width)
		}
	}
	for _, pattern := range m.config.PromptPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// extract computes the new chunk for current and checks it against the
// chunks emitted within the history window.
func (m *Monitor) extract(current []string) (string, [32]byte, bool) {
	candidates := make([][]string, 0, m.history.len())
	m.history.each(func(f *frame) { candidates = append(candidates, f.lines) })

	fresh := newLines(candidates, current)
	if len(fresh) == 0 {
		return "", [32]byte{}, false
	}
	chunk := strings.Join(fresh, "\n")
	hash := blake3.Sum256([]byte(chunk))

	duplicate := false
	m.history.each(func(f *frame) {
		if f.emitted && f.chunkHash == hash {
			duplicate = true
		}
	})
	if duplicate {
		m.logger.Debug("suppressed redrawn chunk", "lines", len(fresh))
		return "", [32]byte{}, false
	}
	return chunk, hash, true
}
