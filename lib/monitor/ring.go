// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import "github.com/bureau-foundation/ruleagents/lib/terminal"

// frame is one retained capture: the snapshot, its split lines, and
// the hash of the chunk emitted for it (zero when none was).
type frame struct {
	snapshot  terminal.Snapshot
	lines     []string
	chunkHash [32]byte
	emitted   bool
}

// history is a fixed-capacity ring of frames. Slots are allocated once
// and overwritten in place.
type history struct {
	slots []frame
	head  int // index of the next write
	count int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{slots: make([]frame, capacity)}
}

// push stores f, evicting the oldest frame when full.
func (h *history) push(f frame) {
	h.slots[h.head] = f
	h.head = (h.head + 1) % len(h.slots)
	if h.count < len(h.slots) {
		h.count++
	}
}

// latest returns the most recently pushed frame.
func (h *history) latest() (*frame, bool) {
	if h.count == 0 {
		return nil, false
	}
	return &h.slots[(h.head-1+len(h.slots))%len(h.slots)], true
}

// each visits frames newest first.
func (h *history) each(visit func(*frame)) {
	for i := 1; i <= h.count; i++ {
		visit(&h.slots[(h.head-i+len(h.slots))%len(h.slots)])
	}
}

func (h *history) len() int { return h.count }
