// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue is the in-memory named FIFO that connects command
// output to queue-triggered entries.
//
// Each named queue has its own mutex. Enqueue appends an item and pushes
// it immediately to every listener registered on that queue; each
// listener receives its own copy and consumes its copies one at a time,
// in order, on its own goroutine. A slow listener therefore never blocks
// producers or other listeners.
//
// EnqueueDedupe additionally remembers every item it has accepted (by
// BLAKE3 hash) and drops repeats. The memory lasts for the process
// lifetime unless the Manager was built with a SeenLimit, in which case
// the oldest remembered items are forgotten first.
//
// Items enqueued before any listener exists are held and handed to the
// first listener that registers.
package queue
