// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package observe serves the agent pool to human observers over HTTP.
//
// Routes:
//
//	GET /agents             JSON list of agents with their state and size
//	GET /agents/{id}/stream websocket of Frames for one agent
//
// A stream starts with a snapshot frame of the current screen, then
// carries every state change, every new output chunk, every stuck
// report, and a snapshot frame whenever the screen differs from the
// last one sent. Frames are JSON text messages unless the client asks
// for ?format=cbor, which switches to CBOR binary messages encoded by
// lib/codec.
//
// Clients may send {"keys": "..."} in either format; the keys are
// written to the agent's terminal verbatim. Observers that fall behind
// lose frames rather than slowing the agent down.
package observe
