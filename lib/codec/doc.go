// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR encoding configuration for observer
// frames.
//
// Observers choose between JSON text frames and CBOR binary frames.
// Both carry the same structs: fields are tagged for each format, and
// types implementing encoding.TextMarshaler (monitor states, event
// kinds) encode as their names in either format. The encoder uses Core
// Deterministic Encoding, so the same frame always produces identical
// bytes.
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
package codec
