// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the ruleagents configuration file.
//
// Configuration comes from a single file, ruleagents.yaml by default,
// or the path in RULEAGENTS_CONFIG or the --config flag. Files ending
// in .json or .jsonc are accepted too: comments and trailing commas are
// stripped and the result goes through the same YAML decoder, so every
// format shares one schema and one set of defaults.
//
// After the file is decoded, RULEAGENTS_* environment variables
// override scalar settings (RULEAGENTS_AGENTS_POOL,
// RULEAGENTS_WEB_UI_BASE_PORT, RULEAGENTS_MONITOR_INTERVAL, ...).
// Entries, rules, and workflows come only from the file.
//
// [Config.Build] validates everything and converts the file's shapes
// into the engine's types. Every error a configuration can produce
// surfaces there, before any agent session is spawned; a bad regular
// expression is reported as a [PatternCompileError] naming the field.
//
// Key exports:
//
//   - [Config] -- the file schema, with [Default] values
//   - [Load], [LoadFile], and [Decode] -- the loading entry points
//   - [Config.Build] -- validation and conversion to a [Plan]
//   - [Duration] -- durations in Go syntax ("500ms", "30s", "5m")
package config
