// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ruleagents runs a pool of terminal sessions and drives them with
// rules and triggered entries from a configuration file.
//
// Each agent is a shell on a pseudo-terminal (or a tmux session with
// agents.backend: tmux). A monitor captures every screen on an
// interval, classifies it as idle, active, or waiting, and extracts
// newly appeared text. Rules match that text and answer on the same
// agent; entries fire at startup, on a timer, or for each item on a
// named queue, and run on the next agent in round-robin order.
//
// Usage:
//
//	ruleagents [--config ruleagents.yaml] [--debug] [--log-format text|json] [--check]
//
// With web_ui.enabled, agents are observable over HTTP and websocket
// at web_ui.host:web_ui.base_port (see lib/observe).
package main
