// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint error handler and its
// exit statuses. It is the one place that writes raw text to stderr;
// everything after logger construction goes through log/slog.
package process
