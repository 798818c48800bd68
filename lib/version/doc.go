// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for --version.
//
// [GitCommit], [BuildTime], and [Version] can be injected with -ldflags
// -X. When they are not, [Info] falls back to the VCS settings the Go
// toolchain embeds in the binary.
package version
