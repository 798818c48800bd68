// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/ruleagents/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = ""
	BuildTime = ""
	Version   = "0.1.0-dev"
)

// Build is what Info formats.
type Build struct {
	Version string
	Commit  string
	Time    string
	Dirty   bool
}

// Current merges the -ldflags values with the embedded build settings.
func Current() Build {
	build := Build{Version: Version, Commit: GitCommit, Time: BuildTime}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return build
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if build.Commit == "" && len(setting.Value) >= 7 {
				build.Commit = setting.Value[:7]
			}
		case "vcs.time":
			if build.Time == "" {
				build.Time = setting.Value
			}
		case "vcs.modified":
			build.Dirty = setting.Value == "true"
		}
	}
	return build
}

// String is "0.1.0-dev (abc1234-dirty, 2026-02-10T...)".
func (b Build) String() string {
	commit := b.Commit
	if commit == "" {
		commit = "unknown"
	}
	if b.Dirty {
		commit += "-dirty"
	}
	buildTime := b.Time
	if buildTime == "" {
		buildTime = "unknown"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, buildTime)
}

// Info returns the one-line version string.
func Info() string { return Current().String() }

// Full adds the Go version and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
