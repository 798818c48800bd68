// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import "strings"

// screenLines splits content into lines and drops trailing blank ones,
// which are unused rows below the output.
func screenLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[:end]
}

// alignment returns how many leading lines of current are already
// present in previous: the larger of the scroll overlap (a suffix of
// previous equal to a prefix of current) and the common prefix.
func alignment(previous, current []string) int {
	prefix := 0
	for prefix < len(previous) && prefix < len(current) && previous[prefix] == current[prefix] {
		prefix++
	}
	limit := min(len(previous), len(current))
	for overlap := limit; overlap > prefix; overlap-- {
		if equalLines(previous[len(previous)-overlap:], current[:overlap]) {
			return overlap
		}
	}
	return prefix
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newLines returns the lines of current after its best alignment
// against any of the candidates, with surrounding blank lines removed.
// With no candidates every line is new.
func newLines(candidates [][]string, current []string) []string {
	best := 0
	for _, previous := range candidates {
		if aligned := alignment(previous, current); aligned > best {
			best = aligned
			if best == len(current) {
				return nil
			}
		}
	}
	fresh := current[best:]
	for len(fresh) > 0 && strings.TrimSpace(fresh[0]) == "" {
		fresh = fresh[1:]
	}
	return fresh
}

// lastNonBlank returns the index and text of the last line containing
// anything other than whitespace, or -1.
func lastNonBlank(lines []string) (int, string) {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i, lines[i]
		}
	}
	return -1, ""
}
