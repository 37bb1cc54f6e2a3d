package utils

import (
	"strings"
	"unicode/utf8"
)

// Lengths and positions in changesets count code points, not bytes.

func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}

// RuneLastIndex is strings.LastIndex measured in runes. An empty sep matches
// at the end of s.
func RuneLastIndex(s, sep string) int {
	if sep == "" {
		return RuneCount(s)
	}
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return -1
	}
	return RuneCount(s[:i])
}
