// Package utils provides shared text and logging helpers.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s cut to at most maxLen bytes on a rune boundary, with
// "..." appended if it was cut. If maxLen is 0 or negative, s is unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// TruncateWords returns the first maxWords whitespace-separated words of s.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// OneLine collapses all whitespace runs in s to single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
