package search

import "strings"

// Snippet returns up to maxLen bytes of content centred on the first
// occurrence of any of terms (case-insensitive), with "..." marking cuts.
// Without a match it truncates from the start.
func Snippet(content string, terms []string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	lower := strings.ToLower(content)
	at := -1
	for _, t := range terms {
		if i := strings.Index(lower, strings.ToLower(t)); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		return content[:maxLen] + "..."
	}
	start := at - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(content) {
		end = len(content)
		start = end - maxLen
	}
	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
