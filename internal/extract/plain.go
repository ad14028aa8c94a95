package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain replaces invalid UTF-8 sequences with U+FFFD.
func extractPlain(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\ufffd")
}
