package sandbox

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to output cut at the character limit.
const TruncationMarker = "\n[The output is cut off...]"

// boundOutput trims surrounding whitespace and keeps at most limit
// characters, marking the cut.
func boundOutput(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}
