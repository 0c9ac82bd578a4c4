// Package util provides small helpers shared across components.
package util

import "strings"

// ExtractJSONObject returns the first top-level {...} substring of text,
// tolerant of leading/trailing prose around the object. Returns false when
// no balanced object is present.
func ExtractJSONObject(text string) (string, bool) {
	return extractBalanced(text, '{', '}')
}

// ExtractJSONArray returns the first top-level [...] substring of text.
func ExtractJSONArray(text string) (string, bool) {
	return extractBalanced(text, '[', ']')
}

// extractBalanced scans for the first balanced open..close region,
// skipping brackets inside JSON string literals.
func extractBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
