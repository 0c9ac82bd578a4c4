package messaging

import "fmt"

// Message splitting constants
const (
	// MaxMessageLength is the platform limit for one outbound message body.
	MaxMessageLength = 1600
	// minBoundaryPercent is how far into a chunk a whitespace split point
	// must lie; earlier boundaries waste too much of the limit and the
	// chunk is hard-split at the limit instead.
	minBoundaryPercent = 80
)

// SplitMessage splits text into ordered chunks of at most limit characters.
// Each split point is the last whitespace boundary at or before the limit,
// provided that boundary is not earlier than 80% of the limit from the
// chunk start; otherwise the chunk is cut exactly at the limit (mid-word
// allowed only in this fallback). Text within the limit comes back as a
// single unlabeled chunk.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	minBoundary := limit * minBoundaryPercent / 100
	var chunks []string
	rest := text
	for len(rest) > limit {
		cut := limit
		consumed := limit
		if idx := lastWhitespace(rest[:limit]); idx >= minBoundary {
			cut = idx
			consumed = idx + 1 // drop the boundary whitespace itself
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[consumed:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}

// LabelParts prefixes each chunk with its "[i/N]" part marker.
// A single chunk is returned unlabeled.
func LabelParts(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}
	labeled := make([]string, len(chunks))
	for i, chunk := range chunks {
		labeled[i] = fmt.Sprintf("[%d/%d] %s", i+1, len(chunks), chunk)
	}
	return labeled
}

// lastWhitespace returns the index of the last space or tab in s, or -1.
func lastWhitespace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' {
			return i
		}
	}
	return -1
}
