// Package phone provides phone number normalization shared by every
// component that compares phone identities.
package phone

import "strings"

// TransportPrefix is the messaging-platform scheme tag carried on webhook
// sender identifiers (e.g. "whatsapp:+15551234567").
const TransportPrefix = "whatsapp:"

// Normalize converts a raw identifier into canonical international format:
// transport prefix stripped, whitespace removed, leading "+" guaranteed.
// It is total (malformed input gets a "+" prepended and passes through) and
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, TransportPrefix)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\t", "")
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s
}

// ToTransport renders a normalized phone number in the transport form the
// messaging platform expects.
func ToTransport(normalized string) string {
	return TransportPrefix + Normalize(normalized)
}
