// Package messaging provides outbound message delivery for CheckinCoach.
//
// It defines a pluggable Service abstraction with Twilio (webhook-driven)
// and Whatsmeow (direct-session) implementations, and handles transparent
// segmentation of long messages.
package messaging

import (
	"context"
	"errors"
	"time"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for inbound message channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
	// DefaultPartPacing is the delay between parts of a segmented message,
	// respecting outbound platform rate limits.
	DefaultPartPacing = 500 * time.Millisecond
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// Inbound is an incoming user message surfaced by a transport.
type Inbound struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier into normalized phone form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient, splitting bodies over the
	// platform limit into labeled parts. It returns the platform identifier
	// of the last successfully sent part. Parts already sent before a
	// failure stay sent.
	SendMessage(ctx context.Context, to string, body string) (string, error)

	// Start begins any background processing (e.g., inbound event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages. Transports
	// whose inbound path is webhook-driven never emit on it.
	Responses() <-chan Inbound
}
