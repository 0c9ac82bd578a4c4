package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/phone"
	"github.com/HabitLoop/CheckinCoach/internal/twiliowhatsapp"
)

// phoneDigitsRegex strips everything that is not a digit for validation.
var phoneDigitsRegex = regexp.MustCompile(`[^0-9]`)

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through the platform webhook, so Responses never emits.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	responses chan Inbound
	pacing    time.Duration
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a TwilioService around the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan Inbound, DefaultChannelBufferSize),
		pacing:    DefaultPartPacing,
	}
}

// SetPartPacing overrides the inter-part delay (tests use zero).
func (s *TwilioService) SetPartPacing(d time.Duration) {
	s.pacing = d
}

// ValidateAndCanonicalizeRecipient normalizes a recipient into phone form
// and validates it carries at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phone.Normalize(recipient)
	digits := phoneDigitsRegex.ReplaceAllString(canonical, "")
	if digits == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(digits) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", digits)
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio (inbound flows through the webhook).
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped and closes the responses channel.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.responses)
	return nil
}

// SendMessage sends body to the recipient, segmenting text over the
// platform limit into labeled parts with pacing between them. Returns the
// SID of the last successfully sent part. Already-sent parts of a failed
// multi-part send stay sent.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return "", ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return "", err
	}

	parts := LabelParts(SplitMessage(body, MaxMessageLength))
	var lastSid string
	for i, part := range parts {
		if i > 0 && s.pacing > 0 {
			select {
			case <-time.After(s.pacing):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		sid, err := s.client.SendMessage(ctx, canonicalTo, part)
		if err != nil {
			slog.Error("TwilioService SendMessage part failed", "error", err, "to", canonicalTo, "part", i+1, "total", len(parts))
			return "", fmt.Errorf("failed to send part %d/%d: %w", i+1, len(parts), err)
		}
		lastSid = sid
	}
	slog.Debug("TwilioService message sent", "to", canonicalTo, "parts", len(parts), "sid", lastSid)
	return lastSid, nil
}

// Responses returns the channel for incoming messages (unused for Twilio).
func (s *TwilioService) Responses() <-chan Inbound {
	return s.responses
}
