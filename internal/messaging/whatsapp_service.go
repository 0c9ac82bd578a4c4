package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/phone"
	"github.com/HabitLoop/CheckinCoach/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using a direct Whatsmeow session.
// Inbound messages are surfaced on the Responses channel and run through
// the same coaching pipeline as webhook messages.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // full client for event handling, nil for mocks
	responses chan Inbound
	pacing    time.Duration
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan Inbound, DefaultChannelBufferSize),
		pacing:    DefaultPartPacing,
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// SetPartPacing overrides the inter-part delay (tests use zero).
func (s *WhatsAppService) SetPartPacing(d time.Duration) {
	s.pacing = d
}

// ValidateAndCanonicalizeRecipient normalizes a recipient into phone form.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return phone.Normalize(recipient), nil
}

// Start registers the inbound event handler when a full client is available.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		msg, ok := evt.(*events.Message)
		if !ok {
			return
		}
		body := msg.Message.GetConversation()
		if body == "" && msg.Message.GetExtendedTextMessage() != nil {
			body = msg.Message.GetExtendedTextMessage().GetText()
		}
		if body == "" {
			return
		}
		s.emit(Inbound{
			From: phone.Normalize(msg.Info.Sender.User),
			Body: body,
			Time: msg.Info.Timestamp.Unix(),
		})
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop marks the service stopped and closes the responses channel.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.responses)
	return nil
}

// SendMessage sends body to the recipient with the same segmentation rules
// as the Twilio transport.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return "", ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return "", err
	}

	parts := LabelParts(SplitMessage(body, MaxMessageLength))
	var lastID string
	for i, part := range parts {
		if i > 0 && s.pacing > 0 {
			select {
			case <-time.After(s.pacing):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		id, err := s.client.SendMessage(ctx, canonicalTo, part)
		if err != nil {
			slog.Error("WhatsAppService SendMessage part failed", "error", err, "to", canonicalTo, "part", i+1, "total", len(parts))
			return "", fmt.Errorf("failed to send part %d/%d: %w", i+1, len(parts), err)
		}
		lastID = id
	}
	slog.Debug("WhatsAppService message sent", "to", canonicalTo, "parts", len(parts))
	return lastID, nil
}

// Responses returns the channel of incoming messages.
func (s *WhatsAppService) Responses() <-chan Inbound {
	return s.responses
}

// emit pushes an inbound message without blocking a stopped or full channel.
func (s *WhatsAppService) emit(in Inbound) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("WhatsAppService dropping inbound message (service stopped)", "from", in.From)
		return
	}
	select {
	case s.responses <- in:
		slog.Debug("WhatsAppService emitted inbound message", "from", in.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", in.From)
	}
}
