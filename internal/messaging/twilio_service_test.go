package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/HabitLoop/CheckinCoach/internal/twiliowhatsapp"
)

func newTestTwilioService(client *twiliowhatsapp.MockClient) *TwilioService {
	svc := NewTwilioService(client)
	svc.SetPartPacing(0)
	return svc
}

func TestTwilioValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := newTestTwilioService(twiliowhatsapp.NewMockClient())

	got, err := svc.ValidateAndCanonicalizeRecipient("whatsapp:+1 555 123 4567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+15551234567" {
		t.Errorf("canonical = %q", got)
	}

	if _, err := svc.ValidateAndCanonicalizeRecipient(""); err == nil {
		t.Error("expected error for empty recipient")
	}
	if _, err := svc.ValidateAndCanonicalizeRecipient("+123"); err == nil {
		t.Error("expected error for too-short number")
	}
	if _, err := svc.ValidateAndCanonicalizeRecipient("abcdef"); err == nil {
		t.Error("expected error for digit-free recipient")
	}
}

func TestTwilioSendMessageSingle(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	svc := newTestTwilioService(client)

	sid, err := svc.SendMessage(context.Background(), "whatsapp:+15551234567", "short reply")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sid == "" {
		t.Error("expected a message SID")
	}
	if len(client.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(client.SentMessages))
	}
	if client.SentMessages[0].Body != "short reply" {
		t.Errorf("short message must not be labeled, got %q", client.SentMessages[0].Body)
	}
}

func TestTwilioSendMessageSplitsAndLabels(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	svc := newTestTwilioService(client)

	long := strings.Repeat("a", 3200)
	sid, err := svc.SendMessage(context.Background(), "+15551234567", long)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(client.SentMessages) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(client.SentMessages))
	}
	if !strings.HasPrefix(client.SentMessages[0].Body, "[1/2] ") {
		t.Errorf("first part missing marker: %q", client.SentMessages[0].Body[:10])
	}
	if !strings.HasPrefix(client.SentMessages[1].Body, "[2/2] ") {
		t.Errorf("second part missing marker: %q", client.SentMessages[1].Body[:10])
	}
	// The returned SID belongs to the last part.
	if sid != "SM00000002" {
		t.Errorf("expected SID of last part, got %q", sid)
	}
}

func TestTwilioSendMessagePartialFailureKeepsSentParts(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	client.FailAfter = 1
	svc := newTestTwilioService(client)

	long := strings.Repeat("a", 3200)
	if _, err := svc.SendMessage(context.Background(), "+15551234567", long); err == nil {
		t.Fatal("expected failure on second part")
	}
	// First part stays sent; there is no rollback.
	if len(client.SentMessages) != 1 {
		t.Errorf("expected 1 part to remain sent, got %d", len(client.SentMessages))
	}
}

func TestTwilioSendAfterStop(t *testing.T) {
	svc := newTestTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "+15551234567", "hello"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}
