package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/whatsapp"
)

func TestWhatsAppSendMessageSingle(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())
	service.SetPartPacing(0)

	id, err := service.SendMessage(context.Background(), "whatsapp:+15550100", "hi")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if id == "" {
		t.Error("expected a message id")
	}
}

func TestWhatsAppStartWithoutFullClient(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())
	// A mock sender has no event source; Start must be a no-op, not a failure.
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func TestWhatsAppEmitDeliversInbound(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())
	service.emit(Inbound{From: "+15550100", Body: "hello", Time: time.Now().Unix()})

	select {
	case in := <-service.Responses():
		if in.From != "+15550100" || in.Body != "hello" {
			t.Errorf("unexpected inbound: %+v", in)
		}
	case <-time.After(time.Second):
		t.Fatal("inbound message not delivered")
	}
}

func TestWhatsAppEmitAfterStopDrops(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())
	if err := service.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Must not panic on the closed channel.
	service.emit(Inbound{From: "+15550100", Body: "late"})

	if _, err := service.SendMessage(context.Background(), "+15550100", "hi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
