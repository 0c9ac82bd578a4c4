// Package api provides HTTP handlers and the main API server logic for
// CheckinCoach.
//
// It exposes the messaging-platform webhook, the direct goal-creation
// endpoint, and the reminder sweep, orchestrating the store, check-in
// extractor, coaching generator, and messaging service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/HabitLoop/CheckinCoach/internal/checkin"
	"github.com/HabitLoop/CheckinCoach/internal/coach"
	"github.com/HabitLoop/CheckinCoach/internal/messaging"
	"github.com/HabitLoop/CheckinCoach/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr             string
	RemindersEnabled bool
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr overrides the default listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithRemindersEnabled toggles the reminder sweep endpoint.
func WithRemindersEnabled(enabled bool) Option {
	return func(o *Opts) { o.RemindersEnabled = enabled }
}

// Server wires the coaching pipeline behind the HTTP surface. All
// collaborators are injected at construction; there are no ambient
// singletons.
type Server struct {
	st               store.Store
	msgService       messaging.Service
	extractor        *checkin.Extractor
	generator        *coach.Generator
	addr             string
	remindersEnabled bool
}

// NewServer creates a server around the injected collaborators.
func NewServer(st store.Store, msgService messaging.Service, extractor *checkin.Extractor, generator *coach.Generator, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, RemindersEnabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		st:               st,
		msgService:       msgService,
		extractor:        extractor,
		generator:        generator,
		addr:             cfg.Addr,
		remindersEnabled: cfg.RemindersEnabled,
	}
}

// Handler returns the routed HTTP handler, exposed separately so tests can
// drive it through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/whatsapp", s.whatsappWebhookHandler)
	mux.HandleFunc("/webhooks/set-goal", s.setGoalHandler)
	mux.HandleFunc("/trigger-reminders", s.triggerRemindersHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/", s.rootHandler)
	return mux
}

// Run starts the messaging service, the inbound response loop, and the HTTP
// listener. It blocks until the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	go s.consumeResponses(ctx)

	slog.Info("Server.Run: CheckinCoach API listening", "addr", s.addr)
	if err := http.ListenAndServe(s.addr, s.Handler()); err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// consumeResponses feeds inbound messages from the direct-session transport
// through the same pipeline as webhook deliveries. The Twilio service never
// emits, so this loop idles under the webhook-driven backend.
func (s *Server) consumeResponses(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case inbound, ok := <-s.msgService.Responses():
			if !ok {
				return
			}
			slog.Debug("Server.consumeResponses: inbound message", "from", inbound.From)
			if _, err := s.processInbound(ctx, inbound.From, inbound.Body, ""); err != nil {
				slog.Error("Server.consumeResponses: failed to process inbound message", "error", err, "from", inbound.From)
			}
		}
	}
}
