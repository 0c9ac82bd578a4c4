// Package testutil provides common test utilities and helpers for CheckinCoach tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/HabitLoop/CheckinCoach/internal/api"
	"github.com/HabitLoop/CheckinCoach/internal/checkin"
	"github.com/HabitLoop/CheckinCoach/internal/coach"
	"github.com/HabitLoop/CheckinCoach/internal/genai"
	"github.com/HabitLoop/CheckinCoach/internal/messaging"
	"github.com/HabitLoop/CheckinCoach/internal/store"
	"github.com/HabitLoop/CheckinCoach/internal/twiliowhatsapp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ScriptedChat is a canned chat-completion stub. Every call returns Reply
// (or Err) and increments Calls.
type ScriptedChat struct {
	Reply string
	Err   error
	Calls int
}

// New implements the chat completion interface used by the GenAI client.
func (s *ScriptedChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.Reply}},
		},
	}, nil
}

// TestServer bundles a server with its injected fakes so tests can inspect
// side effects.
type TestServer struct {
	Server *api.Server
	Store  *store.InMemoryStore
	Sender *twiliowhatsapp.MockClient
	Chat   *ScriptedChat
}

// NewTestServer creates a test API server with in-memory dependencies and a
// scripted LLM reply. Part pacing is disabled so split sends don't sleep.
func NewTestServer(reply string) *TestServer {
	st := store.NewInMemoryStore()
	sender := twiliowhatsapp.NewMockClient()
	msgService := messaging.NewTwilioService(sender)
	msgService.SetPartPacing(0)

	chat := &ScriptedChat{Reply: reply}
	ai := genai.NewClientWithChat(chat)

	srv := api.NewServer(st, msgService, checkin.NewExtractor(ai), coach.NewGenerator(ai))
	return &TestServer{Server: srv, Store: st, Sender: sender, Chat: chat}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// CreateFormRequest creates an x-www-form-urlencoded POST request the way
// the messaging platform delivers webhooks.
func CreateFormRequest(t *testing.T, target string, fields map[string]string) *http.Request {
	t.Helper()
	form := url.Values{}
	for key, value := range fields {
		form.Set(key, value)
	}
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("failed to create form request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
