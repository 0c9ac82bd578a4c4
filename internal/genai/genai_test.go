package genai

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// stubChat records the last request and returns a canned completion.
type stubChat struct {
	lastParams openai.ChatCompletionNewParams
	content    string
	err        error
}

func (s *stubChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.lastParams = body
	if s.err != nil {
		return nil, s.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	old := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", old)

	if _, err := NewClient(); err == nil {
		t.Error("expected error when OPENAI_API_KEY absent")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("expected success with explicit key, got %v", err)
	}
}

func TestGeneratePrompt(t *testing.T) {
	stub := &stubChat{content: "generated coaching text"}
	client := NewClientWithChat(stub)

	got, err := client.GeneratePrompt(context.Background(), "persona", "question")
	if err != nil {
		t.Fatalf("GeneratePrompt failed: %v", err)
	}
	if got != "generated coaching text" {
		t.Errorf("unexpected content %q", got)
	}
	if len(stub.lastParams.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(stub.lastParams.Messages))
	}
}

func TestGenerateWithHistoryPreservesTurnCount(t *testing.T) {
	stub := &stubChat{content: "[]"}
	client := NewClientWithChat(stub)

	turns := []Turn{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "breakdown request"},
		{Role: RoleAssistant, Content: "not json"},
		{Role: RoleUser, Content: "strictly JSON this time"},
	}
	if _, err := client.GenerateWithHistory(context.Background(), turns); err != nil {
		t.Fatalf("GenerateWithHistory failed: %v", err)
	}
	if len(stub.lastParams.Messages) != 4 {
		t.Errorf("expected 4 messages, got %d", len(stub.lastParams.Messages))
	}
}

func TestGenerateErrorsPropagate(t *testing.T) {
	stub := &stubChat{err: errors.New("api down")}
	client := NewClientWithChat(stub)

	if _, err := client.GeneratePrompt(context.Background(), "s", "u"); err == nil {
		t.Error("expected error from failing chat service")
	}
}

func TestGenerateNoChoices(t *testing.T) {
	empty := &emptyChat{}
	client := NewClientWithChat(empty)
	if _, err := client.GeneratePrompt(context.Background(), "s", "u"); err == nil {
		t.Error("expected error for empty choices")
	}
}

type emptyChat struct{}

func (e *emptyChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{}, nil
}
