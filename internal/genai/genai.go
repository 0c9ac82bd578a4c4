// Package genai wraps the OpenAI chat completion API for coaching text
// generation and structured extraction.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatService defines the minimal interface for chat completions,
// allowing tests to substitute a stub for the real OpenAI client.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleSystem is the persona/instruction turn.
	RoleSystem Role = "system"
	// RoleUser is a user turn.
	RoleUser Role = "user"
	// RoleAssistant is a prior model turn (used for corrective retries).
	RoleAssistant Role = "assistant"
)

// Turn is one message in a generation conversation.
type Turn struct {
	Role    Role
	Content string
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a GenAI client. The API key comes from options or
// the OPENAI_API_KEY environment variable; its absence is a fatal
// construction error.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("GenAI client config loaded", "APIKey_set", true, "model", cfg.Model)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// NewClientWithChat builds a client around an injected chat service (tests).
func NewClientWithChat(chat chatService) *Client {
	return &Client{chat: chat, model: openai.ChatModelGPT4oMini}
}

// GeneratePrompt generates a response for a single system + user exchange.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithHistory(ctx, []Turn{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userPrompt},
	})
}

// GenerateWithHistory generates a response for a multi-turn conversation.
// Used for corrective retries where the model's failed output is replayed
// as an assistant turn followed by a stricter instruction.
func (c *Client) GenerateWithHistory(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI chat completion failed", "error", err, "turns", len(turns))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI chat completion returned no choices")
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
