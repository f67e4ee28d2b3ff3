// ABOUTME: OpenAI-compatible Chat Completions client with custom base URL support.
// ABOUTME: Works against any provider exposing the standard /chat/completions endpoint.
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model name is configured. Gateway-style
// providers route "default" to whatever they have pinned.
const DefaultModel = "default"

const defaultMaxCompletionTokens = 1024

// Client calls an OpenAI-compatible Chat Completions endpoint.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel overrides the model name sent on each request.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout caps the duration of each completion call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for an OpenAI-compatible endpoint. Full completion
// URLs are accepted and trimmed back to their base, so configs may point either
// at the API root or at .../chat/completions directly.
func NewClient(apiKey, endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		model:   DefaultModel,
		timeout: 300 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := baseURL(endpoint); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	c.client = openai.NewClient(reqOpts...)
	return c
}

// baseURL strips a trailing completions path from a configured endpoint.
func baseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	base = strings.TrimSuffix(base, "/completions")
	return base
}

// Complete sends the system prompt and history, returning the assistant text.
// Temperature is pinned to zero; the orchestrator needs reproducible output.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	started := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(defaultMaxCompletionTokens),
		Temperature:         openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	log.Printf("component=llm action=complete model=%s messages=%d duration=%s", c.model, len(messages), time.Since(started).Round(time.Millisecond))

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*Client)(nil)
