// ABOUTME: HTTP client for the /api/chat endpoint used by the terminal chat UI.
// ABOUTME: Carries the conversation id across turns and decodes the action envelope.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/agent"
)

// ChatResponse is the server's reply to one turn.
type ChatResponse struct {
	Action         action.Action  `json:"action"`
	ConversationID string         `json:"conversation_id"`
	Answers        map[string]any `json:"answers"`
}

// Client talks to a running formpilot server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a chat client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 320 * time.Second},
	}
}

// Chat sends one turn. formContext is only needed on the first call; after
// that conversationID identifies the session.
func (c *Client) Chat(ctx context.Context, formContext, conversationID, userMessage string, toolResults []agent.ToolResult) (*ChatResponse, error) {
	payload := map[string]any{
		"form_context_md": formContext,
		"user_message":    userMessage,
	}
	if conversationID != "" {
		payload["conversation_id"] = conversationID
	}
	if len(toolResults) > 0 {
		payload["tool_results"] = toolResults
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return &chat, nil
}
