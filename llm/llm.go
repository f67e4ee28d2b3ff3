// ABOUTME: Completer interface and chat message types for LLM calls.
// ABOUTME: The orchestrator depends only on this interface, never on a concrete provider.
package llm

import (
	"context"
	"errors"
)

// Message roles on the conversation history sent to the model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a system prompt plus history to a model and returns the raw
// text of the assistant reply. Implementations must respect ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []Message) (string, error)
}

// ErrEmptyCompletion is returned when the provider answers with no usable text.
var ErrEmptyCompletion = errors.New("llm: empty completion")
