// ABOUTME: Deterministic scripted Completer for tests and offline demos.
// ABOUTME: Replays a fixed sequence of responses and records every prompt it sees.
package llm

import (
	"context"
	"sync"
)

// Scripted replays canned responses in order. When the script runs out it
// keeps returning the final entry, so retry loops terminate predictably
// in tests. Safe for concurrent use.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Calls records each invocation for assertions.
	Calls []ScriptedCall

	// Err, when set, is returned instead of a response.
	Err error
}

// ScriptedCall captures the inputs of one Complete invocation.
type ScriptedCall struct {
	SystemPrompt string
	History      []Message
}

// NewScripted builds a stub that replays responses in order.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

func (s *Scripted) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, ScriptedCall{
		SystemPrompt: systemPrompt,
		History:      append([]Message(nil), history...),
	})
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.responses) == 0 {
		return "", ErrEmptyCompletion
	}
	resp := s.responses[min(s.next, len(s.responses)-1)]
	s.next++
	return resp, nil
}

// CallCount returns how many times Complete has been invoked.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

var _ Completer = (*Scripted)(nil)
