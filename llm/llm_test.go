// ABOUTME: Tests for the LLM client helpers and the scripted stub.
// ABOUTME: Endpoint normalization and stub replay semantics are pinned here.
package llm

import (
	"context"
	"errors"
	"testing"
)

func TestBaseURLStripsCompletionsSuffix(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://api.example.com/v1/chat/completions", "https://api.example.com/v1"},
		{"https://api.example.com/v1/completions", "https://api.example.com/v1"},
		{"https://api.example.com/v1/", "https://api.example.com/v1"},
		{"https://api.example.com/v1", "https://api.example.com/v1"},
		{"  https://api.example.com/v1/chat/completions  ", "https://api.example.com/v1"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := baseURL(tc.in); got != tc.want {
			t.Errorf("baseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("key", "https://api.example.com/v1")
	if c.model != DefaultModel {
		t.Errorf("model = %q", c.model)
	}

	c = NewClient("key", "", WithModel("llama-3.3-70b"), WithTimeout(0))
	if c.model != "llama-3.3-70b" {
		t.Errorf("model = %q", c.model)
	}
}

func TestScriptedReplay(t *testing.T) {
	stub := NewScripted("first", "second")
	ctx := context.Background()

	got, err := stub.Complete(ctx, "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil || got != "first" {
		t.Fatalf("first call: %q, %v", got, err)
	}
	got, _ = stub.Complete(ctx, "sys", nil)
	if got != "second" {
		t.Errorf("second call: %q", got)
	}
	got, _ = stub.Complete(ctx, "sys", nil)
	if got != "second" {
		t.Errorf("exhausted script must repeat the last entry, got %q", got)
	}

	if stub.CallCount() != 3 {
		t.Errorf("call count = %d", stub.CallCount())
	}
	if stub.Calls[0].History[0].Content != "hi" {
		t.Errorf("recorded history: %+v", stub.Calls[0])
	}
}

func TestScriptedErrors(t *testing.T) {
	stub := NewScripted()
	if _, err := stub.Complete(context.Background(), "", nil); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("empty script should return ErrEmptyCompletion, got %v", err)
	}

	boom := errors.New("transport down")
	stub = NewScripted("unused")
	stub.Err = boom
	if _, err := stub.Complete(context.Background(), "", nil); !errors.Is(err, boom) {
		t.Errorf("forced error not propagated: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stub.Complete(ctx, "", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: %v", err)
	}
}
