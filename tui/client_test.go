// ABOUTME: Tests for the chat HTTP client against an httptest server.
// ABOUTME: Verifies the request envelope, response decoding, and error surfacing.
package tui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/formpilot-ai/formpilot/action"
)

func TestChatSendsEnvelope(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{
			"action":          map[string]any{"action": "MESSAGE", "text": "hi"},
			"conversation_id": "conv-42",
			"answers":         map[string]any{},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Chat(context.Background(), "# Form", "", "hello", nil)
	if err != nil {
		t.Fatal(err)
	}

	if received["form_context_md"] != "# Form" || received["user_message"] != "hello" {
		t.Errorf("envelope = %v", received)
	}
	if _, present := received["conversation_id"]; present {
		t.Error("empty conversation id must be omitted")
	}
	if resp.ConversationID != "conv-42" {
		t.Errorf("conversation id = %q", resp.ConversationID)
	}
	if resp.Action.Kind != action.KindMessage || resp.Action.Text != "hi" {
		t.Errorf("action = %+v", resp.Action)
	}
}

func TestChatCarriesConversationID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var received map[string]any
		json.NewDecoder(r.Body).Decode(&received)
		if received["conversation_id"] != "conv-42" {
			t.Errorf("conversation_id = %v", received["conversation_id"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"action":          map[string]any{"action": "MESSAGE", "text": "ok"},
			"conversation_id": "conv-42",
			"answers":         map[string]any{},
		})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Chat(context.Background(), "", "conv-42", "next", nil); err != nil {
		t.Fatal(err)
	}
}

func TestChatSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown conversation"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Chat(context.Background(), "", "gone", "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown conversation") {
		t.Errorf("err = %v", err)
	}
}
