// ABOUTME: Tests for the action protocol: decoding loose LLM payloads, shape validation,
// ABOUTME: and the snake_case wire serialization for each of the nine kinds.
package action

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	a, err := Decode(map[string]any{"action": "MESSAGE", "text": "hello"})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.Kind != KindMessage || a.Text != "hello" {
		t.Errorf("got %+v", a)
	}
}

func TestDecodeMessageTextUnderMessageKey(t *testing.T) {
	a, err := Decode(map[string]any{"action": "MESSAGE", "message": "hi there"})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.Text != "hi there" {
		t.Errorf("expected text promoted from message key, got %q", a.Text)
	}
	if a.Message != "" {
		t.Errorf("message key should be cleared after promotion, got %q", a.Message)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode(map[string]any{"action": "ASK_SOMETHING", "field_id": "x"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeMissingAction(t *testing.T) {
	_, err := Decode(map[string]any{"intent": "multi_answer"})
	if err == nil {
		t.Fatal("expected error for payload without action key")
	}
}

func TestDecodeDropdownCoercesOptions(t *testing.T) {
	a, err := Decode(map[string]any{
		"action":   "ASK_DROPDOWN",
		"field_id": "establishment",
		"label":    "Establishment",
		"options":  []any{"Riyadh Tech", float64(42)},
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(a.Options) != 2 {
		t.Fatalf("expected 2 options, got %v", a.Options)
	}
	if a.Options[0] != "Riyadh Tech" || a.Options[1] != "42" {
		t.Errorf("unexpected options: %v", a.Options)
	}
}

func TestDecodeDropdownEmptyOptionsRejected(t *testing.T) {
	_, err := Decode(map[string]any{
		"action":   "ASK_DROPDOWN",
		"field_id": "establishment",
		"options":  []any{},
	})
	if err == nil {
		t.Fatal("expected error for empty dropdown options")
	}
}

func TestDecodeToolCallDefaultsArgs(t *testing.T) {
	a, err := Decode(map[string]any{"action": "TOOL_CALL", "tool_name": "get_establishments"})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.ToolArgs == nil {
		t.Error("tool_args must be non-nil even when absent from payload")
	}
}

func TestDecodeBundledValue(t *testing.T) {
	a, err := Decode(map[string]any{
		"action":   "ASK_DATE",
		"field_id": "end_date",
		"value":    "2026-03-01",
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if a.Value != "2026-03-01" {
		t.Errorf("expected bundled value preserved, got %v", a.Value)
	}
}

func TestValidateRequiresFieldID(t *testing.T) {
	for _, kind := range []Kind{KindAskText, KindAskDate, KindAskDatetime, KindAskLocation} {
		a := Action{Kind: kind}
		if err := a.Validate(); err == nil {
			t.Errorf("%s without field_id should fail validation", kind)
		}
	}
}

func TestMarshalToolCallAlwaysHasArgs(t *testing.T) {
	data, err := json.Marshal(Action{Kind: KindToolCall, ToolName: "get_establishments"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"tool_args":{}`) {
		t.Errorf("tool_args must be present on the wire: %s", data)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	orig := NewAsk(KindAskDropdown, "leave_type", "Leave type", []string{"Annual", "Sick"}, "Pick one")
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Action
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Kind != KindAskDropdown || back.FieldID != "leave_type" {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if len(back.Options) != 2 || back.Options[0] != "Annual" {
		t.Errorf("round trip lost options: %v", back.Options)
	}
	if back.Message != "Pick one" {
		t.Errorf("round trip lost message: %q", back.Message)
	}
}

func TestMarshalMessageOmitsMessageKey(t *testing.T) {
	data, err := json.Marshal(NewMessage("hello"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := m["message"]; ok {
		t.Error("MESSAGE actions carry text, not a message key")
	}
	if m["text"] != "hello" {
		t.Errorf("got %v", m)
	}
}

func TestNewFormCompleteCopiesAnswers(t *testing.T) {
	answers := map[string]any{"leave_type": "Annual"}
	a := NewFormComplete(answers, "")
	answers["leave_type"] = "Sick"
	if a.Data["leave_type"] != "Annual" {
		t.Error("FORM_COMPLETE data must be a copy, not a reference")
	}
}

func TestIsAsk(t *testing.T) {
	if !KindAskDate.IsAsk() {
		t.Error("ASK_DATE is an ask kind")
	}
	if KindToolCall.IsAsk() || KindMessage.IsAsk() || KindFormComplete.IsAsk() {
		t.Error("non-ASK kinds reported as ask")
	}
}

func TestIsValidKindCoversCatalog(t *testing.T) {
	if len(Kinds) != 9 {
		t.Fatalf("expected 9 kinds, got %d", len(Kinds))
	}
	for _, k := range Kinds {
		if !IsValidKind(string(k)) {
			t.Errorf("%s not recognized", k)
		}
	}
	if IsValidKind("ASK_EVERYTHING") {
		t.Error("invented kind accepted")
	}
}
