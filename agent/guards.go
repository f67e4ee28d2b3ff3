// ABOUTME: JSON extraction from raw LLM text and the closed set of output guards.
// ABOUTME: Each guard returns a corrective message that drives one bounded retry.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formpilot-ai/formpilot/action"
)

// FallbackText is the user-facing message emitted when every retry fails.
const FallbackText = "I had trouble understanding — please rephrase."

// ExtractJSON pulls a JSON object out of raw model text. Strategies in order:
// direct parse, fenced code block, greedy brace matching.
func ExtractJSON(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)

	var direct map[string]any
	if err := json.Unmarshal([]byte(trimmed), &direct); err == nil {
		return direct, true
	}

	if body, ok := fencedBlock(trimmed); ok {
		var fenced map[string]any
		if err := json.Unmarshal([]byte(body), &fenced); err == nil {
			return fenced, true
		}
	}

	if body, ok := braceMatch(trimmed); ok {
		var matched map[string]any
		if err := json.Unmarshal([]byte(body), &matched); err == nil {
			return matched, true
		}
	}

	return nil, false
}

// fencedBlock returns the contents of the first ``` fence, tolerating a
// language tag on the opening line.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// braceMatch returns the first balanced {...} substring, skipping braces
// inside JSON strings.
func braceMatch(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeResponse turns raw model text into an action, salvaging an unknown
// action kind into a MESSAGE when the payload carries text and no required
// fields remain. The second return is the corrective message when a guard
// fires; empty means the action passed.
func decodeResponse(raw string, st *State) (action.Action, string) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return action.Action{}, "Respond with ONLY the JSON object — no prose, no fences."
	}

	// A held free-text answer counts as answered here: finalize stores it
	// unless the model re-asks the same field, so completion and MESSAGE are
	// legitimate moves while the latch is set.
	missing := st.MissingRequired()
	if st.PendingTextFieldID != "" {
		filtered := missing[:0]
		for _, id := range missing {
			if id != st.PendingTextFieldID {
				filtered = append(filtered, id)
			}
		}
		missing = filtered
	}

	act, err := action.Decode(payload)
	if err != nil {
		if text := salvageText(payload); text != "" && len(missing) == 0 {
			return action.NewMessage(text), ""
		}
		kind, _ := payload["action"].(string)
		if !action.IsValidKind(kind) {
			return action.Action{}, "The only allowed values are: MESSAGE, ASK_TEXT, ASK_DROPDOWN, ASK_CHECKBOX, ASK_DATE, ASK_DATETIME, ASK_LOCATION, TOOL_CALL, FORM_COMPLETE."
		}
		// Dropdowns and checkboxes with empty options fail shape validation
		// but have their own corrective: the model must fetch options first.
		k := action.Kind(kind)
		if (k == action.KindAskDropdown || k == action.KindAskCheckbox) && emptyOptions(payload["options"]) {
			fieldID, _ := payload["field_id"].(string)
			tool := st.Definition.ToolForField(fieldID)
			return action.Action{}, fmt.Sprintf("Emit `TOOL_CALL` for `%s` first; do not ask a dropdown with empty options.", tool)
		}
		return action.Action{}, fmt.Sprintf("Your %s action is missing required keys; include every key its shape requires.", kind)
	}

	return act, checkGuards(act, st, missing)
}

// checkGuards applies the output guards in their fixed order.
func checkGuards(act action.Action, st *State, missing []string) string {
	next := ""
	if len(missing) > 0 {
		next = missing[0]
	}

	if act.Kind.IsAsk() {
		if value, answered := st.Answers[act.FieldID]; answered {
			return fmt.Sprintf("Field `%s` is already answered with `%v`; ask the next missing field: `%s`.", act.FieldID, value, next)
		}
	}

	if act.Kind == action.KindMessage && len(missing) > 0 {
		return fmt.Sprintf("Use the correct `ASK_*` action for `%s`, not MESSAGE.", next)
	}

	if act.Kind == action.KindFormComplete && len(missing) > 0 {
		return fmt.Sprintf("Required fields still missing: `%s`; ask `%s`.", strings.Join(missing, ", "), next)
	}

	return ""
}

// emptyOptions reports whether an options payload is absent or an empty list.
func emptyOptions(v any) bool {
	list, ok := v.([]any)
	return !ok || len(list) == 0
}

// salvageText recovers displayable text from a malformed action payload.
func salvageText(payload map[string]any) string {
	for _, key := range []string{"message", "text"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
