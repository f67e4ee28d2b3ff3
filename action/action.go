// ABOUTME: The nine-kind action protocol the orchestrator emits to drive the client UI.
// ABOUTME: Tagged variant with builders, loose decoding from LLM JSON, and shape validation.
package action

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the nine action variants of the wire protocol.
type Kind string

const (
	KindMessage      Kind = "MESSAGE"
	KindAskText      Kind = "ASK_TEXT"
	KindAskDropdown  Kind = "ASK_DROPDOWN"
	KindAskCheckbox  Kind = "ASK_CHECKBOX"
	KindAskDate      Kind = "ASK_DATE"
	KindAskDatetime  Kind = "ASK_DATETIME"
	KindAskLocation  Kind = "ASK_LOCATION"
	KindToolCall     Kind = "TOOL_CALL"
	KindFormComplete Kind = "FORM_COMPLETE"
)

// Kinds lists every valid action kind in catalog order.
var Kinds = []Kind{
	KindMessage,
	KindAskText,
	KindAskDropdown,
	KindAskCheckbox,
	KindAskDate,
	KindAskDatetime,
	KindAskLocation,
	KindToolCall,
	KindFormComplete,
}

// IsValidKind reports whether s names one of the nine action kinds.
func IsValidKind(s string) bool {
	for _, k := range Kinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// IsAsk reports whether k is one of the six ASK_* kinds.
func (k Kind) IsAsk() bool {
	switch k {
	case KindAskText, KindAskDropdown, KindAskCheckbox, KindAskDate, KindAskDatetime, KindAskLocation:
		return true
	}
	return false
}

// Action is a tagged variant over the nine protocol kinds. Only the fields
// relevant to the Kind are populated; Validate enforces the per-kind shape.
type Action struct {
	Kind Kind

	// MESSAGE
	Text string

	// ASK_*
	FieldID string
	Label   string
	Options []string

	// TOOL_CALL
	ToolName string
	ToolArgs map[string]any

	// FORM_COMPLETE
	Data map[string]any

	// Optional accompanying chat text, valid on every kind but MESSAGE.
	Message string

	// Value is an answer the model bundled with a follow-up action
	// ({field_id, value} pairs some intents attach). Not part of the
	// emitted shape contract; consumed by the finalize step.
	Value any
}

// NewMessage builds a MESSAGE action.
func NewMessage(text string) Action {
	return Action{Kind: KindMessage, Text: text}
}

// NewToolCall builds a TOOL_CALL action. tool_args is always present on the
// wire, so a nil args map is replaced with an empty one.
func NewToolCall(toolName string, toolArgs map[string]any, message string) Action {
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}
	return Action{Kind: KindToolCall, ToolName: toolName, ToolArgs: toolArgs, Message: message}
}

// NewFormComplete builds a FORM_COMPLETE action carrying a copy of answers.
func NewFormComplete(answers map[string]any, message string) Action {
	data := make(map[string]any, len(answers))
	for k, v := range answers {
		data[k] = v
	}
	return Action{Kind: KindFormComplete, Data: data, Message: message}
}

// NewAsk builds one of the six ASK_* actions.
func NewAsk(kind Kind, fieldID, label string, options []string, message string) Action {
	return Action{Kind: kind, FieldID: fieldID, Label: label, Options: options, Message: message}
}

// Validate checks the per-kind shape contract: required keys present with
// the right types. It does not enforce business rules (those live in the
// orchestrator guards).
func (a Action) Validate() error {
	switch a.Kind {
	case KindMessage:
		if a.Text == "" {
			return fmt.Errorf("MESSAGE requires text")
		}
	case KindAskText, KindAskDate, KindAskDatetime, KindAskLocation:
		if a.FieldID == "" {
			return fmt.Errorf("%s requires field_id", a.Kind)
		}
	case KindAskDropdown, KindAskCheckbox:
		if a.FieldID == "" {
			return fmt.Errorf("%s requires field_id", a.Kind)
		}
		if len(a.Options) == 0 {
			return fmt.Errorf("%s requires non-empty options", a.Kind)
		}
	case KindToolCall:
		if a.ToolName == "" {
			return fmt.Errorf("TOOL_CALL requires tool_name")
		}
	case KindFormComplete:
		if a.Data == nil {
			return fmt.Errorf("FORM_COMPLETE requires data")
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// MarshalJSON emits the snake_case wire shape for the action's kind.
func (a Action) MarshalJSON() ([]byte, error) {
	m := map[string]any{"action": string(a.Kind)}
	switch a.Kind {
	case KindMessage:
		m["text"] = a.Text
	case KindAskDropdown, KindAskCheckbox:
		m["field_id"] = a.FieldID
		m["label"] = a.Label
		m["options"] = a.Options
	case KindAskText, KindAskDate, KindAskDatetime, KindAskLocation:
		m["field_id"] = a.FieldID
		m["label"] = a.Label
	case KindToolCall:
		m["tool_name"] = a.ToolName
		args := a.ToolArgs
		if args == nil {
			args = map[string]any{}
		}
		m["tool_args"] = args
	case KindFormComplete:
		data := a.Data
		if data == nil {
			data = map[string]any{}
		}
		m["data"] = data
	}
	if a.Message != "" && a.Kind != KindMessage {
		m["message"] = a.Message
	}
	if a.Value != nil {
		m["value"] = a.Value
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts the wire shape back into the tagged variant.
func (a *Action) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := Decode(m)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// Decode builds an Action from a loose JSON object, the shape LLMs actually
// produce: MESSAGE text may arrive under "message", options may be a mixed
// list, tool_args may be absent. Unknown kinds and missing required keys
// return an error so the guard layer can craft a corrective retry.
func Decode(payload map[string]any) (Action, error) {
	kindStr, _ := payload["action"].(string)
	if kindStr == "" {
		return Action{}, fmt.Errorf("payload has no action key")
	}
	if !IsValidKind(kindStr) {
		return Action{}, fmt.Errorf("unknown action kind %q", kindStr)
	}

	a := Action{Kind: Kind(kindStr)}
	a.Message = stringKey(payload, "message")
	a.FieldID = stringKey(payload, "field_id")
	a.Label = stringKey(payload, "label")
	a.Value = payload["value"]

	switch a.Kind {
	case KindMessage:
		a.Text = stringKey(payload, "text")
		if a.Text == "" {
			// Models frequently put the chat text under "message".
			a.Text = a.Message
			a.Message = ""
		}
	case KindAskDropdown, KindAskCheckbox:
		a.Options = stringList(payload["options"])
	case KindToolCall:
		a.ToolName = stringKey(payload, "tool_name")
		if args, ok := payload["tool_args"].(map[string]any); ok {
			a.ToolArgs = args
		} else {
			a.ToolArgs = map[string]any{}
		}
	case KindFormComplete:
		if data, ok := payload["data"].(map[string]any); ok {
			a.Data = data
		} else {
			a.Data = map[string]any{}
		}
	}

	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func stringKey(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// stringList coerces a JSON array into []string. Non-string elements are
// serialized rather than dropped so option counts survive decoding.
func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, string(encoded))
	}
	return out
}
