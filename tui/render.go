// ABOUTME: Renders server actions into transcript lines for the chat view.
// ABOUTME: Pure string assembly so the formatting is testable without a terminal.
package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/formpilot-ai/formpilot/action"
)

// RenderAction converts one action into plain transcript text. Styling is
// applied by the view; this layer only decides the words.
func RenderAction(act action.Action) string {
	switch act.Kind {
	case action.KindMessage:
		return act.Text

	case action.KindAskText, action.KindAskDate, action.KindAskDatetime, action.KindAskLocation:
		text := askText(act)
		switch act.Kind {
		case action.KindAskDate:
			text += "\n(enter a date, e.g. 2026-03-01 or \"next Monday\")"
		case action.KindAskDatetime:
			text += "\n(enter a date and time, e.g. 2026-03-01 14:30)"
		case action.KindAskLocation:
			text += "\n(enter coordinates as {\"lat\": 24.7, \"lng\": 46.7})"
		}
		return text

	case action.KindAskDropdown, action.KindAskCheckbox:
		var sb strings.Builder
		sb.WriteString(askText(act))
		for i, opt := range act.Options {
			fmt.Fprintf(&sb, "\n  %d. %s", i+1, opt)
		}
		if act.Kind == action.KindAskCheckbox {
			sb.WriteString("\n(pick one or more, comma separated)")
		} else {
			sb.WriteString("\n(pick one by number or name)")
		}
		return sb.String()

	case action.KindToolCall:
		text := fmt.Sprintf("[requesting data from %s]", act.ToolName)
		if act.Message != "" {
			text = act.Message + "\n" + text
		}
		return text

	case action.KindFormComplete:
		var sb strings.Builder
		if act.Message != "" {
			sb.WriteString(act.Message)
		} else {
			sb.WriteString("Form complete!")
		}
		keys := make([]string, 0, len(act.Data))
		for k := range act.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rendered, err := json.Marshal(act.Data[k])
			if err != nil {
				rendered = []byte(fmt.Sprintf("%v", act.Data[k]))
			}
			fmt.Fprintf(&sb, "\n  %s: %s", strings.ReplaceAll(k, "_", " "), rendered)
		}
		return sb.String()
	}
	return fmt.Sprintf("[unhandled action %s]", act.Kind)
}

// askText picks the question wording for an ASK_* action.
func askText(act action.Action) string {
	if act.Message != "" {
		return act.Message
	}
	if act.Label != "" {
		return act.Label
	}
	return fmt.Sprintf("Please provide %s", strings.ReplaceAll(act.FieldID, "_", " "))
}

// ResolveOption maps a user reply to a dropdown option: a 1-based number, an
// exact match, or a unique case-insensitive prefix. Falls back to the raw
// reply when nothing matches.
func ResolveOption(reply string, options []string) string {
	trimmed := strings.TrimSpace(reply)
	var n int
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}

	lower := strings.ToLower(trimmed)
	var prefixMatch string
	matches := 0
	for _, opt := range options {
		optLower := strings.ToLower(opt)
		if optLower == lower {
			return opt
		}
		if strings.HasPrefix(optLower, lower) && lower != "" {
			prefixMatch = opt
			matches++
		}
	}
	if matches == 1 {
		return prefixMatch
	}
	return trimmed
}
