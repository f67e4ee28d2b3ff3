// ABOUTME: Tool_handler node: ingests client-executed tool results into history.
// ABOUTME: Builds a compact options hint so the next LLM turn can populate an ASK_DROPDOWN.
package agent

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/formpilot-ai/formpilot/llm"
)

// optionKeys is the priority order for pulling a display string out of one
// tool-result item.
var optionKeys = []string{"name", "value", "label", "title", "text", "description"}

// runToolHandler appends one system message per tool result. Tool results
// never touch answers directly; they only inform the LLM's next action.
func (o *Orchestrator) runToolHandler(st *State) {
	st.recordUserMessage()

	for _, result := range st.turn.ToolResults {
		resultJSON, err := json.Marshal(result.Result)
		if err != nil {
			resultJSON = []byte(fmt.Sprintf("%v", result.Result))
		}

		hint := optionsHint(result.Result)
		st.appendHistory(llm.RoleSystem, fmt.Sprintf("Tool %s returned: %s. Usable options: %s. Present these to the user via ASK_DROPDOWN.", result.ToolName, resultJSON, hint))

		if result.ToolName == st.PendingToolName {
			st.PendingToolName = ""
		} else {
			// Ingested anyway; the LLM decides what to do with it.
			log.Printf("component=agent node=tool_handler action=tool_result_unexpected conversation=%s got=%s pending=%s", st.ConversationID, result.ToolName, st.PendingToolName)
		}
	}
}

// optionsHint extracts human-readable option strings from a tool result and
// serializes them as a JSON array. Returns "[]" when nothing usable is found.
func optionsHint(result any) string {
	items := findList(result)
	var options []string
	for _, item := range items {
		if s := optionString(item); s != "" {
			options = append(options, s)
		}
	}
	if len(options) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

// findList locates the list of option candidates: the payload itself, or the
// first list-valued entry of a payload object (keys scanned in sorted order
// so the hint is deterministic).
func findList(result any) []any {
	switch v := result.(type) {
	case []any:
		return v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if list, ok := v[k].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// optionString renders one option item. Nested name objects prefer their
// "english" entry; flat strings pass through.
func optionString(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range optionKeys {
			value, ok := v[key]
			if !ok {
				continue
			}
			switch inner := value.(type) {
			case string:
				if inner != "" {
					return inner
				}
			case map[string]any:
				if english, ok := inner["english"].(string); ok && english != "" {
					return english
				}
			}
		}
	}
	return ""
}
