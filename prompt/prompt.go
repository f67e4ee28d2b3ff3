// ABOUTME: Prompt assembly for the conversation and extraction LLM calls.
// ABOUTME: Sections are package constants so tests can diff exact prompt text.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formpilot-ai/formpilot/formdef"
)

// identityContract opens every prompt. The model must never emit prose
// outside a single JSON object.
const identityContract = `You are a JSON-only API. Every response must be a single JSON object matching exactly one of the nine action shapes; no prose outside JSON. Never emit markdown fences, explanations, or any text before or after the object.`

// actionCatalog enumerates the nine action shapes and their required keys.
const actionCatalog = `ACTION SHAPES (respond with exactly one):
1. {"action": "MESSAGE", "message": "<text for the user>"}
2. {"action": "ASK_TEXT", "field_id": "<id>", "label": "<question>", "message": "<question>"}
3. {"action": "ASK_DROPDOWN", "field_id": "<id>", "label": "<question>", "options": ["<opt>", ...], "message": "<question>"}
4. {"action": "ASK_CHECKBOX", "field_id": "<id>", "label": "<question>", "options": ["<opt>", ...], "message": "<question>"}
5. {"action": "ASK_DATE", "field_id": "<id>", "label": "<question>", "message": "<question>"}
6. {"action": "ASK_DATETIME", "field_id": "<id>", "label": "<question>", "message": "<question>"}
7. {"action": "ASK_LOCATION", "field_id": "<id>", "label": "<question>", "message": "<question>"}
8. {"action": "TOOL_CALL", "tool_name": "<name>", "tool_args": {}, "message": "<what you are fetching>"}
9. {"action": "FORM_COMPLETE", "data": {}, "message": "<closing summary>"}`

// conversationRules constrains how the model moves through the form.
const conversationRules = `RULES:
- Ask exactly ONE field per turn.
- NEVER re-ask a field that already has a value in the answer set below.
- NEVER fabricate, guess, or fill in values the user did not state.
- For a field whose options come from external data, emit TOOL_CALL for its tool first; on the next turn emit the matching ASK_* populated from the tool result.
- ASK_DROPDOWN and ASK_CHECKBOX must carry a non-empty options list.
- Emit FORM_COMPLETE only when every required field has an answer.`

// validationExamples shows the model how to judge a held free-text answer.
const validationExamples = `CONTEXT VALIDATION EXAMPLES:

Example 1 (accept and move on):
System: VALIDATE this answer for injury_description: "I slipped on a wet floor in the warehouse and twisted my ankle". If irrelevant or gibberish, re-ask the same field; otherwise move to the next field.
Response: {"action": "ASK_TEXT", "field_id": "witness_name", "label": "Were there any witnesses?", "message": "Thanks, that's clear. Were there any witnesses?"}

Example 2 (reject and re-ask):
System: VALIDATE this answer for injury_description: "qwerty asdf". If irrelevant or gibberish, re-ask the same field; otherwise move to the next field.
Response: {"action": "ASK_TEXT", "field_id": "injury_description", "label": "Please describe what happened", "message": "I couldn't make sense of that. Could you describe what happened in a sentence or two?"}`

// Conversation builds the system prompt for the conversation node.
// The form context is condensed when oversized, and the current state section
// names the single next field to ask plus whether it needs a tool call first.
func Conversation(def *formdef.Definition, formContext string, answers map[string]any, missing []string) string {
	var sb strings.Builder
	sb.WriteString(identityContract)
	sb.WriteString("\n\n")
	sb.WriteString(actionCatalog)
	sb.WriteString("\n\n")
	sb.WriteString(conversationRules)
	sb.WriteString("\n\n")
	sb.WriteString(validationExamples)
	sb.WriteString("\n\nFORM DEFINITION:\n")
	sb.WriteString(formdef.Condense(formContext))
	sb.WriteString("\n\n")
	sb.WriteString(stateSection(def, answers, missing))
	return sb.String()
}

// stateSection renders current answers, missing fields, and the next-step hint.
func stateSection(def *formdef.Definition, answers map[string]any, missing []string) string {
	answersJSON, err := json.Marshal(answers)
	if err != nil || answers == nil {
		answersJSON = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString("CURRENT STATE:\n")
	fmt.Fprintf(&sb, "Collected answers: %s\n", answersJSON)
	if len(missing) == 0 {
		sb.WriteString("Missing required fields: none\n")
		sb.WriteString("Next step: all required fields are collected. Emit FORM_COMPLETE.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "Missing required fields (in order): %s\n", strings.Join(missing, ", "))
	next := missing[0]
	hint := fmt.Sprintf("Next step: ask for %q", next)
	if f := def.FieldByID(next); f != nil {
		hint += fmt.Sprintf(" using %s", askActionFor(f.Type))
		if tool := def.ToolForField(next); tool != "" {
			hint += fmt.Sprintf(". This field requires a preceding TOOL_CALL to %q to fetch its options", tool)
		}
	}
	sb.WriteString(hint + ".")
	return sb.String()
}

// askActionFor maps a field type to the action kind that asks for it.
func askActionFor(t formdef.FieldType) string {
	switch t {
	case formdef.TypeDropdown:
		return "ASK_DROPDOWN"
	case formdef.TypeCheckbox:
		return "ASK_CHECKBOX"
	case formdef.TypeDate:
		return "ASK_DATE"
	case formdef.TypeDatetime:
		return "ASK_DATETIME"
	case formdef.TypeLocation:
		return "ASK_LOCATION"
	}
	return "ASK_TEXT"
}

// Extraction builds the system prompt for the one-shot bulk extraction pass.
func Extraction(def *formdef.Definition) string {
	var sb strings.Builder
	sb.WriteString(identityContract)
	sb.WriteString("\n\nREQUIRED FIELDS ({field_id: type}):\n")
	for _, id := range def.RequiredFieldIDs() {
		t := def.FieldTypes()[id]
		fmt.Fprintf(&sb, "- %s: %s\n", id, t)
	}
	sb.WriteString(`
TASK: Extract form answers from the user's message.
- Extract ONLY values the user explicitly stated. Omit anything uncertain.
- Output dates as YYYY-MM-DD and datetimes as YYYY-MM-DDTHH:MM:SS.
- Respond with exactly: {"intent": "multi_answer", "answers": {"<field_id>": <value>, ...}, "message": "<one short sentence acknowledging what you captured>"}
- If nothing can be extracted, return an empty answers object.`)
	return sb.String()
}
