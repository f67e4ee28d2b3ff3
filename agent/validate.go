// ABOUTME: Validate_input node: checks the user's answer to the pending ASK_* action.
// ABOUTME: Dates validate by format; free text is held for the LLM's relevance judgment.
package agent

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/dates"
	"github.com/formpilot-ai/formpilot/llm"
)

// runValidateInput handles the turn's user message as the answer to the
// pending field. Strategy depends on the pending action type.
func (o *Orchestrator) runValidateInput(st *State) {
	st.recordUserMessage()
	fieldID := st.PendingFieldID

	switch st.PendingActionType {
	case action.KindAskDate:
		normalized, err := dates.NormalizeDateAt(st.turn.UserMessage, o.now())
		if err != nil {
			log.Printf("component=agent node=validate_input action=invalid_date conversation=%s field=%s", st.ConversationID, fieldID)
			st.appendHistory(llm.RoleSystem, fmt.Sprintf("The previous answer for %s could not be parsed as a date; ask again briefly", fieldID))
			return
		}
		st.mergeAnswers(map[string]any{fieldID: normalized})
		st.clearPending()

	case action.KindAskDatetime:
		normalized, err := dates.NormalizeDatetimeAt(st.turn.UserMessage, o.now())
		if err != nil {
			log.Printf("component=agent node=validate_input action=invalid_datetime conversation=%s field=%s", st.ConversationID, fieldID)
			st.appendHistory(llm.RoleSystem, fmt.Sprintf("The previous answer for %s could not be parsed as a date; ask again briefly", fieldID))
			return
		}
		st.mergeAnswers(map[string]any{fieldID: normalized})
		st.clearPending()

	case action.KindAskText:
		// Held unsaved; finalize stores or discards it based on whether the
		// LLM re-asks the same field.
		st.PendingTextValue = st.turn.UserMessage
		st.PendingTextFieldID = fieldID
		st.appendHistory(llm.RoleSystem, fmt.Sprintf("VALIDATE this answer for %s: %s. If irrelevant or gibberish, re-ask the same field; otherwise move to the next field.", fieldID, st.turn.UserMessage))

	case action.KindAskLocation:
		st.mergeAnswers(map[string]any{fieldID: locationValue(st.turn.UserMessage)})
		st.clearPending()

	default:
		// Dropdowns and checkboxes are UI-constrained; take the value as-is.
		st.mergeAnswers(map[string]any{fieldID: st.turn.UserMessage})
		st.clearPending()
	}
}

// locationValue decodes a {lat, lng} payload when the client sends one and
// the coordinates are in range; anything else is stored as the raw string.
func locationValue(message string) any {
	var loc struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal([]byte(message), &loc); err != nil || loc.Lat == nil || loc.Lng == nil {
		return message
	}
	if *loc.Lat < -90 || *loc.Lat > 90 || *loc.Lng < -180 || *loc.Lng > 180 {
		return message
	}
	return map[string]any{"lat": *loc.Lat, "lng": *loc.Lng}
}
