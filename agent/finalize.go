// ABOUTME: Finalize node: last stop on every non-greeting path.
// ABOUTME: Resolves the pending-text latch, updates pending state, and records the action.
package agent

import (
	"encoding/json"
	"log"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/llm"
)

// runFinalize commits the turn's outgoing action into session state and
// returns it as the turn's output.
func runFinalize(st *State, act action.Action) action.Action {
	// Held free text: rejected when the LLM re-asks the same field,
	// otherwise stored. Cleared either way.
	if st.PendingTextValue != "" {
		reasked := act.Kind == action.KindAskText && act.FieldID == st.PendingTextFieldID
		if reasked {
			log.Printf("component=agent node=finalize action=text_rejected conversation=%s field=%s", st.ConversationID, st.PendingTextFieldID)
		} else {
			st.mergeAnswers(map[string]any{st.PendingTextFieldID: st.PendingTextValue})
		}
		st.clearPendingText()
	}

	// Some intents bundle an accepted value with a follow-up question.
	if act.Value != nil && act.FieldID != "" && !act.Kind.IsAsk() {
		st.mergeAnswers(map[string]any{act.FieldID: act.Value})
	}

	if checkpoint, fired := stepCheckpoint(st, act); fired {
		act = checkpoint
	}

	switch {
	case act.Kind.IsAsk():
		st.PendingFieldID = act.FieldID
		st.PendingActionType = act.Kind
	case act.Kind == action.KindToolCall:
		st.PendingToolName = act.ToolName
		st.clearPending()
	default:
		st.clearPending()
		st.PendingToolName = ""
	}

	if act.Kind == action.KindFormComplete {
		data := make(map[string]any, len(st.Answers))
		for k, v := range st.Answers {
			data[k] = v
		}
		act.Data = data
	}

	encoded, err := json.Marshal(act)
	if err != nil {
		log.Printf("component=agent node=finalize action=marshal_failed conversation=%s error=%v", st.ConversationID, err)
	} else {
		st.appendHistory(llm.RoleAssistant, string(encoded))
	}
	return act
}
