// ABOUTME: Extraction node: one-shot bulk answer extraction from the first substantive message.
// ABOUTME: Runs at most once per session and never fails the turn.
package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/dates"
	"github.com/formpilot-ai/formpilot/formdef"
	"github.com/formpilot-ai/formpilot/llm"
	"github.com/formpilot-ai/formpilot/prompt"
)

// runExtraction asks the LLM to pull as many field values as possible out of
// the user's message. Worst case it adds zero answers; it always flips
// InitialExtractionDone so the session moves to single-field questioning.
func (o *Orchestrator) runExtraction(ctx context.Context, st *State) {
	st.recordUserMessage()
	st.InitialExtractionDone = true

	system := prompt.Extraction(st.Definition)
	raw, err := o.completer.Complete(ctx, system, []llm.Message{{Role: llm.RoleUser, Content: st.turn.UserMessage}})
	if err != nil {
		log.Printf("component=agent node=extraction action=llm_failed conversation=%s error=%v", st.ConversationID, err)
		return
	}

	payload, ok := ExtractJSON(raw)
	if !ok {
		log.Printf("component=agent node=extraction action=non_json conversation=%s", st.ConversationID)
		return
	}

	if intent, _ := payload["intent"].(string); intent == "multi_answer" {
		answers, _ := payload["answers"].(map[string]any)
		accepted := o.validateExtracted(st, answers)
		st.mergeAnswers(accepted)
		log.Printf("component=agent node=extraction action=extracted conversation=%s accepted=%d offered=%d", st.ConversationID, len(accepted), len(answers))
		return
	}

	// A direct action object pre-empts the turn; finalize emits it verbatim.
	if act, err := action.Decode(payload); err == nil {
		st.turn.parsed = &act
		log.Printf("component=agent node=extraction action=direct_action conversation=%s kind=%s", st.ConversationID, act.Kind)
	}
}

// validateExtracted filters extracted values, silently dropping dates and
// datetimes that fail validation and normalizing the ones that pass.
func (o *Orchestrator) validateExtracted(st *State, answers map[string]any) map[string]any {
	accepted := make(map[string]any, len(answers))
	for id, value := range answers {
		switch st.FieldTypes[id] {
		case formdef.TypeDate:
			normalized, err := dates.NormalizeDateAt(stringValue(value), o.now())
			if err != nil {
				log.Printf("component=agent node=extraction action=drop_invalid_date conversation=%s field=%s", st.ConversationID, id)
				continue
			}
			accepted[id] = normalized
		case formdef.TypeDatetime:
			normalized, err := dates.NormalizeDatetimeAt(stringValue(value), o.now())
			if err != nil {
				log.Printf("component=agent node=extraction action=drop_invalid_datetime conversation=%s field=%s", st.ConversationID, id)
				continue
			}
			accepted[id] = normalized
		default:
			accepted[id] = value
		}
	}
	return accepted
}

// stringValue renders an extracted value for the date parser. The LLM is asked
// for strings but occasionally returns bare JSON scalars.
func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
