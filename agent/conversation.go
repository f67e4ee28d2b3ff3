// ABOUTME: Conversation node: the guarded LLM exchange that picks the next action.
// ABOUTME: Retries over a local history copy so failed attempts never pollute the session.
package agent

import (
	"context"
	"log"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/llm"
	"github.com/formpilot-ai/formpilot/prompt"
)

// maxLLMCalls bounds the conversation node's exchange: one initial call plus
// corrective retries, never more than three calls per turn.
const maxLLMCalls = 3

// runConversation builds the conversation prompt, calls the LLM, and applies
// the output guards. Guard violations append a corrective system message to a
// local copy of history and retry. Exhaustion and transport failure both fall
// back to a plain MESSAGE so the user is never left without a reply.
func (o *Orchestrator) runConversation(ctx context.Context, st *State) (action.Action, error) {
	st.recordUserMessage()

	system := prompt.Conversation(st.Definition, st.FormContext, st.Answers, st.MissingRequired())
	local := st.recentHistory()

	for attempt := 1; attempt <= maxLLMCalls; attempt++ {
		raw, err := o.completer.Complete(ctx, system, local)
		if err != nil {
			if ctx.Err() != nil {
				return action.Action{}, ctx.Err()
			}
			log.Printf("component=agent node=conversation action=llm_failed conversation=%s attempt=%d error=%v", st.ConversationID, attempt, err)
			return action.NewMessage(FallbackText), nil
		}

		act, corrective := decodeResponse(raw, st)
		if corrective == "" {
			if attempt > 1 {
				log.Printf("component=agent node=conversation action=guard_recovered conversation=%s attempt=%d", st.ConversationID, attempt)
			}
			return act, nil
		}

		log.Printf("component=agent node=conversation action=guard_fired conversation=%s attempt=%d corrective=%q", st.ConversationID, attempt, corrective)
		local = append(local, llm.Message{Role: llm.RoleSystem, Content: corrective})
	}

	log.Printf("component=agent node=conversation action=retries_exhausted conversation=%s", st.ConversationID)
	return action.NewMessage(FallbackText), nil
}
