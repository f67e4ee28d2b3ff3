// ABOUTME: Step confirmation: checkpoints between numbered form steps.
// ABOUTME: Classifies the user's reply as confirm, edit request, or unclear.
package agent

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/formdef"
)

var confirmWords = []string{
	"yes", "ok", "okay", "confirm", "continue", "proceed",
	"looks good", "all good", "correct", "approved",
	"نعم", "موافق", "تمام", "اكمل",
}

var editWords = []string{
	"change", "update", "edit", "modify", "fix", "wrong", "not correct",
	"تعديل", "تغيير", "خطأ",
}

// stepReply classifies a user message at a step checkpoint.
type stepReply int

const (
	replyUnclear stepReply = iota
	replyConfirm
	replyEdit
)

func classifyStepReply(message string) stepReply {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, w := range editWords {
		if strings.Contains(lower, w) {
			return replyEdit
		}
	}
	for _, w := range confirmWords {
		if strings.Contains(lower, w) {
			return replyConfirm
		}
	}
	return replyUnclear
}

// runStepConfirmation consumes the reply to a pending step checkpoint.
// Confirmation advances the step and hands control back to the driver (which
// continues with conversation). Edit requests and unclear replies short-
// circuit the turn with a direct action, returned as the second value.
func (o *Orchestrator) runStepConfirmation(st *State) (action.Action, bool) {
	st.recordUserMessage()

	switch classifyStepReply(st.turn.UserMessage) {
	case replyConfirm:
		st.AwaitingStepConfirmation = false
		st.CurrentStep++
		log.Printf("component=agent node=step_confirmation action=confirmed conversation=%s step=%d", st.ConversationID, st.CurrentStep)
		return action.Action{}, false

	case replyEdit:
		if f := fieldFromEditRequest(st, st.turn.UserMessage); f != nil {
			st.AwaitingStepConfirmation = false
			log.Printf("component=agent node=step_confirmation action=edit conversation=%s field=%s", st.ConversationID, f.ID)
			return askFor(f), true
		}
		st.AwaitingStepConfirmation = false
		return action.Action{}, false

	default:
		// Re-prompt the same checkpoint.
		return action.NewMessage(stepSummaryText(st, st.CurrentStep)), true
	}
}

// fieldFromEditRequest looks for a field of the current step named in the
// user's edit request, by identifier or by prompt words.
func fieldFromEditRequest(st *State, message string) *formdef.Field {
	lower := strings.ToLower(message)
	for _, id := range st.Definition.RequiredByStep()[st.CurrentStep] {
		f := st.Definition.FieldByID(id)
		if f == nil {
			continue
		}
		if strings.Contains(lower, strings.ToLower(strings.ReplaceAll(id, "_", " "))) ||
			strings.Contains(lower, strings.ToLower(id)) {
			return f
		}
	}
	return nil
}

// askFor builds the direct ASK_* action that re-asks one field.
func askFor(f *formdef.Field) action.Action {
	kind := askKindFor(f.Type)
	label := f.Prompt
	if label == "" {
		label = fmt.Sprintf("Please provide %s", strings.ReplaceAll(f.ID, "_", " "))
	}
	return action.NewAsk(kind, f.ID, label, f.Options, label)
}

func askKindFor(t formdef.FieldType) action.Kind {
	switch t {
	case formdef.TypeDropdown:
		return action.KindAskDropdown
	case formdef.TypeCheckbox:
		return action.KindAskCheckbox
	case formdef.TypeDate:
		return action.KindAskDate
	case formdef.TypeDatetime:
		return action.KindAskDatetime
	case formdef.TypeLocation:
		return action.KindAskLocation
	}
	return action.KindAskText
}

// stepCheckpoint decides whether finalize should interpose a confirmation
// MESSAGE: multi-step forms pause after each completed step short of the last.
func stepCheckpoint(st *State, act action.Action) (action.Action, bool) {
	maxStep := st.Definition.MaxStep()
	if maxStep <= 1 || st.AwaitingStepConfirmation {
		return act, false
	}
	if st.CurrentStep >= maxStep {
		return act, false
	}
	if act.Kind == action.KindFormComplete || act.Kind == action.KindToolCall {
		return act, false
	}
	// An ask for a field of the current step means the step is still being
	// collected (or redone after an edit request).
	if act.Kind.IsAsk() {
		if f := st.Definition.FieldByID(act.FieldID); f != nil && f.Step == st.CurrentStep {
			return act, false
		}
	}
	if len(st.missingInStep(st.CurrentStep)) > 0 {
		return act, false
	}

	st.AwaitingStepConfirmation = true
	log.Printf("component=agent node=finalize action=step_checkpoint conversation=%s step=%d", st.ConversationID, st.CurrentStep)
	return action.NewMessage(stepSummaryText(st, st.CurrentStep)), true
}

// stepSummaryText renders the collected answers of one step for review.
func stepSummaryText(st *State, step int) string {
	var lines []string
	for _, id := range st.Definition.RequiredByStep()[step] {
		value, ok := st.Answers[id]
		if !ok {
			continue
		}
		rendered, err := json.Marshal(value)
		if err != nil {
			rendered = []byte(fmt.Sprintf("%v", value))
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", strings.ReplaceAll(id, "_", " "), rendered))
	}
	return fmt.Sprintf("Here's what I have for step %d:\n%s\nDoes this look right? Say yes to continue, or tell me what to change.", step, strings.Join(lines, "\n"))
}
