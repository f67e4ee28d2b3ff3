// ABOUTME: End-to-end turn tests: greeting, bulk extraction, validation, tool round trips.
// ABOUTME: Uses a scripted completer so every scenario is deterministic and replayable.
package agent

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/llm"
)

const leaveForm = `# Leave Request

## Field Summary

| Field | Type | Required | Prompt |
|---|---|---|---|
| leave_type | text | yes | What kind of leave? |
| start_date | date | yes | When does it start? |
| end_date | date | yes | When does it end? |
`

const injuryForm = `# Injury Report

## Field Summary

| Field | Type | Required | Prompt |
|---|---|---|---|
| establishment | dropdown | yes | Which establishment? |
| injury_description | text | yes | What happened? |

## Tool Calls

- get_establishments: fetch establishments
`

func fixedClock() func() time.Time {
	at := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func newOrchestrator(responses ...string) (*Orchestrator, *llm.Scripted) {
	stub := llm.NewScripted(responses...)
	return New(stub, WithClock(fixedClock())), stub
}

func runTurn(t *testing.T, o *Orchestrator, st *State, input TurnInput) (action.Action, *State) {
	t.Helper()
	act, next, err := o.RunTurn(context.Background(), st, input)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	return act, next
}

func TestGreetingTurn(t *testing.T) {
	o, stub := newOrchestrator()
	st := NewState("conv-1", leaveForm)

	act, next := runTurn(t, o, st, TurnInput{UserMessage: ""})

	if act.Kind != action.KindMessage {
		t.Fatalf("kind = %s", act.Kind)
	}
	if !strings.Contains(act.Text, "Leave Request") {
		t.Errorf("greeting should reference the form title: %q", act.Text)
	}
	if !strings.Contains(act.Text, "3 items") {
		t.Errorf("greeting should count the required items: %q", act.Text)
	}
	if len(next.Answers) != 0 || next.InitialExtractionDone {
		t.Error("greeting must not touch answers or the extraction flag")
	}
	if stub.CallCount() != 0 {
		t.Error("greeting never calls the LLM")
	}
	if len(next.History) != 1 || next.History[0].Role != llm.RoleAssistant {
		t.Errorf("greeting should record itself in history: %+v", next.History)
	}
	if len(st.History) != 0 {
		t.Error("the input state must not be mutated")
	}
}

func TestBulkExtractionComplete(t *testing.T) {
	o, stub := newOrchestrator(
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual", "start_date": "2026-03-01", "end_date": "2026-03-10"}, "message": "Got it"}`,
	)
	st := NewState("conv-1", leaveForm)
	_, st = runTurn(t, o, st, TurnInput{})

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "Annual leave from 2026-03-01 to 2026-03-10"})

	if act.Kind != action.KindFormComplete {
		t.Fatalf("kind = %s", act.Kind)
	}
	want := map[string]any{"leave_type": "Annual", "start_date": "2026-03-01", "end_date": "2026-03-10"}
	if !reflect.DeepEqual(act.Data, want) {
		t.Errorf("data = %v", act.Data)
	}
	if !st.InitialExtractionDone {
		t.Error("extraction flag must flip")
	}
	if stub.CallCount() != 1 {
		t.Errorf("expected a single extraction call, got %d", stub.CallCount())
	}
}

func TestBulkExtractionPartial(t *testing.T) {
	o, _ := newOrchestrator(
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual", "start_date": "2026-03-01"}, "message": "Got two"}`,
		`{"action": "ASK_DATE", "field_id": "end_date", "label": "When does it end?"}`,
	)
	st := NewState("conv-1", leaveForm)
	_, st = runTurn(t, o, st, TurnInput{})

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "Annual leave starting 2026-03-01"})

	if act.Kind != action.KindAskDate || act.FieldID != "end_date" {
		t.Fatalf("action = %+v", act)
	}
	want := map[string]any{"leave_type": "Annual", "start_date": "2026-03-01"}
	if !reflect.DeepEqual(st.Answers, want) {
		t.Errorf("answers = %v", st.Answers)
	}
	if st.PendingFieldID != "end_date" || st.PendingActionType != action.KindAskDate {
		t.Errorf("pending = %q %q", st.PendingFieldID, st.PendingActionType)
	}
}

func TestBulkExtractionCoercesNonStringDates(t *testing.T) {
	o, _ := newOrchestrator(
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual", "start_date": true, "end_date": "2026-03-10"}, "message": ""}`,
		`{"action": "ASK_DATE", "field_id": "start_date", "label": "When does it start?"}`,
	)
	st := NewState("conv-1", leaveForm)
	_, st = runTurn(t, o, st, TurnInput{})

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "Annual leave ending 2026-03-10"})

	if _, stored := st.Answers["start_date"]; stored {
		t.Errorf("unparseable non-string date must be dropped: %v", st.Answers)
	}
	if st.Answers["end_date"] != "2026-03-10" {
		t.Errorf("end_date = %v", st.Answers["end_date"])
	}
	if act.Kind != action.KindAskDate || act.FieldID != "start_date" {
		t.Fatalf("action = %+v", act)
	}
}

func TestInvalidDateReasked(t *testing.T) {
	o, _ := newOrchestrator(
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual", "start_date": "2026-03-01"}, "message": ""}`,
		`{"action": "ASK_DATE", "field_id": "end_date", "label": "When does it end?"}`,
		`{"action": "ASK_DATE", "field_id": "end_date", "label": "When does it end?"}`,
	)
	st := NewState("conv-1", leaveForm)
	_, st = runTurn(t, o, st, TurnInput{})
	_, st = runTurn(t, o, st, TurnInput{UserMessage: "Annual leave starting 2026-03-01"})

	before := len(st.Answers)
	act, st := runTurn(t, o, st, TurnInput{UserMessage: "asdf"})

	if act.Kind != action.KindAskDate || act.FieldID != "end_date" {
		t.Fatalf("action = %+v", act)
	}
	if len(st.Answers) != before {
		t.Errorf("answers must be unchanged: %v", st.Answers)
	}
	found := false
	for _, msg := range st.History {
		if msg.Role == llm.RoleSystem && strings.Contains(msg.Content, "could not be parsed as a date") {
			found = true
		}
	}
	if !found {
		t.Error("validation failure should leave a system retry message in history")
	}
}

func TestValidDateStoredNormalized(t *testing.T) {
	o, _ := newOrchestrator(
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual", "start_date": "2026-03-01"}, "message": ""}`,
		`{"action": "ASK_DATE", "field_id": "end_date", "label": "When does it end?"}`,
		`{"action": "FORM_COMPLETE", "data": {}, "message": "All set"}`,
	)
	st := NewState("conv-1", leaveForm)
	_, st = runTurn(t, o, st, TurnInput{})
	_, st = runTurn(t, o, st, TurnInput{UserMessage: "Annual leave starting 2026-03-01"})

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "March 10, 2026"})

	if st.Answers["end_date"] != "2026-03-10" {
		t.Errorf("end_date = %v", st.Answers["end_date"])
	}
	if act.Kind != action.KindFormComplete {
		t.Fatalf("kind = %s", act.Kind)
	}
	if !reflect.DeepEqual(act.Data, st.Answers) {
		t.Errorf("FORM_COMPLETE data should mirror answers: %v vs %v", act.Data, st.Answers)
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	o, _ := newOrchestrator(
		`{"intent": "multi_answer", "answers": {}, "message": ""}`,
		`{"action": "TOOL_CALL", "tool_name": "get_establishments", "tool_args": {}, "message": "Fetching establishments"}`,
		`{"action": "ASK_DROPDOWN", "field_id": "establishment", "label": "Which establishment?", "options": ["Riyadh Tech"]}`,
	)
	st := NewState("conv-1", injuryForm)
	_, st = runTurn(t, o, st, TurnInput{})

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "I had an injury"})
	if act.Kind != action.KindToolCall || act.ToolName != "get_establishments" {
		t.Fatalf("expected TOOL_CALL, got %+v", act)
	}
	if st.PendingToolName != "get_establishments" {
		t.Errorf("pending tool = %q", st.PendingToolName)
	}

	results := []ToolResult{{
		ToolName: "get_establishments",
		Result:   map[string]any{"establishments": []any{map[string]any{"name": map[string]any{"english": "Riyadh Tech"}}}},
	}}
	act, st = runTurn(t, o, st, TurnInput{ToolResults: results})

	if act.Kind != action.KindAskDropdown || act.FieldID != "establishment" {
		t.Fatalf("expected ASK_DROPDOWN, got %+v", act)
	}
	if !reflect.DeepEqual(act.Options, []string{"Riyadh Tech"}) {
		t.Errorf("options = %v", act.Options)
	}
	if st.PendingToolName != "" {
		t.Error("matching tool result should clear the pending tool")
	}
	found := false
	for _, msg := range st.History {
		if msg.Role == llm.RoleSystem && strings.Contains(msg.Content, `Usable options: ["Riyadh Tech"]`) {
			found = true
		}
	}
	if !found {
		t.Error("tool result should leave an options hint in history")
	}
}

func TestTextRejection(t *testing.T) {
	o, _ := newOrchestrator(
		`{"action": "ASK_TEXT", "field_id": "injury_description", "label": "Please describe what happened"}`,
	)
	st := NewState("conv-1", injuryForm)
	st.InitialExtractionDone = true
	st.mergeAnswers(map[string]any{"establishment": "Riyadh Tech"})
	st.appendHistory(llm.RoleAssistant, "asked")
	st.PendingFieldID = "injury_description"
	st.PendingActionType = action.KindAskText

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "qwerty"})

	if act.Kind != action.KindAskText || act.FieldID != "injury_description" {
		t.Fatalf("action = %+v", act)
	}
	if _, stored := st.Answers["injury_description"]; stored {
		t.Error("rejected text must not be stored")
	}
	if st.PendingTextValue != "" || st.PendingTextFieldID != "" {
		t.Error("pending text latch must be cleared")
	}
}

func TestTextAccepted(t *testing.T) {
	o, _ := newOrchestrator(
		`{"action": "FORM_COMPLETE", "data": {}, "message": "Done"}`,
	)
	st := NewState("conv-1", injuryForm)
	st.InitialExtractionDone = true
	st.mergeAnswers(map[string]any{"establishment": "Riyadh Tech"})
	st.appendHistory(llm.RoleAssistant, "asked")
	st.PendingFieldID = "injury_description"
	st.PendingActionType = action.KindAskText

	act, st := runTurn(t, o, st, TurnInput{UserMessage: "I slipped on a wet floor and twisted my ankle"})

	if st.Answers["injury_description"] != "I slipped on a wet floor and twisted my ankle" {
		t.Errorf("accepted text missing: %v", st.Answers)
	}
	if act.Kind != action.KindFormComplete {
		t.Fatalf("kind = %s", act.Kind)
	}
	if act.Data["injury_description"] == nil {
		t.Error("FORM_COMPLETE data should include the accepted text")
	}
}

func TestZeroRequiredFieldsCompletesImmediately(t *testing.T) {
	o, stub := newOrchestrator()
	st := NewState("conv-1", "# Feedback\n\nJust talk to us.\n")
	_, st = runTurn(t, o, st, TurnInput{})

	act, _ := runTurn(t, o, st, TurnInput{UserMessage: "hello"})
	if act.Kind != action.KindFormComplete {
		t.Fatalf("kind = %s", act.Kind)
	}
	if stub.CallCount() != 1 {
		t.Errorf("only the extraction call should run, got %d", stub.CallCount())
	}
}

func TestGuardRetryThenFallback(t *testing.T) {
	o, stub := newOrchestrator(
		"complete nonsense",
		"still nonsense",
		"more nonsense",
	)
	st := NewState("conv-1", leaveForm)
	st.InitialExtractionDone = true
	st.appendHistory(llm.RoleAssistant, "greeted")

	act, _ := runTurn(t, o, st, TurnInput{UserMessage: "hello"})

	if act.Kind != action.KindMessage || act.Text != FallbackText {
		t.Fatalf("expected fallback MESSAGE, got %+v", act)
	}
	if stub.CallCount() != maxLLMCalls {
		t.Errorf("LLM calls = %d, want %d", stub.CallCount(), maxLLMCalls)
	}
	last := stub.Calls[2].History
	if last[len(last)-1].Role != llm.RoleSystem {
		t.Error("retries should carry corrective system messages")
	}
}

func TestGuardRecoversOnRetry(t *testing.T) {
	o, stub := newOrchestrator(
		`{"action": "MESSAGE", "message": "let me think"}`,
		`{"action": "ASK_TEXT", "field_id": "leave_type", "label": "What kind of leave?"}`,
	)
	st := NewState("conv-1", leaveForm)
	st.InitialExtractionDone = true
	st.appendHistory(llm.RoleAssistant, "greeted")

	act, _ := runTurn(t, o, st, TurnInput{UserMessage: "hi"})

	if act.Kind != action.KindAskText || act.FieldID != "leave_type" {
		t.Fatalf("action = %+v", act)
	}
	if stub.CallCount() != 2 {
		t.Errorf("calls = %d", stub.CallCount())
	}
}

func TestLLMTransportFailureFallsBack(t *testing.T) {
	stub := llm.NewScripted("unused")
	stub.Err = context.DeadlineExceeded
	o := New(stub, WithClock(fixedClock()))

	st := NewState("conv-1", leaveForm)
	st.InitialExtractionDone = true
	st.appendHistory(llm.RoleAssistant, "greeted")

	act, next, err := o.RunTurn(context.Background(), st, TurnInput{UserMessage: "hi"})
	if err != nil {
		t.Fatalf("transport failure should fall back, not error: %v", err)
	}
	if act.Kind != action.KindMessage || act.Text != FallbackText {
		t.Fatalf("action = %+v", act)
	}
	if next == nil {
		t.Fatal("session should still advance")
	}
}

func TestExtractionTransportFailureStillFlipsFlag(t *testing.T) {
	stub := llm.NewScripted("unused")
	stub.Err = context.DeadlineExceeded
	o := New(stub, WithClock(fixedClock()))

	st := NewState("conv-1", leaveForm)
	st.appendHistory(llm.RoleAssistant, "greeted")

	_, next, err := o.RunTurn(context.Background(), st, TurnInput{UserMessage: "Annual leave please"})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !next.InitialExtractionDone {
		t.Error("extraction flag must flip even on transport failure")
	}
}

func TestAnswersMonotone(t *testing.T) {
	o, _ := newOrchestrator(
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual"}, "message": ""}`,
		`{"action": "ASK_DATE", "field_id": "start_date", "label": "When does it start?"}`,
		`{"action": "ASK_DATE", "field_id": "end_date", "label": "When does it end?"}`,
		`{"action": "FORM_COMPLETE", "data": {}, "message": "Done"}`,
	)
	st := NewState("conv-1", leaveForm)

	inputs := []TurnInput{
		{},
		{UserMessage: "Annual leave"},
		{UserMessage: "2026-03-01"},
		{UserMessage: "2026-03-10"},
	}
	prevKeys := map[string]bool{}
	for i, input := range inputs {
		_, next := runTurn(t, o, st, input)
		for k := range prevKeys {
			if _, ok := next.Answers[k]; !ok {
				t.Fatalf("turn %d dropped answer key %q", i, k)
			}
		}
		prevKeys = map[string]bool{}
		for k := range next.Answers {
			prevKeys[k] = true
		}
		st = next
	}
	if len(st.Answers) != 3 {
		t.Errorf("final answers = %v", st.Answers)
	}
}

func TestLongFormCompletesWithinTurnBound(t *testing.T) {
	const fieldCount = 100

	var form strings.Builder
	form.WriteString("# Vendor Onboarding\n\n## Field Summary\n\n| Field | Type | Required | Prompt |\n|---|---|---|---|\n")
	for i := 1; i <= fieldCount; i++ {
		fmt.Fprintf(&form, "| field_%03d | text | yes | Value %d? |\n", i, i)
	}

	script := []string{
		`{"intent": "multi_answer", "answers": {"field_001": "v1"}, "message": ""}`,
	}
	for i := 2; i <= fieldCount; i++ {
		script = append(script, fmt.Sprintf(`{"action": "ASK_TEXT", "field_id": "field_%03d", "label": "Value %d?"}`, i, i))
	}
	script = append(script, `{"action": "FORM_COMPLETE", "data": {}, "message": "Done"}`)

	o, _ := newOrchestrator(script...)
	st := NewState("conv-1", form.String())

	turns := 1
	act, st := runTurn(t, o, st, TurnInput{})
	if act.Kind != action.KindMessage {
		t.Fatalf("greeting kind = %s", act.Kind)
	}

	turns++
	act, st = runTurn(t, o, st, TurnInput{UserMessage: "the first value is v1"})

	for i := 2; i <= fieldCount && act.Kind != action.KindFormComplete; i++ {
		turns++
		act, st = runTurn(t, o, st, TurnInput{UserMessage: fmt.Sprintf("v%d", i)})
	}

	if act.Kind != action.KindFormComplete {
		t.Fatalf("form did not complete, last action = %+v", act)
	}
	if turns > fieldCount+1 {
		t.Errorf("turns = %d, want at most %d", turns, fieldCount+1)
	}
	if len(st.Answers) != fieldCount {
		t.Errorf("answers = %d, want %d", len(st.Answers), fieldCount)
	}
	if len(act.Data) != fieldCount {
		t.Errorf("FORM_COMPLETE data has %d entries, want %d", len(act.Data), fieldCount)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	script := []string{
		`{"intent": "multi_answer", "answers": {"leave_type": "Annual", "start_date": "2026-03-01"}, "message": ""}`,
		`{"action": "ASK_DATE", "field_id": "end_date", "label": "When does it end?"}`,
		`{"action": "FORM_COMPLETE", "data": {}, "message": "All set"}`,
	}
	inputs := []TurnInput{
		{},
		{UserMessage: "Annual leave starting 2026-03-01"},
		{UserMessage: "2026-03-10"},
	}

	run := func() ([]action.Action, map[string]any) {
		o, _ := newOrchestrator(script...)
		st := NewState("conv-1", leaveForm)
		var acts []action.Action
		for _, input := range inputs {
			var act action.Action
			act, st = runTurn(t, o, st, input)
			acts = append(acts, act)
		}
		return acts, st.Answers
	}

	acts1, answers1 := run()
	acts2, answers2 := run()
	if !reflect.DeepEqual(acts1, acts2) {
		t.Error("replay produced different action sequences")
	}
	if !reflect.DeepEqual(answers1, answers2) {
		t.Error("replay produced different final answers")
	}
}
