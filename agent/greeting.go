// ABOUTME: Greeting node: opens a new session with the form title and a field summary.
// ABOUTME: Terminal for the turn; never touches answers and never calls the LLM.
package agent

import (
	"fmt"
	"strings"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/formdef"
	"github.com/formpilot-ai/formpilot/llm"
)

// runGreeting emits the opening MESSAGE for a fresh session.
func runGreeting(st *State) action.Action {
	title := st.Definition.Title
	if title == "" {
		title = "this form"
	}

	var text string
	required := st.Definition.VisibleRequiredFieldIDs(st.Answers)
	if len(required) == 0 {
		text = fmt.Sprintf("Hi! I'm here to help you with %s. Tell me what you'd like to do.", title)
	} else {
		text = fmt.Sprintf("Hi! I'll help you fill out %s. We'll go through %s — %s. Tell me what you have, or just say where you'd like to start.",
			title, itemCount(len(required)), typeSummary(st, required))
	}

	act := action.NewMessage(text)
	st.appendHistory(llm.RoleAssistant, act.Text)
	return act
}

func itemCount(n int) string {
	if n == 1 {
		return "one item"
	}
	return fmt.Sprintf("%d items", n)
}

// typeSummary phrases the required-field mix, e.g. "a couple of dates and a
// text answer".
func typeSummary(st *State, required []string) string {
	counts := map[formdef.FieldType]int{}
	order := []formdef.FieldType{}
	for _, id := range required {
		t := st.FieldTypes[id]
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	var parts []string
	for _, t := range order {
		singular, plural := typeNoun(t)
		parts = append(parts, countPhrase(counts[t], singular, plural))
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

func countPhrase(n int, singular, plural string) string {
	switch {
	case n == 1:
		return "a " + singular
	case n <= 3:
		return "a few " + plural
	}
	return "some " + plural
}

func typeNoun(t formdef.FieldType) (string, string) {
	switch t {
	case formdef.TypeDropdown:
		return "selection", "selections"
	case formdef.TypeCheckbox:
		return "multiple-choice pick", "multiple-choice picks"
	case formdef.TypeDate:
		return "date", "dates"
	case formdef.TypeDatetime:
		return "date and time", "dates and times"
	case formdef.TypeLocation:
		return "location", "locations"
	case formdef.TypeFile:
		return "file upload", "file uploads"
	case formdef.TypeTime:
		return "time", "times"
	}
	return "text answer", "text answers"
}
