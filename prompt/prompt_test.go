// ABOUTME: Tests for conversation and extraction prompt assembly.
// ABOUTME: Pins the section order, state rendering, and the next-step tool hint.
package prompt

import (
	"strings"
	"testing"

	"github.com/formpilot-ai/formpilot/formdef"
)

const testForm = `# Workplace Injury Report

## Field Summary

| Field | Type | Required | Prompt |
|---|---|---|---|
| establishment | dropdown | yes | Which establishment? |
| injury_date | date | yes | When did it happen? |
| injury_description | text | yes | Describe what happened |

## Tool Calls

- get_establishments: fetch the establishment list
`

func TestConversationSectionOrder(t *testing.T) {
	def := formdef.Parse(testForm)
	p := Conversation(def, testForm, map[string]any{}, def.RequiredFieldIDs())

	markers := []string{
		"JSON-only API",
		"ACTION SHAPES",
		"RULES:",
		"CONTEXT VALIDATION EXAMPLES:",
		"FORM DEFINITION:",
		"CURRENT STATE:",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(p, m)
		if idx < 0 {
			t.Fatalf("prompt missing section %q", m)
		}
		if idx < last {
			t.Errorf("section %q out of order", m)
		}
		last = idx
	}
}

func TestConversationCatalogNamesAllNineActions(t *testing.T) {
	def := formdef.Parse(testForm)
	p := Conversation(def, testForm, nil, nil)
	for _, kind := range []string{"MESSAGE", "ASK_TEXT", "ASK_DROPDOWN", "ASK_CHECKBOX", "ASK_DATE", "ASK_DATETIME", "ASK_LOCATION", "TOOL_CALL", "FORM_COMPLETE"} {
		if !strings.Contains(p, kind) {
			t.Errorf("catalog missing %s", kind)
		}
	}
}

func TestConversationStateSection(t *testing.T) {
	def := formdef.Parse(testForm)
	answers := map[string]any{"establishment": "Riyadh Tech"}
	p := Conversation(def, testForm, answers, []string{"injury_date", "injury_description"})

	if !strings.Contains(p, `"establishment":"Riyadh Tech"`) {
		t.Error("answers JSON missing from state section")
	}
	if !strings.Contains(p, "Missing required fields (in order): injury_date, injury_description") {
		t.Error("missing-fields list absent")
	}
	if !strings.Contains(p, `ask for "injury_date" using ASK_DATE`) {
		t.Error("next-step hint should name the field and its ask action")
	}
}

func TestConversationToolHint(t *testing.T) {
	def := formdef.Parse(testForm)
	p := Conversation(def, testForm, nil, []string{"establishment"})
	if !strings.Contains(p, `requires a preceding TOOL_CALL to "get_establishments"`) {
		t.Error("tool-backed dropdown should carry a TOOL_CALL hint")
	}
}

func TestConversationAllCollected(t *testing.T) {
	def := formdef.Parse(testForm)
	p := Conversation(def, testForm, map[string]any{"a": 1}, nil)
	if !strings.Contains(p, "Emit FORM_COMPLETE") {
		t.Error("empty missing list should direct the model to FORM_COMPLETE")
	}
}

func TestConversationCondensesLargeForms(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(testForm)
	sb.WriteString("\n## Padding\n\n")
	for i := 0; i < 300; i++ {
		sb.WriteString("filler line\n")
	}
	def := formdef.Parse(sb.String())
	p := Conversation(def, sb.String(), nil, def.RequiredFieldIDs())
	if strings.Count(p, "filler line") > 0 {
		t.Error("oversized form context should be condensed to known sections")
	}
	if !strings.Contains(p, "get_establishments") {
		t.Error("condensed context must keep the tool section")
	}
}

func TestExtractionPrompt(t *testing.T) {
	def := formdef.Parse(testForm)
	p := Extraction(def)

	if !strings.Contains(p, "JSON-only API") {
		t.Error("extraction prompt missing identity contract")
	}
	for _, want := range []string{"- establishment: dropdown", "- injury_date: date", "- injury_description: text"} {
		if !strings.Contains(p, want) {
			t.Errorf("extraction prompt missing %q", want)
		}
	}
	if !strings.Contains(p, `"intent": "multi_answer"`) {
		t.Error("extraction prompt must demand the multi_answer shape")
	}
	if !strings.Contains(p, "YYYY-MM-DD") {
		t.Error("extraction prompt must state the date format")
	}
}
