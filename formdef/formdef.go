// ABOUTME: Parsed form definition model: fields, types, tools, steps, and visibility rules.
// ABOUTME: Definitions come from YAML frontmatter when present, else from the markdown body.
package formdef

import (
	"strings"
)

// FieldType enumerates the widget types a form field can declare.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeDropdown FieldType = "dropdown"
	TypeCheckbox FieldType = "checkbox"
	TypeDate     FieldType = "date"
	TypeDatetime FieldType = "datetime"
	TypeLocation FieldType = "location"
	TypeTime     FieldType = "time"
	TypeFile     FieldType = "file"
)

// KnownFieldType reports whether s names a supported field type.
func KnownFieldType(s string) bool {
	switch FieldType(strings.ToLower(s)) {
	case TypeText, TypeDropdown, TypeCheckbox, TypeDate, TypeDatetime, TypeLocation, TypeTime, TypeFile:
		return true
	}
	return false
}

// Requiredness is the tri-state required flag: required, optional, or
// conditional (required only when its visibility rule holds).
type Requiredness string

const (
	RequiredYes         Requiredness = "true"
	RequiredNo          Requiredness = "false"
	RequiredConditional Requiredness = "conditional"
)

// Field is a single form field declaration.
type Field struct {
	ID          string
	Type        FieldType
	Required    Requiredness
	Prompt      string
	Options     []string
	Step        int
	OptionsTool string
	VisibleIf   *VisibilityRule
}

// Tool is an external data source the client executes on the orchestrator's
// behalf via TOOL_CALL round-trips.
type Tool struct {
	Name    string
	Purpose string
}

// Definition is the parsed form: everything the orchestrator needs to know
// about what to collect, computed once at session creation.
type Definition struct {
	FormID string
	Title  string
	Fields []Field
	Tools  []Tool

	// HasFrontmatter records which parser produced the definition.
	HasFrontmatter bool
}

// RequiredFieldIDs returns the ordered identifiers of fields marked required.
// Conditionally required fields are excluded; the visibility evaluator
// brings them in at runtime.
func (d *Definition) RequiredFieldIDs() []string {
	var ids []string
	for _, f := range d.Fields {
		if f.Required == RequiredYes && f.ID != "" {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// FieldTypes returns the identifier → type map across all declared fields.
func (d *Definition) FieldTypes() map[string]FieldType {
	types := make(map[string]FieldType, len(d.Fields))
	for _, f := range d.Fields {
		if f.ID != "" && f.Type != "" {
			types[f.ID] = f.Type
		}
	}
	return types
}

// PromptMap returns the identifier → human prompt map for fields that
// declare one.
func (d *Definition) PromptMap() map[string]string {
	prompts := make(map[string]string)
	for _, f := range d.Fields {
		if f.ID != "" && strings.TrimSpace(f.Prompt) != "" {
			prompts[f.ID] = strings.TrimSpace(f.Prompt)
		}
	}
	return prompts
}

// RequiredByStep groups required field identifiers by their step number.
// Fields without a step (or with a nonsensical one) land in step 1.
func (d *Definition) RequiredByStep() map[int][]string {
	byStep := make(map[int][]string)
	for _, f := range d.Fields {
		if f.Required != RequiredYes || f.ID == "" {
			continue
		}
		step := f.Step
		if step < 1 {
			step = 1
		}
		byStep[step] = append(byStep[step], f.ID)
	}
	return byStep
}

// MaxStep returns the highest step number any required field declares,
// at minimum 1.
func (d *Definition) MaxStep() int {
	max := 1
	for step := range d.RequiredByStep() {
		if step > max {
			max = step
		}
	}
	return max
}

// FieldByID looks up a field declaration, or nil.
func (d *Definition) FieldByID(id string) *Field {
	for i := range d.Fields {
		if d.Fields[i].ID == id {
			return &d.Fields[i]
		}
	}
	return nil
}

// ToolForField names the tool that supplies a field's options: an explicit
// options_tool wins; a dropdown or checkbox with no static options falls back
// to the form's sole tool when there is exactly one.
func (d *Definition) ToolForField(id string) string {
	f := d.FieldByID(id)
	if f == nil {
		return ""
	}
	if f.OptionsTool != "" {
		return f.OptionsTool
	}
	if (f.Type == TypeDropdown || f.Type == TypeCheckbox) && len(f.Options) == 0 && len(d.Tools) == 1 {
		return d.Tools[0].Name
	}
	return ""
}

// Parse builds a Definition from a form context document. A YAML frontmatter
// header wins when present and well-formed; otherwise the markdown body is
// mined for the title and a field summary table.
func Parse(content string) *Definition {
	if fm, body, ok := ParseFrontmatter(content); ok {
		def := fm.toDefinition()
		if def.Title == "" {
			def.Title = markdownTitle(body)
		}
		return def
	}
	return parseMarkdown(content)
}
