// ABOUTME: YAML frontmatter parsing for hybrid form definitions.
// ABOUTME: The structured header drives deterministic code; the markdown body below feeds the LLM.
package formdef

import (
	"log"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the structured header of a hybrid form definition:
//
//	---
//	form_id: leave_request
//	title: Leave Request
//	fields:
//	  - id: leave_type
//	    type: dropdown
//	    required: true
//	    prompt: "What kind of leave?"
//	    options: [Annual, Sick]
//	tools:
//	  - name: get_establishments
//	    purpose: "Fetch the establishment list"
//	---
//	# Leave Request
//	... markdown body for the LLM ...
type Frontmatter struct {
	FormID string             `yaml:"form_id"`
	Title  string             `yaml:"title"`
	Fields []FrontmatterField `yaml:"fields"`
	Tools  []FrontmatterTool  `yaml:"tools"`
}

// FrontmatterField mirrors a field entry in the YAML header. Required
// accepts a YAML bool or the strings "true"/"false"/"conditional".
type FrontmatterField struct {
	ID          string          `yaml:"id"`
	Type        string          `yaml:"type"`
	Required    requiredFlag    `yaml:"required"`
	Prompt      string          `yaml:"prompt"`
	Options     []string        `yaml:"options"`
	Step        int             `yaml:"step"`
	OptionsTool string          `yaml:"options_tool"`
	VisibleIf   *VisibilityRule `yaml:"visible_if"`
}

// FrontmatterTool mirrors a tool entry in the YAML header.
type FrontmatterTool struct {
	Name    string `yaml:"name"`
	Purpose string `yaml:"purpose"`
}

type requiredFlag Requiredness

func (r *requiredFlag) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		if b {
			*r = requiredFlag(RequiredYes)
		} else {
			*r = requiredFlag(RequiredNo)
		}
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		*r = requiredFlag(RequiredYes)
	case "conditional":
		*r = requiredFlag(RequiredConditional)
	default:
		*r = requiredFlag(RequiredNo)
	}
	return nil
}

// ParseFrontmatter splits a form document into its YAML header and markdown
// body. Returns ok=false when the document has no parseable header, in which
// case callers fall back to markdown parsing of the whole content.
func ParseFrontmatter(content string) (*Frontmatter, string, bool) {
	stripped := strings.TrimSpace(content)
	if !strings.HasPrefix(stripped, "---") {
		return nil, content, false
	}

	end := strings.Index(stripped[3:], "---")
	if end == -1 {
		return nil, content, false
	}
	yamlBlock := stripped[3 : 3+end]
	body := strings.TrimSpace(stripped[3+end+3:])

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		log.Printf("component=formdef action=frontmatter_parse_failed err=%v", err)
		return nil, content, false
	}
	if len(fm.Fields) == 0 && fm.Title == "" && fm.FormID == "" {
		return nil, content, false
	}
	return &fm, body, true
}

func (fm *Frontmatter) toDefinition() *Definition {
	def := &Definition{
		FormID:         fm.FormID,
		Title:          fm.Title,
		HasFrontmatter: true,
	}
	for _, ff := range fm.Fields {
		if ff.ID == "" {
			continue
		}
		req := Requiredness(ff.Required)
		if req == "" {
			req = RequiredNo
		}
		def.Fields = append(def.Fields, Field{
			ID:          ff.ID,
			Type:        FieldType(strings.ToLower(ff.Type)),
			Required:    req,
			Prompt:      ff.Prompt,
			Options:     ff.Options,
			Step:        ff.Step,
			OptionsTool: ff.OptionsTool,
			VisibleIf:   ff.VisibleIf,
		})
	}
	for _, t := range fm.Tools {
		if t.Name != "" {
			def.Tools = append(def.Tools, Tool{Name: t.Name, Purpose: t.Purpose})
		}
	}
	return def
}
