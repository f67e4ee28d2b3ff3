// ABOUTME: Markdown fallback parser for form definitions without YAML frontmatter.
// ABOUTME: Walks the goldmark AST for the title heading, field summary tables, and tool lists.
package formdef

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// parseMarkdown mines a markdown-only form definition. The title is the first
// top-level heading. Fields come from any GFM table whose second column holds
// a known field type (the "Field Summary" convention): columns are
// id | type | required | prompt. Tools come from list items under a heading
// containing "Tool".
func parseMarkdown(content string) *Definition {
	source := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(source))

	def := &Definition{}
	inToolSection := false

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			heading := nodeText(node, source)
			if node.Level == 1 && def.Title == "" {
				def.Title = heading
			}
			inToolSection = strings.Contains(strings.ToLower(heading), "tool")
		case *east.Table:
			def.Fields = append(def.Fields, tableFields(node, source)...)
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if inToolSection {
				if tool := parseToolItem(nodeText(node, source)); tool.Name != "" {
					def.Tools = append(def.Tools, tool)
				}
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})

	if def.Title == "" {
		def.Title = "Form"
	}
	return def
}

// markdownTitle returns the first top-level heading of a markdown body.
func markdownTitle(content string) string {
	source := []byte(content)
	doc := markdown.Parser().Parse(text.NewReader(source))

	title := ""
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			title = nodeText(h, source)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

// tableFields extracts field declarations from one table. Rows whose second
// cell is not a known field type are ignored, so unrelated tables pass
// through harmlessly.
func tableFields(table *east.Table, source []byte) []Field {
	var fields []Field
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		if _, isHeader := row.(*east.TableHeader); isHeader {
			continue
		}
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(nodeText(cell, source)))
		}
		if len(cells) < 2 || !KnownFieldType(cells[1]) {
			continue
		}

		f := Field{
			ID:       strings.Trim(cells[0], "`"),
			Type:     FieldType(strings.ToLower(cells[1])),
			Required: RequiredNo,
		}
		if len(cells) >= 3 {
			f.Required = parseRequiredCell(cells[2])
		}
		if len(cells) >= 4 {
			f.Prompt = cells[3]
		}
		if f.ID != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func parseRequiredCell(cell string) Requiredness {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "yes", "true", "required", "✓", "y":
		return RequiredYes
	case "conditional":
		return RequiredConditional
	}
	return RequiredNo
}

// parseToolItem reads a tool list entry like "- `get_establishments` — fetch
// the establishment list" or "- get_establishments: fetch ...".
func parseToolItem(item string) Tool {
	item = strings.TrimSpace(item)
	if item == "" {
		return Tool{}
	}
	name := item
	purpose := ""
	for _, sep := range []string{":", "—", "-", "–"} {
		if idx := strings.Index(item, sep); idx > 0 {
			name = item[:idx]
			purpose = strings.TrimSpace(item[idx+len(sep):])
			break
		}
	}
	name = strings.Trim(strings.TrimSpace(name), "`")
	if strings.ContainsAny(name, " \t") {
		// Tool names are single identifiers; prose items are not tools.
		return Tool{}
	}
	return Tool{Name: name, Purpose: purpose}
}

// nodeText collects the plain text beneath an AST node.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
