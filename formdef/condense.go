// ABOUTME: Token-budget condensation of large form definitions for prompt inclusion.
// ABOUTME: Extracts the known section headings; falls back to deterministic head/tail slicing.
package formdef

import (
	"strings"
)

// condenseThreshold is the line count above which a form context is condensed
// before being embedded in the conversation prompt.
const condenseThreshold = 150

// condenseSections are the headings kept when a large document is condensed,
// in the order they are emitted.
var condenseSections = []string{
	"Tool Calls",
	"Form Overview",
	"Field Summary",
	"Conditional Logic",
	"Chat Agent Instructions",
}

// Condense returns the form context to embed in the conversation prompt.
// Documents at or under the threshold pass through untouched. Larger ones are
// reduced to the known sections; if none of those headings exist, the first
// 50 and last 100 lines are kept. Deterministic so tests can pin the prompt.
func Condense(formContext string) string {
	lines := strings.Split(formContext, "\n")
	if len(lines) <= condenseThreshold {
		return formContext
	}

	var kept []string
	for _, section := range condenseSections {
		body := ExtractSection(formContext, section)
		if body != "" {
			kept = append(kept, body)
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, "\n\n")
	}

	head := lines[:50]
	tail := lines[len(lines)-100:]
	return strings.Join(head, "\n") + "\n\n[... middle of form definition omitted ...]\n\n" + strings.Join(tail, "\n")
}

// ExtractSection returns a markdown section (its heading line plus body up to
// the next heading of the same or higher level), or "" when the heading does
// not appear. Matching is case-insensitive on the heading text.
func ExtractSection(formContext, heading string) string {
	lines := strings.Split(formContext, "\n")
	want := strings.ToLower(strings.TrimSpace(heading))

	start := -1
	level := 0
	for i, line := range lines {
		lvl, txt := headingLine(line)
		if lvl == 0 {
			continue
		}
		if start == -1 {
			if strings.ToLower(txt) == want {
				start = i
				level = lvl
			}
			continue
		}
		if lvl <= level {
			return strings.TrimRight(strings.Join(lines[start:i], "\n"), "\n")
		}
	}
	if start == -1 {
		return ""
	}
	return strings.TrimRight(strings.Join(lines[start:], "\n"), "\n")
}

// headingLine parses an ATX heading, returning its level and text, or (0, "").
func headingLine(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return 0, ""
	}
	return level, strings.TrimSpace(trimmed[level:])
}
