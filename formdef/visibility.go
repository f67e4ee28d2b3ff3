// ABOUTME: Deterministic visibility evaluation for conditionally shown fields.
// ABOUTME: visible_if rules are evaluated in code against current answers, never by the LLM.
package formdef

import (
	"fmt"
	"time"

	"github.com/formpilot-ai/formpilot/dates"
)

// ConditionOperator enumerates the comparisons a visibility condition may use.
type ConditionOperator string

const (
	OpExists     ConditionOperator = "EXISTS"
	OpEquals     ConditionOperator = "EQUALS"
	OpNotEquals  ConditionOperator = "NOT_EQUALS"
	OpAfter      ConditionOperator = "AFTER"
	OpBefore     ConditionOperator = "BEFORE"
	OpOnOrAfter  ConditionOperator = "ON_OR_AFTER"
	OpOnOrBefore ConditionOperator = "ON_OR_BEFORE"
)

// VisibilityCondition compares one referenced field's answer against either a
// static value or another field's answer.
type VisibilityCondition struct {
	Field      string            `yaml:"field"`
	Operator   ConditionOperator `yaml:"operator"`
	Value      string            `yaml:"value"`
	ValueField string            `yaml:"value_field"`
}

// VisibilityRule gates a field on a conjunction of conditions.
type VisibilityRule struct {
	All []VisibilityCondition `yaml:"all"`
}

// IsVisible reports whether a field should currently be shown. Fields without
// a rule are always visible; with a rule, every condition must pass.
func IsVisible(f *Field, answers map[string]any) bool {
	if f == nil || f.VisibleIf == nil {
		return true
	}
	for _, cond := range f.VisibleIf.All {
		if !evaluateCondition(cond, answers) {
			return false
		}
	}
	return true
}

// VisibleRequiredFieldIDs filters the definition's required set down to
// fields whose visibility rules currently hold, preserving declaration order.
// Conditionally required fields join the set while visible.
func (d *Definition) VisibleRequiredFieldIDs(answers map[string]any) []string {
	var ids []string
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.ID == "" {
			continue
		}
		required := f.Required == RequiredYes ||
			(f.Required == RequiredConditional && f.VisibleIf != nil)
		if required && IsVisible(f, answers) {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

func evaluateCondition(cond VisibilityCondition, answers map[string]any) bool {
	fieldValue, present := answers[cond.Field]

	switch cond.Operator {
	case OpExists:
		return present && fieldValue != nil
	case OpEquals:
		compare, ok := compareValue(cond, answers)
		if !present || !ok {
			return false
		}
		return stringify(fieldValue) == compare
	case OpNotEquals:
		compare, ok := compareValue(cond, answers)
		if !present || !ok {
			return false
		}
		return stringify(fieldValue) != compare
	case OpAfter:
		return compareDates(fieldValue, cond, answers, func(a, b time.Time) bool { return a.After(b) })
	case OpBefore:
		return compareDates(fieldValue, cond, answers, func(a, b time.Time) bool { return a.Before(b) })
	case OpOnOrAfter:
		return compareDates(fieldValue, cond, answers, func(a, b time.Time) bool { return !a.Before(b) })
	case OpOnOrBefore:
		return compareDates(fieldValue, cond, answers, func(a, b time.Time) bool { return !a.After(b) })
	}
	return false
}

// compareValue resolves the right-hand side: a dynamic field reference wins
// over a static value.
func compareValue(cond VisibilityCondition, answers map[string]any) (string, bool) {
	if cond.ValueField != "" {
		v, ok := answers[cond.ValueField]
		if !ok || v == nil {
			return "", false
		}
		return stringify(v), true
	}
	if cond.Value == "" {
		return "", false
	}
	return cond.Value, true
}

func compareDates(fieldValue any, cond VisibilityCondition, answers map[string]any, cmp func(a, b time.Time) bool) bool {
	if fieldValue == nil {
		return false
	}
	compare, ok := compareValue(cond, answers)
	if !ok {
		return false
	}

	left, err := dates.Parse(stringify(fieldValue))
	if err != nil {
		return false
	}
	right, err := dates.Parse(compare)
	if err != nil {
		return false
	}
	// Compare at day granularity; answers are stored date-only.
	ly, lm, ld := left.Date()
	ry, rm, rd := right.Date()
	return cmp(time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC), time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC))
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
