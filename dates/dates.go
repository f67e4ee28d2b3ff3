// ABOUTME: Lenient date and datetime parsing for user-supplied answers.
// ABOUTME: Resolves relative phrases, then defers to dateparse for ISO, slashed, and prose forms.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	// DateLayout is the normalized form stored for date answers.
	DateLayout = "2006-01-02"
	// DatetimeLayout is the normalized form stored for datetime answers.
	DatetimeLayout = "2006-01-02T15:04:05"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse interprets a user-supplied date or datetime string against the
// current wall clock. See ParseAt for the rules.
func Parse(value string) (time.Time, error) {
	return ParseAt(value, time.Now())
}

// ParseAt interprets a user-supplied date or datetime string relative to now.
// Resolution order:
//  1. Relative phrases ("today", "tomorrow", "next monday") — these have no
//     digits, so they run before the digit requirement.
//  2. Reject strings with no digit at all: prose without a recognizable
//     relative form is never a date.
//  3. dateparse for everything else (ISO-8601, slashed variants, "January 15
//     2026", and friends). Impossible calendar dates fail here.
func ParseAt(value string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, ok := resolveRelative(strings.ToLower(trimmed), now); ok {
		return t, nil
	}

	if !containsDigit(trimmed) {
		return time.Time{}, fmt.Errorf("%q contains no digits and is not a recognizable date phrase", trimmed)
	}

	t, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", trimmed, err)
	}
	return t, nil
}

// NormalizeDate parses value and renders it as YYYY-MM-DD.
func NormalizeDate(value string) (string, error) {
	return NormalizeDateAt(value, time.Now())
}

// NormalizeDateAt is NormalizeDate with an explicit clock for relative phrases.
func NormalizeDateAt(value string, now time.Time) (string, error) {
	t, err := ParseAt(value, now)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// NormalizeDatetime parses value and renders it as YYYY-MM-DDTHH:MM:SS
// (24-hour local; the timezone is not part of the contract).
func NormalizeDatetime(value string) (string, error) {
	return NormalizeDatetimeAt(value, time.Now())
}

// NormalizeDatetimeAt is NormalizeDatetime with an explicit clock.
func NormalizeDatetimeAt(value string, now time.Time) (string, error) {
	t, err := ParseAt(value, now)
	if err != nil {
		return "", err
	}
	return t.Format(DatetimeLayout), nil
}

// resolveRelative handles the digit-free phrases users actually type.
func resolveRelative(lower string, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch lower {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	}

	rest, hasNext := strings.CutPrefix(lower, "next ")
	if !hasNext {
		rest, _ = strings.CutPrefix(lower, "this ")
	}
	target, ok := weekdays[strings.TrimSpace(rest)]
	if !ok {
		return time.Time{}, false
	}

	// "next monday" means the coming Monday; if today is Monday it means a
	// week out, while "this monday" means today.
	delta := (int(target) - int(today.Weekday()) + 7) % 7
	if delta == 0 && hasNext {
		delta = 7
	}
	return today.AddDate(0, 0, delta), true
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
