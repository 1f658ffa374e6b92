// Package tokens extracts inline task markers such as "@15M", "@2.5h", "@tomorrow",
// "@ACME" or "@dana" from block text.
package tokens

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindValue    Kind = "value"
	KindEffort   Kind = "effort"
	KindDue      Kind = "due"
	KindAssignee Kind = "assignee"
	KindCompany  Kind = "company"
)

// Tokens holds at most one recognized marker of each kind.
type Tokens struct {
	Value    *float64   `json:"value,omitempty"`
	Effort   *float64   `json:"effort,omitempty"` // hours
	Due      *time.Time `json:"due,omitempty"`
	Assignee string     `json:"assignee,omitempty"`
	Company  string     `json:"company,omitempty"`
}

func (t Tokens) Empty() bool {
	return t.Value == nil && t.Effort == nil && t.Due == nil && t.Assignee == "" && t.Company == ""
}

// Result is the outcome of parsing one block's text.
type Result struct {
	CleanContent string
	Tokens       Tokens
}

var valueScale = map[string]int{"K": 3, "M": 6, "B": 9}

var effortHours = map[string]float64{
	"m": 1.0 / 60.0,
	"h": 1,
	"d": 8,
	"w": 40,
	"M": 160,
}

var (
	markerPattern   = regexp.MustCompile(`(^|\s)@(\S+)`)
	valuePattern    = regexp.MustCompile(`^(\d+(?:\.\d+)?)([KMB])$`)
	effortPattern   = regexp.MustCompile(`^(\d+(?:\.\d+)?)([hdwm])$`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	companyPattern  = regexp.MustCompile(`^[A-Z][A-Z0-9&]{1,5}$`)
	assigneePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]*$`)
	numberPattern   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

const trailingPunct = ".,;:!?)"

type match struct {
	kind  Kind
	start int // index of the removed span start
	end   int
	value interface{}
}

// Parse extracts markers from raw. Relative dates resolve against now.
// Text that is not a recognized marker is left untouched.
func Parse(raw string, now time.Time) Result {
	var found []match
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(raw, -1) {
		runStart, runEnd := loc[4], loc[5]
		run := strings.TrimRight(raw[runStart:runEnd], trailingPunct)
		if run == "" {
			continue
		}
		kind, value, ok := classify(run, now)
		if !ok {
			continue
		}
		found = append(found, match{
			kind:  kind,
			start: runStart - 1, // include '@'
			end:   runStart + len(run),
			value: value,
		})
	}

	res := Result{CleanContent: raw}
	if len(found) == 0 {
		return res
	}

	for _, m := range found {
		switch m.kind {
		case KindValue:
			v := m.value.(float64)
			res.Tokens.Value = &v
		case KindEffort:
			v := m.value.(float64)
			res.Tokens.Effort = &v
		case KindDue:
			v := m.value.(time.Time)
			res.Tokens.Due = &v
		case KindAssignee:
			res.Tokens.Assignee = m.value.(string)
		case KindCompany:
			res.Tokens.Company = m.value.(string)
		}
	}

	res.CleanContent = strip(raw, found)
	return res
}

// strip removes every matched marker together with one adjacent blank.
func strip(raw string, found []match) string {
	var b strings.Builder
	last := 0
	for _, m := range found {
		start, end := m.start, m.end
		if start > 0 && isBlank(raw[start-1]) {
			start--
		} else if end < len(raw) && isBlank(raw[end]) {
			end++
		}
		if start < last {
			start = last
		}
		b.WriteString(raw[last:start])
		last = end
	}
	b.WriteString(raw[last:])
	return strings.TrimSpace(b.String())
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

// Classify reports how a single marker body (without '@') would be interpreted.
func Classify(run string, now time.Time) (Kind, bool) {
	kind, _, ok := classify(run, now)
	return kind, ok
}

func classify(run string, now time.Time) (Kind, interface{}, bool) {
	if prefix, rest, ok := strings.Cut(run, ":"); ok {
		kind := Kind(strings.ToLower(prefix))
		switch kind {
		case KindValue, KindEffort, KindDue, KindAssignee, KindCompany:
			v, ok := parseExplicit(kind, rest, now)
			return kind, v, ok
		}
	}

	if m := valuePattern.FindStringSubmatch(run); m != nil {
		if v, ok := scaleValue(m[1], m[2]); ok {
			return KindValue, v, true
		}
	}
	if m := effortPattern.FindStringSubmatch(run); m != nil {
		if v, ok := scaleEffort(m[1], m[2]); ok {
			return KindEffort, v, true
		}
	}
	if d, ok := parseDue(run, now); ok {
		return KindDue, d, true
	}
	if companyPattern.MatchString(run) {
		return KindCompany, run, true
	}
	if assigneePattern.MatchString(run) {
		return KindAssignee, run, true
	}
	return "", nil, false
}

func parseExplicit(kind Kind, rest string, now time.Time) (interface{}, bool) {
	if rest == "" {
		return nil, false
	}
	switch kind {
	case KindValue:
		if numberPattern.MatchString(rest) {
			v, err := strconv.ParseFloat(rest, 64)
			return v, err == nil
		}
		if m := valuePattern.FindStringSubmatch(rest); m != nil {
			return scaleValue(m[1], m[2])
		}
	case KindEffort:
		if numberPattern.MatchString(rest) {
			v, err := strconv.ParseFloat(rest, 64)
			return v, err == nil
		}
		num, unit := splitUnit(rest)
		if num != "" && numberPattern.MatchString(num) {
			if _, known := effortHours[unit]; known {
				return scaleEffort(num, unit)
			}
		}
	case KindDue:
		return parseDue(rest, now)
	case KindAssignee, KindCompany:
		return rest, true
	}
	return nil, false
}

func splitUnit(s string) (string, string) {
	if len(s) < 2 {
		return "", ""
	}
	return s[:len(s)-1], s[len(s)-1:]
}

func scaleValue(num, suffix string) (float64, bool) {
	exp, ok := valueScale[suffix]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(num+"e"+strconv.Itoa(exp), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func scaleEffort(num, unit string) (float64, bool) {
	hours, ok := effortHours[unit]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if unit == "m" {
		return n / 60, true
	}
	return n * hours, true
}

func parseDue(s string, now time.Time) (time.Time, bool) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if datePattern.MatchString(s) {
		d, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}
	switch lower := strings.ToLower(s); lower {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	default:
		wd, ok := weekdays[lower]
		if !ok {
			return time.Time{}, false
		}
		days := (int(wd) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days), true
	}
}
