package tokens

import (
	"strconv"
	"strings"
	"time"
)

// Format renders tokens as markers that Parse reads back to the same values.
// Bare shapes are used when they classify unambiguously, explicit prefixes otherwise.
// A marker ends at whitespace, so spaces inside an assignee or company are
// written as '-'.
func Format(t Tokens) string {
	var parts []string
	if t.Value != nil {
		parts = append(parts, "@"+formatValue(*t.Value))
	}
	if t.Effort != nil {
		parts = append(parts, "@"+formatEffort(*t.Effort))
	}
	if t.Due != nil {
		parts = append(parts, "@"+t.Due.Format("2006-01-02"))
	}
	if strings.TrimSpace(t.Company) != "" {
		parts = append(parts, "@"+formatText(KindCompany, t.Company))
	}
	if strings.TrimSpace(t.Assignee) != "" {
		parts = append(parts, "@"+formatText(KindAssignee, t.Assignee))
	}
	return strings.Join(parts, " ")
}

func formatValue(v float64) string {
	for _, suffix := range []string{"B", "M", "K"} {
		exp := valueScale[suffix]
		scale := 1.0
		for i := 0; i < exp; i++ {
			scale *= 10
		}
		if v < scale {
			continue
		}
		s := strconv.FormatFloat(v/scale, 'f', -1, 64)
		if decimals(s) > 3 {
			continue
		}
		if back, ok := scaleValue(s, suffix); ok && back == v {
			return s + suffix
		}
	}
	return string(KindValue) + ":" + strconv.FormatFloat(v, 'f', -1, 64)
}

func formatEffort(h float64) string {
	for _, unit := range []string{"w", "d", "h", "m"} {
		var q float64
		if unit == "m" {
			q = h * 60
		} else {
			q = h / effortHours[unit]
		}
		if q < 1 && unit != "h" {
			continue
		}
		s := strconv.FormatFloat(q, 'f', -1, 64)
		if decimals(s) > 3 {
			continue
		}
		if back, ok := scaleEffort(s, unit); ok && back == h {
			return s + unit
		}
	}
	return string(KindEffort) + ":" + strconv.FormatFloat(h, 'f', -1, 64)
}

func formatText(kind Kind, s string) string {
	s = strings.Join(strings.Fields(s), "-")
	// The zero time is fine: a bare date or weekday never classifies as text.
	if got, ok := Classify(s, time.Time{}); ok && got == kind && !strings.Contains(s, ":") {
		return s
	}
	return string(kind) + ":" + s
}

func decimals(s string) int {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
