package roi

import "math"

// UnestimatedEffort is the effort, in hours, assumed for a task with a value but
// no estimate. Six minutes keeps high-value unestimated work near the top.
const UnestimatedEffort = 0.1

// Calculate derives return on investment from value and effort (hours).
// It never fails: degenerate inputs yield 0.
func Calculate(value, effort *float64) float64 {
	var r float64
	switch {
	case value != nil && effort != nil && *effort > 0:
		r = *value / *effort
	case value != nil && effort == nil:
		r = *value / UnestimatedEffort
	default:
		return 0
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
