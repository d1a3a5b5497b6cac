package service

import "math"

// RampBounds constrains how a commanded power value may move per tick.
type RampBounds struct {
	StepWatt     float64
	MinBoundWatt float64
	MaxBoundWatt float64
	DeadbandWatt float64
}

// Ramp moves current toward target by at most one step, clamped to
// [0, MaxBoundWatt]. Deviations within the deadband are ignored so sensor
// noise does not cause actuator churn.
//
// The returned next value is the internal ramp position and must be carried
// to the following tick; enabled reports whether next has reached the
// minimum operable power. Below that minimum the hardware must be commanded
// off instead of idling at a sub-minimum value, so the commanded power is
// next when enabled and 0 otherwise.
func Ramp(current, target float64, bounds RampBounds) (next float64, enabled bool) {
	next = current
	// a zero target is a shutdown and is always pursued, even from inside
	// the deadband
	if math.Abs(target-current) > bounds.DeadbandWatt || (target == 0 && current > 0) {
		delta := clamp(target-current, -bounds.StepWatt, bounds.StepWatt)
		next = current + delta
	}
	next = clamp(next, 0, bounds.MaxBoundWatt)
	enabled = next >= bounds.MinBoundWatt
	return next, enabled
}

// CommandedPower is the power actually sent to the hardware for a ramp
// position: zero while below the minimum operable bound.
func CommandedPower(next float64, enabled bool) float64 {
	if !enabled {
		return 0
	}
	return next
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
