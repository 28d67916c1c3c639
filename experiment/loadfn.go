package experiment

// Load profile helpers for dynamic steps. All returned functions are pure in
// per-step time, as the step contract requires.

// Constant returns a profile pinned at value.
func Constant(value float64) func(t float64) float64 {
	return func(t float64) float64 { return value }
}

// StepFunction returns a piecewise-constant profile: the value is vals[i] for
// the largest i with t >= tp[i], and init before tp[0]. tp must be sorted
// ascending and the same length as vals.
func StepFunction(tp, vals []float64, init float64) func(t float64) float64 {
	times := append([]float64(nil), tp...)
	values := append([]float64(nil), vals...)
	return func(t float64) float64 {
		v := init
		for i, ti := range times {
			if t < ti {
				break
			}
			v = values[i]
		}
		return v
	}
}

// RampedSteps returns a step-like profile where each transition is a linear
// ramp of duration tRamp instead of a discontinuity. Discontinuous loads slow
// implicit solvers down badly; a short ramp keeps the profile practically
// identical while restoring smoothness.
func RampedSteps(tp, vals []float64, tRamp, init float64) func(t float64) float64 {
	times := append([]float64(nil), tp...)
	values := append([]float64(nil), vals...)
	return func(t float64) float64 {
		prev := init
		for i, ti := range times {
			if t < ti {
				return prev
			}
			if t < ti+tRamp {
				frac := (t - ti) / tRamp
				return prev + frac*(values[i]-prev)
			}
			prev = values[i]
		}
		return prev
	}
}
