package solver

// Options contains integrator configuration shared by the implicit and
// explicit paths.
type Options struct {
	Atol     float64 // absolute error tolerance
	Rtol     float64 // relative error tolerance
	InitStep float64 // initial step size; 0 picks one from the first output interval
	MinStep  float64 // smallest allowed step before the solve is abandoned
	MaxStep  float64 // largest allowed internal step; 0 means unrestricted
	MaxSteps int     // cap on accepted internal steps per solve

	// MaxNewton bounds the Newton iterations per implicit step attempt.
	MaxNewton int

	// ReportInternal records every accepted internal step instead of
	// sampling the solution at the caller-supplied output times.
	ReportInternal bool
}

// DefaultOptions returns tolerances matching the reference IDA
// configuration. Suitable for most experiments.
func DefaultOptions() *Options {
	return &Options{
		Atol:      1e-6,
		Rtol:      1e-5,
		InitStep:  0,
		MinStep:   1e-10,
		MaxStep:   0,
		MaxSteps:  500000,
		MaxNewton: 12,
	}
}

// AccurateOptions returns tighter tolerances for publication-quality runs.
func AccurateOptions() *Options {
	o := DefaultOptions()
	o.Atol = 1e-9
	o.Rtol = 1e-8
	return o
}

// FastOptions trades accuracy for speed; useful for coarse sweeps.
func FastOptions() *Options {
	o := DefaultOptions()
	o.Atol = 1e-4
	o.Rtol = 1e-3
	o.MaxSteps = 50000
	return o
}

// StiffOptions loosens the Newton budget and restricts the step size for
// systems with fast transients, e.g. small RC time constants under pulsed
// loads.
func StiffOptions() *Options {
	o := DefaultOptions()
	o.Atol = 1e-8
	o.Rtol = 1e-6
	o.MaxNewton = 20
	o.MaxStep = 10
	return o
}

// Clone returns an independent copy.
func (o *Options) Clone() *Options {
	out := *o
	return &out
}
