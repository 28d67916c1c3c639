// Package experiment describes multi-step battery protocols: an ordered list
// of steps, each with a demand mode, a load profile, an output time grid, and
// optional early-termination limits. Experiments are validated as they are
// built so a bad protocol never reaches the solver.
package experiment

import (
	"fmt"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

// Step is one entry of a protocol. Tspan holds the per-step output times in
// seconds, starting at zero; limits monitor derived gauges and end the step
// early when crossed. Options, when set, override the run-level solver
// options for this step only.
type Step struct {
	Mode    cell.Mode
	Value   func(t float64) float64
	Tspan   []float64
	Limits  []cell.Limit
	Options *solver.Options
}

// Clone returns a deep copy of the step. The value function is shared; load
// profiles are required to be pure.
func (s Step) Clone() Step {
	out := s
	out.Tspan = append([]float64(nil), s.Tspan...)
	out.Limits = append([]cell.Limit(nil), s.Limits...)
	if s.Options != nil {
		out.Options = s.Options.Clone()
	}
	return out
}

// Experiment is an ordered step protocol under construction.
type Experiment struct {
	steps []Step
}

// New returns an empty experiment.
func New() *Experiment {
	return &Experiment{}
}

// NumSteps returns the number of steps added so far.
func (e *Experiment) NumSteps() int { return len(e.steps) }

// Steps returns deep copies of the configured steps, safe for the caller to
// hold across later mutations of the experiment.
func (e *Experiment) Steps() []Step {
	out := make([]Step, len(e.steps))
	for i, s := range e.steps {
		out[i] = s.Clone()
	}
	return out
}

// AddStep appends a constant-demand step. The tspan slice gives the per-step
// output times; build it with Linspace or Arange. Limits end the step early
// when the named gauge crosses the given value.
func (e *Experiment) AddStep(mode cell.Mode, value float64, tspan []float64, limits ...cell.Limit) error {
	return e.AddDynamicStep(mode, Constant(value), tspan, limits...)
}

// AddDynamicStep appends a step whose demand varies with per-step time, e.g.
// a drive cycle via StepFunction or RampedSteps.
func (e *Experiment) AddDynamicStep(mode cell.Mode, value func(t float64) float64, tspan []float64, limits ...cell.Limit) error {
	if !cell.ValidMode(mode) {
		return fmt.Errorf("step %d: invalid mode %q", len(e.steps), mode)
	}
	if value == nil {
		return fmt.Errorf("step %d: value function is required", len(e.steps))
	}
	if err := ValidateTspan(tspan); err != nil {
		return fmt.Errorf("step %d: %w", len(e.steps), err)
	}
	for _, lim := range limits {
		if !cell.ValidGauge(lim.Name) {
			return fmt.Errorf("step %d: invalid limit %q; valid gauges are %v",
				len(e.steps), lim.Name, cell.GaugeNames)
		}
	}
	e.steps = append(e.steps, Step{
		Mode:   mode,
		Value:  value,
		Tspan:  append([]float64(nil), tspan...),
		Limits: append([]cell.Limit(nil), limits...),
	})
	return nil
}

// SetStepOptions attaches per-step solver options to an already-added step,
// e.g. StiffOptions for a pulsed drive cycle in an otherwise relaxed run.
func (e *Experiment) SetStepOptions(i int, opts *solver.Options) error {
	if i < 0 || i >= len(e.steps) {
		return fmt.Errorf("step index %d out of range [0, %d)", i, len(e.steps))
	}
	if opts == nil {
		e.steps[i].Options = nil
		return nil
	}
	e.steps[i].Options = opts.Clone()
	return nil
}

// ValidateTspan checks that a per-step output grid is usable: at least two
// samples, starting at zero, strictly increasing. AddStep validates through
// it, and the step driver re-checks hand-built steps whose fields never went
// through AddStep.
func ValidateTspan(tspan []float64) error {
	if len(tspan) < 2 {
		return fmt.Errorf("tspan needs at least two samples")
	}
	if tspan[0] != 0 {
		return fmt.Errorf("tspan must start at zero, got %g", tspan[0])
	}
	for i := 1; i < len(tspan); i++ {
		if tspan[i] <= tspan[i-1] {
			return fmt.Errorf("tspan must be strictly increasing")
		}
	}
	return nil
}

// Linspace returns n evenly spaced output times covering [0, tf].
func Linspace(tf float64, n int) []float64 {
	if n < 2 || tf <= 0 {
		return nil
	}
	out := make([]float64, n)
	step := tf / float64(n-1)
	for i := range out {
		out[i] = float64(i) * step
	}
	out[n-1] = tf
	return out
}

// Arange returns output times from 0 to tf with spacing dt. tf is always
// included as the final sample even when it is not a multiple of dt.
func Arange(tf, dt float64) []float64 {
	if tf <= 0 || dt <= 0 {
		return nil
	}
	var out []float64
	for t := 0.0; t < tf-1e-12*tf; t += dt {
		out = append(out, t)
	}
	return append(out, tf)
}
