// Package simulation drives experiments against the equivalent-circuit cell
// model: it owns the live cell state, runs protocol steps through the DAE
// integrator, and stitches per-step solutions into whole-protocol records.
package simulation

import (
	"fmt"
	"time"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

// Simulation holds one cell and its evolving state between steps. Steps run
// sequentially: each RunStep starts from the state the previous step left
// behind, and the experiment clock accumulates across steps so time-based
// limits see total protocol time.
//
// A Simulation is not safe for concurrent use.
type Simulation struct {
	params cell.Params
	sys    *cell.System
	layout cell.Layout

	sv  []float64
	svp []float64
	t0  float64
}

// New builds a simulation from validated cell parameters, starting at the
// rested initial condition.
func New(p cell.Params) (*Simulation, error) {
	sys, err := cell.NewSystem(p, cell.DAE)
	if err != nil {
		return nil, err
	}
	s := &Simulation{params: sys.Params(), sys: sys, layout: sys.Layout()}
	s.Reset()
	return s, nil
}

// Params returns an independent copy of the configured parameters.
func (s *Simulation) Params() cell.Params { return s.params.Clone() }

// SetParams swaps the cell configuration and resets to the rested state at
// the new SOC0. It must not be called while a step is running; Simulation is
// single-threaded by contract so this holds trivially.
func (s *Simulation) SetParams(p cell.Params) error {
	sys, err := cell.NewSystem(p, cell.DAE)
	if err != nil {
		return err
	}
	s.params = sys.Params()
	s.sys = sys
	s.layout = sys.Layout()
	s.Reset()
	return nil
}

// Reset restores the rested initial condition at SOC0 and zeroes the
// experiment clock.
func (s *Simulation) Reset() {
	sv, err := s.params.PackState(s.params.RestedState(), s.layout)
	if err != nil {
		// the rested state always matches its own configuration
		panic(fmt.Sprintf("simulation: %v", err))
	}
	s.sv = sv
	s.svp = make([]float64, s.layout.Size())
	s.t0 = 0
}

// InitFromState replaces the live state with a user-authored snapshot and
// zeroes the experiment clock. The snapshot's RC-pair count must match the
// configuration.
func (s *Simulation) InitFromState(st cell.TransientState) error {
	sv, err := s.params.PackState(st, s.layout)
	if err != nil {
		return err
	}
	s.sv = sv
	s.svp = make([]float64, s.layout.Size())
	s.t0 = 0
	return nil
}

// InitFromSolution continues from the final sample of a previous solution,
// e.g. to warm-start a protocol from the end of a conditioning cycle. The
// experiment clock restarts at zero.
//
// Solutions produced by this package carry the raw terminal state vector and
// its derivative, which are adopted directly; anything else (a solution
// rebuilt from an exported record, say) is reconstructed from its named
// variables with the derivative left for consistent initialization.
func (s *Simulation) InitFromSolution(sol Solution) error {
	type rawFinal interface {
		FinalRaw() (y, yp []float64)
	}
	if rf, ok := sol.(rawFinal); ok {
		if y, yp := rf.FinalRaw(); len(y) == s.layout.Size() {
			s.sv = y
			s.svp = yp
			s.t0 = 0
			return nil
		}
	}

	st, err := finalState(sol, s.layout.NumRCPairs())
	if err != nil {
		return err
	}
	return s.InitFromState(st)
}

// State returns the current transient state.
func (s *Simulation) State() cell.TransientState {
	st, err := s.params.UnpackState(s.sv, s.layout)
	if err != nil {
		panic(fmt.Sprintf("simulation: %v", err))
	}
	return st
}

// Time returns the accumulated experiment time in seconds.
func (s *Simulation) Time() float64 { return s.t0 }

// RunStep integrates one protocol step from the current state. On success
// (including an early stop at a limit) the live state and clock advance to
// the step's final sample; on failure they advance to wherever the solver
// got, matching the partial samples in the returned solution.
//
// A nil opts uses solver defaults. Options attached to the step itself take
// precedence over opts.
func (s *Simulation) RunStep(step experiment.Step, opts *solver.Options) (*StepSolution, error) {
	// Steps built by hand bypass the experiment builder's checks; a tspan
	// that does not start at zero would silently corrupt the experiment
	// clock, so it is re-validated here before anything moves.
	if err := experiment.ValidateTspan(step.Tspan); err != nil {
		return nil, fmt.Errorf("step setup: %w", err)
	}

	d := cell.Demand{Mode: step.Mode, Value: step.Value}
	resFn, err := s.sys.Residual(d)
	if err != nil {
		return nil, fmt.Errorf("step setup: %w", err)
	}

	if step.Options != nil {
		opts = step.Options
	}

	ida := solver.NewIDA(resFn)
	ida.AlgebraicIdx = s.sys.AlgebraicIndices()
	if opts != nil {
		ida.Opts = opts
	}
	if len(step.Limits) > 0 {
		roots, err := s.sys.Roots(step.Limits, s.t0)
		if err != nil {
			return nil, fmt.Errorf("step setup: %w", err)
		}
		ida.Roots = roots
		ida.NumRoots = len(step.Limits)
	}

	start := time.Now()
	res := ida.Solve(step.Tspan, s.sv, s.svp)
	sol := newStepSolution(s.sys, res, s.t0, step.Limits)
	sol.SolveTime = time.Since(start).Seconds()

	if y, yp := res.Final(); y != nil {
		s.sv, s.svp = y, yp
		s.t0 += res.T[len(res.T)-1]
	}
	if !res.Success {
		return sol, fmt.Errorf("step failed with status %d: %s", res.Status, res.Message)
	}
	return sol, nil
}

// RunOptions configures a whole-protocol run.
type RunOptions struct {
	// Solver overrides the integrator options for every step. Nil uses
	// defaults.
	Solver *solver.Options

	// TShift is the artificial gap inserted between consecutive steps so
	// stitched timestamps stay strictly increasing. Values <= 0 fall back
	// to the 1 ms default.
	TShift float64

	// KeepState leaves the live state at the end of the protocol instead
	// of restoring the rested initial condition.
	KeepState bool
}

// Run executes the experiment from the current state with default options.
func (s *Simulation) Run(exp *experiment.Experiment) (*CycleSolution, error) {
	return s.RunWith(exp, RunOptions{})
}

// RunWith executes every step of the experiment in order and stitches the
// per-step solutions into one CycleSolution. A step failure stops the
// protocol; the steps completed so far are still stitched and returned
// alongside the error. Unless KeepState is set, the live state is restored
// to the rested initial condition afterward, leaving the simulation ready
// for another protocol.
func (s *Simulation) RunWith(exp *experiment.Experiment, opts RunOptions) (*CycleSolution, error) {
	if exp == nil || exp.NumSteps() == 0 {
		return nil, fmt.Errorf("experiment has no steps")
	}

	var (
		sols    []*StepSolution
		stepErr error
	)
	for i, step := range exp.Steps() {
		sol, err := s.RunStep(step, opts.Solver)
		if sol != nil {
			sols = append(sols, sol)
		}
		if err != nil {
			stepErr = fmt.Errorf("step %d: %w", i, err)
			break
		}
	}
	if !opts.KeepState {
		s.Reset()
	}

	if len(sols) == 0 {
		return nil, stepErr
	}
	cyc, err := Stitch(sols, opts.TShift)
	if err != nil {
		return nil, err
	}
	return cyc, stepErr
}

// finalState rebuilds a TransientState from the last sample of a solution's
// variable record.
func finalState(sol Solution, numRC int) (cell.TransientState, error) {
	t := sol.Time()
	if len(t) == 0 {
		return cell.TransientState{}, fmt.Errorf("solution holds no samples")
	}
	last := len(t) - 1

	pick := func(name string) (float64, error) {
		v, ok := sol.Var(name)
		if !ok || len(v) != len(t) {
			return 0, fmt.Errorf("solution is missing variable %q", name)
		}
		return v[last], nil
	}

	var st cell.TransientState
	var err error
	if st.SOC, err = pick("soc"); err != nil {
		return st, err
	}
	if st.Temp, err = pick("temperature_K"); err != nil {
		return st, err
	}
	if st.Hyst, err = pick("hysteresis_V"); err != nil {
		return st, err
	}
	st.EtaJ = make([]float64, numRC)
	for j := 1; j <= numRC; j++ {
		if st.EtaJ[j-1], err = pick(fmt.Sprintf("eta%d_V", j)); err != nil {
			return st, err
		}
	}
	return st, nil
}
