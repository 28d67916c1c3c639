package simulation

import (
	"fmt"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

// Prediction is the stateless single-step propagator used by observers and
// estimators: given any transient state and a current demand, it advances
// the model by one interval and returns the new state with the terminal
// voltage attached. Unlike Simulation it keeps no state of its own, so one
// Prediction can serve many independent state hypotheses.
//
// The explicit ODE formulation restricts demands to the current modes;
// voltage and power demands need the algebraic voltage of the DAE form.
type Prediction struct {
	params cell.Params
	sys    *cell.System
	layout cell.Layout

	// Opts overrides the integrator options. Nil uses defaults.
	Opts *solver.Options

	// Method overrides the Runge-Kutta method. Nil uses Tsit5.
	Method *solver.Method
}

// NewPrediction builds a predictor from validated cell parameters.
func NewPrediction(p cell.Params) (*Prediction, error) {
	sys, err := cell.NewSystem(p, cell.ODE)
	if err != nil {
		return nil, err
	}
	return &Prediction{params: sys.Params(), sys: sys, layout: sys.Layout()}, nil
}

// Params returns an independent copy of the configured parameters.
func (p *Prediction) Params() cell.Params { return p.params.Clone() }

// TakeStep advances state by dt seconds under the given demand and returns
// the resulting state with its predicted terminal voltage. The input state
// is not modified.
func (p *Prediction) TakeStep(state cell.TransientState, d cell.Demand, dt float64) (cell.TransientState, error) {
	if dt <= 0 {
		return cell.TransientState{}, fmt.Errorf("step duration must be positive, got %g", dt)
	}
	fn, err := p.sys.Derivatives(d)
	if err != nil {
		return cell.TransientState{}, err
	}
	sv, err := p.params.PackState(state, p.layout)
	if err != nil {
		return cell.TransientState{}, err
	}

	rk := solver.NewRK(fn)
	if p.Opts != nil {
		rk.Opts = p.Opts
	}
	if p.Method != nil {
		rk.Method = p.Method
	}
	res := rk.Solve([]float64{0, dt}, sv)
	if !res.Success {
		return cell.TransientState{}, fmt.Errorf("prediction step failed with status %d: %s",
			res.Status, res.Message)
	}

	y, _ := res.Final()
	out, err := p.params.UnpackState(y, p.layout)
	if err != nil {
		return cell.TransientState{}, err
	}
	return out.Predicted(p.voltageAt(dt, out, d)), nil
}

// TakeSteps propagates a state through a sequence of equal-length intervals,
// returning the state after each one. Convenient for replaying a measured
// current profile through a hypothesis state.
func (p *Prediction) TakeSteps(state cell.TransientState, profile experiment.Step, dt float64, n int) ([]cell.TransientState, error) {
	if n <= 0 {
		return nil, fmt.Errorf("interval count must be positive, got %d", n)
	}
	out := make([]cell.TransientState, 0, n)
	cur := state
	for i := 0; i < n; i++ {
		t0 := float64(i) * dt
		// rebase the profile so each interval sees per-interval time
		d := cell.Demand{Mode: profile.Mode, Value: func(t float64) float64 {
			return profile.Value(t0 + t)
		}}
		next, err := p.TakeStep(cur, d, dt)
		if err != nil {
			return out, fmt.Errorf("interval %d: %w", i, err)
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// voltageAt computes the terminal voltage for an ODE-form state under the
// demand current at per-step time t.
func (p *Prediction) voltageAt(t float64, st cell.TransientState, d cell.Demand) float64 {
	current := d.Value(t)
	if d.Mode == cell.CurrentC {
		current *= p.params.Capacity
	}
	sumEta := 0.0
	for _, e := range st.EtaJ {
		sumEta += e
	}
	return cell.CalculatedVoltage(current, p.params.OCV(st.SOC), st.Hyst, sumEta,
		p.params.R0(st.SOC, st.Temp))
}
