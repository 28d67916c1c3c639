package simulation

import (
	"fmt"
	"sort"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

// DefaultTShift is the gap inserted between stitched steps so timestamps
// stay strictly increasing across step boundaries.
const DefaultTShift = 1e-3

// Solution is the read interface shared by step and cycle solutions; the
// export, plot, and analysis layers consume it without caring which one they
// were handed.
type Solution interface {
	// Time returns the experiment timestamps in seconds.
	Time() []float64

	// Var returns the named output variable, aligned with Time.
	Var(name string) ([]float64, bool)

	// VarNames returns the available variable names, sorted.
	VarNames() []string
}

// StepSolution is the processed record of one protocol step: the sampled
// output variables on the experiment clock, the raw solver verdict, and any
// limit event that ended the step early.
type StepSolution struct {
	Success bool
	Status  int // raw solver status, stored as reported
	Message string

	T    []float64
	Vars map[string][]float64

	// Raw solver output aligned with T: the state vectors and their time
	// derivatives. Vars is the boundary the export and analysis layers
	// consume; the raw series exist so a later run can continue exactly
	// where this one stopped, without reconstructing state from gauges.
	Y  [][]float64
	YP [][]float64

	// Limit events. EventNames holds the gauge name of the limit that
	// fired; times are on the experiment clock. EventY and EventYP carry
	// the interpolated state and derivative at each crossing.
	EventT     []float64
	EventNames []string
	EventY     [][]float64
	EventYP    [][]float64

	NFev      int
	NJev      int
	SolveTime float64 // wall-clock integration time in seconds
}

// Time returns the experiment timestamps in seconds.
func (s *StepSolution) Time() []float64 { return s.T }

// Var returns the named output variable, aligned with Time.
func (s *StepSolution) Var(name string) ([]float64, bool) {
	v, ok := s.Vars[name]
	return v, ok
}

// VarNames returns the available variable names, sorted.
func (s *StepSolution) VarNames() []string { return sortedKeys(s.Vars) }

// FinalRaw returns copies of the terminal raw state vector and its
// derivative, or nil slices when the solution does not carry them.
func (s *StepSolution) FinalRaw() (y, yp []float64) {
	if len(s.Y) == 0 {
		return nil, nil
	}
	last := len(s.Y) - 1
	y = append([]float64(nil), s.Y[last]...)
	yp = append([]float64(nil), s.YP[last]...)
	return y, yp
}

// Clone returns a deep copy.
func (s *StepSolution) Clone() *StepSolution {
	out := &StepSolution{
		Success:    s.Success,
		Status:     s.Status,
		Message:    s.Message,
		T:          append([]float64(nil), s.T...),
		Vars:       make(map[string][]float64, len(s.Vars)),
		Y:          copyRows(s.Y),
		YP:         copyRows(s.YP),
		EventT:     append([]float64(nil), s.EventT...),
		EventNames: append([]string(nil), s.EventNames...),
		EventY:     copyRows(s.EventY),
		EventYP:    copyRows(s.EventYP),
		NFev:       s.NFev,
		NJev:       s.NJev,
		SolveTime:  s.SolveTime,
	}
	for k, v := range s.Vars {
		out.Vars[k] = append([]float64(nil), v...)
	}
	return out
}

// newStepSolution converts a raw solver result into named output variables.
// t0 is the experiment time accumulated before the step; all reported times
// are on the experiment clock.
func newStepSolution(sys *cell.System, res *solver.Result, t0 float64, limits []cell.Limit) *StepSolution {
	p := sys.Params()
	l := sys.Layout()

	n := len(res.T)
	sol := &StepSolution{
		Success: res.Success,
		Status:  res.Status,
		Message: res.Message,
		T:       make([]float64, n),
		Vars:    make(map[string][]float64),
		Y:       copyRows(res.Y),
		YP:      copyRows(res.YP),
		EventY:  copyRows(res.YEvents),
		EventYP: copyRows(res.YPEvents),
		NFev:    res.NFev,
		NJev:    res.NJev,
	}

	names := []string{
		"time_s", "time_min", "time_h", "soc", "temperature_K",
		"voltage_V", "hysteresis_V", "current_A", "current_C", "power_W",
		"eta0_V",
	}
	for j := 1; j <= l.NumRCPairs(); j++ {
		names = append(names, fmt.Sprintf("eta%d_V", j))
	}
	for _, name := range names {
		sol.Vars[name] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		sv := res.Y[i]
		g := sys.Gauges(res.T[i], sv, t0)

		sol.T[i] = g.TimeS
		sol.Vars["time_s"][i] = g.TimeS
		sol.Vars["time_min"][i] = g.TimeS / 60.0
		sol.Vars["time_h"][i] = g.TimeS / 3600.0
		sol.Vars["soc"][i] = g.SOC
		sol.Vars["temperature_K"][i] = g.TempK
		sol.Vars["voltage_V"][i] = g.VoltageV
		sol.Vars["hysteresis_V"][i] = sv[l.Hyst()]
		sol.Vars["current_A"][i] = g.CurrentA
		sol.Vars["current_C"][i] = g.CurrentC
		sol.Vars["power_W"][i] = g.PowerW
		sol.Vars["eta0_V"][i] = g.CurrentA * p.R0(g.SOC, g.TempK)
		for j := 1; j <= l.NumRCPairs(); j++ {
			sol.Vars[fmt.Sprintf("eta%d_V", j)][i] = sv[l.Eta(j)]
		}
	}

	for k, idx := range res.IEvents {
		sol.EventT = append(sol.EventT, t0+res.TEvents[k])
		if idx >= 0 && idx < len(limits) {
			sol.EventNames = append(sol.EventNames, limits[idx].Name)
		} else {
			sol.EventNames = append(sol.EventNames, "")
		}
	}
	return sol
}

// CycleSolution is a whole-protocol record: the per-step solutions stitched
// into one contiguous trajectory, with the per-step solver verdicts kept as
// parallel slices.
type CycleSolution struct {
	// Per-step verdicts, index-aligned with the protocol steps.
	Success   []bool
	Status    []int
	Message   []string
	NFev      []int
	NJev      []int
	SolveTime []float64 // wall-clock integration seconds per step

	T    []float64
	Vars map[string][]float64

	// Raw state vectors and derivatives concatenated across steps, aligned
	// with T. Empty when the stitched steps did not carry them.
	Y  [][]float64
	YP [][]float64

	// Limit events across all steps, tagged with the step they ended.
	// EventY and EventYP rows are nil for steps without raw state.
	EventT     []float64
	EventNames []string
	EventStep  []int
	EventY     [][]float64
	EventYP    [][]float64

	bounds [][2]int // sample range per step in the stitched arrays
	tShift float64
}

// Time returns the experiment timestamps in seconds.
func (c *CycleSolution) Time() []float64 { return c.T }

// Var returns the named output variable, aligned with Time.
func (c *CycleSolution) Var(name string) ([]float64, bool) {
	v, ok := c.Vars[name]
	return v, ok
}

// VarNames returns the available variable names, sorted.
func (c *CycleSolution) VarNames() []string { return sortedKeys(c.Vars) }

// NumSteps returns the number of stitched steps.
func (c *CycleSolution) NumSteps() int { return len(c.bounds) }

// FinalRaw returns copies of the terminal raw state vector and its
// derivative, or nil slices when the stitched steps did not carry them.
func (c *CycleSolution) FinalRaw() (y, yp []float64) {
	if len(c.Y) == 0 {
		return nil, nil
	}
	last := len(c.Y) - 1
	y = append([]float64(nil), c.Y[last]...)
	yp = append([]float64(nil), c.YP[last]...)
	return y, yp
}

// TotalSolveTime returns the summed wall-clock integration time across all
// stitched steps, in seconds.
func (c *CycleSolution) TotalSolveTime() float64 {
	total := 0.0
	for _, st := range c.SolveTime {
		total += st
	}
	return total
}

// AllSuccessful reports whether every stitched step succeeded.
func (c *CycleSolution) AllSuccessful() bool {
	for _, ok := range c.Success {
		if !ok {
			return false
		}
	}
	return len(c.Success) > 0
}

// Stitch combines per-step solutions into one CycleSolution. Steps whose
// first timestamp does not clear the previous step's last timestamp are
// shifted forward by tShift so the stitched clock stays strictly increasing;
// events move with their step. tShift values <= 0 use DefaultTShift.
func Stitch(steps []*StepSolution, tShift float64) (*CycleSolution, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("nothing to stitch")
	}
	if tShift <= 0 {
		tShift = DefaultTShift
	}

	c := &CycleSolution{
		Vars:   make(map[string][]float64),
		tShift: tShift,
	}

	prevEnd := 0.0
	for k, s := range steps {
		if len(s.T) == 0 {
			return nil, fmt.Errorf("step %d holds no samples", k)
		}

		delta := 0.0
		if k > 0 && s.T[0] <= prevEnd {
			delta = prevEnd + tShift - s.T[0]
		}

		start := len(c.T)
		for i, t := range s.T {
			tt := t + delta
			c.T = append(c.T, tt)
			for name, v := range s.Vars {
				switch name {
				case "time_s":
					c.Vars[name] = append(c.Vars[name], tt)
				case "time_min":
					c.Vars[name] = append(c.Vars[name], tt/60.0)
				case "time_h":
					c.Vars[name] = append(c.Vars[name], tt/3600.0)
				default:
					c.Vars[name] = append(c.Vars[name], v[i])
				}
			}
		}
		c.bounds = append(c.bounds, [2]int{start, len(c.T)})
		prevEnd = c.T[len(c.T)-1]

		if len(s.Y) == len(s.T) {
			c.Y = append(c.Y, copyRows(s.Y)...)
			c.YP = append(c.YP, copyRows(s.YP)...)
		}

		c.Success = append(c.Success, s.Success)
		c.Status = append(c.Status, s.Status)
		c.Message = append(c.Message, s.Message)
		c.NFev = append(c.NFev, s.NFev)
		c.NJev = append(c.NJev, s.NJev)
		c.SolveTime = append(c.SolveTime, s.SolveTime)

		for i, te := range s.EventT {
			c.EventT = append(c.EventT, te+delta)
			c.EventNames = append(c.EventNames, s.EventNames[i])
			c.EventStep = append(c.EventStep, k)
			var ye, ype []float64
			if i < len(s.EventY) {
				ye = append([]float64(nil), s.EventY[i]...)
				ype = append([]float64(nil), s.EventYP[i]...)
			}
			c.EventY = append(c.EventY, ye)
			c.EventYP = append(c.EventYP, ype)
		}
	}

	for name, v := range c.Vars {
		if len(v) != len(c.T) {
			return nil, fmt.Errorf("variable %q is missing from some steps", name)
		}
	}
	if len(c.Y) != 0 && len(c.Y) != len(c.T) {
		return nil, fmt.Errorf("raw state series missing from some steps")
	}
	return c, nil
}

// GetStep extracts one step as an independent StepSolution, on the stitched
// experiment clock.
func (c *CycleSolution) GetStep(k int) (*StepSolution, error) {
	if k < 0 || k >= len(c.bounds) {
		return nil, fmt.Errorf("step index %d out of range [0, %d)", k, len(c.bounds))
	}
	lo, hi := c.bounds[k][0], c.bounds[k][1]

	s := &StepSolution{
		Success:   c.Success[k],
		Status:    c.Status[k],
		Message:   c.Message[k],
		T:         append([]float64(nil), c.T[lo:hi]...),
		Vars:      make(map[string][]float64, len(c.Vars)),
		NFev:      c.NFev[k],
		NJev:      c.NJev[k],
		SolveTime: c.SolveTime[k],
	}
	if len(c.Y) == len(c.T) {
		s.Y = copyRows(c.Y[lo:hi])
		s.YP = copyRows(c.YP[lo:hi])
	}
	for name, v := range c.Vars {
		s.Vars[name] = append([]float64(nil), v[lo:hi]...)
	}
	for i, step := range c.EventStep {
		if step == k {
			s.EventT = append(s.EventT, c.EventT[i])
			s.EventNames = append(s.EventNames, c.EventNames[i])
			if i < len(c.EventY) {
				s.EventY = append(s.EventY, append([]float64(nil), c.EventY[i]...))
				s.EventYP = append(s.EventYP, append([]float64(nil), c.EventYP[i]...))
			}
		}
	}
	return s, nil
}

// GetStepRange re-stitches the inclusive step range [first, last] into a new
// CycleSolution. Timestamps keep their stitched values, so a range taken
// from the middle of a protocol does not restart at zero.
func (c *CycleSolution) GetStepRange(first, last int) (*CycleSolution, error) {
	if first < 0 || last >= len(c.bounds) || first > last {
		return nil, fmt.Errorf("invalid step range [%d, %d] with %d steps", first, last, len(c.bounds))
	}
	steps := make([]*StepSolution, 0, last-first+1)
	for k := first; k <= last; k++ {
		s, err := c.GetStep(k)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	out, err := Stitch(steps, c.tShift)
	if err != nil {
		return nil, err
	}
	for i := range out.EventStep {
		out.EventStep[i] += first
	}
	return out, nil
}

func copyRows(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, r := range m {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

func sortedKeys(m map[string][]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
