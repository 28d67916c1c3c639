package results

import (
	"math"
	"time"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/simulation"
)

// Builder helps construct Results from simulation output
type Builder struct {
	results Results
}

// NewBuilder creates a new results builder
func NewBuilder() *Builder {
	return &Builder{
		results: Results{
			Version: SchemaVersion,
			Metadata: Metadata{
				Timestamp: time.Now(),
			},
		},
	}
}

// WithCell sets cell information
func (b *Builder) WithCell(p cell.Params, name string) *Builder {
	b.results.Cell = Cell{
		Name:       name,
		NumRCPairs: p.NumRCPairs,
		CapacityAh: p.Capacity,
		SOC0:       p.SOC0,
		TInfK:      p.TInf,
		Isothermal: p.Isothermal,
	}
	return b
}

// WithProtocol sets the protocol description
func (b *Builder) WithProtocol(exp *experiment.Experiment) *Builder {
	for _, s := range exp.Steps() {
		step := Step{
			Mode:    string(s.Mode),
			Seconds: s.Tspan[len(s.Tspan)-1],
			Samples: len(s.Tspan),
		}
		for _, lim := range s.Limits {
			step.Limits = append(step.Limits, Limit{Gauge: lim.Name, Value: lim.Value})
		}
		b.results.Protocol = append(b.results.Protocol, step)
	}
	return b
}

// WithSolution processes a step or cycle solution into the timeseries
// record, downsampling to roughly downsampleTarget points alongside the
// full-resolution data.
func (b *Builder) WithSolution(sol simulation.Solution, solverName string, computeTime float64, downsampleTarget int) *Builder {
	b.results.Metadata.Solver = solverName
	b.results.Metadata.Status = "success"
	b.results.Metadata.ComputeTime = computeTime
	// solutions record their own integration time; prefer it over the
	// caller-supplied figure when present
	switch s := sol.(type) {
	case *simulation.StepSolution:
		if s.SolveTime > 0 {
			b.results.Metadata.ComputeTime = s.SolveTime
		}
	case *simulation.CycleSolution:
		if total := s.TotalSolveTime(); total > 0 {
			b.results.Metadata.ComputeTime = total
		}
	}

	t := sol.Time()
	finalState := make(map[string]float64)
	for _, name := range sol.VarNames() {
		if v, ok := sol.Var(name); ok && len(v) > 0 {
			finalState[name] = v[len(v)-1]
		}
	}

	b.results.Results.Summary = Summary{
		Points:     len(t),
		FinalState: finalState,
	}
	if len(t) > 0 {
		b.results.Results.Summary.FinalTime = t[len(t)-1]
	}

	timeDown := downsample(t, downsampleTarget)
	b.results.Results.Timeseries = Timeseries{
		Time: TimeData{
			Full:        append([]float64(nil), t...),
			Downsampled: timeDown,
		},
		Variables: make(map[string]SeriesData),
	}
	for _, name := range sol.VarNames() {
		v, _ := sol.Var(name)
		b.results.Results.Timeseries.Variables[name] = SeriesData{
			Full:        append([]float64(nil), v...),
			Downsampled: downsampleAligned(t, v, timeDown),
		}
	}

	// cycle solutions additionally carry per-step verdicts and events
	if cyc, ok := sol.(*simulation.CycleSolution); ok {
		b.results.Metadata.StepStatus = append([]int(nil), cyc.Status...)
		if !cyc.AllSuccessful() {
			b.results.Metadata.Status = "partial"
		}
		for i, te := range cyc.EventT {
			b.results.Events = append(b.results.Events, Event{
				Time:  te,
				Step:  cyc.EventStep[i],
				Gauge: cyc.EventNames[i],
			})
		}
	}
	return b
}

// WithError sets error status
func (b *Builder) WithError(err error) *Builder {
	b.results.Metadata.Status = "error"
	b.results.Metadata.Error = err.Error()
	return b
}

// Build returns the constructed Results
func (b *Builder) Build() *Results {
	return &b.results
}

// downsample reduces data to approximately targetPoints
func downsample(data []float64, targetPoints int) []float64 {
	if len(data) <= targetPoints || targetPoints < 2 {
		return append([]float64(nil), data...)
	}

	result := make([]float64, targetPoints)
	result[0] = data[0]
	result[targetPoints-1] = data[len(data)-1]

	step := float64(len(data)-1) / float64(targetPoints-1)
	for i := 1; i < targetPoints-1; i++ {
		idx := int(math.Round(float64(i) * step))
		result[i] = data[idx]
	}

	return result
}

// downsampleAligned downsamples varData to match the downsampled time points
func downsampleAligned(timeFull, varData, timeDownsampled []float64) []float64 {
	result := make([]float64, len(timeDownsampled))

	for i, targetTime := range timeDownsampled {
		idx := findClosestIndex(timeFull, targetTime)
		result[i] = varData[idx]
	}

	return result
}

// findClosestIndex finds the index of the value closest to target
func findClosestIndex(data []float64, target float64) int {
	if len(data) == 0 {
		return 0
	}

	minDist := math.Abs(data[0] - target)
	minIdx := 0

	for i := 1; i < len(data); i++ {
		dist := math.Abs(data[i] - target)
		if dist < minDist {
			minDist = dist
			minIdx = i
		}
	}

	return minIdx
}
