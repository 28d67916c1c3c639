// Package sensitivity measures how a protocol outcome responds to cell
// parameter changes. This includes per-parameter perturbation analysis,
// one-dimensional sweeps, gradient estimation, and grid search.
package sensitivity

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/simulation"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

// Scorer evaluates a finished run and returns a score. Higher is better.
type Scorer func(sol *simulation.CycleSolution) float64

// FinalValueScorer creates a Scorer that returns the final value of a
// solution variable, e.g. "soc" or "temperature_K".
func FinalValueScorer(name string) Scorer {
	return func(sol *simulation.CycleSolution) float64 {
		v, ok := sol.Var(name)
		if !ok || len(v) == 0 {
			return math.NaN()
		}
		return v[len(v)-1]
	}
}

// MinValueScorer creates a Scorer that returns the minimum of a variable over
// the whole run, e.g. the lowest voltage reached.
func MinValueScorer(name string) Scorer {
	return func(sol *simulation.CycleSolution) float64 {
		v, ok := sol.Var(name)
		if !ok || len(v) == 0 {
			return math.NaN()
		}
		min := v[0]
		for _, x := range v[1:] {
			if x < min {
				min = x
			}
		}
		return min
	}
}

// MaxValueScorer creates a Scorer that returns the maximum of a variable over
// the whole run, e.g. the peak temperature.
func MaxValueScorer(name string) Scorer {
	return func(sol *simulation.CycleSolution) float64 {
		v, ok := sol.Var(name)
		if !ok || len(v) == 0 {
			return math.NaN()
		}
		max := v[0]
		for _, x := range v[1:] {
			if x > max {
				max = x
			}
		}
		return max
	}
}

// DurationScorer creates a Scorer that returns the total simulated time,
// useful when limits cut steps short and runtime itself is the outcome.
func DurationScorer() Scorer {
	return func(sol *simulation.CycleSolution) float64 {
		t := sol.Time()
		if len(t) == 0 {
			return math.NaN()
		}
		return t[len(t)-1] - t[0]
	}
}

// ParamNames lists the scalar cell parameters the analyzer can vary. The
// three _scale entries multiply the corresponding resistance or capacitance
// functions rather than replacing them.
func ParamNames() []string {
	return []string{
		"capacity_Ah",
		"soc0",
		"coulombic_efficiency",
		"gamma",
		"mass_kg",
		"Cp",
		"T_inf",
		"h_therm",
		"A_therm",
		"R0_scale",
		"RJ_scale",
		"CJ_scale",
	}
}

// BaseValue reads the current value of a named parameter. Scale parameters
// start at 1.
func BaseValue(p cell.Params, name string) (float64, error) {
	return baseValue(p, name)
}

// Apply returns a copy of p with the named parameter set to value.
func Apply(p cell.Params, name string, value float64) (cell.Params, error) {
	return applyValue(p, name, value)
}

func baseValue(p cell.Params, name string) (float64, error) {
	switch name {
	case "capacity_Ah":
		return p.Capacity, nil
	case "soc0":
		return p.SOC0, nil
	case "coulombic_efficiency":
		return p.CoulombicEff, nil
	case "gamma":
		return p.Gamma, nil
	case "mass_kg":
		return p.Mass, nil
	case "Cp":
		return p.Cp, nil
	case "T_inf":
		return p.TInf, nil
	case "h_therm":
		return p.HTherm, nil
	case "A_therm":
		return p.ATherm, nil
	case "R0_scale", "RJ_scale", "CJ_scale":
		return 1, nil
	}
	return 0, fmt.Errorf("unknown parameter %q; known: %v", name, ParamNames())
}

// applyValue returns a copy of p with the named parameter set to value.
func applyValue(p cell.Params, name string, value float64) (cell.Params, error) {
	out := p.Clone()
	switch name {
	case "capacity_Ah":
		out.Capacity = value
	case "soc0":
		out.SOC0 = clamp01(value)
	case "coulombic_efficiency":
		out.CoulombicEff = clamp01(value)
	case "gamma":
		out.Gamma = value
	case "mass_kg":
		out.Mass = value
	case "Cp":
		out.Cp = value
	case "T_inf":
		out.TInf = value
	case "h_therm":
		out.HTherm = value
	case "A_therm":
		out.ATherm = value
	case "R0_scale":
		out.R0 = scalePhysics(p.R0, value)
	case "RJ_scale":
		out.RJ = scaleAll(p.RJ, value)
	case "CJ_scale":
		out.CJ = scaleAll(p.CJ, value)
	default:
		return out, fmt.Errorf("unknown parameter %q; known: %v", name, ParamNames())
	}
	return out, nil
}

// clamp01 keeps fractional parameters inside their valid range so that
// relative perturbations near the boundary stay runnable.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func scalePhysics(fn cell.PhysicsFunc, factor float64) cell.PhysicsFunc {
	return func(soc, temp float64) float64 {
		return factor * fn(soc, temp)
	}
}

func scaleAll(fns []cell.PhysicsFunc, factor float64) []cell.PhysicsFunc {
	out := make([]cell.PhysicsFunc, len(fns))
	for i, fn := range fns {
		out[i] = scalePhysics(fn, factor)
	}
	return out
}

// Result holds the result of a perturbation analysis.
type Result struct {
	Baseline float64            // Score with original parameters
	Scores   map[string]float64 // Score when each parameter is perturbed
	Impact   map[string]float64 // Change from baseline (Score - Baseline)
	Ranking  []RankedParam      // Parameters sorted by absolute impact
}

// RankedParam represents a parameter and its impact.
type RankedParam struct {
	Name   string
	Impact float64
}

// Analyzer runs the same protocol against perturbed cells and scores the
// outcomes.
type Analyzer struct {
	params cell.Params
	exp    *experiment.Experiment
	opts   *solver.Options
	scorer Scorer
}

// NewAnalyzer creates a sensitivity analyzer for one cell and protocol.
func NewAnalyzer(p cell.Params, exp *experiment.Experiment, scorer Scorer) *Analyzer {
	return &Analyzer{
		params: p.Clone(),
		exp:    exp,
		opts:   solver.DefaultOptions(),
		scorer: scorer,
	}
}

// WithOptions sets the solver options.
func (a *Analyzer) WithOptions(opts *solver.Options) *Analyzer {
	a.opts = opts
	return a
}

// simulate runs the protocol with the given cell and returns the score.
func (a *Analyzer) simulate(p cell.Params) (float64, error) {
	sim, err := simulation.New(p)
	if err != nil {
		return 0, err
	}
	sol, err := sim.RunWith(a.exp, simulation.RunOptions{Solver: a.opts})
	if sol == nil {
		return 0, err
	}
	// Partial runs still score; limits ending a step early are an outcome,
	// not a failure.
	return a.scorer(sol), nil
}

// AnalyzePerturbation scores the run with each parameter scaled by
// (1 + relDelta), one at a time. relDelta of 0.1 means +10% per parameter.
func (a *Analyzer) AnalyzePerturbation(relDelta float64) (*Result, error) {
	return a.analyze(relDelta, false)
}

// AnalyzePerturbationParallel is AnalyzePerturbation with one goroutine per
// parameter.
func (a *Analyzer) AnalyzePerturbationParallel(relDelta float64) (*Result, error) {
	return a.analyze(relDelta, true)
}

func (a *Analyzer) analyze(relDelta float64, parallel bool) (*Result, error) {
	result := &Result{
		Scores: make(map[string]float64),
		Impact: make(map[string]float64),
	}

	baseline, err := a.simulate(a.params)
	if err != nil {
		return nil, fmt.Errorf("baseline run: %w", err)
	}
	result.Baseline = baseline

	names := ParamNames()
	scores := make([]float64, len(names))
	errs := make([]error, len(names))

	eval := func(i int) {
		name := names[i]
		base, err := baseValue(a.params, name)
		if err != nil {
			errs[i] = err
			return
		}
		perturbed := base * (1 + relDelta)
		if base == 0 {
			perturbed = relDelta
		}
		p, err := applyValue(a.params, name, perturbed)
		if err != nil {
			errs[i] = err
			return
		}
		scores[i], errs[i] = a.simulate(p)
	}

	if parallel {
		var wg sync.WaitGroup
		for i := range names {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				eval(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range names {
			eval(i)
		}
	}

	for i, name := range names {
		if errs[i] != nil {
			return nil, fmt.Errorf("perturbing %s: %w", name, errs[i])
		}
		result.Scores[name] = scores[i]
		result.Impact[name] = scores[i] - baseline
	}

	result.Ranking = rankByImpact(result.Impact)
	return result, nil
}

// rankByImpact sorts parameters by absolute impact (descending).
func rankByImpact(impact map[string]float64) []RankedParam {
	ranking := make([]RankedParam, 0, len(impact))
	for name, imp := range impact {
		ranking = append(ranking, RankedParam{Name: name, Impact: imp})
	}
	sort.Slice(ranking, func(i, j int) bool {
		return math.Abs(ranking[i].Impact) > math.Abs(ranking[j].Impact)
	})
	return ranking
}

// SweepResult holds results from a one-dimensional parameter sweep.
type SweepResult struct {
	Parameter string
	Values    []float64
	Scores    []float64
	Best      struct {
		Value float64
		Score float64
	}
	Worst struct {
		Value float64
		Score float64
	}
}

// Sweep scores the run at each value of a single parameter.
func (a *Analyzer) Sweep(name string, values []float64) (*SweepResult, error) {
	result := &SweepResult{
		Parameter: name,
		Values:    values,
		Scores:    make([]float64, len(values)),
	}

	bestScore := math.Inf(-1)
	worstScore := math.Inf(1)

	for i, val := range values {
		p, err := applyValue(a.params, name, val)
		if err != nil {
			return nil, err
		}
		score, err := a.simulate(p)
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", name, val, err)
		}
		result.Scores[i] = score

		if score > bestScore {
			bestScore = score
			result.Best.Value = val
			result.Best.Score = score
		}
		if score < worstScore {
			worstScore = score
			result.Worst.Value = val
			result.Worst.Score = score
		}
	}

	return result, nil
}

// SweepRange sweeps evenly spaced values in [min, max].
func (a *Analyzer) SweepRange(name string, min, max float64, steps int) (*SweepResult, error) {
	if steps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 steps, got %d", steps)
	}
	values := make([]float64, steps)
	for i := 0; i < steps; i++ {
		values[i] = min + (max-min)*float64(i)/float64(steps-1)
	}
	return a.Sweep(name, values)
}

// Gradient estimates the derivative of the score with respect to a parameter
// using a central difference: (f(x+h) - f(x-h)) / (2h).
func (a *Analyzer) Gradient(name string, h float64) (float64, error) {
	base, err := baseValue(a.params, name)
	if err != nil {
		return 0, err
	}
	if h == 0 {
		h = 0.01 * base
		if h == 0 {
			h = 0.01
		}
	}

	pPlus, err := applyValue(a.params, name, base+h)
	if err != nil {
		return 0, err
	}
	scorePlus, err := a.simulate(pPlus)
	if err != nil {
		return 0, fmt.Errorf("%s=%g: %w", name, base+h, err)
	}

	lo := base - h
	if lo < 0 {
		lo = 0
	}
	pMinus, err := applyValue(a.params, name, lo)
	if err != nil {
		return 0, err
	}
	scoreMinus, err := a.simulate(pMinus)
	if err != nil {
		return 0, fmt.Errorf("%s=%g: %w", name, lo, err)
	}

	return (scorePlus - scoreMinus) / (base + h - lo), nil
}

// AllGradients computes gradients for every parameter with relative step h.
func (a *Analyzer) AllGradients(h float64) (map[string]float64, error) {
	gradients := make(map[string]float64)
	for _, name := range ParamNames() {
		g, err := a.Gradient(name, h)
		if err != nil {
			return nil, err
		}
		gradients[name] = g
	}
	return gradients, nil
}

// GridSearch scores every combination of several parameter value lists.
type GridSearch struct {
	analyzer   *Analyzer
	parameters map[string][]float64
}

// NewGridSearch creates a new grid search.
func NewGridSearch(analyzer *Analyzer) *GridSearch {
	return &GridSearch{
		analyzer:   analyzer,
		parameters: make(map[string][]float64),
	}
}

// AddParameter adds a parameter to sweep with specific values.
func (g *GridSearch) AddParameter(name string, values []float64) *GridSearch {
	g.parameters[name] = values
	return g
}

// AddParameterRange adds a parameter to sweep with evenly spaced values.
func (g *GridSearch) AddParameterRange(name string, min, max float64, steps int) *GridSearch {
	values := make([]float64, steps)
	for i := 0; i < steps; i++ {
		values[i] = min + (max-min)*float64(i)/float64(steps-1)
	}
	g.parameters[name] = values
	return g
}

// GridResult holds results from a grid search.
type GridResult struct {
	Combinations []map[string]float64
	Scores       []float64
	Best         struct {
		Parameters map[string]float64
		Score      float64
		Index      int
	}
}

// Run executes the grid search.
func (g *GridSearch) Run() (*GridResult, error) {
	combinations := g.generateCombinations()

	result := &GridResult{
		Combinations: combinations,
		Scores:       make([]float64, len(combinations)),
	}

	bestScore := math.Inf(-1)

	for i, combo := range combinations {
		p := g.analyzer.params.Clone()
		var err error
		for name, val := range combo {
			p, err = applyValue(p, name, val)
			if err != nil {
				return nil, err
			}
		}

		score, err := g.analyzer.simulate(p)
		if err != nil {
			return nil, fmt.Errorf("combination %d: %w", i, err)
		}
		result.Scores[i] = score

		if score > bestScore {
			bestScore = score
			result.Best.Parameters = combo
			result.Best.Score = score
			result.Best.Index = i
		}
	}

	return result, nil
}

// generateCombinations enumerates the cartesian product of all value lists.
func (g *GridSearch) generateCombinations() []map[string]float64 {
	params := make([]string, 0, len(g.parameters))
	for p := range g.parameters {
		params = append(params, p)
	}
	sort.Strings(params)

	total := 1
	for _, p := range params {
		total *= len(g.parameters[p])
	}

	combinations := make([]map[string]float64, total)
	for i := 0; i < total; i++ {
		combo := make(map[string]float64)
		idx := i
		for _, p := range params {
			values := g.parameters[p]
			combo[p] = values[idx%len(values)]
			idx /= len(values)
		}
		combinations[i] = combo
	}

	return combinations
}
