package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/results"
	"github.com/thevenin-xyz/go-thevenin/sensitivity"
	"github.com/thevenin-xyz/go-thevenin/simulation"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

func sweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	cellFlag := fs.String("cell", "default", "Built-in cell template")
	configFlag := fs.String("config", "", "Cell config YAML file (overrides --cell)")
	param := fs.String("param", "", "Parameter to sweep (required)")
	valuesFlag := fs.String("values", "", "Explicit comma-separated values")
	min := fs.Float64("min", 0, "Sweep range minimum")
	max := fs.Float64("max", 0, "Sweep range maximum")
	steps := fs.Int("steps", 5, "Number of evenly spaced values in [min, max]")
	objective := fs.String("objective", "maximize_capacity", "Ranking objective")
	output := fs.String("output", "", "Output file for sweep results (required)")
	saveDir := fs.String("save-variants", "", "Directory for per-variant result files")
	accuracy := fs.String("accuracy", "default", "Solver preset: default, accurate, fast")

	var stepFlags multiFlag
	fs.Var(&stepFlags, "step", "Protocol step spec (repeatable, same format as run)")

	fs.Usage = func() {
		objectives := make([]string, 0, len(results.Objectives))
		for name := range results.Objectives {
			objectives = append(objectives, name)
		}
		sort.Strings(objectives)

		fmt.Fprintf(os.Stderr, `Usage: thevenin sweep [options]

Run the same protocol across a range of one cell parameter and rank the
outcomes.

Parameters: %s
Objectives: %s

Options:
`, strings.Join(sensitivity.ParamNames(), ", "), strings.Join(objectives, ", "))
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # How much does series resistance cost in discharge capacity?
  thevenin sweep --param R0_scale --min 0.5 --max 2 --steps 7 \
    --step "mode=current_C,value=1,seconds=3600,limit=voltage_V:3.0" \
    --output sweep.json

  # Compare specific cooling designs
  thevenin sweep --param h_therm --values 5,12,50 --objective minimize_temp_rise \
    --step "mode=current_C,value=2,seconds=1800" --output sweep.json
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *param == "" {
		fs.Usage()
		return fmt.Errorf("--param required")
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("--output required")
	}
	if len(stepFlags) == 0 {
		fs.Usage()
		return fmt.Errorf("at least one --step required")
	}

	objFn, ok := results.Objectives[*objective]
	if !ok {
		return fmt.Errorf("unknown objective %q", *objective)
	}

	values, err := sweepValues(*valuesFlag, *min, *max, *steps)
	if err != nil {
		return err
	}

	base, name, err := loadCell(*configFlag, *cellFlag, "")
	if err != nil {
		return err
	}

	exp, err := buildExperiment(stepFlags)
	if err != nil {
		return err
	}

	opts, err := solverPreset(*accuracy)
	if err != nil {
		return err
	}

	if *saveDir != "" {
		if err := os.MkdirAll(*saveDir, 0755); err != nil {
			return fmt.Errorf("create variant directory: %w", err)
		}
	}

	sweepRes := &results.SweepResults{
		Version:   results.SchemaVersion,
		BaseCell:  name,
		Objective: *objective,
		Parameters: []results.ParameterSweep{{
			Name:   *param,
			Values: values,
			Min:    values[0],
			Max:    values[len(values)-1],
		}},
	}

	fmt.Fprintf(os.Stderr, "Sweeping %s over %d values\n", *param, len(values))

	for i, val := range values {
		p, err := sensitivity.Apply(base, *param, val)
		if err != nil {
			return err
		}

		variant := results.VariantResult{
			ID:         i,
			Parameters: map[string]float64{*param: val},
			Score:      math.MaxFloat64, // sorts after every real score, stays JSON-encodable
		}

		res, runErr := runVariant(p, name, exp, opts)
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "  %s=%g: failed: %v\n", *param, val, runErr)
			sweepRes.Summary.FailureCount++
			sweepRes.Variants = append(sweepRes.Variants, variant)
			continue
		}

		variant.Metrics = results.ExtractMetrics(res)
		if score, err := objFn(res); err == nil {
			variant.Score = score
			sweepRes.Summary.SuccessCount++
		} else {
			fmt.Fprintf(os.Stderr, "  %s=%g: %v\n", *param, val, err)
			sweepRes.Summary.FailureCount++
		}

		if *saveDir != "" {
			file := filepath.Join(*saveDir, fmt.Sprintf("variant_%03d.json", i))
			if err := res.WriteJSON(file); err != nil {
				return fmt.Errorf("write variant %d: %w", i, err)
			}
			variant.ResultsFile = file
		}

		sweepRes.Variants = append(sweepRes.Variants, variant)
		fmt.Fprintf(os.Stderr, "  %s=%g: score %.4f\n", *param, val, variant.Score)
	}

	results.RankVariants(sweepRes.Variants)
	sweepRes.Summary.TotalVariants = len(sweepRes.Variants)
	if n := sweepRes.Summary.SuccessCount; n > 0 {
		sweepRes.Best = &sweepRes.Variants[0]
		sweepRes.Worst = &sweepRes.Variants[n-1]
		sweepRes.Summary.BestScore = sweepRes.Best.Score
		sweepRes.Summary.WorstScore = sweepRes.Worst.Score
		sweepRes.Summary.ScoreRange = sweepRes.Worst.Score - sweepRes.Best.Score
		sweepRes.Recommended = results.GenerateRecommendations(sweepRes)
	}

	if err := sweepRes.WriteJSON(*output); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Sweep complete: %d ok, %d failed\n",
		sweepRes.Summary.SuccessCount, sweepRes.Summary.FailureCount)
	if sweepRes.Best != nil {
		fmt.Fprintf(os.Stderr, "  Best: %s=%g\n", *param, sweepRes.Best.Parameters[*param])
	}
	fmt.Fprintf(os.Stderr, "  Output: %s\n", *output)
	return nil
}

func sweepValues(explicit string, min, max float64, steps int) ([]float64, error) {
	if explicit != "" {
		var values []float64
		for _, s := range strings.Split(explicit, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid sweep value %q", s)
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("--values is empty")
		}
		return values, nil
	}

	if steps < 2 {
		return nil, fmt.Errorf("--steps must be at least 2")
	}
	if max <= min {
		return nil, fmt.Errorf("--max must exceed --min")
	}
	values := make([]float64, steps)
	for i := 0; i < steps; i++ {
		values[i] = min + (max-min)*float64(i)/float64(steps-1)
	}
	return values, nil
}

func runVariant(p cell.Params, name string, exp *experiment.Experiment, opts *solver.Options) (*results.Results, error) {
	sim, err := simulation.New(p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sol, runErr := sim.RunWith(exp, simulation.RunOptions{Solver: opts})
	elapsed := time.Since(start).Seconds()
	if sol == nil {
		return nil, runErr
	}

	builder := results.NewBuilder()
	builder.WithCell(p, name)
	builder.WithProtocol(exp)
	builder.WithSolution(sol, "IDA", elapsed, 0)
	if runErr != nil {
		builder.WithError(runErr)
	}
	res := builder.Build()
	res.Analysis = results.NewAnalyzer(res).ComputeAll()
	return res, nil
}
