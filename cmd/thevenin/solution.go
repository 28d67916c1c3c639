package main

import (
	"fmt"

	"github.com/thevenin-xyz/go-thevenin/results"
	"github.com/thevenin-xyz/go-thevenin/simulation"
)

// solutionFromResults rebuilds a solution view over a stored timeseries so
// that plotting and export can reuse the in-memory code paths. Prefers full
// resolution, falls back to the downsampled series.
func solutionFromResults(r *results.Results) (simulation.Solution, error) {
	ts := r.Results.Timeseries

	t := ts.Time.Full
	full := true
	if len(t) == 0 {
		t = ts.Time.Downsampled
		full = false
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("results contain no timeseries")
	}

	vars := make(map[string][]float64, len(ts.Variables))
	for name, series := range ts.Variables {
		if full {
			vars[name] = series.Full
		} else {
			vars[name] = series.Downsampled
		}
	}

	return &simulation.StepSolution{
		Success: r.Metadata.Status == "success",
		T:       t,
		Vars:    vars,
	}, nil
}
