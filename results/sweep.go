package results

import (
	"fmt"
	"math"
	"sort"
)

// SweepResults contains results from a rate or parameter sweep
type SweepResults struct {
	Version     string            `json:"version"`
	BaseCell    string            `json:"baseCell"`
	Objective   string            `json:"objective"`
	Parameters  []ParameterSweep  `json:"parameters"`
	Variants    []VariantResult   `json:"variants"`
	Best        *VariantResult    `json:"best"`
	Worst       *VariantResult    `json:"worst"`
	Summary     SweepSummary      `json:"summary"`
	Recommended map[string]string `json:"recommended,omitempty"`
}

// ParameterSweep describes a swept parameter
type ParameterSweep struct {
	Name   string    `json:"name"` // e.g. rate_C, h_therm, soc0
	Values []float64 `json:"values"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
}

// VariantResult contains results for one parameter combination
type VariantResult struct {
	ID          int                `json:"id"`
	Parameters  map[string]float64 `json:"parameters"`
	Metrics     Metrics            `json:"metrics"`
	Score       float64            `json:"score"`
	Rank        int                `json:"rank"`
	ResultsFile string             `json:"resultsFile,omitempty"`
}

// Metrics contains key metrics extracted from one run
type Metrics struct {
	DischargeCapacityAh float64 `json:"dischargeCapacityAh"`
	DischargeEnergyWh   float64 `json:"dischargeEnergyWh"`
	CoulombicEfficiency float64 `json:"coulombicEfficiency,omitempty"`
	MinVoltageV         float64 `json:"minVoltageV"`
	MaxTempK            float64 `json:"maxTempK"`
	TempRiseK           float64 `json:"tempRiseK"`

	FinalState map[string]float64 `json:"finalState"`

	ComputeTime float64 `json:"computeTime"`
}

// ObjectiveFunc evaluates how good a result is (lower is better)
type ObjectiveFunc func(*Results) (float64, error)

// Objectives maps objective names to evaluation functions
var Objectives = map[string]ObjectiveFunc{
	"maximize_capacity": func(r *Results) (float64, error) {
		if r.Analysis == nil || r.Analysis.Throughput == nil {
			return 0, fmt.Errorf("no throughput analysis")
		}
		return -r.Analysis.Throughput.DischargeCapacityAh, nil
	},

	"maximize_energy": func(r *Results) (float64, error) {
		if r.Analysis == nil || r.Analysis.Throughput == nil {
			return 0, fmt.Errorf("no throughput analysis")
		}
		return -r.Analysis.Throughput.DischargeEnergyWh, nil
	},

	"minimize_temp_rise": func(r *Results) (float64, error) {
		if r.Analysis == nil || r.Analysis.Thermal == nil {
			return 0, fmt.Errorf("no thermal analysis")
		}
		return r.Analysis.Thermal.RiseK, nil
	},

	"maximize_efficiency": func(r *Results) (float64, error) {
		if r.Analysis == nil || r.Analysis.Throughput == nil {
			return 0, fmt.Errorf("no throughput analysis")
		}
		if r.Analysis.Throughput.CoulombicEfficiency == 0 {
			return 0, fmt.Errorf("protocol has no charge/discharge round trip")
		}
		return -r.Analysis.Throughput.CoulombicEfficiency, nil
	},
}

// SweepSummary provides overview of sweep
type SweepSummary struct {
	TotalVariants int     `json:"totalVariants"`
	SuccessCount  int     `json:"successCount"`
	FailureCount  int     `json:"failureCount"`
	BestScore     float64 `json:"bestScore"`
	WorstScore    float64 `json:"worstScore"`
	ScoreRange    float64 `json:"scoreRange"`
}

// ExtractMetrics extracts key metrics from run results
func ExtractMetrics(r *Results) Metrics {
	m := Metrics{
		FinalState:  r.Results.Summary.FinalState,
		ComputeTime: r.Metadata.ComputeTime,
	}

	if r.Analysis != nil {
		if tp := r.Analysis.Throughput; tp != nil {
			m.DischargeCapacityAh = tp.DischargeCapacityAh
			m.DischargeEnergyWh = tp.DischargeEnergyWh
			m.CoulombicEfficiency = tp.CoulombicEfficiency
		}
		if th := r.Analysis.Thermal; th != nil {
			m.MaxTempK = th.MaxK
			m.TempRiseK = th.RiseK
		}
		if vr := r.Analysis.Voltage; vr != nil {
			m.MinVoltageV = vr.MinV
		}
	}

	return m
}

// RankVariants sorts variants by score and assigns ranks
func RankVariants(variants []VariantResult) {
	// lower score is better
	sort.Slice(variants, func(i, j int) bool {
		return variants[i].Score < variants[j].Score
	})

	for i := range variants {
		variants[i].Rank = i + 1
	}
}

// GenerateRecommendations creates human-readable recommendations
func GenerateRecommendations(sweep *SweepResults) map[string]string {
	rec := make(map[string]string)

	if sweep.Best == nil {
		return rec
	}

	if sweep.Worst != nil {
		for param, bestVal := range sweep.Best.Parameters {
			worstVal := sweep.Worst.Parameters[param]
			if bestVal != worstVal && worstVal != 0 {
				diff := bestVal - worstVal
				pct := (diff / worstVal) * 100

				var direction string
				if bestVal > worstVal {
					direction = "increase"
				} else {
					direction = "decrease"
				}

				rec[param] = fmt.Sprintf("%s by %.1f%% (%.6f -> %.6f)",
					direction, math.Abs(pct), worstVal, bestVal)
			}
		}

		bestCap := sweep.Best.Metrics.DischargeCapacityAh
		worstCap := sweep.Worst.Metrics.DischargeCapacityAh
		if worstCap > 0 {
			gain := ((bestCap - worstCap) / worstCap) * 100
			rec["improvement"] = fmt.Sprintf("%.1f%% more discharge capacity (%.2f -> %.2f Ah)",
				gain, worstCap, bestCap)
		}
	}

	return rec
}
