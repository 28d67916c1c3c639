package results

import (
	"math"
	"sort"
)

// Analyzer computes insights from run results
type Analyzer struct {
	results *Results
}

// NewAnalyzer creates an analyzer for results
func NewAnalyzer(r *Results) *Analyzer {
	return &Analyzer{results: r}
}

// ComputeAll runs all analysis functions
func (a *Analyzer) ComputeAll() *Analysis {
	analysis := &Analysis{
		Statistics: make(map[string]Stat),
	}

	for varName, varData := range a.results.Results.Timeseries.Variables {
		analysis.Statistics[varName] = computeStats(varData.Full)
	}

	analysis.Throughput = a.computeThroughput()
	analysis.Thermal = a.computeThermal()
	analysis.Voltage = a.computeVoltageRange()

	return analysis
}

// computeThroughput integrates current and power over time, split by sign.
// Positive current is discharge. Integration uses the full-resolution data;
// the trapezoid rule keeps the stitched step boundaries harmless since the
// inter-step gaps are milliseconds wide.
func (a *Analyzer) computeThroughput() *Throughput {
	t := a.results.Results.Timeseries.Time.Full
	current, okI := a.fullVar("current_A")
	power, okP := a.fullVar("power_W")
	if !okI || !okP || len(t) < 2 {
		return nil
	}

	tp := &Throughput{}
	for i := 1; i < len(t); i++ {
		dt := t[i] - t[i-1]
		iMid := 0.5 * (current[i] + current[i-1])
		pMid := 0.5 * (power[i] + power[i-1])
		if iMid > 0 {
			tp.DischargeCapacityAh += iMid * dt / 3600.0
		} else {
			tp.ChargeCapacityAh += -iMid * dt / 3600.0
		}
		if pMid > 0 {
			tp.DischargeEnergyWh += pMid * dt / 3600.0
		} else {
			tp.ChargeEnergyWh += -pMid * dt / 3600.0
		}
	}

	if tp.ChargeCapacityAh > 0 && tp.DischargeCapacityAh > 0 {
		tp.CoulombicEfficiency = tp.DischargeCapacityAh / tp.ChargeCapacityAh
	}
	if tp.ChargeEnergyWh > 0 && tp.DischargeEnergyWh > 0 {
		tp.EnergyEfficiency = tp.DischargeEnergyWh / tp.ChargeEnergyWh
	}
	return tp
}

func (a *Analyzer) computeThermal() *Thermal {
	temp, ok := a.fullVar("temperature_K")
	if !ok || len(temp) == 0 {
		return nil
	}
	th := &Thermal{MinK: temp[0], MaxK: temp[0]}
	for _, v := range temp {
		th.MinK = math.Min(th.MinK, v)
		th.MaxK = math.Max(th.MaxK, v)
	}
	th.RiseK = th.MaxK - a.results.Cell.TInfK
	if th.RiseK < 0 {
		th.RiseK = 0
	}
	return th
}

func (a *Analyzer) computeVoltageRange() *VoltageRange {
	v, ok := a.fullVar("voltage_V")
	if !ok || len(v) == 0 {
		return nil
	}
	vr := &VoltageRange{MinV: v[0], MaxV: v[0]}
	for _, vi := range v {
		vr.MinV = math.Min(vr.MinV, vi)
		vr.MaxV = math.Max(vr.MaxV, vi)
	}
	return vr
}

func (a *Analyzer) fullVar(name string) ([]float64, bool) {
	sd, ok := a.results.Results.Timeseries.Variables[name]
	if !ok {
		return nil, false
	}
	return sd.Full, true
}

// computeStats calculates statistical summary
func computeStats(data []float64) Stat {
	if len(data) == 0 {
		return Stat{}
	}

	min := data[0]
	max := data[0]
	sum := 0.0

	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	mean := sum / float64(len(data))

	sumSq := 0.0
	for _, v := range data {
		diff := v - mean
		sumSq += diff * diff
	}
	std := math.Sqrt(sumSq / float64(len(data)))

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	return Stat{
		Min:    min,
		Max:    max,
		Mean:   mean,
		Median: median,
		Std:    std,
	}
}
