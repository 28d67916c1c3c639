// Package results defines the structured output format for simulation runs:
// a versioned JSON schema holding the cell summary, the protocol, the sampled
// timeseries, and derived analysis such as throughput and efficiency.
package results

import "time"

const SchemaVersion = "1.0.0"

// Results contains complete output for one protocol run
type Results struct {
	Version  string    `json:"version"`
	Metadata Metadata  `json:"metadata"`
	Cell     Cell      `json:"cell"`
	Protocol []Step    `json:"protocol"`
	Results  Data      `json:"results"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Events   []Event   `json:"events,omitempty"`
}

// Metadata contains run execution information
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Solver      string    `json:"solver"`
	Status      string    `json:"status"` // success, partial, error
	Error       string    `json:"error,omitempty"`
	ComputeTime float64   `json:"computeTime"` // seconds

	// Raw per-step solver statuses, index-aligned with Protocol
	StepStatus []int `json:"stepStatus,omitempty"`
}

// Cell summarizes the simulated cell configuration
type Cell struct {
	Name       string  `json:"name,omitempty"`
	NumRCPairs int     `json:"numRCPairs"`
	CapacityAh float64 `json:"capacityAh"`
	SOC0       float64 `json:"soc0"`
	TInfK      float64 `json:"tInfK"`
	Isothermal bool    `json:"isothermal"`
}

// Step describes one protocol entry
type Step struct {
	Mode    string  `json:"mode"`
	Seconds float64 `json:"seconds"`
	Samples int     `json:"samples"`
	Limits  []Limit `json:"limits,omitempty"`
}

// Limit describes an early-termination criterion
type Limit struct {
	Gauge string  `json:"gauge"`
	Value float64 `json:"value"`
}

// Data contains the run output
type Data struct {
	Summary    Summary    `json:"summary"`
	Timeseries Timeseries `json:"timeseries"`
}

// Summary provides quick overview
type Summary struct {
	Points     int                `json:"points"`
	FinalTime  float64            `json:"finalTime"`
	FinalState map[string]float64 `json:"finalState"`
}

// Timeseries contains multi-resolution time series data
type Timeseries struct {
	Time      TimeData              `json:"time"`
	Variables map[string]SeriesData `json:"variables"`
}

// TimeData holds time vectors at different resolutions
type TimeData struct {
	Full        []float64 `json:"full,omitempty"`
	Downsampled []float64 `json:"downsampled"`
}

// SeriesData holds values at different resolutions
type SeriesData struct {
	Full        []float64 `json:"full,omitempty"`
	Downsampled []float64 `json:"downsampled"`
}

// Analysis contains automatically computed insights
type Analysis struct {
	Statistics map[string]Stat `json:"statistics,omitempty"`
	Throughput *Throughput     `json:"throughput,omitempty"`
	Thermal    *Thermal        `json:"thermal,omitempty"`
	Voltage    *VoltageRange   `json:"voltage,omitempty"`
}

// Throughput holds integrated charge and energy by direction. Efficiencies
// are only meaningful for protocols with both charge and discharge phases
// and are zero otherwise.
type Throughput struct {
	DischargeCapacityAh float64 `json:"dischargeCapacityAh"`
	ChargeCapacityAh    float64 `json:"chargeCapacityAh"`
	DischargeEnergyWh   float64 `json:"dischargeEnergyWh"`
	ChargeEnergyWh      float64 `json:"chargeEnergyWh"`
	CoulombicEfficiency float64 `json:"coulombicEfficiency,omitempty"`
	EnergyEfficiency    float64 `json:"energyEfficiency,omitempty"`
}

// Thermal summarizes the temperature trajectory
type Thermal struct {
	MinK  float64 `json:"minK"`
	MaxK  float64 `json:"maxK"`
	RiseK float64 `json:"riseK"` // max above ambient
}

// VoltageRange summarizes the voltage trajectory
type VoltageRange struct {
	MinV float64 `json:"minV"`
	MaxV float64 `json:"maxV"`
}

// Stat contains statistical summary
type Stat struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// Event records a limit crossing that ended a step early
type Event struct {
	Time  float64 `json:"time"`
	Step  int     `json:"step"`
	Gauge string  `json:"gauge"`
}
