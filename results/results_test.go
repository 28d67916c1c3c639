package results

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/simulation"
)

// syntheticSolution builds a step solution with a 10 A discharge for the
// first half and a 10 A charge for the second half of one hour.
func syntheticSolution(n int) *simulation.StepSolution {
	s := &simulation.StepSolution{
		Success: true,
		Status:  0,
		Vars:    map[string][]float64{},
	}
	for i := 0; i < n; i++ {
		t := 3600.0 * float64(i) / float64(n-1)
		current := 10.0
		if t >= 1800 {
			current = -10.0
		}
		voltage := 3.7
		s.T = append(s.T, t)
		s.Vars["time_s"] = append(s.Vars["time_s"], t)
		s.Vars["current_A"] = append(s.Vars["current_A"], current)
		s.Vars["voltage_V"] = append(s.Vars["voltage_V"], voltage)
		s.Vars["power_W"] = append(s.Vars["power_W"], current*voltage)
		s.Vars["temperature_K"] = append(s.Vars["temperature_K"], 300+2*math.Sin(math.Pi*t/3600))
		s.Vars["soc"] = append(s.Vars["soc"], 0.5)
	}
	return s
}

func TestBuilderFillsRecord(t *testing.T) {
	p := cell.Default()
	exp := experiment.New()
	if err := exp.AddStep(cell.CurrentA, 10, experiment.Linspace(3600, 11),
		cell.Limit{Name: "voltage_V", Value: 3.0}); err != nil {
		t.Fatal(err)
	}

	sol := syntheticSolution(101)
	r := NewBuilder().
		WithCell(p, "default").
		WithProtocol(exp).
		WithSolution(sol, "IDA", 0.05, 25).
		Build()

	if r.Version != SchemaVersion || r.Metadata.Status != "success" {
		t.Errorf("header: %s %s", r.Version, r.Metadata.Status)
	}
	if r.Cell.CapacityAh != 75 || r.Cell.Name != "default" {
		t.Errorf("cell: %+v", r.Cell)
	}
	if len(r.Protocol) != 1 || r.Protocol[0].Mode != "current_A" ||
		r.Protocol[0].Seconds != 3600 || len(r.Protocol[0].Limits) != 1 {
		t.Errorf("protocol: %+v", r.Protocol)
	}
	if r.Results.Summary.Points != 101 || r.Results.Summary.FinalTime != 3600 {
		t.Errorf("summary: %+v", r.Results.Summary)
	}
	if got := r.Results.Summary.FinalState["current_A"]; got != -10 {
		t.Errorf("final current %g", got)
	}
	ds := r.Results.Timeseries.Time.Downsampled
	if len(ds) != 25 || ds[0] != 0 || ds[len(ds)-1] != 3600 {
		t.Errorf("downsampled time: %d points, ends %g %g", len(ds), ds[0], ds[len(ds)-1])
	}
	if len(r.Results.Timeseries.Variables["voltage_V"].Full) != 101 {
		t.Error("full-resolution series missing")
	}
}

func TestBuilderComputeTimeFromSolution(t *testing.T) {
	a := syntheticSolution(11)
	a.SolveTime = 0.02
	b := syntheticSolution(11)
	b.SolveTime = 0.03
	cyc, err := simulation.Stitch([]*simulation.StepSolution{a, b}, 0)
	if err != nil {
		t.Fatal(err)
	}

	// per-step integration times override the caller-supplied figure
	r := NewBuilder().WithSolution(cyc, "IDA", 99, 0).Build()
	if math.Abs(r.Metadata.ComputeTime-0.05) > 1e-12 {
		t.Errorf("compute time %g, want 0.05", r.Metadata.ComputeTime)
	}

	r2 := NewBuilder().WithSolution(a, "IDA", 99, 0).Build()
	if r2.Metadata.ComputeTime != 0.02 {
		t.Errorf("step compute time %g, want 0.02", r2.Metadata.ComputeTime)
	}

	// solutions without timing fall back to the caller-supplied figure
	r3 := NewBuilder().WithSolution(syntheticSolution(11), "IDA", 0.5, 0).Build()
	if r3.Metadata.ComputeTime != 0.5 {
		t.Errorf("fallback compute time %g, want 0.5", r3.Metadata.ComputeTime)
	}
}

func TestBuilderWithError(t *testing.T) {
	r := NewBuilder().WithError(errFake("boom")).Build()
	if r.Metadata.Status != "error" || r.Metadata.Error != "boom" {
		t.Errorf("%+v", r.Metadata)
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }

func TestAnalyzerThroughput(t *testing.T) {
	r := NewBuilder().
		WithCell(cell.Default(), "default").
		WithSolution(syntheticSolution(721), "IDA", 0, 100).
		Build()
	a := NewAnalyzer(r).ComputeAll()

	tp := a.Throughput
	if tp == nil {
		t.Fatal("no throughput analysis")
	}
	// 10 A for half an hour each way
	if math.Abs(tp.DischargeCapacityAh-5) > 0.05 {
		t.Errorf("discharge capacity %g, want ~5", tp.DischargeCapacityAh)
	}
	if math.Abs(tp.ChargeCapacityAh-5) > 0.05 {
		t.Errorf("charge capacity %g, want ~5", tp.ChargeCapacityAh)
	}
	if math.Abs(tp.CoulombicEfficiency-1) > 0.02 {
		t.Errorf("coulombic efficiency %g, want ~1", tp.CoulombicEfficiency)
	}
	if math.Abs(tp.DischargeEnergyWh-5*3.7) > 0.2 {
		t.Errorf("discharge energy %g, want ~%g", tp.DischargeEnergyWh, 5*3.7)
	}

	th := a.Thermal
	if th == nil || math.Abs(th.MaxK-302) > 0.01 || math.Abs(th.RiseK-2) > 0.01 {
		t.Errorf("thermal: %+v", th)
	}
	vr := a.Voltage
	if vr == nil || vr.MinV != 3.7 || vr.MaxV != 3.7 {
		t.Errorf("voltage range: %+v", vr)
	}
	if _, ok := a.Statistics["soc"]; !ok {
		t.Error("per-variable statistics missing")
	}
}

func TestComputeStats(t *testing.T) {
	s := computeStats([]float64{1, 2, 3, 4})
	if s.Min != 1 || s.Max != 4 || s.Mean != 2.5 || s.Median != 2.5 {
		t.Errorf("%+v", s)
	}
	if math.Abs(s.Std-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("std %g", s.Std)
	}
	if got := computeStats(nil); got != (Stat{}) {
		t.Errorf("empty stats %+v", got)
	}
}

func TestDownsampleShort(t *testing.T) {
	data := []float64{1, 2, 3}
	out := downsample(data, 10)
	if len(out) != 3 {
		t.Errorf("short input should pass through, got %d", len(out))
	}
	out[0] = 99
	if data[0] == 99 {
		t.Error("downsample must copy")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	r := NewBuilder().
		WithCell(cell.Default(), "default").
		WithSolution(syntheticSolution(11), "IDA", 0.01, 5).
		Build()
	r.Analysis = NewAnalyzer(r).ComputeAll()

	path := filepath.Join(t.TempDir(), "run.json")
	if err := r.WriteJSON(path); err != nil {
		t.Fatal(err)
	}
	back, err := ReadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Version != r.Version || back.Results.Summary.Points != 11 {
		t.Errorf("round trip: %+v", back.Results.Summary)
	}
	if back.Analysis == nil || back.Analysis.Throughput == nil {
		t.Error("analysis lost in round trip")
	}
	if back.Metadata.Solver != "IDA" {
		t.Errorf("metadata lost: %+v", back.Metadata)
	}

	if _, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestSweepJSONRoundTrip(t *testing.T) {
	s := &SweepResults{
		Version:   SchemaVersion,
		BaseCell:  "default",
		Objective: "maximize_capacity",
		Variants: []VariantResult{
			{ID: 0, Score: 1.5, Rank: 1, Parameters: map[string]float64{"R0_scale": 1.2}},
		},
	}
	path := filepath.Join(t.TempDir(), "sweep.json")
	if err := s.WriteJSON(path); err != nil {
		t.Fatal(err)
	}
	back, err := ReadSweepJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Objective != "maximize_capacity" || len(back.Variants) != 1 ||
		back.Variants[0].Parameters["R0_scale"] != 1.2 {
		t.Errorf("round trip: %+v", back)
	}
}

func TestExtractMetricsAndRanking(t *testing.T) {
	r := NewBuilder().
		WithCell(cell.Default(), "default").
		WithSolution(syntheticSolution(721), "IDA", 0.1, 50).
		Build()
	r.Analysis = NewAnalyzer(r).ComputeAll()

	m := ExtractMetrics(r)
	if m.DischargeCapacityAh <= 0 || m.MinVoltageV != 3.7 || m.ComputeTime != 0.1 {
		t.Errorf("metrics: %+v", m)
	}

	variants := []VariantResult{
		{ID: 0, Score: 3},
		{ID: 1, Score: 1},
		{ID: 2, Score: 2},
	}
	RankVariants(variants)
	if variants[0].ID != 1 || variants[0].Rank != 1 || variants[2].ID != 0 {
		t.Errorf("ranking: %+v", variants)
	}

	score, err := Objectives["maximize_capacity"](r)
	if err != nil || score >= 0 {
		t.Errorf("objective score %g err %v", score, err)
	}
	if _, err := Objectives["maximize_capacity"](&Results{}); err == nil {
		t.Error("objective without analysis should fail")
	}
}
