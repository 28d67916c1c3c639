package simulation

import (
	"math"
	"testing"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
	"github.com/thevenin-xyz/go-thevenin/solver"
)

func TestRestStepHoldsVoltage(t *testing.T) {
	p := cell.Default()
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	step := experiment.Step{
		Mode:  cell.CurrentA,
		Value: experiment.Constant(0),
		Tspan: experiment.Linspace(600, 11),
	}
	sol, err := sim.RunStep(step, nil)
	if err != nil {
		t.Fatalf("rest step failed: %v", err)
	}
	if !sol.Success || sol.Status != solver.StatusDone {
		t.Fatalf("status %d: %s", sol.Status, sol.Message)
	}

	v, _ := sol.Var("voltage_V")
	want := p.OCV(p.SOC0)
	for i, vi := range v {
		if math.Abs(vi-want) > 1e-6 {
			t.Errorf("rest voltage[%d] = %g, want %g", i, vi, want)
		}
	}
	temp, _ := sol.Var("temperature_K")
	for _, ti := range temp {
		if math.Abs(ti-p.TInf) > 1e-6 {
			t.Errorf("rest temperature %g, want %g", ti, p.TInf)
		}
	}
	if sim.Time() != 600 {
		t.Errorf("experiment clock %g, want 600", sim.Time())
	}
	if sol.SolveTime <= 0 {
		t.Errorf("integration time not recorded: %g", sol.SolveTime)
	}
}

func TestRunStepRejectsBadTspan(t *testing.T) {
	p := cell.Default()
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	// a hand-built step never went through the experiment builder's checks
	step := experiment.Step{
		Mode:  cell.CurrentA,
		Value: experiment.Constant(75),
		Tspan: []float64{5, 10},
	}
	if _, err := sim.RunStep(step, nil); err == nil {
		t.Fatal("tspan not starting at zero should be rejected")
	}
	if sim.Time() != 0 {
		t.Errorf("clock moved to %g on a rejected step", sim.Time())
	}
	if st := sim.State(); st.SOC != p.SOC0 {
		t.Errorf("state moved on a rejected step: soc %g", st.SOC)
	}

	step.Tspan = []float64{0}
	if _, err := sim.RunStep(step, nil); err == nil {
		t.Error("single-sample tspan should be rejected")
	}
	step.Tspan = []float64{0, 2, 1}
	if _, err := sim.RunStep(step, nil); err == nil {
		t.Error("non-monotone tspan should be rejected")
	}
}

func TestStepSolutionCarriesRawSeries(t *testing.T) {
	sim, err := New(cell.Default())
	if err != nil {
		t.Fatal(err)
	}
	step := experiment.Step{
		Mode:  cell.CurrentA,
		Value: experiment.Constant(75),
		Tspan: experiment.Linspace(300, 11),
	}
	sol, err := sim.RunStep(step, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(sol.Y) != len(sol.T) || len(sol.YP) != len(sol.T) {
		t.Fatalf("raw series misaligned: %d states, %d derivatives, %d samples",
			len(sol.Y), len(sol.YP), len(sol.T))
	}
	layout := sim.layout
	soc, _ := sol.Var("soc")
	for i := range sol.T {
		if sol.Y[i][layout.SOC()] != soc[i] {
			t.Fatalf("raw soc[%d] = %g disagrees with variable %g",
				i, sol.Y[i][layout.SOC()], soc[i])
		}
	}

	y, yp := sol.FinalRaw()
	if len(y) != layout.Size() || len(yp) != layout.Size() {
		t.Fatalf("terminal state sizes %d %d, want %d", len(y), len(yp), layout.Size())
	}
	y[0] = -1
	if sol.Y[len(sol.Y)-1][0] == -1 {
		t.Error("FinalRaw must return copies")
	}
}

func TestDischargeDepletesSOC(t *testing.T) {
	p := cell.Default()
	p.SOC0 = 0.9
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	step := experiment.Step{
		Mode:  cell.CurrentC,
		Value: experiment.Constant(0.5),
		Tspan: experiment.Linspace(600, 21),
	}
	sol, err := sim.RunStep(step, nil)
	if err != nil {
		t.Fatalf("discharge failed: %v", err)
	}

	soc, _ := sol.Var("soc")
	// soc balance is independent of the thermal state
	want := 0.9 - 0.5*600.0/3600.0
	if math.Abs(soc[len(soc)-1]-want) > 1e-4 {
		t.Errorf("final soc = %g, want %g", soc[len(soc)-1], want)
	}

	v, _ := sol.Var("voltage_V")
	if v[len(v)-1] >= v[0] {
		t.Errorf("discharge voltage did not drop: %g to %g", v[0], v[len(v)-1])
	}

	i, _ := sol.Var("current_A")
	for k, ik := range i {
		if math.Abs(ik-0.5*p.Capacity) > 1e-3 {
			t.Errorf("current[%d] = %g, want %g", k, ik, 0.5*p.Capacity)
		}
	}
}

func TestCoulombicEfficiencyThroughput(t *testing.T) {
	p := cell.Default()
	p.SOC0 = 0.5
	p.CoulombicEff = 0.8
	p.Isothermal = true
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	charge := experiment.Step{
		Mode:  cell.CurrentA,
		Value: experiment.Constant(-37.5),
		Tspan: experiment.Linspace(600, 21),
	}
	sol, err := sim.RunStep(charge, nil)
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	soc, _ := sol.Var("soc")
	// charging carries the efficiency factor
	want := 0.5 + 0.8*37.5*600.0/(3600.0*p.Capacity)
	if math.Abs(soc[len(soc)-1]-want) > 1e-4 {
		t.Errorf("charged soc = %g, want %g", soc[len(soc)-1], want)
	}
}

func TestVoltageLimitEndsStepEarly(t *testing.T) {
	p := cell.Default()
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	step := experiment.Step{
		Mode:   cell.CurrentA,
		Value:  experiment.Constant(75),
		Tspan:  experiment.Linspace(3600, 121),
		Limits: []cell.Limit{{Name: "voltage_V", Value: 3.9}},
	}
	sol, err := sim.RunStep(step, nil)
	if err != nil {
		t.Fatalf("limited discharge failed: %v", err)
	}
	if sol.Status != solver.StatusEvent {
		t.Fatalf("expected event status, got %d (%s)", sol.Status, sol.Message)
	}
	if len(sol.EventT) != 1 || sol.EventNames[0] != "voltage_V" {
		t.Fatalf("event record: %v %v", sol.EventT, sol.EventNames)
	}
	if len(sol.EventY) != 1 || len(sol.EventYP) != 1 {
		t.Fatalf("event state capture: %d %d rows", len(sol.EventY), len(sol.EventYP))
	}
	if got := sol.EventY[0][sim.layout.Voltage()]; math.Abs(got-3.9) > 1e-3 {
		t.Errorf("captured event voltage %g, want ~3.9", got)
	}

	v, _ := sol.Var("voltage_V")
	if math.Abs(v[len(v)-1]-3.9) > 1e-3 {
		t.Errorf("final voltage %g, want ~3.9", v[len(v)-1])
	}
	if sol.T[len(sol.T)-1] >= 3600 {
		t.Error("step did not end early")
	}
	// the clock advances only to the event
	if sim.Time() >= 3600 {
		t.Errorf("clock advanced to %g past the event", sim.Time())
	}
}

func TestVoltageHold(t *testing.T) {
	p := cell.Default()
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	step := experiment.Step{
		Mode:  cell.VoltageV,
		Value: experiment.Constant(4.1),
		Tspan: experiment.Linspace(300, 11),
	}
	sol, err := sim.RunStep(step, nil)
	if err != nil {
		t.Fatalf("voltage hold failed: %v", err)
	}
	v, _ := sol.Var("voltage_V")
	for i, vi := range v {
		if math.Abs(vi-4.1) > 1e-4 {
			t.Errorf("held voltage[%d] = %g", i, vi)
		}
	}
	// holding below the rested ocv discharges the cell
	i, _ := sol.Var("current_A")
	if i[len(i)-1] <= 0 {
		t.Errorf("hold current %g, want positive", i[len(i)-1])
	}
	soc, _ := sol.Var("soc")
	if soc[len(soc)-1] >= p.SOC0 {
		t.Errorf("soc did not drop under a low hold: %g", soc[len(soc)-1])
	}
}

func TestPowerStep(t *testing.T) {
	sim, err := New(cell.Default())
	if err != nil {
		t.Fatal(err)
	}
	step := experiment.Step{
		Mode:  cell.PowerW,
		Value: experiment.Constant(100),
		Tspan: experiment.Linspace(300, 11),
	}
	sol, err := sim.RunStep(step, nil)
	if err != nil {
		t.Fatalf("power step failed: %v", err)
	}
	pw, _ := sol.Var("power_W")
	for i, pi := range pw {
		if math.Abs(pi-100) > 1e-3 {
			t.Errorf("power[%d] = %g, want 100", i, pi)
		}
	}
}

func TestRunStitchesProtocol(t *testing.T) {
	p := cell.Default()
	p.SOC0 = 0.8
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	exp := experiment.New()
	if err := exp.AddStep(cell.CurrentA, 37.5, experiment.Linspace(300, 11)); err != nil {
		t.Fatal(err)
	}
	if err := exp.AddStep(cell.CurrentA, 0, experiment.Linspace(300, 11)); err != nil {
		t.Fatal(err)
	}
	if err := exp.AddStep(cell.CurrentA, -37.5, experiment.Linspace(300, 11)); err != nil {
		t.Fatal(err)
	}

	cyc, err := sim.Run(exp)
	if err != nil {
		t.Fatalf("protocol failed: %v", err)
	}
	if cyc.NumSteps() != 3 || !cyc.AllSuccessful() {
		t.Fatalf("steps %d, success %v", cyc.NumSteps(), cyc.Success)
	}
	for i := 1; i < len(cyc.T); i++ {
		if cyc.T[i] <= cyc.T[i-1] {
			t.Fatalf("stitched timestamps not strictly increasing at %d", i)
		}
	}

	soc, _ := cyc.Var("soc")
	// discharge then rest then equal charge nearly restores soc
	if math.Abs(soc[len(soc)-1]-soc[0]) > 1e-3 {
		t.Errorf("round trip soc drifted from %g to %g", soc[0], soc[len(soc)-1])
	}

	// Run resets the live state by default
	if sim.Time() != 0 {
		t.Errorf("clock %g after run, want 0", sim.Time())
	}
	if st := sim.State(); math.Abs(st.SOC-p.SOC0) > 1e-12 {
		t.Errorf("state not reset: soc %g", st.SOC)
	}
}

func TestRunKeepState(t *testing.T) {
	p := cell.Default()
	p.SOC0 = 0.9
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	exp := experiment.New()
	if err := exp.AddStep(cell.CurrentA, 75, experiment.Linspace(300, 11)); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.RunWith(exp, RunOptions{KeepState: true}); err != nil {
		t.Fatal(err)
	}
	if sim.Time() != 300 {
		t.Errorf("clock %g, want 300", sim.Time())
	}
	if st := sim.State(); st.SOC >= p.SOC0 {
		t.Errorf("state was reset: soc %g", st.SOC)
	}
}

func TestRunRejectsEmptyExperiment(t *testing.T) {
	sim, _ := New(cell.Default())
	if _, err := sim.Run(nil); err == nil {
		t.Error("nil experiment should be rejected")
	}
	if _, err := sim.Run(experiment.New()); err == nil {
		t.Error("empty experiment should be rejected")
	}
}

func TestInitFromStateAndSolution(t *testing.T) {
	p := cell.Default()
	sim, err := New(p)
	if err != nil {
		t.Fatal(err)
	}

	if err := sim.InitFromState(cell.TransientState{
		SOC: 0.3, Temp: 305, Hyst: -0.01, EtaJ: []float64{0.002},
	}); err != nil {
		t.Fatal(err)
	}
	st := sim.State()
	if math.Abs(st.SOC-0.3) > 1e-12 || math.Abs(st.Temp-305) > 1e-9 {
		t.Errorf("state not applied: %+v", st)
	}
	if sim.Time() != 0 {
		t.Error("InitFromState must zero the clock")
	}

	// mismatched RC count is a configuration error
	if err := sim.InitFromState(cell.TransientState{SOC: 0.3, Temp: 300}); err == nil {
		t.Error("RC mismatch should be rejected")
	}

	// continue from the end of a previous run
	sim2, _ := New(p)
	step := experiment.Step{
		Mode:  cell.CurrentA,
		Value: experiment.Constant(75),
		Tspan: experiment.Linspace(300, 11),
	}
	sol, err := sim2.RunStep(step, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.InitFromSolution(sol); err != nil {
		t.Fatal(err)
	}
	soc, _ := sol.Var("soc")
	if math.Abs(sim.State().SOC-soc[len(soc)-1]) > 1e-12 {
		t.Errorf("InitFromSolution soc %g, want %g", sim.State().SOC, soc[len(soc)-1])
	}
}

func TestSetParamsRebuilds(t *testing.T) {
	sim, _ := New(cell.Default())
	bad := cell.Default()
	bad.Capacity = -1
	if err := sim.SetParams(bad); err == nil {
		t.Error("invalid parameters should be rejected")
	}

	p := cell.Default()
	p.SOC0 = 0.25
	if err := sim.SetParams(p); err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim.State().SOC-0.25) > 1e-12 {
		t.Errorf("SetParams did not reset to the new SOC0: %g", sim.State().SOC)
	}
}
