package simulation

import (
	"math"
	"testing"

	"github.com/thevenin-xyz/go-thevenin/cell"
	"github.com/thevenin-xyz/go-thevenin/experiment"
)

func TestPredictionRestIsIdentity(t *testing.T) {
	p := cell.Default()
	pred, err := NewPrediction(p)
	if err != nil {
		t.Fatal(err)
	}

	st := cell.TransientState{SOC: 0.6, Temp: 300, EtaJ: []float64{0}}
	out, err := pred.TakeStep(st, cell.Demand{
		Mode: cell.CurrentA, Value: experiment.Constant(0),
	}, 60)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out.SOC-0.6) > 1e-9 || math.Abs(out.Temp-300) > 1e-6 {
		t.Errorf("rest changed the state: %+v", out)
	}
	v, ok := out.Voltage()
	if !ok {
		t.Fatal("prediction must attach a voltage")
	}
	if math.Abs(v-p.OCV(0.6)) > 1e-6 {
		t.Errorf("rest voltage %g, want %g", v, p.OCV(0.6))
	}
	if _, ok := st.Voltage(); ok {
		t.Error("input state must not be mutated")
	}
}

func TestPredictionDischarge(t *testing.T) {
	p := cell.Default()
	pred, err := NewPrediction(p)
	if err != nil {
		t.Fatal(err)
	}
	st := cell.TransientState{SOC: 0.8, Temp: 300, EtaJ: []float64{0}}
	out, err := pred.TakeStep(st, cell.Demand{
		Mode: cell.CurrentA, Value: experiment.Constant(75),
	}, 360)
	if err != nil {
		t.Fatal(err)
	}
	want := 0.8 - 75.0*360.0/(3600.0*p.Capacity)
	if math.Abs(out.SOC-want) > 1e-6 {
		t.Errorf("soc = %g, want %g", out.SOC, want)
	}
	v, _ := out.Voltage()
	if v >= p.OCV(out.SOC) {
		t.Errorf("loaded voltage %g should sit below the ocv %g", v, p.OCV(out.SOC))
	}
}

func TestPredictionInputValidation(t *testing.T) {
	pred, _ := NewPrediction(cell.Default())
	good := cell.TransientState{SOC: 0.5, Temp: 300, EtaJ: []float64{0}}
	d := cell.Demand{Mode: cell.CurrentA, Value: experiment.Constant(1)}

	if _, err := pred.TakeStep(good, d, 0); err == nil {
		t.Error("non-positive dt should be rejected")
	}
	if _, err := pred.TakeStep(good, cell.Demand{
		Mode: cell.VoltageV, Value: experiment.Constant(4),
	}, 10); err == nil {
		t.Error("voltage demand should be rejected by the explicit form")
	}
	bad := cell.TransientState{SOC: 0.5, Temp: 300, EtaJ: []float64{0, 0}}
	if _, err := pred.TakeStep(bad, d, 10); err == nil {
		t.Error("RC mismatch should be rejected")
	}
}

func TestPredictionTakeSteps(t *testing.T) {
	p := cell.Default()
	pred, err := NewPrediction(p)
	if err != nil {
		t.Fatal(err)
	}
	st := cell.TransientState{SOC: 0.8, Temp: 300, EtaJ: []float64{0}}
	profile := experiment.Step{
		Mode:  cell.CurrentA,
		Value: experiment.StepFunction([]float64{180}, []float64{0}, 75),
	}
	states, err := pred.TakeSteps(st, profile, 60, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 6 {
		t.Fatalf("got %d states", len(states))
	}
	// the profile switches to rest at 180 s, so soc only drops before then
	drop1 := st.SOC - states[2].SOC
	drop2 := states[2].SOC - states[5].SOC
	if drop1 <= 0 {
		t.Errorf("no depletion during the loaded phase: %g", drop1)
	}
	if math.Abs(drop2) > 1e-9 {
		t.Errorf("soc moved during rest: %g", drop2)
	}
	if _, err := pred.TakeSteps(st, profile, 60, 0); err == nil {
		t.Error("non-positive interval count should be rejected")
	}
}
