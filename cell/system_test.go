package cell

import (
	"math"
	"testing"
)

func constDemand(mode Mode, v float64) Demand {
	return Demand{Mode: mode, Value: func(t float64) float64 { return v }}
}

func TestNewSystemValidation(t *testing.T) {
	p := Default()
	p.Capacity = 0
	if _, err := NewSystem(p, ODE); err == nil {
		t.Error("invalid parameters should be rejected")
	}
	if _, err := NewSystem(Default(), DAE); err != nil {
		t.Errorf("default parameters rejected: %v", err)
	}
}

func TestMassMatrix(t *testing.T) {
	s, _ := NewSystem(Default(), DAE)
	m := s.MassMatrix()
	l := s.Layout()
	for i, v := range m {
		want := 1.0
		if i == l.Voltage() {
			want = 0
		}
		if v != want {
			t.Errorf("mass[%d] = %g, want %g", i, v, want)
		}
	}
	if idx := s.AlgebraicIndices(); len(idx) != 1 || idx[0] != l.Voltage() {
		t.Errorf("algebraic indices %v", idx)
	}

	ode, _ := NewSystem(Default(), ODE)
	if idx := ode.AlgebraicIndices(); idx != nil {
		t.Errorf("ODE form should report no algebraic indices, got %v", idx)
	}
}

func TestDerivativesAtRest(t *testing.T) {
	p := Default()
	s, err := NewSystem(p, ODE)
	if err != nil {
		t.Fatal(err)
	}
	fn, err := s.Derivatives(constDemand(CurrentA, 0))
	if err != nil {
		t.Fatal(err)
	}

	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)
	dy := make([]float64, l.Size())
	fn(0, sv, dy)
	for i, v := range dy {
		if math.Abs(v) > 1e-14 {
			t.Errorf("rested derivative %d = %g, want 0", i, v)
		}
	}
}

func TestSOCRateSign(t *testing.T) {
	p := Default()
	p.Isothermal = true
	s, _ := NewSystem(p, ODE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)
	dy := make([]float64, l.Size())

	// positive current discharges
	fn, _ := s.Derivatives(constDemand(CurrentA, 75))
	fn(0, sv, dy)
	wantRate := -75.0 / (3600.0 * p.Capacity)
	if math.Abs(dy[l.SOC()]-wantRate) > 1e-15 {
		t.Errorf("discharge soc rate = %g, want %g", dy[l.SOC()], wantRate)
	}

	// negative current charges
	fn, _ = s.Derivatives(constDemand(CurrentA, -75))
	fn(0, sv, dy)
	if math.Abs(dy[l.SOC()]+wantRate) > 1e-15 {
		t.Errorf("charge soc rate = %g, want %g", dy[l.SOC()], -wantRate)
	}
}

func TestCoulombicEfficiencyOnlyWhileCharging(t *testing.T) {
	p := Default()
	p.CoulombicEff = 0.8
	p.Isothermal = true
	s, _ := NewSystem(p, ODE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)
	dy := make([]float64, l.Size())

	fn, _ := s.Derivatives(constDemand(CurrentA, 10))
	fn(0, sv, dy)
	discharge := dy[l.SOC()]

	fn, _ = s.Derivatives(constDemand(CurrentA, -10))
	fn(0, sv, dy)
	charge := dy[l.SOC()]

	// the charge rate carries the efficiency factor, the discharge does not
	if math.Abs(charge/(-discharge)-0.8) > 1e-12 {
		t.Errorf("charge/discharge rate ratio = %g, want 0.8", charge/(-discharge))
	}
}

func TestCurrentCScalesByCapacity(t *testing.T) {
	p := Default()
	p.Isothermal = true
	s, _ := NewSystem(p, ODE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)

	dyA := make([]float64, l.Size())
	dyC := make([]float64, l.Size())
	fnA, _ := s.Derivatives(constDemand(CurrentA, 0.5*p.Capacity))
	fnC, _ := s.Derivatives(constDemand(CurrentC, 0.5))
	fnA(0, sv, dyA)
	fnC(0, sv, dyC)
	for i := range dyA {
		if math.Abs(dyA[i]-dyC[i]) > 1e-14 {
			t.Errorf("slot %d: C-rate demand gave %g, amp demand gave %g", i, dyC[i], dyA[i])
		}
	}
}

func TestIsothermalHoldsTemperature(t *testing.T) {
	p := Default()
	p.Isothermal = true
	s, _ := NewSystem(p, ODE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)
	dy := make([]float64, l.Size())
	fn, _ := s.Derivatives(constDemand(CurrentA, 150))
	fn(0, sv, dy)
	if dy[l.Temp()] != 0 {
		t.Errorf("isothermal temperature rate = %g, want 0", dy[l.Temp()])
	}

	p.Isothermal = false
	s2, _ := NewSystem(p, ODE)
	fn, _ = s2.Derivatives(constDemand(CurrentA, 150))
	fn(0, sv, dy)
	if dy[l.Temp()] <= 0 {
		t.Errorf("heavy discharge should heat the cell, rate = %g", dy[l.Temp()])
	}
}

func TestHysteresisApproachesTarget(t *testing.T) {
	p := Default()
	s, _ := NewSystem(p, ODE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)
	dy := make([]float64, l.Size())

	// discharging drives hysteresis toward -MHyst, so from zero the rate
	// is negative; charging drives it positive
	fn, _ := s.Derivatives(constDemand(CurrentA, 10))
	fn(0, sv, dy)
	if dy[l.Hyst()] >= 0 {
		t.Errorf("discharge hysteresis rate = %g, want negative", dy[l.Hyst()])
	}
	fn, _ = s.Derivatives(constDemand(CurrentA, -10))
	fn(0, sv, dy)
	if dy[l.Hyst()] <= 0 {
		t.Errorf("charge hysteresis rate = %g, want positive", dy[l.Hyst()])
	}

	// no throughput, no hysteresis motion
	fn, _ = s.Derivatives(constDemand(CurrentA, 0))
	fn(0, sv, dy)
	if dy[l.Hyst()] != 0 {
		t.Errorf("rest hysteresis rate = %g, want 0", dy[l.Hyst()])
	}
}

func TestDerivativesRejectsNonCurrentModes(t *testing.T) {
	s, _ := NewSystem(Default(), ODE)
	if _, err := s.Derivatives(constDemand(VoltageV, 3.8)); err == nil {
		t.Error("voltage demand requires the DAE form")
	}
	if _, err := s.Derivatives(constDemand(PowerW, 10)); err == nil {
		t.Error("power demand requires the DAE form")
	}
	if _, err := s.Derivatives(Demand{Mode: CurrentA}); err == nil {
		t.Error("nil demand function should be rejected")
	}
}

func TestResidualConsistentAtRest(t *testing.T) {
	p := Default()
	s, err := NewSystem(p, DAE)
	if err != nil {
		t.Fatal(err)
	}
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)

	fn, err := s.Residual(constDemand(CurrentA, 0))
	if err != nil {
		t.Fatal(err)
	}
	yp := make([]float64, l.Size())
	res := make([]float64, l.Size())
	fn(0, sv, yp, res)
	for i, v := range res {
		if math.Abs(v) > 1e-9 {
			t.Errorf("rested residual %d = %g, want 0", i, v)
		}
	}
}

func TestResidualVoltageConstraint(t *testing.T) {
	p := Default()
	s, _ := NewSystem(p, DAE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)

	// with a current demand the voltage slot residual is -(I(V) - Idem)
	fn, _ := s.Residual(constDemand(CurrentA, 30))
	yp := make([]float64, l.Size())
	res := make([]float64, l.Size())
	fn(0, sv, yp, res)
	if math.Abs(res[l.Voltage()]-30) > 1e-9 {
		t.Errorf("voltage residual = %g, want 30 at the rested voltage", res[l.Voltage()])
	}

	// with a voltage demand the constraint is direct
	fn, _ = s.Residual(constDemand(VoltageV, sv[l.Voltage()]))
	fn(0, sv, yp, res)
	if math.Abs(res[l.Voltage()]) > 1e-12 {
		t.Errorf("voltage-mode residual = %g, want 0", res[l.Voltage()])
	}
}

func TestGauges(t *testing.T) {
	p := Default()
	s, _ := NewSystem(p, DAE)
	l := s.Layout()
	sv, _ := p.PackState(p.RestedState(), l)

	g := s.Gauges(12, sv, 100)
	if g.TimeS != 112 {
		t.Errorf("time gauge = %g, want accumulated 112", g.TimeS)
	}
	if v, _ := g.Get("time_min"); math.Abs(v-112.0/60.0) > 1e-12 {
		t.Errorf("time_min = %g", v)
	}
	if math.Abs(g.CurrentA) > 1e-9 {
		t.Errorf("rested current = %g, want 0", g.CurrentA)
	}
	if math.Abs(g.CapacityAh-p.SOC0*p.Capacity) > 1e-12 {
		t.Errorf("capacity gauge = %g", g.CapacityAh)
	}
	if _, ok := g.Get("bogus"); ok {
		t.Error("unknown gauge name should not resolve")
	}
	for _, name := range GaugeNames {
		if _, ok := g.Get(name); !ok {
			t.Errorf("registered gauge %q does not resolve", name)
		}
	}
}

func TestRootsValidation(t *testing.T) {
	s, _ := NewSystem(Default(), DAE)
	if _, err := s.Roots(nil, 0); err == nil {
		t.Error("empty limit set should be rejected")
	}
	if _, err := s.Roots([]Limit{{Name: "bogus", Value: 1}}, 0); err == nil {
		t.Error("unknown gauge should be rejected")
	}

	fn, err := s.Roots([]Limit{{Name: "soc", Value: 0.2}, {Name: "time_s", Value: 50}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	p := Default()
	l, _ := NewLayout(p.NumRCPairs, DAE)
	sv, _ := p.PackState(p.RestedState(), l)
	out := make([]float64, 2)
	fn(10, sv, nil, out)
	if math.Abs(out[0]-(p.SOC0-0.2)) > 1e-12 {
		t.Errorf("soc root = %g", out[0])
	}
	if math.Abs(out[1]-(10-50)) > 1e-12 {
		t.Errorf("time root = %g", out[1])
	}
}
