package cell

import (
	"fmt"
	"math"
)

// Mode identifies how a step's demand value is interpreted.
type Mode string

const (
	CurrentA Mode = "current_A" // demand is current in amps, positive = discharge
	CurrentC Mode = "current_C" // demand is a C-rate, multiplied by capacity
	VoltageV Mode = "voltage_V" // demand is terminal voltage in volts
	PowerW   Mode = "power_W"   // demand is power in watts
)

// ValidMode reports whether m is a recognized demand mode.
func ValidMode(m Mode) bool {
	switch m {
	case CurrentA, CurrentC, VoltageV, PowerW:
		return true
	}
	return false
}

// Demand is the active load for one experiment step: a mode and a value
// function of elapsed step time in seconds.
type Demand struct {
	Mode  Mode
	Value func(t float64) float64
}

// Limit is an early-termination criterion: the step ends when the named
// gauge crosses the given value.
type Limit struct {
	Name  string
	Value float64
}

// GaugeNames lists the quantities a Limit may monitor. Time limits are
// measured in total experiment time, not per-step time.
var GaugeNames = []string{
	"soc", "temperature_K", "current_A", "current_C", "voltage_V",
	"power_W", "capacity_Ah", "time_s", "time_min", "time_h",
}

// ValidGauge reports whether name is a recognized limit gauge.
func ValidGauge(name string) bool {
	for _, g := range GaugeNames {
		if g == name {
			return true
		}
	}
	return false
}

// System binds validated parameters to a layout and produces the callables
// handed to the solver: the derivative function (ODE form), the residual
// function (DAE form), and root functions for limits.
//
// A System is read-only once built. Changing the parameters requires building
// a new System; the step driver guarantees no step is in flight across a
// rebuild.
type System struct {
	params Params
	layout Layout
}

// NewSystem validates the parameters and builds the system for the requested
// formulation.
func NewSystem(p Params, kind Kind) (*System, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cell parameters: %w", err)
	}
	l, err := NewLayout(p.NumRCPairs, kind)
	if err != nil {
		return nil, err
	}
	return &System{params: p.Clone(), layout: l}, nil
}

// Layout returns the system's state-vector layout.
func (s *System) Layout() Layout { return s.layout }

// Params returns an independent copy of the system's parameters.
func (s *System) Params() Params { return s.params.Clone() }

// MassMatrix returns the diagonal of the DAE mass matrix: ones for the
// differential states and zero for the algebraic voltage slot.
func (s *System) MassMatrix() []float64 {
	m := make([]float64, s.layout.Size())
	for i := range m {
		m[i] = 1
	}
	if s.layout.Kind() == DAE {
		m[s.layout.Voltage()] = 0
	}
	return m
}

// AlgebraicIndices returns the state-vector offsets holding algebraic
// unknowns (empty for the ODE form).
func (s *System) AlgebraicIndices() []int {
	if s.layout.Kind() != DAE {
		return nil
	}
	return []int{s.layout.Voltage()}
}

// rhs evaluates the right-hand side f(t, y) of M*yp = f(t, y). For the DAE
// form the voltage slot holds the algebraic expression driven to zero.
func (s *System) rhs(t float64, sv []float64, d Demand, out []float64) {
	p := &s.params
	l := s.layout

	soc := sv[l.SOC()]
	temp := sv[l.Temp()] * p.TInf
	hyst := sv[l.Hyst()]

	sumEta := 0.0
	for j := 1; j <= l.NumRCPairs(); j++ {
		sumEta += sv[l.Eta(j)]
	}

	ocv := p.OCV(soc)
	r0 := p.R0(soc, temp)

	qInv := 1.0 / (3600.0 * p.Capacity)

	var current, voltage float64
	if l.Kind() == DAE {
		voltage = sv[l.Voltage()]
		current = CalculatedCurrent(voltage, ocv, hyst, sumEta, r0)
	} else {
		current = d.Value(t)
		if d.Mode == CurrentC {
			current *= p.Capacity
		}
		voltage = CalculatedVoltage(current, ocv, hyst, sumEta, r0)
	}
	power := current * voltage

	// state of charge; the efficiency factor only applies while charging
	ce := 1.0
	if current < 0 {
		ce = p.CoulombicEff
	}
	out[l.SOC()] = -ce * current * qInv

	// temperature, nondimensionalized by TInf
	if p.Isothermal {
		out[l.Temp()] = 0
	} else {
		qGen := current * (ocv - voltage)
		qConv := p.HTherm * p.ATherm * (p.TInf - temp)
		out[l.Temp()] = (qGen + qConv) / (p.Mass * p.Cp * p.TInf)
	}

	// hysteresis relaxes toward -sign(I)*MHyst at a rate set by the
	// throughput, so it is path dependent and bounded by the target
	coeff := math.Abs(ce * current * p.Gamma * qInv)
	out[l.Hyst()] = coeff * (-sign(current)*p.MHyst(soc) - hyst)

	// first-order RC relaxation per pair
	for j := 1; j <= l.NumRCPairs(); j++ {
		rj := p.RJ[j-1](soc, temp)
		cj := p.CJ[j-1](soc, temp)
		out[l.Eta(j)] = -sv[l.Eta(j)]/(rj*cj) + current/cj
	}

	if l.Kind() == DAE {
		v := l.Voltage()
		switch d.Mode {
		case CurrentA:
			out[v] = current - d.Value(t)
		case CurrentC:
			out[v] = current - p.Capacity*d.Value(t)
		case VoltageV:
			out[v] = voltage - d.Value(t)
		case PowerW:
			out[v] = power - d.Value(t)
		default:
			panic(fmt.Sprintf("cell: invalid demand mode %q", d.Mode))
		}
	}
}

// Derivatives returns the explicit derivative function for the ODE form. The
// demand mode must be a current mode; voltage and power demands need the DAE
// form's implicit voltage.
func (s *System) Derivatives(d Demand) (func(t float64, y, dy []float64), error) {
	if s.layout.Kind() != ODE {
		panic("cell: Derivatives requires an ODE-form system")
	}
	if d.Mode != CurrentA && d.Mode != CurrentC {
		return nil, fmt.Errorf("ODE form only supports current demand, got mode %q", d.Mode)
	}
	if d.Value == nil {
		return nil, fmt.Errorf("demand value function is required")
	}
	return func(t float64, y, dy []float64) {
		s.rhs(t, y, d, dy)
	}, nil
}

// Residual returns the DAE residual function res = M*yp - f(t, y) in the
// form the solver consumes.
func (s *System) Residual(d Demand) (func(t float64, y, yp, res []float64), error) {
	if s.layout.Kind() != DAE {
		panic("cell: Residual requires a DAE-form system")
	}
	if !ValidMode(d.Mode) {
		return nil, fmt.Errorf("invalid demand mode %q", d.Mode)
	}
	if d.Value == nil {
		return nil, fmt.Errorf("demand value function is required")
	}
	mass := s.MassMatrix()
	return func(t float64, y, yp, res []float64) {
		s.rhs(t, y, d, res)
		for i := range res {
			res[i] = mass[i]*yp[i] - res[i]
		}
	}, nil
}

// Gauges holds the derived quantities observable during a DAE step. All
// values are recomputed directly from (t, y) through the same relations as
// the residual, so limits on derived quantities (current, power) see values
// consistent with the integration.
type Gauges struct {
	SOC        float64
	TempK      float64
	CurrentA   float64
	CurrentC   float64
	VoltageV   float64
	PowerW     float64
	CapacityAh float64
	TimeS      float64
}

// Get returns the gauge value for a limit name.
func (g Gauges) Get(name string) (float64, bool) {
	switch name {
	case "soc":
		return g.SOC, true
	case "temperature_K":
		return g.TempK, true
	case "current_A":
		return g.CurrentA, true
	case "current_C":
		return g.CurrentC, true
	case "voltage_V":
		return g.VoltageV, true
	case "power_W":
		return g.PowerW, true
	case "capacity_Ah":
		return g.CapacityAh, true
	case "time_s":
		return g.TimeS, true
	case "time_min":
		return g.TimeS / 60.0, true
	case "time_h":
		return g.TimeS / 3600.0, true
	}
	return 0, false
}

// Gauges evaluates the derived quantities at (t, sv) for a DAE-form state.
// t0 is the total experiment time accumulated before the current step, so
// time gauges reflect the whole protocol.
func (s *System) Gauges(t float64, sv []float64, t0 float64) Gauges {
	p := &s.params
	l := s.layout

	soc := sv[l.SOC()]
	temp := sv[l.Temp()] * p.TInf
	hyst := sv[l.Hyst()]

	sumEta := 0.0
	for j := 1; j <= l.NumRCPairs(); j++ {
		sumEta += sv[l.Eta(j)]
	}

	voltage := sv[l.Voltage()]
	current := CalculatedCurrent(voltage, p.OCV(soc), hyst, sumEta, p.R0(soc, temp))

	return Gauges{
		SOC:        soc,
		TempK:      temp,
		CurrentA:   current,
		CurrentC:   current / p.Capacity,
		VoltageV:   voltage,
		PowerW:     current * voltage,
		CapacityAh: soc * p.Capacity,
		TimeS:      t0 + t,
	}
}

// Roots returns the solver root function for a set of limits: one signed
// distance per limit, crossing zero when the monitored gauge reaches its
// threshold. Unknown limit names must be rejected before the step runs.
func (s *System) Roots(limits []Limit, t0 float64) (func(t float64, y, yp, out []float64), error) {
	if len(limits) == 0 {
		return nil, fmt.Errorf("at least one limit is required")
	}
	for _, lim := range limits {
		if !ValidGauge(lim.Name) {
			return nil, fmt.Errorf("invalid limit %q; valid gauges are %v", lim.Name, GaugeNames)
		}
	}
	crit := append([]Limit(nil), limits...)
	return func(t float64, y, yp, out []float64) {
		g := s.Gauges(t, y, t0)
		for i, lim := range crit {
			v, _ := g.Get(lim.Name)
			out[i] = v - lim.Value
		}
	}, nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
