package cell

import "fmt"

// SOCFunc maps state of charge to a scalar property, e.g. the open-circuit
// voltage or the hysteresis magnitude.
type SOCFunc func(soc float64) float64

// PhysicsFunc maps state of charge and cell temperature (kelvin) to a scalar
// property, e.g. a resistance or capacitance.
type PhysicsFunc func(soc, temp float64) float64

// Params holds the full electro-thermal configuration of one cell. The
// function-valued fields must be pure; they are evaluated inside the solver's
// residual and must not retain or mutate state.
//
// RJ and CJ must each have exactly NumRCPairs entries. RJ[0]/CJ[0] correspond
// to the R1/C1 pair.
type Params struct {
	NumRCPairs   int     // number of RC pairs
	SOC0         float64 // initial state of charge [-]
	Capacity     float64 // maximum capacity [Ah]
	CoulombicEff float64 // coulombic efficiency, applied while charging [-]
	Gamma        float64 // hysteresis approach rate [-]
	Mass         float64 // cell mass [kg]
	Isothermal   bool    // pin temperature at TInf
	Cp           float64 // specific heat capacity [J/kg/K]
	TInf         float64 // ambient/reference temperature [K]
	HTherm       float64 // convective coefficient [W/m2/K]
	ATherm       float64 // heat loss area [m2]

	OCV   SOCFunc       // open-circuit voltage [V]
	MHyst SOCFunc       // maximum hysteresis magnitude [V]
	R0    PhysicsFunc   // series resistance [Ohm]
	RJ    []PhysicsFunc // RC-pair resistances [Ohm]
	CJ    []PhysicsFunc // RC-pair capacitances [F]
}

// Validate checks the configuration for consistency. It must pass before the
// parameters are handed to a System; the solver is never invoked on an
// invalid configuration.
func (p Params) Validate() error {
	if p.NumRCPairs < 0 {
		return fmt.Errorf("NumRCPairs must be non-negative, got %d", p.NumRCPairs)
	}
	if len(p.RJ) != p.NumRCPairs || len(p.CJ) != p.NumRCPairs {
		return fmt.Errorf("RJ/CJ lengths (%d/%d) must match NumRCPairs=%d",
			len(p.RJ), len(p.CJ), p.NumRCPairs)
	}
	for j, f := range p.RJ {
		if f == nil {
			return fmt.Errorf("RJ[%d] is nil", j)
		}
	}
	for j, f := range p.CJ {
		if f == nil {
			return fmt.Errorf("CJ[%d] is nil", j)
		}
	}
	if p.OCV == nil {
		return fmt.Errorf("OCV function is required")
	}
	if p.MHyst == nil {
		return fmt.Errorf("MHyst function is required")
	}
	if p.R0 == nil {
		return fmt.Errorf("R0 function is required")
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("Capacity must be positive, got %g", p.Capacity)
	}
	if p.SOC0 < 0 || p.SOC0 > 1 {
		return fmt.Errorf("SOC0 must be in [0, 1], got %g", p.SOC0)
	}
	if p.CoulombicEff <= 0 || p.CoulombicEff > 1 {
		return fmt.Errorf("CoulombicEff must be in (0, 1], got %g", p.CoulombicEff)
	}
	if p.Gamma < 0 {
		return fmt.Errorf("Gamma must be non-negative, got %g", p.Gamma)
	}
	if p.TInf <= 0 {
		return fmt.Errorf("TInf must be positive, got %g", p.TInf)
	}
	if !p.Isothermal && (p.Mass <= 0 || p.Cp <= 0) {
		return fmt.Errorf("Mass and Cp must be positive for a non-isothermal model")
	}
	return nil
}

// Clone returns a value copy of the parameters with independent slices. The
// function fields are shared; they are required to be pure, so sharing them
// cannot couple a snapshot to later mutations of the live configuration.
func (p Params) Clone() Params {
	out := p
	out.RJ = append([]PhysicsFunc(nil), p.RJ...)
	out.CJ = append([]PhysicsFunc(nil), p.CJ...)
	return out
}

// Default returns the built-in example cell: a 75 Ah cell with a single RC
// pair, a polynomial open-circuit voltage, and mildly temperature-dependent
// resistances. The same values ship as the embedded config template.
func Default() Params {
	ocvCoeffs := []float64{84.6, -348.6, 592.3, -534.3, 275.0, -80.3, 12.8, 2.8}

	return Params{
		NumRCPairs:   1,
		SOC0:         1.0,
		Capacity:     75.0,
		CoulombicEff: 1.0,
		Gamma:        50.0,
		Mass:         1.9,
		Isothermal:   false,
		Cp:           745.0,
		TInf:         300.0,
		HTherm:       12.0,
		ATherm:       1.0,
		OCV:          Polynomial(ocvCoeffs),
		MHyst:        func(soc float64) float64 { return 0.07 },
		R0: func(soc, temp float64) float64 {
			return 0.0012 + 0.0008*soc - temp/3e6
		},
		RJ: []PhysicsFunc{
			func(soc, temp float64) float64 { return 0.0008 + 0.0004*soc - temp/5e6 },
		},
		CJ: []PhysicsFunc{
			func(soc, temp float64) float64 { return 5e4 + 1e4*soc },
		},
	}
}

// Polynomial returns a SOCFunc evaluating the polynomial with the given
// coefficients, highest power first.
func Polynomial(coeffs []float64) SOCFunc {
	c := append([]float64(nil), coeffs...)
	return func(soc float64) float64 {
		v := 0.0
		for _, ci := range c {
			v = v*soc + ci
		}
		return v
	}
}
