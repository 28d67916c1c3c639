// Package cell implements the Thevenin equivalent-circuit battery model:
// cell parameters, the state-vector layout, the governing ODE/DAE equations,
// and the derived gauges (current, power, capacity) used for step limits.
package cell

import "fmt"

// Kind selects the equation formulation a Layout is built for.
type Kind int

const (
	// ODE is the explicit formulation: independent states only, with the
	// terminal voltage computed directly from the demand current. Used by
	// the prediction stepper.
	ODE Kind = iota

	// DAE adds the terminal voltage as a trailing algebraic unknown so the
	// demand can be specified in voltage or power terms. Used by the
	// simulation stepper.
	DAE
)

// Layout maps the model's physical quantities to offsets in the flat state
// vector. The ordering is fixed: state of charge, nondimensional cell
// temperature, hysteresis voltage, one overpotential per RC pair, and (DAE
// form only) terminal voltage. A Layout is immutable; changing the RC-pair
// count requires building a new one.
type Layout struct {
	kind  Kind
	numRC int
	vcell int
	size  int
}

// NewLayout builds the index map for a model with the given RC-pair count.
// The vector size is numRC+3 for the ODE form and numRC+4 for the DAE form.
func NewLayout(numRC int, kind Kind) (Layout, error) {
	if numRC < 0 {
		return Layout{}, fmt.Errorf("RC-pair count must be non-negative, got %d", numRC)
	}
	if kind != ODE && kind != DAE {
		return Layout{}, fmt.Errorf("invalid formulation kind %d", kind)
	}

	l := Layout{kind: kind, numRC: numRC, vcell: -1, size: numRC + 3}
	if kind == DAE {
		l.vcell = l.size
		l.size++
	}
	return l, nil
}

// Kind returns the formulation the layout was built for.
func (l Layout) Kind() Kind { return l.kind }

// NumRCPairs returns the RC-pair count the layout was built for.
func (l Layout) NumRCPairs() int { return l.numRC }

// SOC returns the state-of-charge offset.
func (l Layout) SOC() int { return 0 }

// Temp returns the offset of the nondimensional cell temperature. The stored
// value is T_cell/T_inf; consumers convert to kelvin at this boundary.
func (l Layout) Temp() int { return 1 }

// Hyst returns the hysteresis-voltage offset.
func (l Layout) Hyst() int { return 2 }

// Eta returns the offset of overpotential j, counted from 1 to match the
// R1/C1 parameter naming. Out-of-range indices are a programming error.
func (l Layout) Eta(j int) int {
	if j < 1 || j > l.numRC {
		panic(fmt.Sprintf("cell: overpotential index %d out of range [1, %d]", j, l.numRC))
	}
	return 2 + j
}

// Voltage returns the terminal-voltage offset. Only DAE layouts carry the
// algebraic voltage unknown; asking an ODE layout is a programming error.
func (l Layout) Voltage() int {
	if l.vcell < 0 {
		panic("cell: ODE layout has no terminal-voltage slot")
	}
	return l.vcell
}

// Size returns the total state-vector length.
func (l Layout) Size() int { return l.size }
