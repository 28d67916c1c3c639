package config

import (
	"fmt"
	"sort"

	"github.com/thevenin-xyz/go-thevenin/cell"
)

// FuncSpec is the declarative form of a property function.
//
// Types:
//
//	constant    a fixed value
//	polynomial  coeffs in soc, highest power first
//	table       linear interpolation over (soc, values) pairs, clamped
//	            at the ends
//
// TempCoeff adds a linear temperature correction around TempRef kelvin for
// properties that take a temperature argument (R0, RJ, CJ); it is rejected
// on soc-only properties. A zero TempRef defaults to 300 K.
type FuncSpec struct {
	Type      string    `yaml:"type"`
	Value     float64   `yaml:"value,omitempty"`
	Coeffs    []float64 `yaml:"coeffs,omitempty"`
	SOC       []float64 `yaml:"soc,omitempty"`
	Values    []float64 `yaml:"values,omitempty"`
	TempCoeff float64   `yaml:"temp_coeff,omitempty"`
	TempRef   float64   `yaml:"temp_ref,omitempty"`
}

func (s FuncSpec) base(name string) (cell.SOCFunc, error) {
	switch s.Type {
	case "constant":
		v := s.Value
		return func(soc float64) float64 { return v }, nil
	case "polynomial":
		if len(s.Coeffs) == 0 {
			return nil, fmt.Errorf("%s: polynomial needs coeffs", name)
		}
		return cell.Polynomial(s.Coeffs), nil
	case "table":
		return tableFunc(name, s.SOC, s.Values)
	case "":
		return nil, fmt.Errorf("%s: missing function spec", name)
	}
	return nil, fmt.Errorf("%s: unknown function type %q", name, s.Type)
}

func (s FuncSpec) socFunc(name string) (cell.SOCFunc, error) {
	if s.TempCoeff != 0 {
		return nil, fmt.Errorf("%s: temp_coeff is not valid on an soc-only property", name)
	}
	return s.base(name)
}

func (s FuncSpec) physicsFunc(name string) (cell.PhysicsFunc, error) {
	base, err := s.base(name)
	if err != nil {
		return nil, err
	}
	coeff := s.TempCoeff
	tref := s.TempRef
	if tref == 0 {
		tref = 300
	}
	return func(soc, temp float64) float64 {
		return base(soc) + coeff*(temp-tref)
	}, nil
}

func tableFunc(name string, xs, ys []float64) (cell.SOCFunc, error) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return nil, fmt.Errorf("%s: table needs matching soc/values with at least two points", name)
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("%s: table soc points must be strictly increasing", name)
		}
	}
	x := append([]float64(nil), xs...)
	y := append([]float64(nil), ys...)
	return func(soc float64) float64 {
		if soc <= x[0] {
			return y[0]
		}
		if soc >= x[len(x)-1] {
			return y[len(y)-1]
		}
		i := sort.SearchFloat64s(x, soc)
		frac := (soc - x[i-1]) / (x[i] - x[i-1])
		return y[i-1] + frac*(y[i]-y[i-1])
	}, nil
}
