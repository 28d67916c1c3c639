package solver

import (
	"fmt"
	"math"
)

// Method is an explicit Runge-Kutta tableau with an embedded error
// estimator. E holds the difference between the high- and low-order weights;
// an all-zero E marks a fixed-order method with no error control.
type Method struct {
	Name  string
	Order int
	C     []float64
	A     [][]float64
	B     []float64
	E     []float64
}

// adaptive reports whether the method carries a usable error estimator.
func (m *Method) adaptive() bool {
	for _, e := range m.E {
		if e != 0 {
			return true
		}
	}
	return false
}

// RK integrates explicit ODE systems dy = f(t, y) with an adaptive
// Runge-Kutta method. It serves the ODE problem form, where the demand is a
// known current and the voltage is reconstructed after the fact; systems
// with an algebraic constraint need IDA.
type RK struct {
	Fn       DerivFunc
	Method   *Method
	Roots    RootFunc
	NumRoots int
	Opts     *Options
}

// NewRK returns an integrator for fn using Tsit5 and default options.
func NewRK(fn DerivFunc) *RK {
	return &RK{Fn: fn, Method: Tsit5(), Opts: DefaultOptions()}
}

// Solve integrates from tspan[0] to tspan[len-1], sampling at the tspan
// points (every accepted step with ReportInternal). Semantics mirror
// IDA.Solve: failures come back in the Result, events stop the solve early.
func (s *RK) Solve(tspan []float64, y0 []float64) *Result {
	r := &Result{}
	opts := s.Opts
	if opts == nil {
		opts = DefaultOptions()
	}
	m := s.Method
	if m == nil {
		m = Tsit5()
	}
	if len(tspan) < 2 {
		return r.fail(StatusInitFail, "tspan needs at least two samples")
	}
	for i := 1; i < len(tspan); i++ {
		if tspan[i] <= tspan[i-1] {
			return r.fail(StatusInitFail, "tspan must be strictly increasing")
		}
	}

	n := len(y0)
	stages := len(m.B)
	k := make([][]float64, stages)
	for i := range k {
		k[i] = make([]float64, n)
	}
	ystage := make([]float64, n)
	ynew := make([]float64, n)
	ypnew := make([]float64, n)

	t := tspan[0]
	y := append([]float64(nil), y0...)
	yp := make([]float64, n)
	s.Fn(t, y, yp)
	r.NFev++
	r.record(t, y, yp)

	var prevRoots, curRoots []float64
	if s.Roots != nil && s.NumRoots > 0 {
		prevRoots = make([]float64, s.NumRoots)
		curRoots = make([]float64, s.NumRoots)
		s.Roots(t, y, yp, prevRoots)
	}

	h := opts.InitStep
	if h <= 0 {
		h = (tspan[1] - tspan[0]) / 100
	}
	if opts.MaxStep > 0 && h > opts.MaxStep {
		h = opts.MaxStep
	}
	adaptive := m.adaptive()

	nsteps := 0
	for kout := 1; kout < len(tspan); kout++ {
		tout := tspan[kout]
		for t < tout {
			if nsteps >= opts.MaxSteps {
				return r.fail(StatusMaxSteps, fmt.Sprintf(
					"step budget of %d exhausted at t=%g", opts.MaxSteps, t))
			}
			if opts.MaxStep > 0 && h > opts.MaxStep {
				h = opts.MaxStep
			}
			if h < opts.MinStep {
				h = opts.MinStep
			}

			hitOut := false
			tnew := t + h
			if tnew >= tout-1e-12*math.Max(1, math.Abs(tout)) {
				tnew = tout
				h = tout - t
				hitOut = true
			}

			// stage evaluations; FSAL is not exploited, the systems here
			// are cheap relative to the bookkeeping
			for i := 0; i < stages; i++ {
				for j := 0; j < n; j++ {
					acc := y[j]
					for l := 0; l < i; l++ {
						acc += h * m.A[i][l] * k[l][j]
					}
					ystage[j] = acc
				}
				s.Fn(t+m.C[i]*h, ystage, k[i])
				r.NFev++
			}

			errNorm := 0.0
			for j := 0; j < n; j++ {
				acc := y[j]
				errAcc := 0.0
				for i := 0; i < stages; i++ {
					acc += h * m.B[i] * k[i][j]
					errAcc += h * m.E[i] * k[i][j]
				}
				ynew[j] = acc
				if adaptive {
					w := opts.Atol + opts.Rtol*math.Max(math.Abs(y[j]), math.Abs(acc))
					if e := math.Abs(errAcc) / w; e > errNorm {
						errNorm = e
					}
				}
			}

			if adaptive && errNorm > 1 && h > opts.MinStep {
				fac := math.Max(0.1, 0.9*math.Pow(1/errNorm, 1/float64(m.Order)))
				h = math.Max(opts.MinStep, h*fac)
				continue
			}

			s.Fn(tnew, ynew, ypnew)
			r.NFev++
			nsteps++

			if prevRoots != nil {
				s.Roots(tnew, ynew, ypnew, curRoots)
				if idx := firstCrossing(prevRoots, curRoots); idx >= 0 {
					te, ye, ype := locateCrossing(s.Roots, s.NumRoots, idx,
						t, tnew, y, ynew, yp, ypnew, prevRoots[idx])
					r.recordEvent(idx, te, ye, ype)
					r.record(te, ye, ype)
					return r.finish(StatusEvent,
						"A root was found before reaching the end of tspan.")
				}
				prevRoots, curRoots = curRoots, prevRoots
			}

			t = tnew
			copy(y, ynew)
			copy(yp, ypnew)
			if hitOut || opts.ReportInternal {
				r.record(t, y, yp)
			}

			if adaptive {
				if errNorm > 0 {
					fac := 0.9 * math.Pow(1/errNorm, 1/float64(m.Order))
					if fac > 4 {
						fac = 4
					} else if fac < 0.2 {
						fac = 0.2
					}
					h *= fac
				} else {
					h *= 2
				}
			}
		}
	}

	return r.finish(StatusDone, "The solver successfully reached the end of tspan.")
}
