// Package solver implements the numerical integrators behind the battery
// simulation: an implicit BDF integrator for differential-algebraic systems
// in residual form, and explicit adaptive Runge-Kutta methods for pure ODE
// systems. The integrators know nothing about batteries; they consume the
// residual, derivative, and root callables the model layer produces.
package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ResidualFunc fills res with the DAE residuals res = M(y)*yp - f(t, y).
// The solver drives res to zero at every accepted step.
type ResidualFunc func(t float64, y, yp, res []float64)

// DerivFunc fills dy with the derivatives dy = f(t, y) of an explicit ODE
// system.
type DerivFunc func(t float64, y, dy []float64)

// RootFunc fills out with one signed value per tracked event. Integration
// stops early when any component crosses zero.
type RootFunc func(t float64, y, yp, out []float64)

// IDA is an implicit differential-algebraic integrator modeled on the
// SUNDIALS IDA interface: backward-differentiation stepping with a Newton
// iteration per step, a finite-difference Jacobian factorized with gonum's
// LU, and event detection through root functions.
//
// An IDA instance owns private stepping state and must not be shared between
// concurrent solves; callers create one per integration.
type IDA struct {
	Res      ResidualFunc
	Roots    RootFunc
	NumRoots int

	// AlgebraicIdx lists the state indices with no differential equation.
	// Leaving it unset for a DAE destabilizes both the consistent
	// initialization and the local error test.
	AlgebraicIdx []int

	Opts *Options
}

// maxConvFails bounds consecutive Newton convergence failures before the
// solve is abandoned, matching the IDA MXNCF default.
const maxConvFails = 10

// NewIDA returns an integrator for the given residual function with default
// options.
func NewIDA(res ResidualFunc) *IDA {
	return &IDA{Res: res, Opts: DefaultOptions()}
}

// Solve integrates the system from tspan[0] to tspan[len-1], sampling the
// solution at the tspan points (or at every accepted internal step when
// ReportInternal is set). y0 and yp0 are the state and state-derivative
// guesses at tspan[0]; a consistent-initialization solve corrects yp0 and
// the algebraic components of y0 before stepping begins.
//
// Failures never panic: the returned Result carries Success=false, a
// negative Status, and the samples accumulated before the failure.
func (s *IDA) Solve(tspan []float64, y0, yp0 []float64) *Result {
	r := &Result{}
	opts := s.Opts
	if opts == nil {
		opts = DefaultOptions()
	}

	n := len(y0)
	if len(yp0) != n {
		return r.fail(StatusInitFail, fmt.Sprintf(
			"y0 and yp0 lengths differ (%d vs %d)", n, len(yp0)))
	}
	if len(tspan) < 2 {
		return r.fail(StatusInitFail, "tspan needs at least two samples")
	}
	for i := 1; i < len(tspan); i++ {
		if tspan[i] <= tspan[i-1] {
			return r.fail(StatusInitFail, "tspan must be strictly increasing")
		}
	}

	isAlg := make([]bool, n)
	for _, i := range s.AlgebraicIdx {
		if i < 0 || i >= n {
			return r.fail(StatusInitFail, fmt.Sprintf("algebraic index %d out of range", i))
		}
		isAlg[i] = true
	}

	t := tspan[0]
	y := append([]float64(nil), y0...)
	yp := append([]float64(nil), yp0...)

	if err := s.initConsistent(t, y, yp, isAlg, opts, r); err != nil {
		return r.fail(StatusInitFail, fmt.Sprintf("consistent initialization failed: %v", err))
	}
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

	nsteps := 0
	ncf := 0 // consecutive Newton convergence failures
	for k := 1; k < len(tspan); k++ {
		tout := tspan[k]
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

			ynew, ok := s.newtonStep(tnew, h, y, yp, isAlg, opts, r)
			if !ok {
				h *= 0.25
				if h < opts.MinStep {
					return r.fail(StatusStepSize, fmt.Sprintf(
						"step size fell below MinStep=%g at t=%g with the Newton iteration still failing",
						opts.MinStep, tnew))
				}
				if ncf++; ncf >= maxConvFails {
					return r.fail(StatusNewton, fmt.Sprintf(
						"Newton iteration failed to converge %d times in a row at t=%g",
						ncf, tnew))
				}
				continue
			}
			ncf = 0

			// Local error from the corrector-predictor difference;
			// algebraic slots have no meaningful predictor and are excluded.
			errNorm := 0.0
			for i := 0; i < n; i++ {
				if isAlg[i] {
					continue
				}
				pred := y[i] + h*yp[i]
				w := opts.Atol + opts.Rtol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
				e := 0.5 * math.Abs(ynew[i]-pred) / w
				if e > errNorm {
					errNorm = e
				}
			}

			if errNorm > 1 && h > opts.MinStep {
				fac := math.Max(0.1, 0.9*math.Sqrt(1/errNorm))
				h = math.Max(opts.MinStep, h*fac)
				continue
			}

			ypnew := make([]float64, n)
			for i := 0; i < n; i++ {
				ypnew[i] = (ynew[i] - y[i]) / h
			}
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

			t, y, yp = tnew, ynew, ypnew
			if hitOut || opts.ReportInternal {
				r.record(t, y, yp)
			}

			if errNorm > 0 {
				fac := 0.9 * math.Sqrt(1/errNorm)
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

	return r.finish(StatusDone, "The solver successfully reached the end of tspan.")
}

// initConsistent solves for the unknown initial values: the derivatives of
// the differential states and the algebraic components of y, holding the
// differential components of y fixed (the IDA "yp0" initialization).
func (s *IDA) initConsistent(t0 float64, y, yp []float64, isAlg []bool, opts *Options, r *Result) error {
	n := len(y)
	for i := 0; i < n; i++ {
		if isAlg[i] {
			yp[i] = 0
		}
	}

	g := make([]float64, n)
	gp := make([]float64, n)
	eval := func() {
		s.Res(t0, y, yp, g)
		r.NFev++
	}
	eval()

	tol := math.Max(1e-12, opts.Atol*1e-3)
	dx := mat.NewVecDense(n, nil)
	b := mat.NewVecDense(n, nil)

	for iter := 0; iter < 3*opts.MaxNewton; iter++ {
		if maxAbs(g) <= tol {
			return nil
		}

		// Jacobian with respect to the mixed unknowns.
		jac := mat.NewDense(n, n, nil)
		for j := 0; j < n; j++ {
			var save, delta float64
			if isAlg[j] {
				save = y[j]
				delta = fdDelta(save)
				y[j] = save + delta
			} else {
				save = yp[j]
				delta = fdDelta(save)
				yp[j] = save + delta
			}
			s.Res(t0, y, yp, gp)
			r.NFev++
			if isAlg[j] {
				y[j] = save
			} else {
				yp[j] = save
			}
			for i := 0; i < n; i++ {
				jac.Set(i, j, (gp[i]-g[i])/delta)
			}
		}
		r.NJev++

		var lu mat.LU
		lu.Factorize(jac)
		for i := 0; i < n; i++ {
			b.SetVec(i, -g[i])
		}
		if err := lu.SolveVecTo(dx, false, b); err != nil {
			if _, recoverable := err.(mat.Condition); !recoverable {
				return fmt.Errorf("singular initialization Jacobian: %w", err)
			}
		}
		for i := 0; i < n; i++ {
			if isAlg[i] {
				y[i] += dx.AtVec(i)
			} else {
				yp[i] += dx.AtVec(i)
			}
		}
		eval()
	}

	if maxAbs(g) <= tol {
		return nil
	}
	return fmt.Errorf("residual norm %g above tolerance %g", maxAbs(g), tol)
}

// newtonStep solves the backward-Euler equations
// res(tnew, v, (v-y)/h) = 0 for v, starting from the forward-Euler
// predictor. The Jacobian is built once per attempt (modified Newton).
func (s *IDA) newtonStep(tnew, h float64, y, yp []float64, isAlg []bool, opts *Options, r *Result) ([]float64, bool) {
	n := len(y)

	v := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = y[i] + h*yp[i]
	}

	g := make([]float64, n)
	gp := make([]float64, n)
	ypTmp := make([]float64, n)
	evalG := func(x, out []float64) {
		for i := 0; i < n; i++ {
			ypTmp[i] = (x[i] - y[i]) / h
		}
		s.Res(tnew, x, ypTmp, out)
		r.NFev++
	}
	evalG(v, g)
	if !allFinite(g) {
		return nil, false
	}

	jac := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		save := v[j]
		delta := fdDelta(save)
		v[j] = save + delta
		evalG(v, gp)
		v[j] = save
		for i := 0; i < n; i++ {
			jac.Set(i, j, (gp[i]-g[i])/delta)
		}
	}
	r.NJev++

	var lu mat.LU
	lu.Factorize(jac)
	dx := mat.NewVecDense(n, nil)
	b := mat.NewVecDense(n, nil)

	for iter := 0; iter < opts.MaxNewton; iter++ {
		for i := 0; i < n; i++ {
			b.SetVec(i, -g[i])
		}
		if err := lu.SolveVecTo(dx, false, b); err != nil {
			if _, recoverable := err.(mat.Condition); !recoverable {
				return nil, false
			}
		}
		maxw := 0.0
		for i := 0; i < n; i++ {
			v[i] += dx.AtVec(i)
			w := math.Abs(dx.AtVec(i)) / (opts.Atol + opts.Rtol*math.Abs(v[i]))
			if w > maxw {
				maxw = w
			}
		}
		evalG(v, g)
		if !allFinite(g) {
			return nil, false
		}
		if maxw < 0.33 {
			return v, true
		}
	}
	return nil, false
}

func fdDelta(x float64) float64 {
	return 1e-7 * math.Max(math.Abs(x), 0.1)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
