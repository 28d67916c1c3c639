package solver

import "math"

// firstCrossing returns the index of the first root that changed sign (or
// landed exactly on zero) between two evaluations, or -1.
//
// A root that was already exactly zero at the previous evaluation is not a
// crossing: a gauge sitting on its threshold at the start of a step stays
// quiet until it moves off the threshold and comes back, the same convention
// the SUNDIALS rootfinder follows. This keeps a limit from firing at t=0 of
// a step that begins exactly where the previous step's limit ended it.
func firstCrossing(prev, cur []float64) int {
	for i := range prev {
		if prev[i] == 0 {
			continue
		}
		if cur[i] == 0 || (prev[i] < 0) != (cur[i] < 0) {
			return i
		}
	}
	return -1
}

// locateCrossing bisects the crossing of root idx inside one accepted step,
// interpolating the state linearly between the step endpoints. It returns
// the first interpolated sample at or past the crossing.
func locateCrossing(roots RootFunc, nroots, idx int, t0, t1 float64, y0, y1, yp0, yp1 []float64, g0 float64) (float64, []float64, []float64) {
	n := len(y0)
	out := make([]float64, nroots)
	yi := make([]float64, n)
	ypi := make([]float64, n)

	evalAt := func(th float64) float64 {
		for i := 0; i < n; i++ {
			yi[i] = y0[i] + th*(y1[i]-y0[i])
			ypi[i] = yp0[i] + th*(yp1[i]-yp0[i])
		}
		roots(t0+th*(t1-t0), yi, ypi, out)
		return out[idx]
	}

	lo, hi := 0.0, 1.0
	glo := g0
	for iter := 0; iter < 80; iter++ {
		if (t1-t0)*(hi-lo) < 1e-12*math.Max(1, math.Abs(t1)) {
			break
		}
		mid := 0.5 * (lo + hi)
		gm := evalAt(mid)
		if gm == 0 {
			hi = mid
			break
		}
		if (glo < 0) == (gm < 0) {
			lo, glo = mid, gm
		} else {
			hi = mid
		}
	}

	te := t0 + hi*(t1-t0)
	evalAt(hi)
	return te, append([]float64(nil), yi...), append([]float64(nil), ypi...)
}
