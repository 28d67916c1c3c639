package solver

// Integration statuses. Non-negative statuses are successful terminations;
// negative statuses are failures. Consumers must store these raw rather than
// reinterpret them.
const (
	StatusDone     = 0  // reached the end of the output span
	StatusTstop    = 1  // stopped at a hard time limit
	StatusEvent    = 2  // a root function crossed zero
	StatusMaxSteps = -1 // step budget exhausted
	StatusNewton   = -2 // Newton iteration failed to converge
	StatusInitFail = -3 // consistent initialization failed
	StatusStepSize = -4 // step size driven below MinStep
)

// Result is the raw output of one integration: the sampled trajectory, its
// time derivatives, any detected events, and solver telemetry. Failures are
// reported through Success/Status/Message, never panics; the samples
// accumulated before the failure are retained.
type Result struct {
	Success bool
	Status  int
	Message string

	T  []float64
	Y  [][]float64
	YP [][]float64

	// Event capture: for each detected root crossing, the root index and
	// the interpolated time, state, and state derivative.
	IEvents  []int
	TEvents  []float64
	YEvents  [][]float64
	YPEvents [][]float64

	NFev int // residual/derivative evaluations
	NJev int // Jacobian factorizations
}

// Final returns copies of the terminal state and state derivative, or nil
// slices when nothing was recorded.
func (r *Result) Final() (y, yp []float64) {
	if len(r.Y) == 0 {
		return nil, nil
	}
	last := len(r.Y) - 1
	y = append([]float64(nil), r.Y[last]...)
	yp = append([]float64(nil), r.YP[last]...)
	return y, yp
}

func (r *Result) record(t float64, y, yp []float64) {
	r.T = append(r.T, t)
	r.Y = append(r.Y, append([]float64(nil), y...))
	r.YP = append(r.YP, append([]float64(nil), yp...))
}

func (r *Result) recordEvent(idx int, t float64, y, yp []float64) {
	r.IEvents = append(r.IEvents, idx)
	r.TEvents = append(r.TEvents, t)
	r.YEvents = append(r.YEvents, append([]float64(nil), y...))
	r.YPEvents = append(r.YPEvents, append([]float64(nil), yp...))
}

func (r *Result) fail(status int, message string) *Result {
	r.Success = false
	r.Status = status
	r.Message = message
	return r
}

func (r *Result) finish(status int, message string) *Result {
	r.Success = true
	r.Status = status
	r.Message = message
	return r
}
