package integrators

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// dormandPrince is the Dormand-Prince 5(4) pair. The seventh stage is evaluated
// at the fifth-order solution (its A row equals B), which gives the embedded
// error estimate.
var dormandPrince = Tableau{
	Name: "rk45",
	A: [][]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	},
	B: []float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0},
	C: []float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1},
}

// fourth-order weights of the pair
var dormandPrinceLow = []float64{5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640, -92097.0 / 339200, 187.0 / 2100, 1.0 / 40}

// RK45 is an Explicit Dormand-Prince stepper with error control.
type RK45 struct {
	*Explicit
	errWeights []float64

	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	e := make([]float64, len(dormandPrince.B))
	for i := range e {
		e[i] = dormandPrince.B[i] - dormandPrinceLow[i]
	}
	return &RK45{
		Explicit:   NewExplicit(dormandPrince),
		errWeights: e,
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
	}
}

// Clone returns a stepper with the same step control and its own stage buffers.
func (r *RK45) Clone() *RK45 {
	c := *r
	c.Explicit = r.Explicit.Clone()
	return &c
}

// StepAdaptive takes one fifth-order step and scales the next step size by the
// mixed absolute/relative error norm.
func (r *RK45) StepAdaptive(sys dynamo.System, x dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.State, float64, error) {
	if tol.Abs <= 0 && tol.Rel <= 0 {
		tol = dynamo.DefaultSolveConfig().Tolerance
	}

	r.evalStages(sys, x, t, dt)
	xNew := r.combine(x, r.tab.B, dt)
	errEst := r.combine(nil, r.errWeights, dt)

	errMax := 0.0
	for i := range x {
		scale := tol.Abs + tol.Rel*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		if scale == 0 {
			// Pure relative control on a zero component: only an exact zero passes.
			if errEst[i] != 0 {
				errMax = math.Inf(1)
			}
			continue
		}
		errMax = math.Max(errMax, math.Abs(errEst[i])/scale)
	}

	if math.IsNaN(errMax) {
		return xNew, dt * r.minScale, dynamo.ErrStepRejected
	}

	if errMax > 1 {
		scale := math.Max(r.minScale, r.safety*math.Pow(errMax, -0.25))
		return xNew, dt * scale, dynamo.ErrStepRejected
	}

	if errMax == 0 {
		return xNew, dt * r.maxScale, nil
	}
	scale := math.Min(r.maxScale, r.safety*math.Pow(errMax, -0.2))
	return xNew, dt * scale, nil
}
