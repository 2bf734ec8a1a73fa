package integrators

import "github.com/san-kum/episim/internal/dynamo"

// Tableau holds the coefficients of an explicit Runge-Kutta method. A is
// strictly lower triangular and stored by row: A[i] has i entries.
type Tableau struct {
	Name string
	A    [][]float64
	B    []float64
	C    []float64
}

// Stages is the number of derivative evaluations per step.
func (t Tableau) Stages() int { return len(t.B) }

var (
	euler = Tableau{
		Name: "euler",
		A:    [][]float64{{}},
		B:    []float64{1},
		C:    []float64{0},
	}
	rk4 = Tableau{
		Name: "rk4",
		A: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		B: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		C: []float64{0, 0.5, 0.5, 1},
	}
)

// Explicit steps any explicit Runge-Kutta tableau. Stage buffers are reused
// across steps, so one Explicit must not be shared between goroutines.
type Explicit struct {
	tab     Tableau
	k       []dynamo.State
	scratch dynamo.State
}

func NewExplicit(tab Tableau) *Explicit {
	return &Explicit{tab: tab}
}

// NewEuler is the first-order forward Euler method.
func NewEuler() *Explicit { return NewExplicit(euler) }

// NewRK4 is the classic fourth-order Runge-Kutta method.
func NewRK4() *Explicit { return NewExplicit(rk4) }

func (e *Explicit) Name() string { return e.tab.Name }

// Clone returns a stepper with the same tableau and its own stage buffers.
func (e *Explicit) Clone() *Explicit { return NewExplicit(e.tab) }

func (e *Explicit) ensureScratch(n int) {
	if len(e.scratch) == n && len(e.k) == e.tab.Stages() {
		return
	}
	e.k = make([]dynamo.State, e.tab.Stages())
	for i := range e.k {
		e.k[i] = make(dynamo.State, n)
	}
	e.scratch = make(dynamo.State, n)
}

func (e *Explicit) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	e.evalStages(sys, x, t, dt)
	return e.combine(x, e.tab.B, dt)
}

// evalStages fills e.k with the stage derivatives of one step from (t, x).
func (e *Explicit) evalStages(sys dynamo.System, x dynamo.State, t, dt float64) {
	n := len(x)
	e.ensureScratch(n)

	for s, row := range e.tab.A {
		copy(e.scratch, x)
		for j, a := range row {
			if a == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				e.scratch[i] += dt * a * e.k[j][i]
			}
		}
		copy(e.k[s], sys.Derive(e.scratch, t+e.tab.C[s]*dt))
	}
}

// combine returns base + dt * sum(w[s] * k[s]). A nil base means zero.
func (e *Explicit) combine(base dynamo.State, w []float64, dt float64) dynamo.State {
	out := make(dynamo.State, len(e.scratch))
	copy(out, base)
	for s, b := range w {
		if b == 0 {
			continue
		}
		for i := range out {
			out[i] += dt * b * e.k[s][i]
		}
	}
	return out
}
