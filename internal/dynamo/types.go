package dynamo

import (
	"context"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is an autonomous or time-dependent ODE right-hand side.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Stepper interface {
	Step(sys System, x State, t, dt float64) State
}

// AdaptiveStepper performs one error-controlled step. It returns the proposed
// state, the suggested next step size, and ErrStepRejected when the local error
// exceeds the tolerance.
type AdaptiveStepper interface {
	Stepper
	StepAdaptive(sys System, x State, t, dt float64, tol Tolerance) (State, float64, error)
}

// Solver integrates sys from x0 over grid and samples the solution at every grid point.
type Solver interface {
	Solve(ctx context.Context, sys System, x0 State, grid []float64) (*Trajectory, error)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Tolerance struct {
	Abs float64
	Rel float64
}

type SolveConfig struct {
	Tolerance   Tolerance
	InitialStep float64
	MinStep     float64
	MaxStep     float64
	MaxSteps    int
}

func DefaultSolveConfig() SolveConfig {
	return SolveConfig{
		Tolerance:   Tolerance{Abs: 1e-8, Rel: 1e-8},
		InitialStep: 0.1,
		MinStep:     1e-10,
		MaxStep:     1.0,
		MaxSteps:    1_000_000,
	}
}

type Stats struct {
	Steps       int `json:"steps"`
	Rejected    int `json:"rejected"`
	Evaluations int `json:"evaluations"`
}

// Trajectory is the sampled solution: States[i] is the state at Times[i].
type Trajectory struct {
	Times  []float64
	States []State
	Labels []string
	Stats  Stats
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Series returns compartment idx across all samples.
func (tr *Trajectory) Series(idx int) []float64 {
	out := make([]float64, len(tr.States))
	for i, s := range tr.States {
		if idx < len(s) {
			out[i] = s[idx]
		}
	}
	return out
}

// Final returns the last sampled state, or nil for an empty trajectory.
func (tr *Trajectory) Final() State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

func (tr *Trajectory) Clone() *Trajectory {
	c := &Trajectory{
		Times:  append([]float64(nil), tr.Times...),
		States: make([]State, len(tr.States)),
		Labels: append([]string(nil), tr.Labels...),
		Stats:  tr.Stats,
	}
	for i, s := range tr.States {
		c.States[i] = s.Clone()
	}
	return c
}

// Metric accumulates a scalar over the samples of a trajectory.
type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}
