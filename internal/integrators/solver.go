package integrators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// counted wraps a System and counts derivative evaluations.
type counted struct {
	dynamo.System
	n int
}

func (c *counted) Derive(x dynamo.State, t float64) dynamo.State {
	c.n++
	return c.System.Derive(x, t)
}

func begin(sys dynamo.System, x0 dynamo.State, grid []float64) (*dynamo.Trajectory, error) {
	if err := dynamo.ValidateGrid(grid); err != nil {
		return nil, err
	}
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("%w: state has %d values, system expects %d", dynamo.ErrDimensionMismatch, len(x0), sys.StateDim())
	}
	if !x0.IsValid() {
		return nil, &dynamo.SimulationError{Step: 0, Time: grid[0], State: x0.Clone(), Wrapped: dynamo.ErrInvalidState}
	}

	traj := &dynamo.Trajectory{
		Times:  make([]float64, 0, len(grid)),
		States: make([]dynamo.State, 0, len(grid)),
	}
	traj.Times = append(traj.Times, grid[0])
	traj.States = append(traj.States, x0.Clone())
	return traj, nil
}

func canceled(ctx context.Context, step int, t float64, x dynamo.State) error {
	select {
	case <-ctx.Done():
		return &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: errors.Join(dynamo.ErrContextCanceled, ctx.Err())}
	default:
		return nil
	}
}

// FixedStep integrates with a constant-size stepper, splitting each grid
// interval into equal sub-steps no longer than MaxStep.
type FixedStep struct {
	Stepper dynamo.Stepper
	MaxStep float64
}

func NewFixedStep(stepper dynamo.Stepper, maxStep float64) *FixedStep {
	return &FixedStep{Stepper: stepper, MaxStep: maxStep}
}

// Clone returns a solver with its own copy of the stepper. Steppers from other
// packages are reused as is and must not keep per-step state.
func (f *FixedStep) Clone() dynamo.Solver {
	stepper := f.Stepper
	switch s := stepper.(type) {
	case *RK45:
		stepper = s.Clone()
	case *Explicit:
		stepper = s.Clone()
	}
	return &FixedStep{Stepper: stepper, MaxStep: f.MaxStep}
}

func (f *FixedStep) Solve(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid []float64) (*dynamo.Trajectory, error) {
	if f.MaxStep <= 0 || math.IsNaN(f.MaxStep) {
		return nil, fmt.Errorf("fixed step: max step must be positive, got %g", f.MaxStep)
	}
	traj, err := begin(sys, x0, grid)
	if err != nil {
		return nil, err
	}

	cs := &counted{System: sys}
	x := x0.Clone()
	step := 0

	for i := 1; i < len(grid); i++ {
		t := grid[i-1]
		if err := canceled(ctx, step, t, x); err != nil {
			return traj, err
		}

		span := grid[i] - t
		n := int(math.Ceil(span / f.MaxStep))
		if n < 1 {
			n = 1
		}
		h := span / float64(n)

		for j := 0; j < n; j++ {
			x = f.Stepper.Step(cs, x, t, h)
			step++
			if !x.IsValid() {
				traj.Stats = dynamo.Stats{Steps: step, Evaluations: cs.n}
				return traj, &dynamo.SimulationError{Step: step, Time: t + h, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
			}
			t = grid[i-1] + float64(j+1)*h
		}

		traj.Times = append(traj.Times, grid[i])
		traj.States = append(traj.States, x.Clone())
	}

	traj.Stats = dynamo.Stats{Steps: step, Evaluations: cs.n}
	return traj, nil
}

// Adaptive integrates with an error-controlled stepper and never steps past a
// grid point, so samples are exact solver states rather than interpolations.
type Adaptive struct {
	Stepper dynamo.AdaptiveStepper
	Config  dynamo.SolveConfig
}

func NewAdaptive(cfg dynamo.SolveConfig) *Adaptive {
	return &Adaptive{Stepper: NewRK45(), Config: cfg}
}

// Clone returns a solver with the same configuration and, for the RK45
// stepper, its own stage buffers.
func (a *Adaptive) Clone() dynamo.Solver {
	stepper := a.Stepper
	if s, ok := stepper.(*RK45); ok {
		stepper = s.Clone()
	}
	return &Adaptive{Stepper: stepper, Config: a.Config}
}

func (a *Adaptive) Solve(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid []float64) (*dynamo.Trajectory, error) {
	traj, err := begin(sys, x0, grid)
	if err != nil {
		return nil, err
	}

	cfg := a.Config
	def := dynamo.DefaultSolveConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.MinStep <= 0 {
		cfg.MinStep = def.MinStep
	}
	if cfg.InitialStep <= 0 {
		cfg.InitialStep = def.InitialStep
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = math.Inf(1)
	}
	if cfg.Tolerance.Abs <= 0 && cfg.Tolerance.Rel <= 0 {
		cfg.Tolerance = def.Tolerance
	}

	cs := &counted{System: sys}
	x := x0.Clone()
	t := grid[0]
	h := math.Min(cfg.InitialStep, cfg.MaxStep)
	stats := dynamo.Stats{}

	fail := func(wrapped error) error {
		stats.Evaluations = cs.n
		traj.Stats = stats
		return &dynamo.SimulationError{Step: stats.Steps, Time: t, State: x.Clone(), Wrapped: wrapped}
	}

	for i := 1; i < len(grid); i++ {
		if err := canceled(ctx, stats.Steps, t, x); err != nil {
			return traj, err
		}

		target := grid[i]
		for t < target {
			if stats.Steps+stats.Rejected >= cfg.MaxSteps {
				return traj, fail(dynamo.ErrMaxSteps)
			}

			last := false
			dt := h
			if t+dt >= target {
				dt = target - t
				last = true
			}

			xNew, hNext, err := a.Stepper.StepAdaptive(cs, x, t, dt, cfg.Tolerance)
			if errors.Is(err, dynamo.ErrStepRejected) {
				stats.Rejected++
				h = hNext
				if h < cfg.MinStep {
					return traj, fail(dynamo.ErrStepTooSmall)
				}
				continue
			}
			if err != nil {
				return traj, fail(err)
			}
			if !xNew.IsValid() {
				return traj, fail(dynamo.ErrInvalidState)
			}

			x = xNew
			stats.Steps++
			if last {
				t = target
			} else {
				t += dt
			}
			// A step shortened to land on the grid says nothing about the next interval.
			if !last {
				h = math.Min(hNext, cfg.MaxStep)
			}
		}

		traj.Times = append(traj.Times, grid[i])
		traj.States = append(traj.States, x.Clone())
	}

	stats.Evaluations = cs.n
	traj.Stats = stats
	return traj, nil
}
