package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/episim/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func TestRK45_Step(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}
	dt := 0.01

	for i := 0; i < 1000; i++ {
		x = integrator.Step(dyn, x, float64(i)*dt, dt)
	}

	if !x.IsValid() {
		t.Error("RK45 produced invalid state")
	}
}

func TestRK45_EnergyConservation(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	initialEnergy := dyn.Energy(x0)
	x := x0.Clone()
	dt := 0.01

	for i := 0; i < 10000; i++ {
		x = integrator.Step(dyn, x, float64(i)*dt, dt)
	}

	drift := math.Abs(dyn.Energy(x)-initialEnergy) / initialEnergy
	if drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45_AdaptiveStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1.0, 0.0}

	x, newDt, err := integrator.StepAdaptive(dyn, x0, 0, 0.1, dynamo.Tolerance{Abs: 1e-8, Rel: 1e-8})
	if err != nil && !errors.Is(err, dynamo.ErrStepRejected) {
		t.Errorf("StepAdaptive returned error: %v", err)
	}
	if !x.IsValid() {
		t.Error("StepAdaptive produced invalid state")
	}
	if newDt <= 0 {
		t.Errorf("StepAdaptive returned invalid dt: %f", newDt)
	}
}

func TestRK45_RejectsLargeStep(t *testing.T) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}

	_, newDt, err := integrator.StepAdaptive(dyn, dynamo.State{1, 0}, 0, 5.0, dynamo.Tolerance{Abs: 1e-12, Rel: 1e-12})
	if !errors.Is(err, dynamo.ErrStepRejected) {
		t.Fatalf("expected ErrStepRejected, got %v", err)
	}
	if newDt >= 5.0 {
		t.Errorf("rejected step should shrink dt, got %f", newDt)
	}
}

// halfFrozen decays its first component and leaves the second untouched.
type halfFrozen struct{}

func (halfFrozen) StateDim() int { return 2 }

func (halfFrozen) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-x[0], 0}
}

func TestRK45_RelativeToleranceWithZeroComponent(t *testing.T) {
	tol := dynamo.Tolerance{Rel: 1e-8}

	x, _, err := NewRK45().StepAdaptive(halfFrozen{}, dynamo.State{1, 0}, 0, 0.1, tol)
	if err != nil && !errors.Is(err, dynamo.ErrStepRejected) {
		t.Fatalf("StepAdaptive: %v", err)
	}
	if !x.IsValid() {
		t.Fatalf("invalid state %v", x)
	}

	cfg := dynamo.DefaultSolveConfig()
	cfg.Tolerance = tol
	traj, err := NewAdaptive(cfg).Solve(context.Background(), halfFrozen{}, dynamo.State{1, 0}, dynamo.Linspace(0, 1, 11))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	final := traj.Final()
	if math.Abs(final[0]-math.Exp(-1)) > 1e-6 || final[1] != 0 {
		t.Errorf("final state %v", final)
	}
}
