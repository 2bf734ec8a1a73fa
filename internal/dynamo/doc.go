// Package dynamo provides core numeric primitives for compartmental simulations.
//
// The package defines the fundamental interfaces and types for numerical
// integration of ordinary differential equations (ODEs):
//
//   - [State]: vector of compartment values
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Stepper]: single-step numerical integrator
//   - [Solver]: integrates a [System] over a time grid into a [Trajectory]
//
// # Example
//
//	grid := dynamo.Linspace(0, 160, 161)
//	traj, err := integrators.NewAdaptive(dynamo.DefaultSolveConfig()).Solve(ctx, sys, x0, grid)
//
// # Thread Safety
//
// Systems are expected to be pure, so a single [System] value may be shared by
// concurrent solves. Steppers carry scratch buffers and are NOT thread-safe; use
// one solver per goroutine, or [RunParallel] which keeps runs independent.
package dynamo
