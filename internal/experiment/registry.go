package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/integrators"
)

type SolverFactory func(cfg dynamo.SolveConfig) dynamo.Solver

type Registry struct {
	solvers map[string]SolverFactory
}

func NewRegistry() *Registry {
	r := &Registry{solvers: make(map[string]SolverFactory)}

	r.solvers["rk45"] = func(cfg dynamo.SolveConfig) dynamo.Solver {
		return integrators.NewAdaptive(cfg)
	}
	r.solvers["rk4"] = func(cfg dynamo.SolveConfig) dynamo.Solver {
		return integrators.NewFixedStep(integrators.NewRK4(), fixedStep(cfg))
	}
	r.solvers["euler"] = func(cfg dynamo.SolveConfig) dynamo.Solver {
		return integrators.NewFixedStep(integrators.NewEuler(), fixedStep(cfg))
	}
	return r
}

// fixedStep is the sub-step used by the fixed-step solvers: InitialStep when
// set, else MaxStep.
func fixedStep(cfg dynamo.SolveConfig) float64 {
	if cfg.InitialStep > 0 {
		return cfg.InitialStep
	}
	if cfg.MaxStep > 0 {
		return cfg.MaxStep
	}
	return dynamo.DefaultSolveConfig().InitialStep
}

// SolverOption validates name and returns an Option that gives every
// descriptor its own solver instance.
func (r *Registry) SolverOption(name string, cfg dynamo.SolveConfig) (Option, error) {
	f, ok := r.solvers[name]
	if !ok {
		return nil, &ConfigError{Field: "solver", Reason: fmt.Sprintf("unknown solver %q (have %v)", name, r.ListSolvers())}
	}
	return WithSolverFunc(func() dynamo.Solver { return f(cfg) }), nil
}

func (r *Registry) ListSolvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListModels() []string {
	names := make([]string, len(epi.Variants))
	for i, v := range epi.Variants {
		names[i] = v.String()
	}
	return names
}
