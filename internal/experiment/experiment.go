package experiment

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/integrators"
	"github.com/san-kum/episim/internal/logger"
	"github.com/san-kum/episim/internal/metrics"
)

type Phase int

const (
	Configured Phase = iota
	Running
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

const (
	DefaultConservationTol = 1e-6
	DefaultNegativeTol     = 1e-9
)

type Option func(*Experiment)

// WithSolver replaces the default adaptive solver with s. A solver carries
// scratch buffers, so descriptors derived through With get a clone of s, and
// With fails for solvers that cannot be cloned. Use WithSolverFunc to build
// one solver per descriptor.
func WithSolver(s dynamo.Solver) Option {
	return func(e *Experiment) {
		if s != nil {
			e.solver = s
			e.sharedSolver = true
		}
	}
}

// WithSolverFunc builds a new solver for every descriptor configured with it,
// including those derived through With.
func WithSolverFunc(fn func() dynamo.Solver) Option {
	return func(e *Experiment) {
		if fn != nil {
			e.solver = fn()
			e.sharedSolver = false
		}
	}
}

// WithClampNegative zeros negative compartment values in the returned trajectory.
func WithClampNegative() Option {
	return func(e *Experiment) { e.clamp = true }
}

func WithConservationTol(tol float64) Option {
	return func(e *Experiment) { e.conservationTol = tol }
}

func WithNegativeTol(tol float64) Option {
	return func(e *Experiment) { e.negativeTol = tol }
}

// WithName labels the experiment in logs and reports.
func WithName(name string) Option {
	return func(e *Experiment) { e.name = name }
}

// Experiment is a validated run descriptor. It owns copies of its inputs and
// runs at most once.
type Experiment struct {
	name    string
	variant epi.Variant
	params  map[string]float64
	initial dynamo.State
	grid    []float64

	model        epi.Model
	solver       dynamo.Solver
	sharedSolver bool

	clamp           bool
	conservationTol float64
	negativeTol     float64

	mu    sync.Mutex
	phase Phase
	opts  []Option
}

// Configure validates the inputs for variant v and returns a descriptor in the
// Configured phase. params overrides the variant defaults.
func Configure(v epi.Variant, params map[string]float64, initial []float64, grid []float64, opts ...Option) (*Experiment, error) {
	contract, err := v.Contract()
	if err != nil {
		return nil, &ConfigError{Variant: v, Field: "model", Reason: err.Error(), Err: epi.ErrUnknownVariant}
	}

	merged := v.Defaults()
	for name, value := range params {
		if _, ok := merged[name]; !ok {
			return nil, &ConfigError{Variant: v, Field: "params." + name, Reason: "unknown parameter", Err: epi.ErrUnknownParam}
		}
		merged[name] = value
	}
	for _, p := range contract.Params {
		if err := checkParam(p, merged[p.Name]); err != nil {
			return nil, &ConfigError{Variant: v, Field: "params." + p.Name, Reason: err.Error()}
		}
	}

	if err := checkState(v, contract, initial); err != nil {
		return nil, err
	}
	if err := dynamo.ValidateGrid(grid); err != nil {
		return nil, &ConfigError{Variant: v, Field: "time_grid", Reason: err.Error(), Err: err}
	}

	model, err := epi.New(v, merged)
	if err != nil {
		return nil, &ConfigError{Variant: v, Field: "params", Reason: err.Error(), Err: err}
	}

	e := &Experiment{
		name:            v.String(),
		variant:         v,
		params:          merged,
		initial:         dynamo.State(initial).Clone(),
		grid:            append([]float64(nil), grid...),
		model:           model,
		conservationTol: DefaultConservationTol,
		negativeTol:     DefaultNegativeTol,
		phase:           Configured,
		opts:            opts,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.solver == nil {
		e.solver = integrators.NewAdaptive(dynamo.DefaultSolveConfig())
	}
	return e, nil
}

func checkParam(p epi.ParamSpec, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("must be finite, got %g", value)
	}
	switch p.Kind {
	case epi.Progression:
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %g", p.Description, value)
		}
	default:
		if value < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", p.Description, value)
		}
	}
	return nil
}

func checkState(v epi.Variant, c epi.Contract, initial []float64) error {
	if len(initial) != len(c.Compartments) {
		return &ConfigError{
			Variant: v,
			Field:   "initial_state",
			Reason:  fmt.Sprintf("expected %d values %v, got %d", len(c.Compartments), c.Compartments, len(initial)),
			Err:     dynamo.ErrDimensionMismatch,
		}
	}
	for i, x := range initial {
		field := "initial_state." + c.Compartments[i]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &ConfigError{Variant: v, Field: field, Reason: fmt.Sprintf("must be finite, got %g", x), Err: dynamo.ErrInvalidState}
		}
		if x < 0 {
			return &ConfigError{Variant: v, Field: field, Reason: fmt.Sprintf("must be non-negative, got %g", x)}
		}
	}
	host := 0.0
	for _, i := range c.Groups[0] {
		host += initial[i]
	}
	if host <= 0 {
		return &ConfigError{Variant: v, Field: "initial_state", Reason: fmt.Sprintf("%s population is empty", c.Names[0])}
	}
	return nil
}

func (e *Experiment) Name() string             { return e.name }
func (e *Experiment) Variant() epi.Variant     { return e.variant }
func (e *Experiment) Model() epi.Model         { return e.model }
func (e *Experiment) Initial() dynamo.State    { return e.initial.Clone() }
func (e *Experiment) Grid() []float64          { return append([]float64(nil), e.grid...) }
func (e *Experiment) Labels() []string         { return e.variant.Compartments() }
func (e *Experiment) Solver() dynamo.Solver    { return e.solver }
func (e *Experiment) ConservationTol() float64 { return e.conservationTol }
func (e *Experiment) Params() map[string]float64 {
	out := make(map[string]float64, len(e.params))
	for k, v := range e.params {
		out[k] = v
	}
	return out
}

func (e *Experiment) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// cloner is implemented by solvers that can hand out independent copies of
// themselves.
type cloner interface {
	Clone() dynamo.Solver
}

// With returns a fresh descriptor with the given parameters overridden and the
// same options. The new descriptor never shares a solver instance with e.
func (e *Experiment) With(params map[string]float64) (*Experiment, error) {
	merged := e.Params()
	for k, v := range params {
		merged[k] = v
	}
	opts := e.opts
	if e.sharedSolver {
		c, ok := e.solver.(cloner)
		if !ok {
			return nil, &ConfigError{
				Variant: e.variant,
				Field:   "solver",
				Reason:  fmt.Sprintf("%T cannot be cloned; configure with WithSolverFunc", e.solver),
				Err:     ErrSharedSolver,
			}
		}
		opts = append(append([]Option(nil), e.opts...), WithSolverFunc(c.Clone))
	}
	return Configure(e.variant, merged, e.initial, e.grid, opts...)
}

func (e *Experiment) transition(from, to Phase) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != from {
		return fmt.Errorf("%w: %s is %s, want %s", ErrPhase, e.name, e.phase, from)
	}
	e.phase = to
	return nil
}

// Run integrates the configured model over the grid. It may be called once.
func (e *Experiment) Run(ctx context.Context) (*dynamo.Trajectory, error) {
	if err := e.transition(Configured, Running); err != nil {
		return nil, err
	}

	logger.Debug("run start", "experiment", e.name, "model", e.variant, "points", len(e.grid))
	start := time.Now()

	traj, err := e.solver.Solve(ctx, e.model, e.initial.Clone(), e.grid)
	if err != nil {
		e.setPhase(Failed)
		logger.Error("run failed", "experiment", e.name, "err", err)
		return nil, &SimulationError{Variant: e.variant, Err: err}
	}
	traj.Labels = e.variant.Compartments()

	e.inspect(traj)
	e.setPhase(Completed)

	logger.Info("run complete",
		"experiment", e.name,
		"steps", traj.Stats.Steps,
		"rejected", traj.Stats.Rejected,
		"evals", traj.Stats.Evaluations,
		"elapsed", time.Since(start).Round(time.Microsecond),
	)
	return traj, nil
}

func (e *Experiment) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// inspect logs negative samples and conservation drift, clamping if asked.
func (e *Experiment) inspect(traj *dynamo.Trajectory) {
	neg := metrics.NewNegatives(e.negativeTol)
	drifts := e.drifts()
	ms := []dynamo.Metric{neg}
	for _, d := range drifts {
		ms = append(ms, d)
	}
	metrics.Observe(traj, ms...)

	if neg.Count() > 0 {
		logger.Warn("negative compartment values", "experiment", e.name, "samples", neg.Count(), "clamped", e.clamp)
	}
	for _, d := range drifts {
		if d.Value() > e.conservationTol {
			logger.Warn("conservation drift", "experiment", e.name, "species", d.Species().Name, "drift", d.Value(), "tol", e.conservationTol)
		}
	}

	if !e.clamp {
		return
	}
	for _, x := range traj.States {
		for i, v := range x {
			if v < 0 {
				x[i] = 0
			}
		}
	}
}

func (e *Experiment) drifts() []*metrics.Drift {
	species := e.model.Species()
	out := make([]*metrics.Drift, len(species))
	for i, sp := range species {
		out[i] = metrics.NewDrift(sp)
	}
	return out
}

// RunAll runs independent experiments concurrently and returns their
// trajectories in input order. The first failure cancels the rest.
func RunAll(ctx context.Context, exps []*Experiment) ([]*dynamo.Trajectory, error) {
	out := make([]*dynamo.Trajectory, len(exps))
	err := dynamo.Parallel(ctx, len(exps), 0, func(ctx context.Context, i int) error {
		traj, err := exps[i].Run(ctx)
		if err != nil {
			return err
		}
		out[i] = traj
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
