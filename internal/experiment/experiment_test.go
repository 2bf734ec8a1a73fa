package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/integrators"
)

type stubSolver struct {
	traj *dynamo.Trajectory
	err  error
}

func (s *stubSolver) Solve(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid []float64) (*dynamo.Trajectory, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.traj.Clone(), nil
}

func sirGrid() []float64 { return dynamo.DailyGrid(160) }

func TestConfigureRejects(t *testing.T) {
	tests := []struct {
		name    string
		variant epi.Variant
		params  map[string]float64
		initial []float64
		grid    []float64
		field   string
		is      error
	}{
		{"unknown model", epi.Variant("sis"), nil, []float64{1, 0, 0}, sirGrid(), "model", epi.ErrUnknownVariant},
		{"dimension", epi.VariantSIR, nil, []float64{999, 1}, sirGrid(), "initial_state", dynamo.ErrDimensionMismatch},
		{"negative compartment", epi.VariantSIR, nil, []float64{999, -1, 0}, sirGrid(), "initial_state.I", nil},
		{"non-finite compartment", epi.VariantSEIR, nil, []float64{999, math.NaN(), 1, 0}, sirGrid(), "initial_state.E", dynamo.ErrInvalidState},
		{"empty host", epi.VariantSIR, nil, []float64{0, 0, 0}, sirGrid(), "initial_state", nil},
		{"empty human host", epi.VariantSEIC, nil, []float64{0, 0, 0, 0, 100, 0, 1, 10, 1}, sirGrid(), "initial_state", nil},
		{"unknown param", epi.VariantSIR, map[string]float64{"delta": 1}, []float64{999, 1, 0}, sirGrid(), "params.delta", epi.ErrUnknownParam},
		{"zero recovery", epi.VariantSIR, map[string]float64{"gamma": 0}, []float64{999, 1, 0}, sirGrid(), "params.gamma", nil},
		{"negative transmission", epi.VariantSEIC, map[string]float64{"beta_va": -0.1}, epi.VariantSEIC.DefaultState(), sirGrid(), "params.beta_va", nil},
		{"negative mortality", epi.VariantSEIC, map[string]float64{"mu_v": -1}, epi.VariantSEIC.DefaultState(), sirGrid(), "params.mu_v", nil},
		{"infinite param", epi.VariantSEIR, map[string]float64{"beta": math.Inf(1)}, []float64{999, 0, 1, 0}, sirGrid(), "params.beta", nil},
		{"short grid", epi.VariantSIR, nil, []float64{999, 1, 0}, []float64{0}, "time_grid", dynamo.ErrGrid},
		{"decreasing grid", epi.VariantSIR, nil, []float64{999, 1, 0}, []float64{0, 2, 1}, "time_grid", dynamo.ErrGrid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Configure(tt.variant, tt.params, tt.initial, tt.grid)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)

			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
			assert.Equal(t, tt.variant, cerr.Variant)
			assert.NotEmpty(t, cerr.Reason)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestConfigureAcceptsZeroTransmission(t *testing.T) {
	_, err := Configure(epi.VariantSIR, map[string]float64{"beta": 0}, []float64{999, 1, 0}, sirGrid())
	assert.NoError(t, err)

	_, err = Configure(epi.VariantSEIC, map[string]float64{"mu_v": 0, "lambda_v": 0}, epi.VariantSEIC.DefaultState(), sirGrid())
	assert.NoError(t, err)
}

func TestConfigureCopiesInputs(t *testing.T) {
	params := map[string]float64{"beta": 0.3}
	initial := []float64{999, 1, 0}
	grid := sirGrid()

	e, err := Configure(epi.VariantSIR, params, initial, grid)
	require.NoError(t, err)

	params["beta"] = 5
	initial[1] = 500
	grid[1] = 0.5

	assert.Equal(t, 0.3, e.Params()["beta"])
	assert.Equal(t, 0.1, e.Params()["gamma"])
	assert.Equal(t, dynamo.State{999, 1, 0}, e.Initial())
	assert.Equal(t, 1.0, e.Grid()[1])
}

func TestRunSIR(t *testing.T) {
	e, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid())
	require.NoError(t, err)
	assert.Equal(t, Configured, e.Phase())

	traj, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, e.Phase())
	assert.Equal(t, []string{"S", "I", "R"}, traj.Labels)
	assert.Equal(t, 161, traj.Len())

	s := Report(e, traj)
	assert.Equal(t, epi.VariantSIR, s.Model)
	assert.InDelta(t, 3.0, s.R0, 1e-12)
	assert.GreaterOrEqual(t, s.PeakTime, 20.0)
	assert.LessOrEqual(t, s.PeakTime, 40.0)
	assert.InDelta(t, 300, s.PeakInfected, 50)
	assert.InDelta(t, 940.5, s.FinalSize, 1)
	assert.InDelta(t, 0.94, s.AttackRate, 0.01)
	assert.InDelta(t, s.FinalSize, 1000-s.Final["S"], 1e-9)
	assert.Zero(t, s.NegativeSamples)
	assert.True(t, s.Conserved())
	assert.Positive(t, s.Stats.Steps)
}

func TestRunOnce(t *testing.T) {
	e, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid())
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrPhase)
	assert.Equal(t, Completed, e.Phase())
}

func TestRunRepeatable(t *testing.T) {
	run := func() *dynamo.Trajectory {
		e, err := Configure(epi.VariantSEIR, nil, []float64{999, 0, 1, 0}, dynamo.DailyGrid(200))
		require.NoError(t, err)
		traj, err := e.Run(context.Background())
		require.NoError(t, err)
		return traj
	}
	assert.Equal(t, run(), run())
}

func TestRunWrapsSolverFailure(t *testing.T) {
	failing := &stubSolver{err: &dynamo.SimulationError{Step: 3, Time: 2, Wrapped: dynamo.ErrInvalidState}}
	e, err := Configure(epi.VariantSEIR, nil, []float64{999, 0, 1, 0}, sirGrid(), WithSolver(failing))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSimulation)
	assert.ErrorIs(t, err, dynamo.ErrInvalidState)

	var serr *SimulationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, epi.VariantSEIR, serr.Variant)
	assert.Equal(t, Failed, e.Phase())

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrPhase)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid())
	require.NoError(t, err)

	_, err = e.Run(ctx)
	assert.ErrorIs(t, err, dynamo.ErrContextCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClampNegative(t *testing.T) {
	stub := &stubSolver{traj: &dynamo.Trajectory{
		Times:  []float64{0, 1},
		States: []dynamo.State{{999, 1, 0}, {999.5, -0.5, 1}},
	}}
	grid := []float64{0, 1}

	plain, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, grid, WithSolver(stub))
	require.NoError(t, err)
	traj, err := plain.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -0.5, traj.States[1][1])
	assert.Equal(t, 1, Report(plain, traj).NegativeSamples)

	clamped, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, grid, WithSolver(stub), WithClampNegative())
	require.NoError(t, err)
	traj, err = clamped.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, traj.States[1][1])
	assert.Zero(t, Report(clamped, traj).NegativeSamples)
}

func TestReportConservationViolation(t *testing.T) {
	stub := &stubSolver{traj: &dynamo.Trajectory{
		Times:  []float64{0, 1},
		States: []dynamo.State{{999, 1, 0}, {900, 1, 0}},
	}}
	e, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, []float64{0, 1}, WithSolver(stub))
	require.NoError(t, err)
	traj, err := e.Run(context.Background())
	require.NoError(t, err)

	s := Report(e, traj)
	require.Len(t, s.Conservation, 1)
	assert.True(t, s.Conservation[0].Closed)
	assert.InDelta(t, 0.099, s.Conservation[0].Drift, 1e-12)
	assert.False(t, s.Conserved())
}

func TestChagasReport(t *testing.T) {
	e, err := Configure(epi.VariantSEIC, nil, epi.VariantSEIC.DefaultState(), dynamo.DailyGrid(365))
	require.NoError(t, err)
	traj, err := e.Run(context.Background())
	require.NoError(t, err)

	s := Report(e, traj)
	require.Len(t, s.Conservation, 3)
	for _, d := range s.Conservation {
		assert.True(t, d.Within, "%s drift %g", d.Species, d.Drift)
	}
	assert.Equal(t, []string{"human", "vector", "animal"}, []string{
		s.Conservation[0].Species, s.Conservation[1].Species, s.Conservation[2].Species,
	})
	assert.Len(t, s.Final, 9)
	assert.Contains(t, s.Final, "I_v")
	assert.GreaterOrEqual(t, s.FinalSize, 0.0)
}

func TestRunAllMatchesSequential(t *testing.T) {
	build := func() []*Experiment {
		var exps []*Experiment
		for _, v := range epi.Variants {
			e, err := Configure(v, nil, v.DefaultState(), dynamo.DailyGrid(120))
			require.NoError(t, err)
			exps = append(exps, e)
		}
		return exps
	}

	parallel, err := RunAll(context.Background(), build())
	require.NoError(t, err)
	require.Len(t, parallel, len(epi.Variants))

	for i, e := range build() {
		traj, err := e.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, traj, parallel[i])
	}
}

func TestRunAllFailure(t *testing.T) {
	ok, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid())
	require.NoError(t, err)
	bad, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid(), WithSolver(&stubSolver{err: errors.New("boom")}))
	require.NoError(t, err)

	_, err = RunAll(context.Background(), []*Experiment{ok, bad})
	assert.ErrorIs(t, err, ErrSimulation)
}

func TestWith(t *testing.T) {
	base, err := Configure(epi.VariantSIR, map[string]float64{"gamma": 0.2}, []float64{999, 1, 0}, sirGrid(), WithName("base"))
	require.NoError(t, err)

	derived, err := base.With(map[string]float64{"beta": 0.5})
	require.NoError(t, err)
	assert.Equal(t, "base", derived.Name())
	assert.Equal(t, 0.5, derived.Params()["beta"])
	assert.Equal(t, 0.2, derived.Params()["gamma"])
	assert.Equal(t, 0.3, base.Params()["beta"])

	_, err = base.With(map[string]float64{"gamma": -1})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestWithClonesSharedSolver(t *testing.T) {
	shared := integrators.NewAdaptive(dynamo.DefaultSolveConfig())
	base, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid(), WithSolver(shared))
	require.NoError(t, err)

	a, err := base.With(map[string]float64{"beta": 0.25})
	require.NoError(t, err)
	b, err := a.With(map[string]float64{"beta": 0.35})
	require.NoError(t, err)

	assert.Same(t, shared, base.Solver())
	assert.NotSame(t, shared, a.Solver())
	assert.NotSame(t, a.Solver(), b.Solver())
	assert.NotSame(t, shared, b.Solver())

	trajs, err := RunAll(context.Background(), []*Experiment{a, b})
	require.NoError(t, err)
	assert.Greater(t, Report(b, trajs[1]).FinalSize, Report(a, trajs[0]).FinalSize)
}

func TestWithRejectsUnclonableSolver(t *testing.T) {
	base, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid(), WithSolver(&stubSolver{}))
	require.NoError(t, err)

	_, err = base.With(map[string]float64{"beta": 0.25})
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, ErrSharedSolver)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "solver", ce.Field)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"euler", "rk4", "rk45"}, r.ListSolvers())
	assert.Equal(t, []string{"sir", "seir", "seic"}, r.ListModels())

	_, err := r.SolverOption("verlet", dynamo.DefaultSolveConfig())
	assert.ErrorIs(t, err, ErrConfig)

	opt, err := r.SolverOption("rk4", dynamo.SolveConfig{InitialStep: 0.1})
	require.NoError(t, err)

	fixed, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid(), opt)
	require.NoError(t, err)
	adaptive, err := Configure(epi.VariantSIR, nil, []float64{999, 1, 0}, sirGrid())
	require.NoError(t, err)

	a, err := fixed.Run(context.Background())
	require.NoError(t, err)
	b, err := adaptive.Run(context.Background())
	require.NoError(t, err)

	sa, sb := Report(fixed, a), Report(adaptive, b)
	assert.InDelta(t, sb.PeakInfected, sa.PeakInfected, 0.5)
	assert.Equal(t, sb.PeakTime, sa.PeakTime)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
