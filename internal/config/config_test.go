package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/experiment"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	v, err := cfg.Variant()
	require.NoError(t, err)
	assert.Equal(t, epi.VariantSEIC, v)
	assert.Len(t, cfg.Grid(), 366)
	assert.Equal(t, []float64(v.DefaultState()), cfg.Initial(v))
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
name: fast-sir
model: sir
solver: rk4
duration: 100
points: 51
solve:
  initial_step: 0.05
params:
  beta: 0.5
initial_state:
  S: 990
  I: 10
`))
	require.NoError(t, err)

	assert.Equal(t, "fast-sir", cfg.Name)
	assert.Len(t, cfg.Grid(), 51)
	assert.Equal(t, 2.0, cfg.Grid()[1])
	assert.Equal(t, []float64{990, 10, 0}, cfg.Initial(epi.VariantSIR))
	assert.Equal(t, 0.05, cfg.SolveConfig().InitialStep)
	assert.Equal(t, 1e-8, cfg.SolveConfig().Tolerance.Rel)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":        "model: sir\nseed: 4\n",
		"unknown model":      "model: sis\n",
		"unknown solver":     "model: sir\nsolver: verlet\n",
		"zero duration":      "model: sir\nduration: 0\n",
		"one point":          "model: sir\npoints: 1\n",
		"too long":           "model: sir\nduration: 1e9\n",
		"too many points":    "model: sir\npoints: 2000000000\n",
		"negative neg tol":   "model: sir\nnegative_tol: -1\n",
		"negative tolerance": "model: sir\nsolve:\n  rel_tol: -1\n",
		"unknown param":      "model: sir\nparams:\n  sigma: 0.2\n",
		"unknown label":      "model: seir\ninitial_state:\n  C: 4\n",
		"bad yaml":           "model: [sir\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidateNamesYAMLField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Solve.MaxStep = -2
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_step")
}

func TestChagasAlias(t *testing.T) {
	cfg, err := Parse([]byte("model: chagas\n"))
	require.NoError(t, err)
	v, err := cfg.Variant()
	require.NoError(t, err)
	assert.Equal(t, epi.VariantSEIC, v)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	want := GetPreset("seir", "chagas")
	require.NotNil(t, want)
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPresets(t *testing.T) {
	for _, v := range epi.Variants {
		names := ListPresets(v.String())
		assert.NotEmpty(t, names, v)
		for _, name := range names {
			cfg := GetPreset(v.String(), name)
			require.NotNil(t, cfg)
			assert.NoError(t, cfg.Validate(), "%s/%s", v, name)
		}
	}
	assert.Nil(t, GetPreset("sir", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "classic"))
	assert.Nil(t, ListPresets("nonexistent"))
}

func TestPresetsByAlias(t *testing.T) {
	cfg := GetPreset("chagas", "chagas")
	require.NotNil(t, cfg)
	assert.Equal(t, "seic", cfg.Model)
	assert.Equal(t, ListPresets("seic"), ListPresets("chagas"))
	assert.Equal(t, ListPresets("sir"), ListPresets("SIR"))
}

func TestChagasPresetRates(t *testing.T) {
	cfg := GetPreset("seic", "chagas")
	require.NotNil(t, cfg)
	assert.Equal(t, map[string]float64{
		"beta_hv": 0.00003, "beta_vh": 0.00005, "beta_va": 0.00008, "beta_av": 0.000005,
	}, cfg.Params)
	assert.Equal(t, 1095.0, cfg.Duration)
	assert.Equal(t, 10.0, cfg.InitialState["I_h"])
	assert.Equal(t, 10_000.0, cfg.InitialState["S_v"])

	endemic := GetPreset("seic", "endemic")
	require.NotNil(t, endemic)
	assert.Empty(t, endemic.Params)
	assert.Equal(t, cfg.InitialState, endemic.InitialState)

	endemic.InitialState["I_h"] = 99
	assert.Equal(t, 10.0, GetPreset("seic", "chagas").InitialState["I_h"])
}

func TestValidateBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = MaxDuration
	cfg.Points = MaxPoints
	assert.NoError(t, cfg.Validate())

	cfg.Duration = MaxDuration + 1
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "duration")

	cfg.Duration = DefaultDuration
	cfg.Points = MaxPoints + 1
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "points")
}

func TestExperimentNegativeTol(t *testing.T) {
	traj := &dynamo.Trajectory{
		Times:  []float64{0, 1},
		States: []dynamo.State{{999, 1, 0}, {999.5, -0.5, 1}},
		Labels: []string{"S", "I", "R"},
	}
	cfg := GetPreset("sir", "classic")

	exp, err := cfg.Experiment(experiment.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 1, experiment.Report(exp, traj).NegativeSamples)

	cfg.NegativeTol = 1
	exp, err = cfg.Experiment(experiment.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 0, experiment.Report(exp, traj).NegativeSamples)
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("sir", "classic")
	a.Params["beta"] = 9
	b := GetPreset("sir", "classic")
	assert.Equal(t, 0.3, b.Params["beta"])
}

func TestExperimentFromPreset(t *testing.T) {
	cfg := GetPreset("sir", "classic")
	exp, err := cfg.Experiment(experiment.NewRegistry())
	require.NoError(t, err)

	traj, err := exp.Run(context.Background())
	require.NoError(t, err)
	s := experiment.Report(exp, traj)
	assert.InDelta(t, 38, s.PeakTime, 2)
	assert.InDelta(t, 3.0, s.R0, 1e-12)
}

func TestExperimentRejectsBadState(t *testing.T) {
	cfg := GetPreset("sir", "classic")
	cfg.InitialState["I"] = -1
	_, err := cfg.Experiment(experiment.NewRegistry())
	assert.ErrorIs(t, err, experiment.ErrConfig)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EPISIM_SOLVER=rk4\n"), 0644))

	t.Setenv(EnvDataDir, "/tmp/runs")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvSolver, "")
	os.Unsetenv(EnvSolver)

	env := LoadEnv(path)
	assert.Equal(t, "/tmp/runs", env.DataDir)
	assert.Equal(t, "warn", env.LogLevel)
	assert.Equal(t, "rk4", env.Solver)
}
