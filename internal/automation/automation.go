package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/logger"
)

// Scenario is a set of runs compared side by side.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Parallel    bool           `yaml:"parallel,omitempty"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run: an optional preset of its model with the
// non-zero fields of the inline config laid over it.
type ScenarioStep struct {
	Preset string        `yaml:"preset,omitempty"`
	Config config.Config `yaml:",inline"`
}

type Result struct {
	Step       int
	Config     *config.Config
	Experiment *experiment.Experiment
	Trajectory *dynamo.Trajectory
	Summary    experiment.Summary
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q: no steps", sc.Name)
	}
	return &sc, nil
}

// Resolve expands the step into a validated run configuration.
func (s ScenarioStep) Resolve() (*config.Config, error) {
	o := s.Config
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	base := config.DefaultConfig()
	if s.Preset != "" {
		base = config.GetPreset(o.Model, s.Preset)
		if base == nil {
			return nil, fmt.Errorf("model %s has no preset %q (have %v)", o.Model, s.Preset, config.ListPresets(o.Model))
		}
	}
	base.Model = o.Model

	if o.Name != "" {
		base.Name = o.Name
	}
	if o.Solver != "" {
		base.Solver = o.Solver
	}
	if o.Duration > 0 {
		base.Duration = o.Duration
	}
	if o.Points > 0 {
		base.Points = o.Points
	}
	if o.ClampNegative {
		base.ClampNegative = true
	}
	if o.ConservationTol > 0 {
		base.ConservationTol = o.ConservationTol
	}
	if o.NegativeTol > 0 {
		base.NegativeTol = o.NegativeTol
	}
	if o.Solve != (config.SolveConfig{}) {
		base.Solve = o.Solve
	}
	base.Params = merge(base.Params, o.Params)
	base.InitialState = merge(base.InitialState, o.InitialState)

	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

func merge(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// RunScenario configures every step first, so a bad step fails before any
// run starts, then runs them in order or concurrently.
func RunScenario(ctx context.Context, sc *Scenario, reg *experiment.Registry) ([]Result, error) {
	results := make([]Result, len(sc.Steps))
	exps := make([]*experiment.Experiment, len(sc.Steps))

	for i, step := range sc.Steps {
		cfg, err := step.Resolve()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("%d-%s", i+1, cfg.Model)
			if step.Preset != "" {
				cfg.Name += "-" + step.Preset
			}
		}
		exp, err := cfg.Experiment(reg)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		results[i] = Result{Step: i + 1, Config: cfg, Experiment: exp}
		exps[i] = exp
	}

	logger.Info("running scenario", "name", sc.Name, "steps", len(exps), "parallel", sc.Parallel)

	if sc.Parallel {
		trajs, err := experiment.RunAll(ctx, exps)
		if err != nil {
			return nil, err
		}
		for i, traj := range trajs {
			results[i].finish(traj)
		}
		return results, nil
	}

	for i, exp := range exps {
		logger.Info("running step", "step", i+1, "of", len(exps), "name", exp.Name())
		traj, err := exp.Run(ctx)
		if err != nil {
			return results[:i], fmt.Errorf("step %d: %w", i+1, err)
		}
		results[i].finish(traj)
	}
	return results, nil
}

func (r *Result) finish(traj *dynamo.Trajectory) {
	r.Trajectory = traj
	r.Summary = experiment.Report(r.Experiment, traj)
}
