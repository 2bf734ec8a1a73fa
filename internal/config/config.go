package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/experiment"
)

const (
	DefaultSolver   = "rk45"
	DefaultDuration = 365.0

	// Run bounds: one century of simulated days and a million output samples.
	MaxDuration = 36500.0
	MaxPoints   = 1_000_000
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Name            string             `yaml:"name,omitempty"`
	Model           string             `yaml:"model" validate:"required,oneof=sir seir seic chagas"`
	Solver          string             `yaml:"solver" validate:"required,oneof=rk45 rk4 euler"`
	Duration        float64            `yaml:"duration" validate:"gt=0,lte=36500"`
	Points          int                `yaml:"points,omitempty" validate:"omitempty,gte=2,lte=1000000"`
	Solve           SolveConfig        `yaml:"solve,omitempty"`
	Params          map[string]float64 `yaml:"params,omitempty"`
	InitialState    map[string]float64 `yaml:"initial_state,omitempty"`
	ClampNegative   bool               `yaml:"clamp_negative,omitempty"`
	ConservationTol float64            `yaml:"conservation_tol,omitempty" validate:"gte=0"`
	NegativeTol     float64            `yaml:"negative_tol,omitempty" validate:"gte=0"`
}

// SolveConfig holds solver overrides; zero fields keep the solver defaults.
type SolveConfig struct {
	AbsTol      float64 `yaml:"abs_tol,omitempty" validate:"gte=0"`
	RelTol      float64 `yaml:"rel_tol,omitempty" validate:"gte=0"`
	InitialStep float64 `yaml:"initial_step,omitempty" validate:"gte=0"`
	MinStep     float64 `yaml:"min_step,omitempty" validate:"gte=0"`
	MaxStep     float64 `yaml:"max_step,omitempty" validate:"gte=0"`
	MaxSteps    int     `yaml:"max_steps,omitempty" validate:"gte=0"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    epi.VariantSEIC.String(),
		Solver:   DefaultSolver,
		Duration: DefaultDuration,
	}
}

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and that params and initial_state only
// name entries the model knows.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	v, err := c.Variant()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	known := v.Defaults()
	for _, name := range sortedKeys(c.Params) {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: params: %s has no parameter %q", ErrInvalid, v, name)
		}
	}
	labels := make(map[string]bool)
	for _, l := range v.Compartments() {
		labels[l] = true
	}
	for _, name := range sortedKeys(c.InitialState) {
		if !labels[name] {
			return fmt.Errorf("%w: initial_state: %s has no compartment %q", ErrInvalid, v, name)
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

func (c *Config) Variant() (epi.Variant, error) {
	return epi.ParseVariant(c.Model)
}

// Grid samples [0, Duration] at Points points, daily when Points is unset.
func (c *Config) Grid() []float64 {
	n := c.Points
	if n < 2 {
		n = int(c.Duration) + 1
		if n < 2 {
			n = 2
		}
	}
	return dynamo.Linspace(0, c.Duration, n)
}

// Initial starts from the model's default state and applies the overrides in
// InitialState by compartment label.
func (c *Config) Initial(v epi.Variant) []float64 {
	x := v.DefaultState()
	for i, label := range v.Compartments() {
		if val, ok := c.InitialState[label]; ok {
			x[i] = val
		}
	}
	return x
}

func (c *Config) SolveConfig() dynamo.SolveConfig {
	cfg := dynamo.DefaultSolveConfig()
	if c.Solve.AbsTol > 0 {
		cfg.Tolerance.Abs = c.Solve.AbsTol
	}
	if c.Solve.RelTol > 0 {
		cfg.Tolerance.Rel = c.Solve.RelTol
	}
	if c.Solve.InitialStep > 0 {
		cfg.InitialStep = c.Solve.InitialStep
	}
	if c.Solve.MinStep > 0 {
		cfg.MinStep = c.Solve.MinStep
	}
	if c.Solve.MaxStep > 0 {
		cfg.MaxStep = c.Solve.MaxStep
	}
	if c.Solve.MaxSteps > 0 {
		cfg.MaxSteps = c.Solve.MaxSteps
	}
	return cfg
}

// Experiment validates the configuration and builds a run descriptor with a
// solver from reg.
func (c *Config) Experiment(reg *experiment.Registry, opts ...experiment.Option) (*experiment.Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	v, _ := c.Variant()

	solverOpt, err := reg.SolverOption(c.Solver, c.SolveConfig())
	if err != nil {
		return nil, err
	}
	all := []experiment.Option{solverOpt}
	if c.Name != "" {
		all = append(all, experiment.WithName(c.Name))
	}
	if c.ClampNegative {
		all = append(all, experiment.WithClampNegative())
	}
	if c.ConservationTol > 0 {
		all = append(all, experiment.WithConservationTol(c.ConservationTol))
	}
	if c.NegativeTol > 0 {
		all = append(all, experiment.WithNegativeTol(c.NegativeTol))
	}
	all = append(all, opts...)

	return experiment.Configure(v, c.Params, c.Initial(v), c.Grid(), all...)
}

func (c *Config) Clone() *Config {
	out := *c
	out.Params = copyMap(c.Params)
	out.InitialState = copyMap(c.InitialState)
	return &out
}

// Load reads a YAML run file over DefaultConfig and validates it. Unknown keys
// are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
