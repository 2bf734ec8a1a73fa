package epi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/episim/internal/dynamo"
)

var (
	ErrUnknownVariant = errors.New("epi: unknown model variant")
	ErrUnknownParam   = errors.New("epi: unknown parameter")
)

type Variant string

const (
	VariantSIR  Variant = "sir"
	VariantSEIR Variant = "seir"
	VariantSEIC Variant = "seic"
)

// Variants lists every model in presentation order.
var Variants = []Variant{VariantSIR, VariantSEIR, VariantSEIC}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sir":
		return VariantSIR, nil
	case "seir":
		return VariantSEIR, nil
	case "seic", "chagas":
		return VariantSEIC, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

func (v Variant) String() string { return string(v) }

// Title is the human-readable model name.
func (v Variant) Title() string {
	switch v {
	case VariantSIR:
		return "SIR"
	case VariantSEIR:
		return "SEIR"
	case VariantSEIC:
		return "SEIC host-vector-animal"
	}
	return string(v)
}

// ParamKind decides which values a parameter accepts.
type ParamKind int

const (
	// Transmission rates may be zero (no transmission).
	Transmission ParamKind = iota
	// Progression rates (incubation, recovery, chronification) must be positive.
	Progression
	// Vital rates (births, deaths) may be zero (closed population).
	Vital
)

type ParamSpec struct {
	Name        string
	Description string
	Default     float64
	Kind        ParamKind
}

// Contract is the per-variant shape of state and parameters.
type Contract struct {
	Compartments []string
	Params       []ParamSpec
	// Groups lists compartment indices per species, host first.
	Groups [][]int
	Names  []string
	// Infected is the host compartment reported as "infected"; Susceptible is the
	// host susceptible compartment used for final size.
	Infected    int
	Susceptible int
}

var contracts = map[Variant]Contract{
	VariantSIR: {
		Compartments: []string{"S", "I", "R"},
		Params: []ParamSpec{
			{Name: "beta", Description: "transmission rate", Default: 0.3, Kind: Transmission},
			{Name: "gamma", Description: "recovery rate", Default: 0.1, Kind: Progression},
		},
		Groups:      [][]int{{0, 1, 2}},
		Names:       []string{"host"},
		Infected:    1,
		Susceptible: 0,
	},
	VariantSEIR: {
		Compartments: []string{"S", "E", "I", "R"},
		Params: []ParamSpec{
			{Name: "beta", Description: "transmission rate", Default: 0.3, Kind: Transmission},
			{Name: "sigma", Description: "incubation rate (E -> I)", Default: 0.2, Kind: Progression},
			{Name: "gamma", Description: "recovery rate", Default: 0.1, Kind: Progression},
		},
		Groups:      [][]int{{0, 1, 2, 3}},
		Names:       []string{"host"},
		Infected:    2,
		Susceptible: 0,
	},
	VariantSEIC: {
		Compartments: []string{"S_h", "E_h", "I_h", "C_h", "S_v", "E_v", "I_v", "S_a", "I_a"},
		Params: []ParamSpec{
			{Name: "beta_hv", Description: "vector -> human transmission", Default: 0.0003, Kind: Transmission},
			{Name: "beta_vh", Description: "human -> vector transmission", Default: 0.04, Kind: Transmission},
			{Name: "beta_va", Description: "animal -> vector transmission", Default: 0.06, Kind: Transmission},
			{Name: "beta_av", Description: "vector -> animal transmission", Default: 0.01, Kind: Transmission},
			{Name: "sigma_h", Description: "human incubation rate (E -> I)", Default: 1.0 / 14, Kind: Progression},
			{Name: "sigma_v", Description: "vector incubation rate (E -> I)", Default: 1.0 / 10, Kind: Progression},
			{Name: "gamma_h", Description: "human chronification rate (I -> C)", Default: 1.0 / 60, Kind: Progression},
			{Name: "mu_v", Description: "vector mortality", Default: 1.0 / 60, Kind: Vital},
			{Name: "lambda_v", Description: "vector births per day", Default: 50, Kind: Vital},
			{Name: "mu_a", Description: "animal mortality", Default: 1.0 / 1095, Kind: Vital},
			{Name: "lambda_a", Description: "animal births per day", Default: 50000.0 / 1095, Kind: Vital},
		},
		Groups:      [][]int{{0, 1, 2, 3}, {4, 5, 6}, {7, 8}},
		Names:       []string{"human", "vector", "animal"},
		Infected:    2,
		Susceptible: 0,
	},
}

func (v Variant) Contract() (Contract, error) {
	c, ok := contracts[v]
	if !ok {
		return Contract{}, fmt.Errorf("%w: %q", ErrUnknownVariant, string(v))
	}
	return c, nil
}

func (v Variant) Dim() int {
	return len(contracts[v].Compartments)
}

func (v Variant) Compartments() []string {
	return append([]string(nil), contracts[v].Compartments...)
}

func (v Variant) Defaults() map[string]float64 {
	out := make(map[string]float64)
	for _, p := range contracts[v].Params {
		out[p.Name] = p.Default
	}
	return out
}

// DefaultState is the initial state used by the reference scenarios.
func (v Variant) DefaultState() dynamo.State {
	switch v {
	case VariantSIR:
		return dynamo.State{999, 1, 0}
	case VariantSEIR:
		return dynamo.State{999, 0, 1, 0}
	case VariantSEIC:
		return dynamo.State{1_000_000 - 10, 0, 10, 0, 2990, 0, 10, 49_950, 50}
	}
	return nil
}

// Model is a configured variant: an ODE system with named parameters.
type Model interface {
	dynamo.System
	dynamo.Configurable
	Variant() Variant
	Species() []Species
	// ReproductionNumber is the basic reproduction number R0 for the current parameters.
	ReproductionNumber() float64
}

// New builds the model for v with defaults overridden by params.
func New(v Variant, params map[string]float64) (Model, error) {
	var m Model
	switch v {
	case VariantSIR:
		m = NewSIR()
	case VariantSEIR:
		m = NewSEIR()
	case VariantSEIC:
		m = NewChagas()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, string(v))
	}
	for name, value := range params {
		if err := m.SetParam(name, value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Derivative dispatches on the variant tag and evaluates dX/dt at (x, t).
func Derivative(v Variant, params map[string]float64, x dynamo.State, t float64) (dynamo.State, error) {
	m, err := New(v, params)
	if err != nil {
		return nil, err
	}
	return m.Derive(x, t), nil
}

func unknownParam(v Variant, name string) error {
	return fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, v, name)
}
