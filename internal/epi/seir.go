package epi

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

type SEIR struct {
	Beta  float64
	Sigma float64
	Gamma float64
}

func NewSEIR() *SEIR {
	d := VariantSEIR.Defaults()
	return &SEIR{Beta: d["beta"], Sigma: d["sigma"], Gamma: d["gamma"]}
}

func (m *SEIR) Variant() Variant { return VariantSEIR }
func (m *SEIR) StateDim() int    { return 4 }

func (m *SEIR) Derive(x dynamo.State, _ float64) dynamo.State {
	s, e, i, r := x[0], x[1], x[2], x[3]
	inf := m.Beta * s * frac(i, s+e+i+r)
	prog := m.Sigma * e
	rec := m.Gamma * i
	return dynamo.State{-inf, inf - prog, prog - rec, rec}
}

func (m *SEIR) Species() []Species { return speciesOf(VariantSEIR) }

// ReproductionNumber is beta/gamma: without mortality every exposed individual
// becomes infectious, so incubation delays but does not reduce R0.
func (m *SEIR) ReproductionNumber() float64 { return ratio(m.Beta, m.Gamma) }

func (m *SEIR) GetParams() map[string]float64 {
	return map[string]float64{"beta": m.Beta, "sigma": m.Sigma, "gamma": m.Gamma}
}

func (m *SEIR) SetParam(name string, value float64) error {
	switch name {
	case "beta":
		m.Beta = value
	case "sigma":
		m.Sigma = value
	case "gamma":
		m.Gamma = value
	default:
		return unknownParam(VariantSEIR, name)
	}
	return nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}
