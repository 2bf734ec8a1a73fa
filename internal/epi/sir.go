package epi

import "github.com/san-kum/episim/internal/dynamo"

// SIR is the closed-population Kermack-McKendrick model with frequency-dependent transmission.
type SIR struct {
	Beta  float64
	Gamma float64
}

func NewSIR() *SIR {
	d := VariantSIR.Defaults()
	return &SIR{Beta: d["beta"], Gamma: d["gamma"]}
}

func (m *SIR) Variant() Variant { return VariantSIR }
func (m *SIR) StateDim() int    { return 3 }

// Derive calculates (dS, dI, dR) with N = S + I + R.
func (m *SIR) Derive(x dynamo.State, _ float64) dynamo.State {
	s, i, r := x[0], x[1], x[2]
	inf := m.Beta * s * frac(i, s+i+r)
	rec := m.Gamma * i
	return dynamo.State{-inf, inf - rec, rec}
}

func (m *SIR) Species() []Species { return speciesOf(VariantSIR) }

func (m *SIR) ReproductionNumber() float64 { return ratio(m.Beta, m.Gamma) }

func (m *SIR) GetParams() map[string]float64 {
	return map[string]float64{"beta": m.Beta, "gamma": m.Gamma}
}

func (m *SIR) SetParam(name string, value float64) error {
	switch name {
	case "beta":
		m.Beta = value
	case "gamma":
		m.Gamma = value
	default:
		return unknownParam(VariantSIR, name)
	}
	return nil
}
