package epi

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
)

// Chagas couples SEIC humans, SEI triatomine vectors and SI reservoir animals.
//
// State layout: S_h, E_h, I_h, C_h, S_v, E_v, I_v, S_a, I_a. Humans are closed;
// vectors and animals have constant recruitment (Lambda) and mortality (Mu).
// Infected vectors and animals never recover.
type Chagas struct {
	BetaHV float64 // vector -> human
	BetaVH float64 // human -> vector
	BetaVA float64 // animal -> vector
	BetaAV float64 // vector -> animal

	SigmaH float64
	SigmaV float64
	GammaH float64

	MuV     float64
	LambdaV float64
	MuA     float64
	LambdaA float64
}

func NewChagas() *Chagas {
	d := VariantSEIC.Defaults()
	return &Chagas{
		BetaHV:  d["beta_hv"],
		BetaVH:  d["beta_vh"],
		BetaVA:  d["beta_va"],
		BetaAV:  d["beta_av"],
		SigmaH:  d["sigma_h"],
		SigmaV:  d["sigma_v"],
		GammaH:  d["gamma_h"],
		MuV:     d["mu_v"],
		LambdaV: d["lambda_v"],
		MuA:     d["mu_a"],
		LambdaA: d["lambda_a"],
	}
}

func (m *Chagas) Variant() Variant { return VariantSEIC }
func (m *Chagas) StateDim() int    { return 9 }

func (m *Chagas) Derive(x dynamo.State, _ float64) dynamo.State {
	sh, eh, ih, ch := x[0], x[1], x[2], x[3]
	sv, ev, iv := x[4], x[5], x[6]
	sa, ia := x[7], x[8]

	nh := sh + eh + ih + ch
	nv := sv + ev + iv
	na := sa + ia

	// Forces of infection, frequency dependent on the source species' prevalence.
	lambdaH := m.BetaHV * frac(iv, nv)
	lambdaV := m.BetaVH*frac(ih, nh) + m.BetaVA*frac(ia, na)
	lambdaA := m.BetaAV * frac(iv, nv)

	return dynamo.State{
		-lambdaH * sh,
		lambdaH*sh - m.SigmaH*eh,
		m.SigmaH*eh - m.GammaH*ih,
		m.GammaH * ih,

		m.LambdaV - lambdaV*sv - m.MuV*sv,
		lambdaV*sv - m.SigmaV*ev - m.MuV*ev,
		m.SigmaV*ev - m.MuV*iv,

		m.LambdaA - lambdaA*sa - m.MuA*sa,
		lambdaA*sa - m.MuA*ia,
	}
}

func (m *Chagas) Species() []Species {
	return speciesOf(VariantSEIC,
		Demography{},
		Demography{Birth: m.LambdaV, Death: m.MuV},
		Demography{Birth: m.LambdaA, Death: m.MuA},
	)
}

// ReproductionNumber is the approximate human-vector R0,
// beta_hv*beta_vh*sigma_v / (mu_v*(sigma_v+mu_v)*gamma_h).
func (m *Chagas) ReproductionNumber() float64 {
	den := m.MuV * (m.SigmaV + m.MuV) * m.GammaH
	if den == 0 {
		return math.Inf(1)
	}
	return m.BetaHV * m.BetaVH * m.SigmaV / den
}

func (m *Chagas) fields() map[string]*float64 {
	return map[string]*float64{
		"beta_hv":  &m.BetaHV,
		"beta_vh":  &m.BetaVH,
		"beta_va":  &m.BetaVA,
		"beta_av":  &m.BetaAV,
		"sigma_h":  &m.SigmaH,
		"sigma_v":  &m.SigmaV,
		"gamma_h":  &m.GammaH,
		"mu_v":     &m.MuV,
		"lambda_v": &m.LambdaV,
		"mu_a":     &m.MuA,
		"lambda_a": &m.LambdaA,
	}
}

func (m *Chagas) GetParams() map[string]float64 {
	out := make(map[string]float64)
	for k, p := range m.fields() {
		out[k] = *p
	}
	return out
}

func (m *Chagas) SetParam(name string, value float64) error {
	p, ok := m.fields()[name]
	if !ok {
		return unknownParam(VariantSEIC, name)
	}
	*p = value
	return nil
}
