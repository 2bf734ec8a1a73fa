package epi

import (
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Demography holds a species' constant recruitment and per-capita mortality.
type Demography struct {
	Birth float64
	Death float64
}

func (d Demography) Closed() bool { return d.Birth == 0 && d.Death == 0 }

// Expected is the species total at time t for dN/dt = Birth - Death*N, N(0) = n0.
func (d Demography) Expected(n0, t float64) float64 {
	if d.Death == 0 {
		return n0 + d.Birth*t
	}
	eq := d.Birth / d.Death
	return eq + (n0-eq)*math.Exp(-d.Death*t)
}

type Species struct {
	Name       string
	Indices    []int
	Demography Demography
}

func (s Species) Total(x dynamo.State) float64 {
	vals := make([]float64, 0, len(s.Indices))
	for _, i := range s.Indices {
		vals = append(vals, x[i])
	}
	return floats.Sum(vals)
}

func speciesOf(v Variant, demo ...Demography) []Species {
	c := contracts[v]
	out := make([]Species, len(c.Groups))
	for i, g := range c.Groups {
		out[i] = Species{Name: c.Names[i], Indices: append([]int(nil), g...)}
		if i < len(demo) {
			out[i].Demography = demo[i]
		}
	}
	return out
}

// frac returns num/den, treating an empty population as contributing no infection.
func frac(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}
