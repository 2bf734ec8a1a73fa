package epi_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/integrators"
)

func solve(m epi.Model, x0 dynamo.State, grid []float64) *dynamo.Trajectory {
	traj, err := integrators.NewAdaptive(dynamo.DefaultSolveConfig()).Solve(context.Background(), m, x0, grid)
	Expect(err).NotTo(HaveOccurred())
	return traj
}

func mustModel(v epi.Variant, params map[string]float64) epi.Model {
	m, err := epi.New(v, params)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Variant", func() {
	It("parses names and the chagas alias", func() {
		for in, want := range map[string]epi.Variant{"SIR": epi.VariantSIR, "seir": epi.VariantSEIR, "chagas": epi.VariantSEIC, " seic ": epi.VariantSEIC} {
			v, err := epi.ParseVariant(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(want))
		}
		_, err := epi.ParseVariant("sis")
		Expect(err).To(MatchError(epi.ErrUnknownVariant))
	})

	It("carries a dimension contract matching its model", func() {
		for _, v := range epi.Variants {
			m := mustModel(v, nil)
			Expect(m.StateDim()).To(Equal(v.Dim()))
			Expect(v.DefaultState()).To(HaveLen(v.Dim()))
			c, err := v.Contract()
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Params).To(HaveLen(len(m.GetParams())))
		}
	})

	It("rejects unknown parameters", func() {
		_, err := epi.New(epi.VariantSIR, map[string]float64{"sigma": 1})
		Expect(err).To(MatchError(epi.ErrUnknownParam))
		_, err = epi.New(epi.Variant("sis"), nil)
		Expect(err).To(MatchError(epi.ErrUnknownVariant))
	})

	It("dispatches derivatives on the tag", func() {
		dx, err := epi.Derivative(epi.VariantSIR, map[string]float64{"beta": 0.5, "gamma": 0.25}, dynamo.State{90, 10, 0}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(dx[0]).To(BeNumerically("~", -0.5*90*10/100, 1e-12))
		Expect(dx[1]).To(BeNumerically("~", 0.5*90*10/100-2.5, 1e-12))
		Expect(dx[2]).To(BeNumerically("~", 2.5, 1e-12))
	})
})

var _ = Describe("SIR", func() {
	It("is a pure function of its inputs", func() {
		m := epi.NewSIR()
		x := dynamo.State{999, 1, 0}
		a := m.Derive(x, 0)
		b := m.Derive(x, 42)
		Expect(a).To(Equal(b))
		Expect(x).To(Equal(dynamo.State{999, 1, 0}))
	})

	It("conserves the total population", func() {
		traj := solve(epi.NewSIR(), dynamo.State{999, 1, 0}, dynamo.DailyGrid(160))
		for _, s := range traj.States {
			Expect(s[0] + s[1] + s[2]).To(BeNumerically("~", 1000, 1000*1e-6))
		}
	})

	It("produces a single peak near day 38 for R0 = 3", func() {
		traj := solve(epi.NewSIR(), dynamo.State{999, 1, 0}, dynamo.DailyGrid(160))
		infected := traj.Series(1)
		peak, at := 0.0, 0
		for i, v := range infected {
			if v > peak {
				peak, at = v, i
			}
		}
		Expect(traj.Times[at]).To(BeNumerically(">=", 20))
		Expect(traj.Times[at]).To(BeNumerically("<=", 40))
		Expect(peak).To(BeNumerically(">=", 250))
		Expect(peak).To(BeNumerically("<=", 350))

		// Rises to a single maximum and falls afterwards.
		for i := 1; i <= at; i++ {
			Expect(infected[i]).To(BeNumerically(">=", infected[i-1]))
		}
		for i := at + 1; i < len(infected); i++ {
			Expect(infected[i]).To(BeNumerically("<=", infected[i-1]))
		}

		// Final size solves z = 1 - exp(-R0 z).
		z := 0.9
		for k := 0; k < 200; k++ {
			z = 1 - math.Exp(-3*z)
		}
		final := traj.Final()
		Expect((1000 - final[0]) / 1000).To(BeNumerically("~", z, 0.01))
		Expect(final[2]).To(BeNumerically("~", 1000-final[0], 1))
	})

	It("does not grow infection without transmission", func() {
		m := mustModel(epi.VariantSIR, map[string]float64{"beta": 0})
		traj := solve(m, dynamo.State{900, 100, 0}, dynamo.DailyGrid(60))
		infected := traj.Series(1)
		for i := 1; i < len(infected); i++ {
			Expect(infected[i]).To(BeNumerically("<=", infected[i-1]))
		}
	})

	It("reports R0 = beta/gamma", func() {
		Expect(epi.NewSIR().ReproductionNumber()).To(BeNumerically("~", 3, 1e-12))
	})

	It("stays disease-free without initial infection", func() {
		Expect(epi.NewSIR().Derive(dynamo.State{1000, 0, 0}, 0)).To(Equal(dynamo.State{0, 0, 0}))

		traj := solve(epi.NewSIR(), dynamo.State{1000, 0, 0}, dynamo.DailyGrid(365))
		for _, s := range traj.States {
			Expect(s).To(Equal(dynamo.State{1000, 0, 0}))
		}
	})
})

var _ = Describe("SEIR", func() {
	It("conserves the total population", func() {
		traj := solve(epi.NewSEIR(), dynamo.State{999, 0, 1, 0}, dynamo.DailyGrid(160))
		for _, s := range traj.States {
			Expect(s[0] + s[1] + s[2] + s[3]).To(BeNumerically("~", 1000, 1000*1e-6))
		}
	})

	It("peaks later and lower than SIR with the same beta and gamma", func() {
		grid := dynamo.DailyGrid(160)
		sir := solve(epi.NewSIR(), dynamo.State{999, 1, 0}, grid)
		seir := solve(epi.NewSEIR(), dynamo.State{999, 0, 1, 0}, grid)

		peakOf := func(xs []float64) (float64, int) {
			best, at := xs[0], 0
			for i, v := range xs {
				if v > best {
					best, at = v, i
				}
			}
			return best, at
		}
		sirPeak, sirAt := peakOf(sir.Series(1))
		seirPeak, seirAt := peakOf(seir.Series(2))

		Expect(seirAt).To(BeNumerically(">", sirAt))
		Expect(seirPeak).To(BeNumerically("<", sirPeak))
	})

	It("does not grow infection without transmission", func() {
		m := mustModel(epi.VariantSEIR, map[string]float64{"beta": 0})
		traj := solve(m, dynamo.State{900, 0, 100, 0}, dynamo.DailyGrid(60))
		infected := traj.Series(2)
		for i := 1; i < len(infected); i++ {
			Expect(infected[i]).To(BeNumerically("<=", infected[i-1]))
		}
	})

	It("stays disease free without an infection seed", func() {
		traj := solve(epi.NewSEIR(), dynamo.State{1000, 0, 0, 0}, dynamo.DailyGrid(100))
		for _, s := range traj.States {
			Expect(s[1]).To(BeZero())
			Expect(s[2]).To(BeZero())
			Expect(s[0]).To(Equal(1000.0))
		}
	})
})

var _ = Describe("Chagas", func() {
	grid := dynamo.DailyGrid(3 * 365)

	It("conserves each species independently at the demographic equilibrium", func() {
		m := epi.NewChagas()
		x0 := epi.VariantSEIC.DefaultState()
		traj := solve(m, x0, grid)

		for _, sp := range m.Species() {
			n0 := sp.Total(x0)
			for _, s := range traj.States {
				Expect(sp.Total(s)).To(BeNumerically("~", n0, n0*1e-6), sp.Name)
			}
		}
	})

	It("follows the demographic curve when vectors start off equilibrium", func() {
		m := epi.NewChagas()
		x0 := dynamo.State{1000, 0, 10, 0, 9990, 0, 10, 500, 5}
		traj := solve(m, x0, grid)

		vectors := m.Species()[1]
		n0 := vectors.Total(x0)
		for i, s := range traj.States {
			want := vectors.Demography.Expected(n0, traj.Times[i])
			Expect(vectors.Total(s)).To(BeNumerically("~", want, want*1e-6))
		}

		humans := m.Species()[0]
		Expect(humans.Demography.Closed()).To(BeTrue())
		Expect(humans.Total(traj.Final())).To(BeNumerically("~", 1010, 1e-6))
	})

	It("stays disease free in every species without an infection seed", func() {
		x0 := dynamo.State{1000, 0, 0, 0, 3000, 0, 0, 50000, 0}
		traj := solve(epi.NewChagas(), x0, grid)
		for _, s := range traj.States {
			for _, idx := range []int{1, 2, 3, 5, 6, 8} {
				Expect(s[idx]).To(BeZero())
			}
		}
	})

	It("couples hosts to vector prevalence", func() {
		m := epi.NewChagas()
		dx := m.Derive(dynamo.State{1000, 0, 0, 0, 2000, 0, 1000, 100, 0}, 0)
		Expect(dx[0]).To(BeNumerically("~", -m.BetaHV*1000.0/3000*1000, 1e-12))
		Expect(dx[7]).To(BeNumerically("<", m.LambdaA-m.MuA*100))
	})

	It("treats an empty species as contributing no infection", func() {
		dx := epi.NewChagas().Derive(dynamo.State{1000, 0, 0, 0, 0, 0, 0, 0, 0}, 0)
		for _, v := range dx {
			Expect(math.IsNaN(v)).To(BeFalse())
		}
		Expect(dx[0]).To(BeZero())
	})

	It("computes the approximate R0", func() {
		m := epi.NewChagas()
		want := m.BetaHV * m.BetaVH * m.SigmaV / (m.MuV * (m.SigmaV + m.MuV) * m.GammaH)
		Expect(m.ReproductionNumber()).To(BeNumerically("~", want, 1e-15))
		Expect(mustModel(epi.VariantSEIC, map[string]float64{"mu_v": 0}).ReproductionNumber()).To(BeNumerically(">", 1e300))
	})

	It("round-trips parameters", func() {
		m := epi.NewChagas()
		Expect(m.SetParam("lambda_v", 80)).To(Succeed())
		Expect(m.GetParams()).To(HaveKeyWithValue("lambda_v", 80.0))
		Expect(m.SetParam("N_h", 1)).To(MatchError(epi.ErrUnknownParam))
	})
})

var _ = Describe("Demography", func() {
	It("relaxes to the birth/death equilibrium", func() {
		d := epi.Demography{Birth: 50, Death: 1.0 / 60}
		Expect(d.Expected(3000, 100)).To(BeNumerically("~", 3000, 1e-9))
		Expect(d.Expected(0, 1e6)).To(BeNumerically("~", 3000, 1e-6))
		Expect(epi.Demography{Birth: 2}.Expected(10, 5)).To(Equal(20.0))
		Expect(epi.Demography{}.Closed()).To(BeTrue())
	})
})
