package experiment

import (
	"encoding/json"
	"math"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/epi"
	"github.com/san-kum/episim/internal/metrics"
)

type SpeciesDrift struct {
	Species string  `json:"species"`
	Closed  bool    `json:"closed"`
	Drift   float64 `json:"drift"`
	Within  bool    `json:"within_tolerance"`
}

// Summary is the headline outcome of one run.
type Summary struct {
	Name            string             `json:"name"`
	Model           epi.Variant        `json:"model"`
	R0              float64            `json:"r0"`
	PeakInfected    float64            `json:"peak_infected"`
	PeakTime        float64            `json:"peak_time"`
	FinalSize       float64            `json:"final_size"`
	AttackRate      float64            `json:"attack_rate"`
	Final           map[string]float64 `json:"final"`
	Conservation    []SpeciesDrift     `json:"conservation"`
	NegativeSamples int                `json:"negative_samples"`
	Stats           dynamo.Stats       `json:"stats"`
}

// Conserved reports whether every species stayed within tolerance.
func (s Summary) Conserved() bool {
	for _, d := range s.Conservation {
		if !d.Within {
			return false
		}
	}
	return true
}

// Report summarises a trajectory produced by e.
func Report(e *Experiment, traj *dynamo.Trajectory) Summary {
	c, _ := e.variant.Contract()
	species := e.model.Species()

	peak := metrics.NewPeak(c.Infected)
	size := metrics.NewFinalSize(species[0], c.Susceptible)
	neg := metrics.NewNegatives(e.negativeTol)
	drifts := e.drifts()

	ms := []dynamo.Metric{peak, size, neg}
	for _, d := range drifts {
		ms = append(ms, d)
	}
	metrics.Observe(traj, ms...)

	s := Summary{
		Name:            e.name,
		Model:           e.variant,
		R0:              e.model.ReproductionNumber(),
		PeakInfected:    peak.Value(),
		PeakTime:        peak.Time(),
		FinalSize:       size.Value(),
		AttackRate:      size.AttackRate(),
		Final:           make(map[string]float64, len(c.Compartments)),
		NegativeSamples: neg.Count(),
		Stats:           traj.Stats,
	}
	if final := traj.Final(); final != nil {
		for i, label := range c.Compartments {
			s.Final[label] = final[i]
		}
	}
	for _, d := range drifts {
		s.Conservation = append(s.Conservation, SpeciesDrift{
			Species: d.Species().Name,
			Closed:  d.Species().Demography.Closed(),
			Drift:   d.Value(),
			Within:  d.Value() <= e.conservationTol,
		})
	}
	return s
}

// MarshalJSON writes an unbounded R0 as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		R0 *float64 `json:"r0"`
	}{plain: plain(s)}
	if !math.IsInf(s.R0, 0) && !math.IsNaN(s.R0) {
		out.R0 = &s.R0
	}
	return json.Marshal(out)
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	type plain Summary
	aux := struct {
		*plain
		R0 *float64 `json:"r0"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.R0 = math.Inf(1)
	if aux.R0 != nil {
		s.R0 = *aux.R0
	}
	return nil
}
