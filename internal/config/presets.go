package config

import (
	"sort"

	"github.com/san-kum/episim/internal/epi"
)

// Presets holds named run configurations per model, keyed by canonical model
// name. "classic" is the textbook scenario. "chagas" is the three-year
// comparison run; for seic it uses the low reference transmission rates, under
// which the outbreak barely spreads. seic/endemic keeps the model's default
// rates, which sustain transmission in all three species.
var Presets = map[string]map[string]*Config{
	"sir": {
		"classic": {
			Model: "sir", Solver: "rk45", Duration: 160,
			Params:       map[string]float64{"beta": 0.3, "gamma": 0.1},
			InitialState: map[string]float64{"S": 999, "I": 1, "R": 0},
		},
		"chagas": {
			Model: "sir", Solver: "rk45", Duration: 1095,
			Params:       map[string]float64{"beta": 0.3, "gamma": 1.0 / 60},
			InitialState: map[string]float64{"S": 1_000_000 - 10, "I": 10, "R": 0},
		},
		"subcritical": {
			Model: "sir", Solver: "rk45", Duration: 365,
			Params:       map[string]float64{"beta": 0.08, "gamma": 0.1},
			InitialState: map[string]float64{"S": 990, "I": 10, "R": 0},
		},
	},
	"seir": {
		"classic": {
			Model: "seir", Solver: "rk45", Duration: 200,
			Params:       map[string]float64{"beta": 0.3, "sigma": 0.2, "gamma": 0.1},
			InitialState: map[string]float64{"S": 999, "E": 0, "I": 1, "R": 0},
		},
		"chagas": {
			Model: "seir", Solver: "rk45", Duration: 1095,
			Params:       map[string]float64{"beta": 0.25, "sigma": 1.0 / 14, "gamma": 1.0 / 60},
			InitialState: map[string]float64{"S": 1_000_000 - 10, "E": 0, "I": 10, "R": 0},
		},
	},
	"seic": {
		"equilibrium": {
			Model: "seic", Solver: "rk45", Duration: 1095,
		},
		"chagas": {
			Model: "seic", Solver: "rk45", Duration: 1095,
			Params: map[string]float64{
				"beta_hv": 0.00003, "beta_vh": 0.00005, "beta_va": 0.00008, "beta_av": 0.000005,
			},
			InitialState: chagasOutbreak,
		},
		"endemic": {
			Model: "seic", Solver: "rk45", Duration: 1095,
			InitialState: chagasOutbreak,
		},
	},
}

// chagasOutbreak seeds 10 acute humans, 10 infected vectors and 50 infected
// animals. Clone copies the map, so presets may share it.
var chagasOutbreak = map[string]float64{
	"S_h": 1_000_000 - 10, "E_h": 0, "I_h": 10, "C_h": 0,
	"S_v": 10_000, "E_v": 0, "I_v": 10,
	"S_a": 50_000 - 50, "I_a": 50,
}

// presetsOf looks model up by canonical name, so aliases such as "chagas"
// find the seic presets.
func presetsOf(model string) (map[string]*Config, bool) {
	v, err := epi.ParseVariant(model)
	if err != nil {
		return nil, false
	}
	ps, ok := Presets[v.String()]
	return ps, ok
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := presetsOf(model)
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := presetsOf(model)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
