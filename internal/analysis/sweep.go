package analysis

import (
	"context"
	"fmt"

	"github.com/san-kum/episim/internal/dynamo"
	"github.com/san-kum/episim/internal/experiment"
)

// SweepPoint is the outcome of one run of a parameter sweep.
type SweepPoint struct {
	Value        float64 `json:"value"`
	R0           float64 `json:"r0"`
	FinalSize    float64 `json:"final_size"`
	AttackRate   float64 `json:"attack_rate"`
	PeakInfected float64 `json:"peak_infected"`
	PeakTime     float64 `json:"peak_time"`
}

// Sweep reconfigures base with param set to each value and runs the copies
// on up to workers goroutines. base itself is not run. Points come back in
// the order of values.
func Sweep(ctx context.Context, base *experiment.Experiment, param string, values []float64, workers int) ([]SweepPoint, error) {
	if _, ok := base.Params()[param]; !ok {
		return nil, fmt.Errorf("sweep: %s has no parameter %q", base.Variant(), param)
	}

	exps := make([]*experiment.Experiment, len(values))
	for i, v := range values {
		e, err := base.With(map[string]float64{param: v})
		if err != nil {
			return nil, fmt.Errorf("sweep %s=%g: %w", param, v, err)
		}
		exps[i] = e
	}

	points := make([]SweepPoint, len(values))
	err := dynamo.Parallel(ctx, len(exps), workers, func(ctx context.Context, i int) error {
		traj, err := exps[i].Run(ctx)
		if err != nil {
			return fmt.Errorf("sweep %s=%g: %w", param, values[i], err)
		}
		s := experiment.Report(exps[i], traj)
		points[i] = SweepPoint{
			Value:        values[i],
			R0:           s.R0,
			FinalSize:    s.FinalSize,
			AttackRate:   s.AttackRate,
			PeakInfected: s.PeakInfected,
			PeakTime:     s.PeakTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Threshold returns the parameter value where R0 first crosses 1 between
// consecutive points, by linear interpolation.
func Threshold(points []SweepPoint) (float64, bool) {
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if (a.R0 < 1) == (b.R0 < 1) || a.R0 == b.R0 {
			continue
		}
		f := (1 - a.R0) / (b.R0 - a.R0)
		return a.Value + f*(b.Value-a.Value), true
	}
	return 0, false
}
