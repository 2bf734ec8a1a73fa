package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Linspace returns n evenly spaced points over [t0, t1], both ends included.
func Linspace(t0, t1 float64, n int) []float64 {
	if n < 2 {
		return []float64{t0}
	}
	return floats.Span(make([]float64, n), t0, t1)
}

// DailyGrid samples [0, days] once per day.
func DailyGrid(days int) []float64 {
	return Linspace(0, float64(days), days+1)
}

func ValidateGrid(grid []float64) error {
	if len(grid) < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrGrid, len(grid))
	}
	for i, t := range grid {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: point %d is not finite", ErrGrid, i)
		}
		if i > 0 && t <= grid[i-1] {
			return fmt.Errorf("%w: point %d (%g) does not follow %g", ErrGrid, i, t, grid[i-1])
		}
	}
	return nil
}
