package experiment

import (
	"errors"
	"fmt"

	"github.com/san-kum/episim/internal/epi"
)

var (
	ErrConfig     = errors.New("experiment: invalid configuration")
	ErrSimulation = errors.New("experiment: simulation failed")
	ErrPhase      = errors.New("experiment: wrong phase")
)

// ErrSharedSolver means a derived descriptor would reuse its parent's solver.
var ErrSharedSolver = errors.New("experiment: solver instance cannot be shared")

// ConfigError reports which input of which variant was rejected.
type ConfigError struct {
	Variant epi.Variant
	Field   string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Variant == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.Variant, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

// SimulationError wraps a solver failure with the variant that produced it.
type SimulationError struct {
	Variant epi.Variant
	Err     error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%s: simulation failed: %v", e.Variant, e.Err)
}

func (e *SimulationError) Unwrap() []error {
	return []error{ErrSimulation, e.Err}
}
