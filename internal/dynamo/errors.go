package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors shared by the solver packages.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidProblem indicates a problem bundle missing a required service.
	ErrInvalidProblem = errors.New("dynamo: invalid problem")

	// ErrDimensionMismatch indicates mismatched state/input dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrTimeOrder indicates an initial time after the final time.
	ErrTimeOrder = errors.New("dynamo: initial time is greater than final time")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Partition int
	Time      float64
	State     State
	Wrapped   error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("partition %d at t=%g: %v", e.Partition, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// CheckDims reports whether x and u match the system dimensions.
func CheckDims(sys System, x State, u Input) error {
	if len(x) != sys.StateDim() {
		return fmt.Errorf("%w: state has %d entries, system expects %d", ErrDimensionMismatch, len(x), sys.StateDim())
	}
	if u != nil && len(u) != sys.InputDim() {
		return fmt.Errorf("%w: input has %d entries, system expects %d", ErrDimensionMismatch, len(u), sys.InputDim())
	}
	return nil
}
