package schedule

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrBeforeStart         = errors.New("schedule: time before the first partition boundary")
	ErrAfterEnd            = errors.New("schedule: time after the last partition boundary")
	ErrInvalidPartitioning = errors.New("schedule: partitioning times must be strictly increasing with at least two entries")
	ErrInvalidLogicRules   = errors.New("schedule: invalid logic rules")
	ErrPartitionOutOfRange = errors.New("schedule: partition index out of range")
)

// Validate checks that times describe at least one partition.
func Validate(times []float64) error {
	if len(times) < 2 {
		return fmt.Errorf("%w: got %d times", ErrInvalidPartitioning, len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("%w: times[%d]=%g <= times[%d]=%g", ErrInvalidPartitioning, i, times[i], i-1, times[i-1])
		}
	}
	return nil
}

// FindActivePartition returns the index i with times[i] < t <= times[i+1].
// A time equal to the first boundary maps to partition 0.
func FindActivePartition(times []float64, t float64) (int, error) {
	if len(times) < 2 {
		return 0, fmt.Errorf("%w: got %d times", ErrInvalidPartitioning, len(times))
	}
	if t < times[0] {
		return 0, fmt.Errorf("%w: t=%g, start=%g", ErrBeforeStart, t, times[0])
	}
	if t > times[len(times)-1] {
		return 0, fmt.Errorf("%w: t=%g, end=%g", ErrAfterEnd, t, times[len(times)-1])
	}
	return max(0, sort.SearchFloat64s(times, t)-1), nil
}

// LogicRules is the time-triggered mode sequence: Modes[k] is active between
// SwitchingTimes[k-1] and SwitchingTimes[k].
type LogicRules struct {
	SwitchingTimes []float64 `yaml:"switching_times" json:"switching_times"`
	Modes          []int     `yaml:"modes" json:"modes"`
}

func (r LogicRules) Validate() error {
	if len(r.Modes) != 0 && len(r.Modes) != len(r.SwitchingTimes)+1 {
		return fmt.Errorf("%w: %d modes for %d switching times", ErrInvalidLogicRules, len(r.Modes), len(r.SwitchingTimes))
	}
	for i := 1; i < len(r.SwitchingTimes); i++ {
		if r.SwitchingTimes[i] < r.SwitchingTimes[i-1] {
			return fmt.Errorf("%w: switching times must be non-decreasing", ErrInvalidLogicRules)
		}
	}
	return nil
}

// subsystem returns the number of switches at or before t.
func (r LogicRules) subsystem(t float64) int {
	return sort.Search(len(r.SwitchingTimes), func(i int) bool { return r.SwitchingTimes[i] > t })
}

func (r LogicRules) mode(subsystem int) int {
	if len(r.Modes) == 0 {
		return subsystem
	}
	return r.Modes[min(subsystem, len(r.Modes)-1)]
}

// ModeAt returns the mode active at t. At a switching time the new mode is
// already active.
func (r LogicRules) ModeAt(t float64) int {
	return r.mode(r.subsystem(t))
}
