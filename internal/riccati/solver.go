package riccati

import (
	"errors"
	"log/slog"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

// Input is one partition's nominal trajectory and its LQ model.
type Input struct {
	Trajectory *dynamo.Trajectory
	LQ         *approx.Partition
}

// Solver runs the backward pass over all active partitions. It holds no
// per-run state and may be shared.
type Solver struct {
	settings Settings
	logger   *slog.Logger
}

func New(settings Settings, logger *slog.Logger) (*Solver, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{settings: settings, logger: logger}, nil
}

func (s *Solver) Settings() Settings { return s.settings }

// Sequential solves the partitions from finalActive down to initActive,
// handing each partition's start value to the one before it. The last
// active partition ends in heuristic.
func (s *Solver) Sequential(parts []Input, initActive, finalActive int, heuristic Boundary) ([]Solution, error) {
	sols := make([]Solution, len(parts))
	final := heuristic
	for i := finalActive; i >= initActive; i-- {
		sol, err := s.Partition(i, parts[i].Trajectory, parts[i].LQ, final)
		if err != nil {
			return sols, err
		}
		sols[i] = sol
		if !sol.Empty() {
			final = sol.Start(parts[i].Trajectory.States[0])
		}
	}
	return sols, nil
}

// Parallel solves all active partitions concurrently. Partition i ends in
// guesses[i] on the first sweep and in the start value of partition i+1
// from the previous sweep afterwards. Sweeps stop once the largest boundary
// mismatch drops below ParallelTolerance. When it does not within
// ParallelMaxSweeps the result of a sequential pass is returned instead and
// converged is false.
func (s *Solver) Parallel(parts []Input, initActive, finalActive int, heuristic Boundary, guesses []Boundary) (sols []Solution, converged bool, err error) {
	finals := make([]Boundary, len(parts))
	for i := initActive; i < finalActive; i++ {
		if i < len(guesses) && !guesses[i].Empty() {
			finals[i] = guesses[i]
		} else {
			finals[i] = heuristic
		}
	}
	finals[finalActive] = heuristic

	sweeps := max(1, s.settings.ParallelMaxSweeps)
	n := finalActive - initActive + 1
	residual := 0.0
	for sweep := 1; sweep <= sweeps; sweep++ {
		sols = make([]Solution, len(parts))
		errs := make([]error, len(parts))
		dynamo.ForEach(n, dynamo.Workers(s.settings.Workers), func(_, j int) {
			i := initActive + j
			sols[i], errs[i] = s.Partition(i, parts[i].Trajectory, parts[i].LQ, finals[i])
		})
		if err := errors.Join(errs...); err != nil {
			return sols, false, err
		}

		residual = 0
		for i := initActive; i < finalActive; i++ {
			next := &sols[i+1]
			if next.Empty() {
				continue
			}
			start := next.Start(parts[i+1].Trajectory.States[0])
			residual = max(residual, finals[i].Recenter(start.X).Distance(start))
			finals[i] = start
		}
		if residual <= s.settings.ParallelTolerance {
			s.logger.Debug("[riccati]",
				slog.String("event", "parallel_converged"),
				slog.Int("sweeps", sweep),
				slog.Float64("residual", residual),
			)
			return sols, true, nil
		}
	}

	s.logger.Warn("[riccati]",
		slog.String("event", "parallel_not_converged"),
		slog.Int("sweeps", sweeps),
		slog.Float64("residual", residual),
	)
	sols, err = s.Sequential(parts, initActive, finalActive, heuristic)
	return sols, false, err
}
