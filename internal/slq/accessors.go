package slq

import (
	"fmt"

	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	"gonum.org/v1/gonum/mat"
)

// Controller returns a copy of the per-partition controllers.
func (s *Solver) Controller() []control.Policy {
	out := make([]control.Policy, len(s.policies))
	for i := range s.policies {
		out[i] = s.policies[i].Clone()
	}
	return out
}

// SwapController installs policies as the internal controllers and returns
// the previous ones.
func (s *Solver) SwapController(policies []control.Policy) ([]control.Policy, error) {
	if len(s.policies) > 0 && len(policies) != len(s.policies) {
		return nil, fmt.Errorf("%w: %d controllers for %d partitions", ErrControllerCount, len(policies), len(s.policies))
	}
	prev := s.policies
	s.policies = policies
	return prev, nil
}

// NominalTrajectories returns a copy of the nominal trajectory of every
// partition. Inactive partitions are empty.
func (s *Solver) NominalTrajectories() []dynamo.Trajectory {
	out := make([]dynamo.Trajectory, len(s.nominal))
	for i := range s.nominal {
		out[i] = s.nominal[i].Clone()
	}
	return out
}

func (s *Solver) PerformanceIndices() linesearch.Performance { return s.perf }

func (s *Solver) IterationLog() []IterationRecord {
	return append([]IterationRecord(nil), s.history...)
}

func (s *Solver) Stats() Stats { return s.stats }

func (s *Solver) RewindCounter() int { return s.rewindCounter }

func (s *Solver) ActivePartitions() (int, int) { return s.initActive, s.finalActive }

// Boundaries returns the terminal value function of every partition as used
// by the last backward pass.
func (s *Solver) Boundaries() []riccati.Boundary {
	out := make([]riccati.Boundary, len(s.boundaries))
	for i, b := range s.boundaries {
		if !b.Empty() {
			out[i] = b.Clone()
		}
	}
	return out
}

// ValueFunction evaluates s + dx'Sv + 0.5 dx'Sm dx at t, where dx is the
// deviation of x from the nominal state the value function was solved
// around.
func (s *Solver) ValueFunction(t float64, x dynamo.State) (float64, error) {
	if !s.ran {
		return 0, ErrNotRun
	}
	i, err := schedule.FindActivePartition(s.partitioning, t)
	if err != nil {
		return 0, err
	}
	i = min(max(i, s.initActive), s.finalActive)
	sol, tr := &s.solutions[i], &s.solved[i]
	if sol.Empty() || tr.Len() != sol.Len() {
		return 0, fmt.Errorf("slq: no value function for partition %d", i)
	}

	k, alpha := dynamo.Locate(sol.Times, t)
	k1 := min(k+1, sol.Len()-1)
	sm := dynamo.LerpDense(sol.Sm[k], sol.Sm[k1], alpha)
	sv := dynamo.LerpVec(sol.Sv[k], sol.Sv[k1], alpha)
	v := (1-alpha)*sol.S[k] + alpha*sol.S[k1]

	dx := x.Sub(nominalAt(tr, t)).Vec()
	var smdx mat.VecDense
	smdx.MulVec(sm, dx)
	return v + mat.Dot(dx, sv) + 0.5*mat.Dot(dx, &smdx), nil
}

// Rewind drops the first n partitions for a receding horizon: controllers,
// boundaries and cached solutions shift n places towards the front and the
// tail is cleared.
func (s *Solver) Rewind(n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || n > len(s.policies) {
		return fmt.Errorf("%w: %d of %d partitions", ErrRewind, n, len(s.policies))
	}
	shift(s.policies, n)
	shift(s.boundaries, n)
	shift(s.solutions, n)
	shift(s.solved, n)
	shift(s.nominal, n)
	s.rewindCounter += n
	return nil
}

func shift[T any](xs []T, n int) {
	if n > len(xs) {
		n = len(xs)
	}
	copy(xs, xs[n:])
	var zero T
	for i := len(xs) - n; i < len(xs); i++ {
		xs[i] = zero
	}
}
