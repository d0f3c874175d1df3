package slq

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/metrics"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/lizqwerscott/ocs2-ros2/internal/rollout"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
)

// candidate is a rolled-out controller together with everything needed to
// adopt it as the new nominal.
type candidate struct {
	policies []control.Policy
	out      rollout.Output
	rcs      []approx.RolloutConstraints
	machine  *schedule.Machine
	perf     linesearch.Performance
}

// evaluate rolls out policies on worker w and scores the result.
func (s *Solver) evaluate(w int, policies []control.Policy) (*candidate, error) {
	machine := s.machine
	if s.settings.StateTriggered {
		machine = s.machine.Clone()
	}
	p := s.workers[w]
	out, err := s.engines[w].Run(p, s.initTime, s.initState, s.finalTime, s.partitioning, policies, machine)
	if err != nil {
		return nil, err
	}

	rcs := make([]approx.RolloutConstraints, len(out.Partitions))
	for i := s.initActive; i <= s.finalActive; i++ {
		rcs[i] = s.approximator.Constraints(p, &out.Partitions[i], machine.ModeAt)
	}
	penalty := s.settings.Approx.Penalty(s.iteration)
	rho := linesearch.MeritWeight(s.iteration, s.settings.MaxIterations, s.settings.MeritRho)
	perf := metrics.Evaluate(p, out.Partitions, rcs, s.finalActive, penalty, machine.ModeAt).WithMerit(rho)

	return &candidate{policies: policies, out: out, rcs: rcs, machine: machine, perf: perf}, nil
}

func (s *Solver) adopt(c *candidate) {
	s.policies = c.policies
	s.nominal = c.out.Partitions
	s.rcs = c.rcs
	s.machine = c.machine
	s.perf = c.perf
}

// stepped returns the controllers with the feedforward increment scaled by
// rate. Gains are shared with the current controllers.
func (s *Solver) stepped(rate float64) []control.Policy {
	out := make([]control.Policy, len(s.policies))
	for i := range s.policies {
		if !s.policies[i].Empty() {
			out[i] = s.policies[i].Step(rate)
		}
	}
	return out
}

// lineSearch rolls out the baseline and the candidate rates and adopts the
// accepted one, or the baseline when none is accepted.
func (s *Solver) lineSearch() (float64, string, error) {
	start := time.Now()
	defer func() { s.stats.forward.add(time.Since(start)) }()

	for i := s.initActive; i <= s.finalActive; i++ {
		if d, at := s.policies[i].MaxDeltaNorm(); d > 0 {
			s.printer.print("[slq]",
				slog.String("event", "max_delta"),
				slog.Int("partition", i),
				slog.Float64("norm", d),
				slog.Float64("time", at),
			)
		}
	}

	base, baseErr := s.evaluate(0, s.stepped(0))
	basePerf := linesearch.Diverged()
	if baseErr == nil {
		basePerf = base.perf
	}

	step := linesearch.Search(s.settings.LineSearch, s.logger, basePerf, s.descent,
		func(w int, rate float64) (linesearch.Performance, *candidate, error) {
			c, err := s.evaluate(w, s.stepped(rate))
			if err != nil {
				return linesearch.Performance{}, nil, err
			}
			return c.perf, c, nil
		})

	if step.Type == linesearch.Zero {
		if baseErr != nil {
			return 0, "", fmt.Errorf("slq: baseline rollout: %w", baseErr)
		}
		s.adopt(base)
		return 0, step.Type.String(), nil
	}
	s.adopt(step.Result)
	return step.Rate, step.Type.String(), nil
}

func (s *Solver) approximate() error {
	for i := s.initActive; i <= s.finalActive; i++ {
		lq, err := s.approximator.Partition(s.workers, &s.nominal[i], s.machine.ModeAt, s.iteration)
		if err != nil {
			return fmt.Errorf("slq: partition %d: %w", i, err)
		}
		s.lq[i] = lq
	}

	tr := &s.nominal[s.finalActive]
	t, x, _ := tr.Final()
	p := s.workers[0]
	p.SetMode(s.machine.ModeAt(t))
	s.heuristic = riccati.Terminal(s.approximator.Heuristics(p, t, x), x)
	return nil
}

func (s *Solver) backward() error {
	parts := make([]riccati.Input, len(s.nominal))
	for i := range parts {
		parts[i] = riccati.Input{Trajectory: &s.nominal[i], LQ: &s.lq[i]}
	}

	var sols []riccati.Solution
	var err error
	if s.settings.ParallelRiccati && s.iteration >= 1 {
		sols, _, err = s.riccati.Parallel(parts, s.initActive, s.finalActive, s.heuristic, s.boundaries)
	} else {
		sols, err = s.riccati.Sequential(parts, s.initActive, s.finalActive, s.heuristic)
	}
	if err != nil {
		return err
	}
	s.solutions = sols
	s.solved = append([]dynamo.Trajectory(nil), s.nominal...)

	for i := s.initActive; i < s.finalActive; i++ {
		if next := &sols[i+1]; !next.Empty() {
			s.boundaries[i] = next.Start(s.nominal[i+1].States[0])
		}
	}
	s.boundaries[s.finalActive] = s.heuristic.Clone()
	return nil
}

func (s *Solver) design(constraintStep float64) {
	s.descent = 0
	for i := s.initActive; i <= s.finalActive; i++ {
		policy, descent := s.designer.Design(i, &s.nominal[i], &s.lq[i], &s.solutions[i], s.designStep(i, constraintStep))
		s.policies[i] = policy
		s.descent += descent
	}
}

func nominalAt(tr *dynamo.Trajectory, t float64) dynamo.State {
	k, alpha := dynamo.Locate(tr.Times, t)
	return dynamo.State(dynamo.Lerp(tr.States[k], tr.States[min(k+1, tr.Len()-1)], alpha))
}
