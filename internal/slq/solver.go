// Package slq implements the sequential linear-quadratic solver for hybrid
// systems: it iterates rollout, LQ approximation, Riccati backward pass,
// controller synthesis and line search until the cost and the type-1
// constraint error settle.
package slq

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/lizqwerscott/ocs2-ros2/internal/rollout"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	"github.com/lizqwerscott/ocs2-ros2/internal/synthesis"
)

var (
	ErrControllerCount = errors.New("slq: controller count does not match partition count")
	ErrRewind          = errors.New("slq: cannot rewind past the partitioning")
	ErrNotRun          = errors.New("slq: solver has not been run")
)

// Option configures a Solver.
type Option func(*Solver)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) { s.logger = logger }
}

// WithObserver registers a callback invoked after every iteration.
func WithObserver(fn func(IterationRecord)) Option {
	return func(s *Solver) { s.observer = fn }
}

type Solver struct {
	settings Settings
	logger   *slog.Logger
	printer  *printer
	observer func(IterationRecord)

	workers      []*dynamo.Problem
	engines      []rollout.Engine
	machine      *schedule.Machine
	approximator *approx.Approximator
	riccati      *riccati.Solver
	designer     *synthesis.Designer
	desired      *dynamo.Desired

	initTime, finalTime     float64
	initState               dynamo.State
	partitioning            []float64
	initActive, finalActive int

	policies   []control.Policy
	prefixes   []control.Policy
	nominal    []dynamo.Trajectory
	rcs        []approx.RolloutConstraints
	lq         []approx.Partition
	solutions  []riccati.Solution
	solved     []dynamo.Trajectory
	boundaries []riccati.Boundary
	heuristic  riccati.Boundary
	descent    float64

	perf          linesearch.Performance
	iteration     int
	initEmpty     bool
	firstDesign   []bool
	history       []IterationRecord
	rewindCounter int
	stats         Stats
	ran           bool
}

// New builds a solver for problem. One private clone of the problem and one
// rollout engine are created per worker.
func New(problem *dynamo.Problem, rules schedule.LogicRules, settings Settings, opts ...Option) (*Solver, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	machine, err := schedule.NewMachine(rules)
	if err != nil {
		return nil, err
	}
	engine, err := rollout.New(settings.StateTriggered, settings.Rollout)
	if err != nil {
		return nil, err
	}

	s := &Solver{
		settings: settings,
		logger:   slog.Default(),
		machine:  machine,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.printer = &printer{logger: s.logger, info: settings.DisplayInfo}

	n := dynamo.Workers(settings.Workers)
	s.settings.LineSearch.Workers = n
	s.settings.Riccati.Workers = n
	for w := 0; w < n; w++ {
		s.workers = append(s.workers, problem.Clone())
		if w == 0 {
			s.engines = append(s.engines, engine)
		} else {
			s.engines = append(s.engines, engine.Clone())
		}
	}

	s.approximator = approx.New(s.settings.Approx, s.logger)
	if s.riccati, err = riccati.New(s.settings.Riccati, s.logger); err != nil {
		return nil, err
	}
	s.designer = synthesis.New(s.logger)
	return s, nil
}

func (s *Solver) Settings() Settings { return s.settings }

// SetDesired hands the reference trajectory to every cost clone.
func (s *Solver) SetDesired(d *dynamo.Desired) {
	s.desired = d
	for _, p := range s.workers {
		p.Cost.SetDesired(d)
	}
}

// SetLogicRules replaces the switching times and mode sequence.
func (s *Solver) SetLogicRules(rules schedule.LogicRules) error {
	return s.machine.SetRules(rules)
}

func (s *Solver) Machine() *schedule.Machine { return s.machine }

// Run optimizes from the internal controller, or from the operating
// trajectories when it is empty.
func (s *Solver) Run(initTime float64, initState dynamo.State, finalTime float64, partitioning []float64) error {
	return s.run(initTime, initState, finalTime, partitioning, nil)
}

// RunWithController optimizes starting from the given per-partition
// controllers, which replace the internal ones.
func (s *Solver) RunWithController(initTime float64, initState dynamo.State, finalTime float64,
	partitioning []float64, policies []control.Policy) error {
	return s.run(initTime, initState, finalTime, partitioning, policies)
}

func (s *Solver) run(initTime float64, initState dynamo.State, finalTime float64,
	partitioning []float64, policies []control.Policy) error {
	if initTime > finalTime {
		return fmt.Errorf("%w: initial time %g after final time %g", dynamo.ErrTimeOrder, initTime, finalTime)
	}
	if err := schedule.Validate(partitioning); err != nil {
		return err
	}
	if err := dynamo.CheckDims(s.workers[0].System, initState, nil); err != nil {
		return err
	}
	n := len(partitioning) - 1
	if policies != nil && len(policies) != n {
		return fmt.Errorf("%w: %d controllers for %d partitions", ErrControllerCount, len(policies), n)
	}
	initActive, err := schedule.FindActivePartition(partitioning, initTime)
	if err != nil {
		return fmt.Errorf("slq: initial time: %w", err)
	}
	finalActive, err := schedule.FindActivePartition(partitioning, finalTime)
	if err != nil {
		return fmt.Errorf("slq: final time: %w", err)
	}

	s.stats = Stats{RewindCounter: s.rewindCounter}
	s.history = nil
	s.iteration = 0
	s.initTime, s.finalTime = initTime, finalTime
	s.initState = initState.Clone()
	s.partitioning = append([]float64(nil), partitioning...)
	s.initActive, s.finalActive = initActive, finalActive
	s.resize(n, policies)

	if err := s.machine.Update(partitioning); err != nil {
		return err
	}
	for _, p := range s.workers {
		p.Reset()
	}

	s.prefixes = make([]control.Policy, n)
	for i := range s.policies {
		s.prefixes[i] = s.policies[i].Truncate(initTime)
	}
	s.markFirstDesigns()

	if s.settings.DisplayInfo {
		s.machine.Display(s.logger)
	}

	if err := s.runInit(); err != nil {
		return err
	}

	converged := false
	for s.iteration+1 < s.settings.MaxIterations && !converged {
		prevCost, prevISE1 := s.perf.Cost, s.perf.ISE1
		s.iteration++
		step, err := s.runIteration()
		if err != nil {
			return err
		}

		relCost := math.Abs(s.perf.Cost - prevCost)
		constraintOK := s.perf.ISE1 <= s.settings.MinAbsConstraint1ISE ||
			math.Abs(s.perf.ISE1-prevISE1) <= s.settings.MinRelConstraint1ISE
		lrZero := step == 0 && !s.initEmpty
		converged = (relCost <= s.settings.MinRelCost || lrZero) && constraintOK
		s.initEmpty = false
	}

	if err := s.runExit(); err != nil {
		return err
	}

	s.stats.Iterations = s.iteration + 1
	s.stats.Converged = converged
	if converged {
		s.stats.Reason = "converged"
	} else {
		s.stats.Reason = "max_iterations"
	}
	s.stats.finish()
	s.ran = true
	if s.settings.DisplayShortSummary {
		s.printer.summary(s.stats, s.perf)
	}
	return nil
}

// resize sizes the per-partition buffers. Controllers and boundaries
// survive between runs as long as the partition count is unchanged.
func (s *Solver) resize(n int, policies []control.Policy) {
	switch {
	case len(policies) == n && n > 0:
		s.policies = make([]control.Policy, n)
		for i := range policies {
			s.policies[i] = policies[i].Clone()
		}
	case len(s.policies) != n:
		s.policies = make([]control.Policy, n)
	}
	if len(s.boundaries) != n {
		s.boundaries = make([]riccati.Boundary, n)
	}
	s.nominal = make([]dynamo.Trajectory, n)
	s.rcs = make([]approx.RolloutConstraints, n)
	s.lq = make([]approx.Partition, n)
	s.solutions = make([]riccati.Solution, n)
	s.solved = make([]dynamo.Trajectory, n)
}

// runInit rolls out the initial controller and designs the first update.
func (s *Solver) runInit() error {
	start := time.Now()
	cand, err := s.evaluate(0, s.policies)
	if err != nil {
		return err
	}
	s.stats.forward.add(time.Since(start))
	s.adopt(cand)
	s.record(0, 0, "init")
	return s.update(s.settings.ConstraintStepSize)
}

// markFirstDesigns flags the active partitions that start without a
// controller. Their first design uses a zero constraint step.
func (s *Solver) markFirstDesigns() {
	s.firstDesign = make([]bool, len(s.policies))
	s.initEmpty = true
	for i := s.initActive; i <= s.finalActive; i++ {
		s.firstDesign[i] = s.policies[i].Empty()
		if !s.firstDesign[i] {
			s.initEmpty = false
		}
	}
}

// designStep returns the constraint step for partition i and consumes its
// first-design flag.
func (s *Solver) designStep(i int, step float64) float64 {
	if i < len(s.firstDesign) && s.firstDesign[i] {
		s.firstDesign[i] = false
		return 0
	}
	return step
}

// runIteration applies the pending update through the line search and
// designs the next one. It returns the accepted learning rate.
func (s *Solver) runIteration() (float64, error) {
	rate, typ, err := s.lineSearch()
	if err != nil {
		return 0, err
	}
	s.record(s.iteration, rate, typ)
	return rate, s.update(s.settings.ConstraintStepSize)
}

// runExit applies the last update and restores the truncated controller
// history.
func (s *Solver) runExit() error {
	rate, typ, err := s.lineSearch()
	if err != nil {
		return err
	}
	s.record(s.iteration+1, rate, typ)
	for i := range s.policies {
		s.policies[i].Splice(s.prefixes[i])
		s.prefixes[i] = control.Policy{}
	}
	return nil
}

// update approximates, solves the backward pass and designs new
// controllers around the current nominal trajectories.
func (s *Solver) update(constraintStep float64) error {
	start := time.Now()
	if err := s.approximate(); err != nil {
		return err
	}
	s.stats.approximation.add(time.Since(start))

	start = time.Now()
	if err := s.backward(); err != nil {
		return err
	}
	s.stats.backward.add(time.Since(start))

	s.design(constraintStep)
	return nil
}

func (s *Solver) record(iteration int, rate float64, typ string) {
	var maxDelta float64
	for i := s.initActive; i <= s.finalActive; i++ {
		d, _ := s.policies[i].MaxDeltaNorm()
		maxDelta = math.Max(maxDelta, d)
	}
	r := IterationRecord{
		Iteration:    iteration,
		Performance:  s.perf,
		LearningRate: rate,
		StepType:     typ,
		MaxDelta:     maxDelta,
	}
	s.history = append(s.history, r)
	if typ != "init" {
		s.stats.LearningRates = append(s.stats.LearningRates, rate)
	}
	s.printer.iteration(r)
	if s.observer != nil {
		s.observer(r)
	}
}
