// Package mpc closes the loop around the SLQ solver: it re-solves over a
// receding horizon, applies the first stretch of the optimized controller to
// a simulated plant and shifts the partitioning as time advances.
package mpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"github.com/lizqwerscott/ocs2-ros2/internal/metrics"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

var ErrInvalidConfig = errors.New("mpc: invalid configuration")

type Config struct {
	Duration        float64 `yaml:"duration" json:"duration"`
	Horizon         float64 `yaml:"horizon" json:"horizon"`
	PartitionLength float64 `yaml:"partition_length" json:"partition_length"`
	Period          float64 `yaml:"period" json:"period"`
	Integrator      string  `yaml:"integrator" json:"integrator"`
	PlantStep       float64 `yaml:"plant_step" json:"plant_step"`
	StabilityBand   float64 `yaml:"stability_band" json:"stability_band"`
}

func DefaultConfig() Config {
	return Config{
		Duration:        4,
		Horizon:         1,
		PartitionLength: 0.25,
		Period:          0.05,
		Integrator:      "rk4",
		PlantStep:       1e-3,
		StabilityBand:   0.1,
	}
}

func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidConfig, c.Duration)
	}
	if c.Horizon <= 0 || c.PartitionLength <= 0 {
		return fmt.Errorf("%w: horizon and partition length must be positive", ErrInvalidConfig)
	}
	if c.Period <= 0 || c.Period > c.PartitionLength {
		return fmt.Errorf("%w: period must be in (0, partition length], got %g", ErrInvalidConfig, c.Period)
	}
	if c.PlantStep <= 0 {
		return fmt.Errorf("%w: plant step must be positive, got %g", ErrInvalidConfig, c.PlantStep)
	}
	return nil
}

// Step is reported after every solve.
type Step struct {
	Time       float64
	State      dynamo.State
	Input      dynamo.Input
	Cost       float64
	Iterations int
	Rewinds    int
}

type Result struct {
	Trajectory dynamo.Trajectory
	Metrics    map[string]float64
	Solves     int
	Rewinds    int
	Iterations int
}

// Loop runs the receding-horizon controller. The solver keeps its controllers
// between solves, so every solve after the first is warm started.
type Loop struct {
	solver    *slq.Solver
	plant     *dynamo.Problem
	integ     integrators.Integrator
	cfg       Config
	logger    *slog.Logger
	metrics   []metrics.Metric
	observers []func(Step)
}

func New(solver *slq.Solver, plant *dynamo.Problem, cfg Config, logger *slog.Logger) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := plant.Validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		solver: solver,
		plant:  plant.Clone(),
		integ:  integ,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (l *Loop) AddMetric(m metrics.Metric) { l.metrics = append(l.metrics, m) }
func (l *Loop) AddObserver(fn func(Step))  { l.observers = append(l.observers, fn) }

// Partitioning returns the absolute partition grid covering the run plus one
// horizon.
func (l *Loop) Partitioning(t0 float64) []float64 {
	n := int(math.Ceil((l.cfg.Duration+l.cfg.Horizon)/l.cfg.PartitionLength)) + 1
	times := make([]float64, n+1)
	for i := range times {
		times[i] = t0 + float64(i)*l.cfg.PartitionLength
	}
	return times
}

func (l *Loop) Run(ctx context.Context, t0 float64, x0 dynamo.State) (*Result, error) {
	grid := l.Partitioning(t0)
	window := int(math.Ceil(l.cfg.Horizon/l.cfg.PartitionLength)) + 1
	if window+1 > len(grid) {
		return nil, fmt.Errorf("%w: horizon longer than the partition grid", ErrInvalidConfig)
	}

	for _, m := range l.metrics {
		m.Reset()
	}

	res := &Result{Metrics: make(map[string]float64)}
	x := x0.Clone()
	t := t0
	offset := 0
	end := t0 + l.cfg.Duration

	for t < end-1e-12 {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		for offset+1 < len(grid)-window && t >= grid[offset+1] {
			if err := l.solver.Rewind(1); err != nil {
				return res, err
			}
			offset++
			res.Rewinds++
		}

		partitioning := grid[offset : offset+window+1]
		horizonEnd := math.Min(t+l.cfg.Horizon, partitioning[len(partitioning)-1])
		if err := l.solver.Run(t, x, horizonEnd, partitioning); err != nil {
			return res, fmt.Errorf("mpc: solve at t=%g: %w", t, err)
		}
		res.Solves++
		res.Iterations += l.solver.Stats().Iterations

		policies := l.solver.Controller()
		next := math.Min(t+l.cfg.Period, end)
		u, err := l.apply(&res.Trajectory, policies, partitioning, t, next, x)
		if err != nil {
			return res, err
		}

		step := Step{
			Time:       t,
			State:      x.Clone(),
			Input:      u,
			Cost:       l.solver.PerformanceIndices().Cost,
			Iterations: l.solver.Stats().Iterations,
			Rewinds:    res.Rewinds,
		}
		l.logger.Debug("[mpc]",
			slog.String("event", "solve"),
			slog.Float64("time", t),
			slog.Float64("cost", step.Cost),
			slog.Int("iterations", step.Iterations),
		)
		for _, obs := range l.observers {
			obs(step)
		}
		t = next
	}

	for _, m := range l.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res, nil
}

// apply integrates the plant from t to next under policies and appends the
// samples to tr. x is advanced in place. It returns the input applied at t.
func (l *Loop) apply(tr *dynamo.Trajectory, policies []control.Policy, partitioning []float64,
	t, next float64, x dynamo.State) (dynamo.Input, error) {
	policyAt := func(t float64) *control.Policy {
		for i := len(partitioning) - 2; i >= 0; i-- {
			if t >= partitioning[i] && !policies[i].Empty() {
				return &policies[i]
			}
		}
		for i := range policies {
			if !policies[i].Empty() {
				return &policies[i]
			}
		}
		return nil
	}
	input := func(t float64, x dynamo.State) dynamo.Input {
		if p := policyAt(t); p != nil {
			return p.Compute(t, x)
		}
		return make(dynamo.Input, l.plant.System.InputDim())
	}

	u0 := input(t, x)
	machine := l.solver.Machine()
	cfg := integrators.DefaultConfig()
	cfg.InitialStep = l.cfg.PlantStep
	cfg.MaxStep = l.cfg.PlantStep

	var guard integrators.Guard
	if g, ok := l.plant.System.(dynamo.Guarded); ok {
		guard = func(t float64, x []float64) []float64 { return g.GuardSurfaces(t, x) }
	}
	f := func(t float64, x, dx []float64) {
		copy(dx, l.plant.System.FlowMap(t, x, input(t, x)))
	}
	// The first sample of a period repeats the last one of the previous
	// period unless a jump happened in between.
	skip := !tr.Empty() && (len(tr.Events) == 0 || tr.Events[len(tr.Events)-1] != tr.Len())
	obs := func(t float64, x []float64) {
		if skip {
			skip = false
			return
		}
		xs := dynamo.State(x).Clone()
		u := input(t, xs)
		tr.Append(t, xs, u)
		for _, m := range l.metrics {
			m.Observe(t, xs, u)
		}
	}

	start := t
	for start < next {
		l.plant.SetMode(machine.ModeAt(start))
		r, err := l.integ.Integrate(f, x, start, next, cfg, guard, obs)
		if err != nil {
			return u0, &dynamo.SimulationError{Time: r.Time, State: x.Clone(), Wrapped: err}
		}
		if !x.IsValid() {
			return u0, &dynamo.SimulationError{Time: r.Time, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}
		if r.Event < 0 {
			break
		}
		copy(x, l.plant.System.JumpMap(r.Time, x))
		tr.MarkEvent()
		start = r.Time
	}
	return u0, nil
}
