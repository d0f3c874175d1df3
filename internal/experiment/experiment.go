// Package experiment wires a configuration to a registered model and runs
// the solver or the receding-horizon loop on it.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/metrics"
	"github.com/lizqwerscott/ocs2-ros2/internal/mpc"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

const warmstartSamples = 50

type Result struct {
	Model       string
	Stats       slq.Stats
	Performance linesearch.Performance
	Log         []slq.IterationRecord
	Trajectory  dynamo.Trajectory
	Controller  []control.Policy
	Metrics     map[string]float64
	Elapsed     time.Duration
}

type Experiment struct {
	cfg    *config.Config
	model  Model
	solver *slq.Solver
	logger *slog.Logger
}

func New(cfg *config.Config, reg *Registry, logger *slog.Logger, opts ...slq.Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := reg.GetModel(cfg.Problem.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Problem.Warmstart == config.WarmstartLQR && model.LQR == nil {
		return nil, fmt.Errorf("%w: model %s has no LQR warm start", config.ErrInvalidConfig, model.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]slq.Option{slq.WithLogger(logger)}, opts...)
	solver, err := slq.New(model.Problem(), cfg.Rules(), cfg.SolverSettings(), opts...)
	if err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, model: model, solver: solver, logger: logger}, nil
}

func (e *Experiment) Solver() *slq.Solver { return e.solver }
func (e *Experiment) Model() Model        { return e.model }

// InitState returns the configured initial state or the model default.
func (e *Experiment) InitState() dynamo.State {
	if len(e.cfg.Problem.InitState) > 0 {
		return dynamo.State(e.cfg.Problem.InitState).Clone()
	}
	return e.model.InitState.Clone()
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := e.cfg.Problem
	partitioning := e.cfg.PartitionTimes()
	x0 := e.InitState()

	start := time.Now()
	var err error
	if p.Warmstart == config.WarmstartLQR {
		err = e.solver.RunWithController(p.InitTime, x0, p.FinalTime, partitioning, e.warmstart(partitioning))
	} else {
		err = e.solver.Run(p.InitTime, x0, p.FinalTime, partitioning)
	}
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", e.model.Name, err)
	}

	res := &Result{
		Model:       e.model.Name,
		Stats:       e.solver.Stats(),
		Performance: e.solver.PerformanceIndices(),
		Log:         e.solver.IterationLog(),
		Trajectory:  Join(e.solver.NominalTrajectories()),
		Controller:  e.solver.Controller(),
		Elapsed:     time.Since(start),
	}
	res.Metrics = e.metrics(&res.Trajectory)
	res.Metrics["cost"] = res.Performance.Cost
	res.Metrics["ise1"] = res.Performance.ISE1
	res.Metrics["ise2"] = res.Performance.ISE2
	res.Metrics["iterations"] = float64(res.Stats.Iterations)
	return res, nil
}

// RunMPC closes the loop around the solver on a fresh plant.
func (e *Experiment) RunMPC(ctx context.Context, observers ...func(mpc.Step)) (*mpc.Result, error) {
	loop, err := mpc.New(e.solver, e.model.Problem(), e.cfg.MPC, e.logger)
	if err != nil {
		return nil, err
	}
	loop.AddMetric(metrics.NewControlEffort())
	loop.AddMetric(metrics.NewStability(e.cfg.MPC.StabilityBand, e.model.Reference))
	for _, obs := range observers {
		loop.AddObserver(obs)
	}
	return loop.Run(ctx, e.cfg.Problem.InitTime, e.InitState())
}

func (e *Experiment) warmstart(partitioning []float64) []control.Policy {
	lqr := e.model.LQR()
	policies := make([]control.Policy, len(partitioning)-1)
	for i := range policies {
		t0, t1 := partitioning[i], partitioning[i+1]
		times := make([]float64, warmstartSamples+1)
		for k := range times {
			times[k] = t0 + (t1-t0)*float64(k)/warmstartSamples
		}
		policies[i] = lqr.Sample(times)
	}
	return policies
}

func (e *Experiment) metrics(tr *dynamo.Trajectory) map[string]float64 {
	ms := []metrics.Metric{
		metrics.NewControlEffort(),
		metrics.NewStability(e.cfg.MPC.StabilityBand, e.model.Reference),
	}
	metrics.Observe(tr, ms...)
	out := make(map[string]float64, len(ms)+4)
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Join concatenates partition trajectories. The first sample of a partition
// is dropped when it repeats the last sample of the previous one.
func Join(parts []dynamo.Trajectory) dynamo.Trajectory {
	var out dynamo.Trajectory
	for i := range parts {
		tr := &parts[i]
		skip := 0
		if !out.Empty() && !tr.Empty() && tr.Times[0] == out.Times[out.Len()-1] {
			skip = 1
		}
		offset := out.Len() - skip
		for _, e := range tr.Events {
			if e > skip {
				out.Events = append(out.Events, offset+e)
			}
		}
		for k := skip; k < tr.Len(); k++ {
			out.Append(tr.Times[k], tr.States[k], tr.Inputs[k])
		}
	}
	return out
}
