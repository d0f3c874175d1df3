package rollout

import (
	"errors"
	"fmt"

	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrDiverged        = errors.New("rollout: state diverged")
	ErrControllerCount = errors.New("rollout: controller count does not match partition count")
	ErrNoGuards        = errors.New("rollout: state-triggered rollout needs a guarded system")
)

type Settings struct {
	Integrator             string  `yaml:"integrator" json:"integrator"`
	AbsTol                 float64 `yaml:"abs_tol" json:"abs_tol"`
	RelTol                 float64 `yaml:"rel_tol" json:"rel_tol"`
	MinStep                float64 `yaml:"min_step" json:"min_step"`
	InitialStep            float64 `yaml:"initial_step" json:"initial_step"`
	MaxStepsPerSecond      int     `yaml:"max_steps_per_second" json:"max_steps_per_second"`
	MinEventTimeDifference float64 `yaml:"min_event_time_difference" json:"min_event_time_difference"`
	BlockwiseMovingHorizon bool    `yaml:"blockwise_moving_horizon" json:"blockwise_moving_horizon"`
}

func DefaultSettings() Settings {
	return Settings{
		Integrator:             "rk45",
		AbsTol:                 1e-9,
		RelTol:                 1e-6,
		MinStep:                1e-6,
		InitialStep:            1e-2,
		MaxStepsPerSecond:      5000,
		MinEventTimeDifference: 1e-3,
	}
}

// config converts the settings into an integrator config for a span.
func (s Settings) config(span float64) integrators.Config {
	cfg := integrators.Config{
		InitialStep: s.InitialStep,
		MinStep:     s.MinStep,
		AbsTol:      s.AbsTol,
		RelTol:      s.RelTol,
	}
	if s.MaxStepsPerSecond > 0 {
		cfg.MaxSteps = max(100, int(float64(s.MaxStepsPerSecond)*span))
	}
	return cfg
}

type Output struct {
	Partitions  []dynamo.Trajectory
	AvgTimeStep float64
}

// Engine simulates the horizon partition by partition. Engines own an
// integrator and are not safe for concurrent use; use Clone per worker.
type Engine interface {
	Run(p *dynamo.Problem, t0 float64, x0 dynamo.State, t1 float64, partitioning []float64,
		policies []control.Policy, machine *schedule.Machine) (Output, error)
	Settings() Settings
	Clone() Engine
}

// New returns the time- or state-triggered engine.
func New(stateTriggered bool, settings Settings) (Engine, error) {
	if stateTriggered {
		return NewStateTriggered(settings)
	}
	return NewTimeTriggered(settings)
}

// plan is the resolved per-partition work of one run.
type plan struct {
	initActive  int
	finalActive int
	starts      []float64
	ends        []float64
}

func newPlan(t0, t1 float64, partitioning []float64, policies []control.Policy) (plan, error) {
	if t0 > t1 {
		return plan{}, fmt.Errorf("%w: %g > %g", dynamo.ErrTimeOrder, t0, t1)
	}
	if err := schedule.Validate(partitioning); err != nil {
		return plan{}, err
	}
	n := len(partitioning) - 1
	if policies != nil && len(policies) != n {
		return plan{}, fmt.Errorf("%w: %d controllers for %d partitions", ErrControllerCount, len(policies), n)
	}
	initActive, err := schedule.FindActivePartition(partitioning, t0)
	if err != nil {
		return plan{}, err
	}
	finalActive, err := schedule.FindActivePartition(partitioning, t1)
	if err != nil {
		return plan{}, err
	}

	pl := plan{
		initActive:  initActive,
		finalActive: finalActive,
		starts:      make([]float64, n),
		ends:        make([]float64, n),
	}
	for i := initActive; i <= finalActive; i++ {
		pl.starts[i] = max(t0, partitioning[i])
		pl.ends[i] = min(t1, partitioning[i+1])
	}
	return pl, nil
}

// controllerFor picks the law of partition i: its own policy, the previous
// non-empty one, or an open-loop law following the operating trajectory.
func controllerFor(i int, p *dynamo.Problem, policies []control.Policy, blockwise bool,
	ts float64, x dynamo.State, te float64) control.Controller {
	if policies != nil {
		if !policies[i].Empty() {
			return &policies[i]
		}
		if !blockwise {
			for j := i - 1; j >= 0; j-- {
				if !policies[j].Empty() {
					return &policies[j]
				}
			}
		}
	}
	return operatingPolicy(p, ts, x, te)
}

func operatingPolicy(p *dynamo.Problem, ts float64, x dynamo.State, te float64) *control.Policy {
	times, _, inputs := p.Operating.Trajectory(ts, x, te)
	nx, nu := p.System.StateDim(), p.System.InputDim()
	var policy control.Policy
	for k, t := range times {
		policy.Append(t, mat.NewDense(nu, nx, nil), inputs[k].Clone(), make(dynamo.Input, nu))
	}
	return &policy
}

// recorder appends integrator samples to a trajectory together with the
// input applied at each of them.
type recorder struct {
	tr   *dynamo.Trajectory
	ctrl control.Controller
	skip bool
}

func (r *recorder) observe(t float64, x []float64) {
	if r.skip {
		r.skip = false
		return
	}
	xs := dynamo.State(x).Clone()
	r.tr.Append(t, xs, r.ctrl.Compute(t, xs))
}

// flow closes the dynamics over a controller.
func flow(sys dynamo.System, ctrl control.Controller) integrators.Func {
	return func(t float64, x, dx []float64) {
		u := ctrl.Compute(t, x)
		copy(dx, sys.FlowMap(t, x, u))
	}
}

// jump records the pre-jump marker and appends the post-jump sample.
func jump(p *dynamo.Problem, rec *recorder, t float64, x dynamo.State) dynamo.State {
	rec.tr.MarkEvent()
	xPlus := p.System.JumpMap(t, x)
	rec.tr.Append(t, xPlus.Clone(), rec.ctrl.Compute(t, xPlus))
	rec.skip = true
	return xPlus
}

// diverged reports any failure to complete a partition as divergence.
func diverged(i int, t float64, x dynamo.State, err error) error {
	if !errors.Is(err, ErrDiverged) {
		err = fmt.Errorf("%w: %w", ErrDiverged, err)
	}
	return &dynamo.SimulationError{Partition: i, Time: t, State: x.Clone(), Wrapped: err}
}

func average(out *Output, t0, t1 float64) {
	samples := 0
	for i := range out.Partitions {
		samples += out.Partitions[i].Len()
	}
	if samples > 0 {
		out.AvgTimeStep = (t1 - t0) / float64(samples)
	}
}
