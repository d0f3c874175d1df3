package rollout

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
)

// TimeTriggered switches modes at the switching times declared by the logic
// machine.
type TimeTriggered struct {
	settings Settings
	integ    integrators.Integrator
}

func NewTimeTriggered(settings Settings) (*TimeTriggered, error) {
	integ, err := integrators.New(settings.Integrator)
	if err != nil {
		return nil, err
	}
	return &TimeTriggered{settings: settings, integ: integ}, nil
}

func (r *TimeTriggered) Settings() Settings { return r.settings }

func (r *TimeTriggered) Clone() Engine {
	c, _ := NewTimeTriggered(r.settings)
	return c
}

func (r *TimeTriggered) Run(p *dynamo.Problem, t0 float64, x0 dynamo.State, t1 float64, partitioning []float64,
	policies []control.Policy, machine *schedule.Machine) (Output, error) {
	pl, err := newPlan(t0, t1, partitioning, policies)
	if err != nil {
		return Output{}, err
	}
	p.Reset()

	out := Output{Partitions: make([]dynamo.Trajectory, len(partitioning)-1)}
	x := x0.Clone()
	for i := pl.initActive; i <= pl.finalActive; i++ {
		ts, te := pl.starts[i], pl.ends[i]
		ctrl := controllerFor(i, p, policies, r.settings.BlockwiseMovingHorizon, ts, x, te)
		rec := &recorder{tr: &out.Partitions[i], ctrl: ctrl}

		events := machine.EventTimes(i)
		modes := machine.Subsystems(i)
		sub := 0
		for sub < len(events) && events[sub] <= ts {
			sub++
		}

		t := ts
		for {
			p.SetMode(modes[min(sub, len(modes)-1)])
			end := te
			isEvent := sub < len(events) && events[sub] <= te
			if isEvent {
				end = events[sub]
			}

			_, err := r.integ.Integrate(flow(p.System, ctrl), x, t, end, r.settings.config(end-t), nil, rec.observe)
			if err != nil {
				return out, diverged(i, t, x, err)
			}
			t = end
			if !isEvent {
				break
			}
			x = jump(p, rec, t, x)
			sub++
			if t >= te {
				break
			}
		}

		if !x.IsValid() {
			return out, diverged(i, t, x, ErrDiverged)
		}
	}

	average(&out, t0, t1)
	return out, nil
}
