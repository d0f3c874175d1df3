package rollout

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
)

// StateTriggered switches modes when a guard surface of the system crosses
// zero. Detected events are written back into the logic machine.
type StateTriggered struct {
	settings Settings
	integ    integrators.Integrator
}

func NewStateTriggered(settings Settings) (*StateTriggered, error) {
	integ, err := integrators.New(settings.Integrator)
	if err != nil {
		return nil, err
	}
	return &StateTriggered{settings: settings, integ: integ}, nil
}

func (r *StateTriggered) Settings() Settings { return r.settings }

func (r *StateTriggered) Clone() Engine {
	c, _ := NewStateTriggered(r.settings)
	return c
}

func (r *StateTriggered) Run(p *dynamo.Problem, t0 float64, x0 dynamo.State, t1 float64, partitioning []float64,
	policies []control.Policy, machine *schedule.Machine) (Output, error) {
	guarded, ok := p.System.(dynamo.Guarded)
	if !ok {
		return Output{}, ErrNoGuards
	}
	pl, err := newPlan(t0, t1, partitioning, policies)
	if err != nil {
		return Output{}, err
	}
	p.Reset()

	guard := func(t float64, x []float64) []float64 {
		return guarded.GuardSurfaces(t, x)
	}

	out := Output{Partitions: make([]dynamo.Trajectory, len(partitioning)-1)}
	x := x0.Clone()
	mode := machine.Rules().ModeAt(t0)
	for i := pl.initActive; i <= pl.finalActive; i++ {
		ts, te := pl.starts[i], pl.ends[i]
		ctrl := controllerFor(i, p, policies, r.settings.BlockwiseMovingHorizon, ts, x, te)
		rec := &recorder{tr: &out.Partitions[i], ctrl: ctrl}
		eventTimes := []float64{}
		modes := []int{mode}

		t := ts
		afterEvent := false
		for t < te || out.Partitions[i].Empty() {
			p.SetMode(mode)
			f := flow(p.System, ctrl)

			// guards are ignored for a short while after a jump so the same
			// crossing is not detected twice
			if afterEvent && r.settings.MinEventTimeDifference > 0 {
				end := min(te, t+r.settings.MinEventTimeDifference)
				if _, err := r.integ.Integrate(f, x, t, end, r.settings.config(end-t), nil, rec.observe); err != nil {
					return out, diverged(i, t, x, err)
				}
				t = end
				rec.skip = true
				if t >= te {
					break
				}
			}

			res, err := r.integ.Integrate(f, x, t, te, r.settings.config(te-t), guard, rec.observe)
			if err != nil {
				return out, diverged(i, t, x, err)
			}
			t = res.Time
			if res.Event < 0 {
				break
			}

			x = jump(p, rec, t, x)
			mode++
			eventTimes = append(eventTimes, t)
			modes = append(modes, mode)
			afterEvent = true
		}

		if !x.IsValid() {
			return out, diverged(i, t, x, ErrDiverged)
		}
		if err := machine.SetPartitionEvents(i, eventTimes, modes); err != nil {
			return out, err
		}
	}

	average(&out, t0, t1)
	return out, nil
}
