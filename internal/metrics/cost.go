package metrics

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"gonum.org/v1/gonum/floats"
)

// Evaluate computes the performance of a rollout: the trapezoidal integral
// of the intermediate cost, the pre-jump cost at every event, the final cost
// at the end of partition finalActive, and the quadratic penalty on the
// type-2 constraints. Merit is left to the caller.
func Evaluate(p *dynamo.Problem, trs []dynamo.Trajectory, rcs []approx.RolloutConstraints,
	finalActive int, penalty float64, modeAt approx.ModeFunc) linesearch.Performance {
	var perf linesearch.Performance
	ise1, ise2 := NewISE("ise1"), NewISE("ise2")
	var finalPenalty float64

	for i := range trs {
		tr := &trs[i]
		if tr.Empty() {
			continue
		}
		modes := approx.SegmentModes(tr, modeAt)
		perf.Cost += intermediate(p, tr, modes)

		for _, e := range tr.Events {
			k := e - 1
			p.SetMode(modes[k])
			perf.Cost += p.Cost.PreJump(tr.Times[k], tr.States[k])
		}
		if i == finalActive {
			t, x, _ := tr.Final()
			p.SetMode(modes[tr.Len()-1])
			perf.Cost += p.Cost.Final(t, x)
		}

		if i < len(rcs) {
			rc := &rcs[i]
			ise1.Break()
			ise2.Break()
			for k := 0; k < tr.Len(); k++ {
				if k < len(rc.Ev) {
					ise1.Observe(tr.Times[k], rc.Ev[k])
				}
				if k < len(rc.Hv) {
					ise2.Observe(tr.Times[k], rc.Hv[k])
				}
			}
			for _, h := range rc.HvFinal {
				finalPenalty += floats.Dot(h, h)
			}
		}
	}

	perf.ISE1, perf.MaxNorm1 = ise1.Value(), ise1.MaxNorm()
	perf.ISE2, perf.MaxNorm2 = ise2.Value(), ise2.MaxNorm()
	perf.Cost += 0.5*penalty*perf.ISE2 + 0.5*penalty*finalPenalty
	perf.Merit = perf.Cost
	return perf
}

func intermediate(p *dynamo.Problem, tr *dynamo.Trajectory, modes []int) float64 {
	var sum float64
	prev := 0.0
	for k := 0; k < tr.Len(); k++ {
		p.SetMode(modes[k])
		l := p.Cost.Intermediate(tr.Times[k], tr.States[k], tr.Inputs[k])
		if k > 0 {
			sum += 0.5 * (tr.Times[k] - tr.Times[k-1]) * (l + prev)
		}
		prev = l
	}
	return sum
}
