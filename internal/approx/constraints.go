package approx

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// RolloutConstraints holds the constraint residuals along a rollout. Entries
// are nil where no constraint is active.
type RolloutConstraints struct {
	Ev      [][]float64
	Hv      [][]float64
	HvFinal [][]float64
}

// Constraints evaluates the type-1 and type-2 residuals of every sample and
// the pre-jump type-2 residual of every event.
func (a *Approximator) Constraints(p *dynamo.Problem, tr *dynamo.Trajectory, modeAt ModeFunc) RolloutConstraints {
	n := tr.Len()
	rc := RolloutConstraints{
		Ev: make([][]float64, n),
		Hv: make([][]float64, n),
	}
	modes := SegmentModes(tr, modeAt)
	for k := 0; k < n; k++ {
		p.SetMode(modes[k])
		t, x, u := tr.Times[k], tr.States[k], tr.Inputs[k]
		rc.Ev[k] = values(p.Constraint.StateInput(t, x, u).Value)
		if !a.settings.NoStateConstraints {
			rc.Hv[k] = values(p.Constraint.StateOnly(t, x).Value)
		}
	}
	if a.settings.NoStateConstraints {
		return rc
	}
	for _, e := range tr.Events {
		k := e - 1
		p.SetMode(modes[k])
		rc.HvFinal = append(rc.HvFinal, values(p.Constraint.PreJumpStateOnly(tr.Times[k], tr.States[k]).Value))
	}
	return rc
}

func values(v *mat.VecDense) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
