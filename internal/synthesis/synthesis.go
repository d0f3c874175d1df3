// Package synthesis turns a value function into an affine feedback policy
// u = uff + K x together with the feedforward increment used by the line
// search.
package synthesis

import (
	"log/slog"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"gonum.org/v1/gonum/mat"
)

type Designer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Designer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Designer{logger: logger}
}

// Design builds the policy of one partition on the rollout time stamps.
// constraintStep scales the type-1 constraint correction and is zero for the
// first design of a run. The returned descent is the directional derivative
// of the cost along the feedforward increment, integrated with the
// trapezoidal rule.
func (d *Designer) Design(index int, tr *dynamo.Trajectory, lq *approx.Partition, sol *riccati.Solution, constraintStep float64) (control.Policy, float64) {
	var policy control.Policy
	n := tr.Len()
	if n == 0 {
		return policy, 0
	}

	slopes := make([]float64, n)
	for k := 0; k < n; k++ {
		s := &lq.Samples[k]
		x, u := tr.States[k], tr.Inputs[k]

		// Lm = R^-1 (Pm + Bm' Sm)
		var pbs, lm mat.Dense
		pbs.Mul(s.Bm.T(), sol.Sm[k])
		pbs.Add(&pbs, s.Pm)
		lm.Mul(s.RmInverse, &pbs)

		// g = Rv + Bm' Sv, Lv = R^-1 g
		var g mat.VecDense
		g.MulVec(s.Bm.T(), sol.Sv[k])
		g.AddVec(&g, s.Rv)
		var lv mat.VecDense
		lv.MulVec(s.RmInverse, &g)

		// Lve = R^-1 Bm' Sve
		var bve, lve mat.VecDense
		bve.MulVec(s.Bm.T(), sol.Sve[k])
		lve.MulVec(s.RmInverse, &bve)

		// K = -(N Lm + CmProj)
		gain := dynamo.Mul(s.NullProj, &lm)
		gain.Add(gain, s.CmProj)
		gain.Scale(-1, gain)

		// uff = u - K x - css (N Lve + EvProj)
		var kx mat.VecDense
		kx.MulVec(gain, x.Vec())
		var corr mat.VecDense
		corr.MulVec(s.NullProj, &lve)
		corr.AddVec(&corr, s.EvProj)
		uff := u.Clone()
		for i := range uff {
			uff[i] -= kx.AtVec(i) + constraintStep*corr.AtVec(i)
		}

		// deltaUff = -N Lv
		var duff mat.VecDense
		duff.MulVec(s.NullProj, &lv)
		delta := make(dynamo.Input, duff.Len())
		for i := range delta {
			delta[i] = -duff.AtVec(i)
		}

		policy.Append(tr.Times[k], gain, uff, delta)
		slopes[k] = mat.Dot(&g, delta.Vec())
	}

	if k := policy.Finite(); k >= 0 {
		d.logger.Warn("[synthesis]",
			slog.String("event", "non_finite_controller"),
			slog.Int("partition", index),
			slog.Float64("time", policy.Times[k]),
		)
	}
	return policy, trapezoid(tr.Times, slopes)
}

func trapezoid(times, values []float64) float64 {
	var sum float64
	for k := 0; k+1 < len(times); k++ {
		sum += 0.5 * (times[k+1] - times[k]) * (values[k] + values[k+1])
	}
	return sum
}
