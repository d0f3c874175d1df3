package slq

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/models"
	"gonum.org/v1/gonum/mat"
)

func doubleIntegratorProblem() *dynamo.Problem {
	return &dynamo.Problem{
		System: models.NewDoubleIntegrator(),
		Cost:   models.NewQuadraticCost([]float64{1, 1}, []float64{0.1}, []float64{10, 10}, nil, nil, nil),
	}
}

func testSettings() Settings {
	s := DefaultSettings()
	s.MaxIterations = 10
	s.Rollout.Integrator = "rk4"
	s.Rollout.InitialStep = 0.01
	return s
}

// lqrCost integrates -S' = Q + A'S + SA - S B R^-1 B' S backward from
// S(T) = qf with RK4 and returns 0.5 x0' S(0) x0.
func lqrCost(a, b, q, r, qf *mat.Dense, horizon float64, x0 []float64) float64 {
	var rinv mat.Dense
	if err := rinv.Inverse(r); err != nil {
		panic(err)
	}
	var br, g mat.Dense
	br.Mul(b, &rinv)
	g.Mul(&br, b.T())

	rhs := func(s *mat.Dense) *mat.Dense {
		out := mat.DenseCopyOf(q)
		var t mat.Dense
		t.Mul(a.T(), s)
		out.Add(out, &t)
		t.Reset()
		t.Mul(s, a)
		out.Add(out, &t)
		var sg, sgs mat.Dense
		sg.Mul(s, &g)
		sgs.Mul(&sg, s)
		out.Sub(out, &sgs)
		return out
	}
	axpy := func(s, k *mat.Dense, h float64) *mat.Dense {
		out := mat.DenseCopyOf(k)
		out.Scale(h, out)
		out.Add(out, s)
		return out
	}

	const steps = 4000
	h := horizon / steps
	s := mat.DenseCopyOf(qf)
	for i := 0; i < steps; i++ {
		k1 := rhs(s)
		k2 := rhs(axpy(s, k1, h/2))
		k3 := rhs(axpy(s, k2, h/2))
		k4 := rhs(axpy(s, k3, h))
		var sum mat.Dense
		sum.Add(k1, k4)
		k2.Scale(2, k2)
		k3.Scale(2, k3)
		sum.Add(&sum, k2)
		sum.Add(&sum, k3)
		s = axpy(s, &sum, h/6)
	}

	x := mat.NewVecDense(len(x0), x0)
	var sx mat.VecDense
	sx.MulVec(s, x)
	return 0.5 * mat.Dot(x, &sx)
}

func doubleIntegratorOptimum(horizon float64, x0 []float64) float64 {
	return lqrCost(
		mat.NewDense(2, 2, []float64{0, 1, 0, 0}),
		mat.NewDense(2, 1, []float64{0, 1}),
		mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		mat.NewDense(1, 1, []float64{0.1}),
		mat.NewDense(2, 2, []float64{10, 0, 0, 10}),
		horizon, x0,
	)
}
