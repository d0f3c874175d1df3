package riccati

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// sweep steps backward over the rollout time stamps. Sm follows the
// Hamiltonian flow of the Riccati equation with midpoint coefficients,
// which is exact for piecewise constant models. Sv, s and Sve take explicit
// steps.
func (s *Solver) sweep(seg *segment, y []float64, sol *Solution, offset int) {
	nx := seg.nx
	m := len(seg.times)
	cur := append([]float64(nil), y...)
	store(nx, sol, offset+m-1, cur)

	dy := make([]float64, len(cur))
	for k := m - 2; k >= 0; k-- {
		dt := seg.times[k+1] - seg.times[k]
		c := interpolate(&seg.samples[k], &seg.samples[k+1], 0.5)

		derivative(c, nx, cur, dy, seg.constrained)
		next := make([]float64, len(cur))
		for i := range next {
			next[i] = cur[i] + dt*dy[i]
		}
		if sm, ok := hamiltonianStep(c, view(nx, cur).Sm, dt); ok {
			view(nx, next).Sm.Copy(sm)
		}
		cur = next
		store(nx, sol, offset+k, cur)
	}
}

// hamiltonianStep maps S(t+dt) to S(t) through exp(-Z dt) applied to
// [I; S], with Z the Hamiltonian of -dS/dt = Q + A'S + SA - SGS.
func hamiltonianStep(c coefficients, sm *mat.Dense, dt float64) (*mat.Dense, bool) {
	nx, _ := sm.Dims()

	// W = R^-1 RmC R^-1
	var rr, w, wp mat.Dense
	rr.Mul(c.RmInverse, c.RmC)
	w.Mul(&rr, c.RmInverse)
	wp.Mul(&w, c.Pm)

	var a mat.Dense
	a.Mul(c.Bm, &wp)
	a.Sub(c.AmC, &a)

	var q mat.Dense
	q.Mul(c.Pm.T(), &wp)
	q.Sub(c.QmC, &q)

	var bw, g mat.Dense
	bw.Mul(c.Bm, &w)
	g.Mul(&bw, c.Bm.T())

	z := mat.NewDense(2*nx, 2*nx, nil)
	z.Slice(0, nx, 0, nx).(*mat.Dense).Scale(-dt, &a)
	z.Slice(0, nx, nx, 2*nx).(*mat.Dense).Scale(dt, &g)
	z.Slice(nx, 2*nx, 0, nx).(*mat.Dense).Scale(dt, &q)
	z.Slice(nx, 2*nx, nx, 2*nx).(*mat.Dense).Scale(dt, a.T())

	var e mat.Dense
	e.Exp(z)

	init := mat.NewDense(2*nx, nx, nil)
	init.Slice(0, nx, 0, nx).(*mat.Dense).Copy(dynamo.Identity(nx))
	init.Slice(nx, 2*nx, 0, nx).(*mat.Dense).Copy(sm)

	var xy mat.Dense
	xy.Mul(&e, init)
	x := xy.Slice(0, nx, 0, nx)
	yy := xy.Slice(nx, 2*nx, 0, nx)

	var st mat.Dense
	if err := st.Solve(x.T(), yy.T()); err != nil {
		return nil, false
	}
	out := mat.DenseCopyOf(st.T())
	return out, true
}
