package riccati

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// coefficients is the LQ model interpolated at one time.
type coefficients struct {
	Bm, AmC   *mat.Dense
	Q         float64
	QvC, Rv   *mat.VecDense
	QmC, Pm   *mat.Dense
	Rm, RmC   *mat.Dense
	RmInverse *mat.Dense
	CmProj    *mat.Dense
	EvProj    *mat.VecDense
}

func fromSample(s *approx.Sample) coefficients {
	return coefficients{
		Bm: s.Bm, AmC: s.AmC,
		Q: s.Q, QvC: s.QvC, Rv: s.Rv,
		QmC: s.QmC, Pm: s.Pm,
		Rm: s.Rm, RmC: s.RmC, RmInverse: s.RmInverse,
		CmProj: s.CmProj, EvProj: s.EvProj,
	}
}

func lerpDense(a, b *mat.Dense, alpha float64) *mat.Dense {
	if alpha == 0 || a == b {
		return a
	}
	return dynamo.LerpDense(a, b, alpha)
}

func lerpVec(a, b *mat.VecDense, alpha float64) *mat.VecDense {
	if alpha == 0 || a == b {
		return a
	}
	return dynamo.LerpVec(a, b, alpha)
}

func interpolate(a, b *approx.Sample, alpha float64) coefficients {
	if alpha == 0 {
		return fromSample(a)
	}
	return coefficients{
		Bm:        lerpDense(a.Bm, b.Bm, alpha),
		AmC:       lerpDense(a.AmC, b.AmC, alpha),
		Q:         (1-alpha)*a.Q + alpha*b.Q,
		QvC:       lerpVec(a.QvC, b.QvC, alpha),
		Rv:        lerpVec(a.Rv, b.Rv, alpha),
		QmC:       lerpDense(a.QmC, b.QmC, alpha),
		Pm:        lerpDense(a.Pm, b.Pm, alpha),
		Rm:        lerpDense(a.Rm, b.Rm, alpha),
		RmC:       lerpDense(a.RmC, b.RmC, alpha),
		RmInverse: lerpDense(a.RmInverse, b.RmInverse, alpha),
		CmProj:    lerpDense(a.CmProj, b.CmProj, alpha),
		EvProj:    lerpVec(a.EvProj, b.EvProj, alpha),
	}
}

// segment is one event-free stretch of a partition in normalized time
// tau = (end - t) / scale, so the backward pass runs forward in tau.
type segment struct {
	nx          int
	end, scale  float64
	times       []float64
	samples     []approx.Sample
	constrained bool
}

func (s *segment) at(t float64) coefficients {
	k, alpha := dynamo.Locate(s.times, t)
	return interpolate(&s.samples[k], &s.samples[min(k+1, len(s.samples)-1)], alpha)
}

func (s *segment) time(tau float64) float64 { return s.end - tau*s.scale }

func (s *segment) tau(t float64) float64 {
	if s.scale == 0 {
		return 0
	}
	return (s.end - t) / s.scale
}

// size of the flattened state [Sm, Sv, s, Sve].
func size(nx int) int { return nx*nx + 2*nx + 1 }

type views struct {
	Sm  *mat.Dense
	Sv  *mat.VecDense
	S   []float64
	Sve *mat.VecDense
}

func view(nx int, y []float64) views {
	o := nx * nx
	return views{
		Sm:  mat.NewDense(nx, nx, y[:o]),
		Sv:  mat.NewVecDense(nx, y[o:o+nx]),
		S:   y[o+nx : o+nx+1],
		Sve: mat.NewVecDense(nx, y[o+nx+1:o+2*nx+1]),
	}
}

func pack(nx int, sm *mat.Dense, sv *mat.VecDense, s float64, sve *mat.VecDense) []float64 {
	y := make([]float64, size(nx))
	v := view(nx, y)
	v.Sm.Copy(sm)
	v.Sv.CopyVec(sv)
	v.S[0] = s
	v.Sve.CopyVec(sve)
	return y
}

// derivative evaluates the Riccati and error equations at time t and writes
// the right-hand side, already signed for backward integration, into dy.
func derivative(c coefficients, nx int, y, dy []float64, constrained bool) {
	in, out := view(nx, y), view(nx, dy)

	// Lm = R^-1 (Pm + Bm' Sm), Lv = R^-1 (Rv + Bm' Sv)
	var pbs mat.Dense
	pbs.Mul(c.Bm.T(), in.Sm)
	pbs.Add(&pbs, c.Pm)
	var lm mat.Dense
	lm.Mul(c.RmInverse, &pbs)

	var rbs mat.VecDense
	rbs.MulVec(c.Bm.T(), in.Sv)
	rbs.AddVec(&rbs, c.Rv)
	var lv mat.VecDense
	lv.MulVec(c.RmInverse, &rbs)

	var rcLm mat.Dense
	rcLm.Mul(c.RmC, &lm)
	var rcLv mat.VecDense
	rcLv.MulVec(c.RmC, &lv)

	out.Sm.Copy(c.QmC)
	var tmp mat.Dense
	tmp.Mul(c.AmC.T(), in.Sm)
	out.Sm.Add(out.Sm, &tmp)
	tmp.Reset()
	tmp.Mul(in.Sm, c.AmC)
	out.Sm.Add(out.Sm, &tmp)
	tmp.Reset()
	tmp.Mul(lm.T(), &rcLm)
	out.Sm.Sub(out.Sm, &tmp)

	out.Sv.CopyVec(c.QvC)
	var v mat.VecDense
	v.MulVec(c.AmC.T(), in.Sv)
	out.Sv.AddVec(out.Sv, &v)
	v.Reset()
	v.MulVec(lm.T(), &rcLv)
	out.Sv.SubVec(out.Sv, &v)

	out.S[0] = c.Q - 0.5*mat.Dot(&lv, &rcLv)

	if constrained {
		out.Sve.Zero()
		return
	}
	// Gm = AmC - Bm R^-1 RmC Lm, Gv = (CmProj - Lm)' Rm EvProj
	var g, gm mat.Dense
	g.Mul(c.RmInverse, &rcLm)
	gm.Mul(c.Bm, &g)
	gm.Sub(c.AmC, &gm)

	var d mat.Dense
	d.Sub(c.CmProj, &lm)
	var rev, gv mat.VecDense
	rev.MulVec(c.Rm, c.EvProj)
	gv.MulVec(d.T(), &rev)

	out.Sve.MulVec(gm.T(), in.Sve)
	out.Sve.AddVec(out.Sve, &gv)
}
