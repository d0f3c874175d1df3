package models

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// QuadraticCost is 0.5 (x-xr)'Q(x-xr) + 0.5 (u-ur)'R(u-ur) with separate
// state weights before each jump and at the final time. The reference comes
// from the desired trajectory when one is set.
type QuadraticCost struct {
	Q, R     *mat.Dense
	QPreJump *mat.Dense
	QFinal   *mat.Dense
	StateRef dynamo.State
	InputRef dynamo.Input

	desired *dynamo.Desired
}

// NewQuadraticCost builds a cost from diagonal weights. A nil final or
// pre-jump diagonal means zero weight.
func NewQuadraticCost(q, r, qFinal, qPreJump []float64, xRef dynamo.State, uRef dynamo.Input) *QuadraticCost {
	nx, nu := len(q), len(r)
	if xRef == nil {
		xRef = make(dynamo.State, nx)
	}
	if uRef == nil {
		uRef = make(dynamo.Input, nu)
	}
	return &QuadraticCost{
		Q:        diag(nx, q),
		R:        diag(nu, r),
		QPreJump: diag(nx, qPreJump),
		QFinal:   diag(nx, qFinal),
		StateRef: xRef,
		InputRef: uRef,
	}
}

func diag(n int, d []float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n && i < len(d); i++ {
		m.Set(i, i, d[i])
	}
	return m
}

func (c *QuadraticCost) refs(t float64) (dynamo.State, dynamo.Input) {
	xr, ur := c.StateRef, c.InputRef
	if c.desired != nil {
		dx, du := c.desired.At(t)
		if dx != nil {
			xr = dx
		}
		if du != nil {
			ur = du
		}
	}
	return xr, ur
}

func quadForm(m *mat.Dense, v []float64) (float64, *mat.VecDense) {
	vv := mat.NewVecDense(len(v), append([]float64(nil), v...))
	var mv mat.VecDense
	mv.MulVec(m, vv)
	return 0.5 * mat.Dot(vv, &mv), &mv
}

func (c *QuadraticCost) Intermediate(t float64, x dynamo.State, u dynamo.Input) float64 {
	xr, ur := c.refs(t)
	lx, _ := quadForm(c.Q, x.Sub(xr))
	lu, _ := quadForm(c.R, dynamo.State(u).Sub(dynamo.State(ur)))
	return lx + lu
}

func (c *QuadraticCost) IntermediateQuadratic(t float64, x dynamo.State, u dynamo.Input) dynamo.Quadratic {
	xr, ur := c.refs(t)
	lx, dx := quadForm(c.Q, x.Sub(xr))
	lu, du := quadForm(c.R, dynamo.State(u).Sub(dynamo.State(ur)))
	return dynamo.Quadratic{
		Value: lx + lu,
		Dx:    dx,
		Du:    du,
		Dxx:   mat.DenseCopyOf(c.Q),
		Duu:   mat.DenseCopyOf(c.R),
		Dux:   mat.NewDense(len(u), len(x), nil),
	}
}

func (c *QuadraticCost) terminal(m *mat.Dense, t float64, x dynamo.State) dynamo.TerminalQuadratic {
	xr, _ := c.refs(t)
	v, d := quadForm(m, x.Sub(xr))
	return dynamo.TerminalQuadratic{Value: v, Dx: d, Dxx: mat.DenseCopyOf(m)}
}

func (c *QuadraticCost) PreJump(t float64, x dynamo.State) float64 {
	return c.terminal(c.QPreJump, t, x).Value
}

func (c *QuadraticCost) PreJumpQuadratic(t float64, x dynamo.State) dynamo.TerminalQuadratic {
	return c.terminal(c.QPreJump, t, x)
}

func (c *QuadraticCost) Final(t float64, x dynamo.State) float64 {
	return c.terminal(c.QFinal, t, x).Value
}

func (c *QuadraticCost) FinalQuadratic(t float64, x dynamo.State) dynamo.TerminalQuadratic {
	return c.terminal(c.QFinal, t, x)
}

func (c *QuadraticCost) SetDesired(d *dynamo.Desired) { c.desired = d }

func (c *QuadraticCost) Clone() dynamo.Cost {
	cp := *c
	return &cp
}
