package models

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// InputEquality is the state-input constraint D u = e.
type InputEquality struct {
	D *mat.Dense
	E []float64
}

func NewInputEquality(d [][]float64, e []float64) *InputEquality {
	rows, cols := len(d), len(d[0])
	data := make([]float64, 0, rows*cols)
	for _, row := range d {
		data = append(data, row...)
	}
	return &InputEquality{D: mat.NewDense(rows, cols, data), E: e}
}

func (c *InputEquality) StateInput(_ float64, x dynamo.State, u dynamo.Input) dynamo.Linear {
	rows, _ := c.D.Dims()
	v := mat.NewVecDense(rows, nil)
	v.MulVec(c.D, u.Vec())
	for i := 0; i < rows && i < len(c.E); i++ {
		v.SetVec(i, v.AtVec(i)-c.E[i])
	}
	return dynamo.Linear{
		Value: v,
		Dx:    mat.NewDense(rows, len(x), nil),
		Du:    mat.DenseCopyOf(c.D),
	}
}

func (c *InputEquality) StateOnly(float64, dynamo.State) dynamo.StateLinear        { return dynamo.StateLinear{} }
func (c *InputEquality) PreJumpStateOnly(float64, dynamo.State) dynamo.StateLinear { return dynamo.StateLinear{} }
func (c *InputEquality) Clone() dynamo.Constraint                                  { return c }

// Waypoint requires x[Index] = Value right before every jump.
type Waypoint struct {
	Index int
	Value float64
}

func (w Waypoint) StateInput(float64, dynamo.State, dynamo.Input) dynamo.Linear { return dynamo.Linear{} }
func (w Waypoint) StateOnly(float64, dynamo.State) dynamo.StateLinear           { return dynamo.StateLinear{} }

func (w Waypoint) PreJumpStateOnly(_ float64, x dynamo.State) dynamo.StateLinear {
	f := mat.NewDense(1, len(x), nil)
	f.Set(0, w.Index, 1)
	return dynamo.StateLinear{
		Value: mat.NewVecDense(1, []float64{x[w.Index] - w.Value}),
		Dx:    f,
	}
}

func (w Waypoint) Clone() dynamo.Constraint { return w }

// Floor keeps x[Index] >= Value by an equality on the violation, active only
// while violated.
type Floor struct {
	Index int
	Value float64
}

func (f Floor) StateInput(float64, dynamo.State, dynamo.Input) dynamo.Linear { return dynamo.Linear{} }

func (f Floor) StateOnly(_ float64, x dynamo.State) dynamo.StateLinear {
	if x[f.Index] >= f.Value {
		return dynamo.StateLinear{}
	}
	d := mat.NewDense(1, len(x), nil)
	d.Set(0, f.Index, 1)
	return dynamo.StateLinear{
		Value: mat.NewVecDense(1, []float64{x[f.Index] - f.Value}),
		Dx:    d,
	}
}

func (f Floor) PreJumpStateOnly(float64, dynamo.State) dynamo.StateLinear { return dynamo.StateLinear{} }
func (f Floor) Clone() dynamo.Constraint                                  { return f }
