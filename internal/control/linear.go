package control

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Linear is the constant-gain law u = uRef - K (x - xRef).
type Linear struct {
	K        *mat.Dense
	StateRef dynamo.State
	InputRef dynamo.Input
}

func NewLinear(k [][]float64, xRef dynamo.State, uRef dynamo.Input) *Linear {
	rows := len(k)
	cols := len(xRef)
	data := make([]float64, 0, rows*cols)
	for i := range k {
		for j := 0; j < cols; j++ {
			v := 0.0
			if j < len(k[i]) {
				v = k[i][j]
			}
			data = append(data, v)
		}
	}
	if uRef == nil {
		uRef = make(dynamo.Input, rows)
	}
	return &Linear{K: mat.NewDense(rows, cols, data), StateRef: xRef, InputRef: uRef}
}

func (l *Linear) Compute(_ float64, x dynamo.State) dynamo.Input {
	dx := x.Sub(l.StateRef)
	var kdx mat.VecDense
	kdx.MulVec(l.K, dx.Vec())
	u := l.InputRef.Clone()
	for i := range u {
		u[i] -= kdx.AtVec(i)
	}
	return u
}

// Sample expresses the law as a Policy on the given time stamps.
func (l *Linear) Sample(times []float64) Policy {
	var gain mat.Dense
	gain.Scale(-1, l.K)

	var kx mat.VecDense
	kx.MulVec(l.K, l.StateRef.Vec())
	uff := l.InputRef.Clone()
	for i := range uff {
		uff[i] += kx.AtVec(i)
	}

	var p Policy
	for _, t := range times {
		p.Append(t, mat.DenseCopyOf(&gain), uff.Clone(), make(dynamo.Input, len(uff)))
	}
	return p
}
