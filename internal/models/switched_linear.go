package models

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// SwitchedLinear is dx/dt = A_m x + B_m u with a mode-dependent pair and an
// identity jump map. Modes switch at prescribed times.
type SwitchedLinear struct {
	A    []*mat.Dense
	B    []*mat.Dense
	mode int
}

// NewSwitchedLinear returns the classic two-mode example: an unstable
// oscillator followed by a damped one, both driven through the velocity.
func NewSwitchedLinear() *SwitchedLinear {
	return &SwitchedLinear{
		A: []*mat.Dense{
			mat.NewDense(2, 2, []float64{0.6, 1.2, -0.8, 3.4}),
			mat.NewDense(2, 2, []float64{4, 3, -1, 0}),
		},
		B: []*mat.Dense{
			mat.NewDense(2, 1, []float64{1, 1}),
			mat.NewDense(2, 1, []float64{2, -1}),
		},
	}
}

func (s *SwitchedLinear) StateDim() int { return 2 }
func (s *SwitchedLinear) InputDim() int { return 1 }

func (s *SwitchedLinear) SetMode(mode int) {
	if mode < 0 {
		mode = 0
	}
	s.mode = mode % len(s.A)
}

func (s *SwitchedLinear) Mode() int { return s.mode }

func (s *SwitchedLinear) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	var ax, bu mat.VecDense
	ax.MulVec(s.A[s.mode], x.Vec())
	bu.MulVec(s.B[s.mode], u.Vec())
	ax.AddVec(&ax, &bu)
	return dynamo.State(ax.RawVector().Data)
}

func (s *SwitchedLinear) JumpMap(_ float64, x dynamo.State) dynamo.State {
	return x.Clone()
}

func (s *SwitchedLinear) Linearize(float64, dynamo.State, dynamo.Input) (*mat.Dense, *mat.Dense) {
	return mat.DenseCopyOf(s.A[s.mode]), mat.DenseCopyOf(s.B[s.mode])
}

func (s *SwitchedLinear) Clone() dynamo.System {
	return &SwitchedLinear{A: s.A, B: s.B, mode: s.mode}
}
