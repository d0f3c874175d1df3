package models

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// BouncingMass is a point mass pushed vertically above a floor. Touching the
// floor reverses the velocity with the restitution coefficient.
type BouncingMass struct {
	Mass        float64
	Gravity     float64
	Restitution float64
}

func NewBouncingMass() *BouncingMass {
	return &BouncingMass{
		Mass:        DefaultMass,
		Gravity:     DefaultGravity,
		Restitution: 0.8,
	}
}

func (b *BouncingMass) StateDim() int { return 2 }
func (b *BouncingMass) InputDim() int { return 1 }

func (b *BouncingMass) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	return dynamo.State{x[1], u[0]/b.Mass - b.Gravity}
}

func (b *BouncingMass) JumpMap(_ float64, x dynamo.State) dynamo.State {
	return dynamo.State{x[0], -b.Restitution * x[1]}
}

func (b *BouncingMass) GuardSurfaces(_ float64, x dynamo.State) []float64 {
	return []float64{x[0]}
}

func (b *BouncingMass) Linearize(float64, dynamo.State, dynamo.Input) (*mat.Dense, *mat.Dense) {
	return mat.NewDense(2, 2, []float64{0, 1, 0, 0}), mat.NewDense(2, 1, []float64{0, 1 / b.Mass})
}

// HoverForce cancels gravity.
func (b *BouncingMass) HoverForce() float64 {
	return b.Mass * b.Gravity
}

func (b *BouncingMass) Clone() dynamo.System {
	cp := *b
	return &cp
}
