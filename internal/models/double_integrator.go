package models

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// DoubleIntegrator is a unit mass driven by a force: x = [position, velocity].
type DoubleIntegrator struct{}

func NewDoubleIntegrator() *DoubleIntegrator { return &DoubleIntegrator{} }

func (d *DoubleIntegrator) StateDim() int        { return 2 }
func (d *DoubleIntegrator) InputDim() int        { return 1 }
func (d *DoubleIntegrator) Clone() dynamo.System { return &DoubleIntegrator{} }

func (d *DoubleIntegrator) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	return dynamo.State{x[1], u[0]}
}

func (d *DoubleIntegrator) JumpMap(_ float64, x dynamo.State) dynamo.State {
	return x.Clone()
}

func (d *DoubleIntegrator) Linearize(float64, dynamo.State, dynamo.Input) (*mat.Dense, *mat.Dense) {
	return mat.NewDense(2, 2, []float64{0, 1, 0, 0}), mat.NewDense(2, 1, []float64{0, 1})
}

// ConstrainedDoubleIntegrator splits the force over two actuators that must
// agree, u0 - u1 = 0.
type ConstrainedDoubleIntegrator struct{}

func NewConstrainedDoubleIntegrator() *ConstrainedDoubleIntegrator {
	return &ConstrainedDoubleIntegrator{}
}

func (d *ConstrainedDoubleIntegrator) StateDim() int        { return 2 }
func (d *ConstrainedDoubleIntegrator) InputDim() int        { return 2 }
func (d *ConstrainedDoubleIntegrator) Clone() dynamo.System { return &ConstrainedDoubleIntegrator{} }

func (d *ConstrainedDoubleIntegrator) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	return dynamo.State{x[1], u[0] + u[1]}
}

func (d *ConstrainedDoubleIntegrator) JumpMap(_ float64, x dynamo.State) dynamo.State {
	return x.Clone()
}

func (d *ConstrainedDoubleIntegrator) Linearize(float64, dynamo.State, dynamo.Input) (*mat.Dense, *mat.Dense) {
	return mat.NewDense(2, 2, []float64{0, 1, 0, 0}), mat.NewDense(2, 2, []float64{0, 0, 1, 1})
}

// BalancedActuators is the constraint of ConstrainedDoubleIntegrator.
func BalancedActuators() *InputEquality {
	return NewInputEquality([][]float64{{1, -1}}, []float64{0})
}
