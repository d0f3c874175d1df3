package models

import (
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Drone is a planar quadrotor with two rotors:
// x = [px, py, theta, vx, vy, omega], u = [thrustL, thrustR].
type Drone struct {
	Mass, Inertia, ArmLength float64
	Gravity, DragCoeff       float64
	AngDrag                  float64
}

func NewDrone() *Drone {
	return &Drone{
		Mass:      DefaultMass,
		Inertia:   0.1,
		ArmLength: 0.25,
		Gravity:   DefaultGravity,
		DragCoeff: 0.1,
		AngDrag:   0.05,
	}
}

func (d *Drone) StateDim() int { return 6 }
func (d *Drone) InputDim() int { return 2 }

func (d *Drone) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	theta, vx, vy, omega := x[2], x[3], x[4], x[5]
	thrustL, thrustR := u[0], u[1]

	totalThrust := thrustL + thrustR
	torque := (thrustR - thrustL) * d.ArmLength

	sin, cos := math.Sin(theta), math.Cos(theta)
	fx := -totalThrust*sin - d.DragCoeff*vx
	fy := totalThrust*cos - d.Mass*d.Gravity - d.DragCoeff*vy

	ax := fx / d.Mass
	ay := fy / d.Mass
	alpha := (torque - d.AngDrag*omega) / d.Inertia

	return dynamo.State{vx, vy, omega, ax, ay, alpha}
}

// Linearize returns the analytic flow-map Jacobians.
func (d *Drone) Linearize(_ float64, x dynamo.State, u dynamo.Input) (a, b *mat.Dense) {
	theta := x[2]
	total := u[0] + u[1]
	sin, cos := math.Sin(theta), math.Cos(theta)

	a = mat.NewDense(6, 6, nil)
	a.Set(0, 3, 1)
	a.Set(1, 4, 1)
	a.Set(2, 5, 1)
	a.Set(3, 2, -total*cos/d.Mass)
	a.Set(3, 3, -d.DragCoeff/d.Mass)
	a.Set(4, 2, -total*sin/d.Mass)
	a.Set(4, 4, -d.DragCoeff/d.Mass)
	a.Set(5, 5, -d.AngDrag/d.Inertia)

	b = mat.NewDense(6, 2, []float64{
		0, 0,
		0, 0,
		0, 0,
		-sin / d.Mass, -sin / d.Mass,
		cos / d.Mass, cos / d.Mass,
		-d.ArmLength / d.Inertia, d.ArmLength / d.Inertia,
	})
	return a, b
}

func (d *Drone) JumpMap(_ float64, x dynamo.State) dynamo.State {
	return x.Clone()
}

func (d *Drone) HoverThrust() float64 {
	return d.Mass * d.Gravity / 2.0
}

func (d *Drone) Clone() dynamo.System {
	cp := *d
	return &cp
}
