package models

import (
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

// Pendulum is a damped torque-driven pendulum. It provides no analytic
// Jacobians and is linearized numerically.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    DefaultMass,
		Length:  1.0,
		Damping: 0.1,
		Gravity: DefaultGravity,
	}
}

func (p *Pendulum) StateDim() int { return 2 }
func (p *Pendulum) InputDim() int { return 1 }

// Inertia about the pivot.
func (p *Pendulum) Inertia() float64 { return p.Mass * p.Length * p.Length }

// HoldingTorque is the torque that keeps the pendulum at rest at angle theta.
func (p *Pendulum) HoldingTorque(theta float64) float64 {
	return p.Mass * p.Gravity * p.Length * math.Sin(theta)
}

func (p *Pendulum) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	theta, omega := x[0], x[1]
	net := u[0] - p.HoldingTorque(theta) - p.Damping*omega
	return dynamo.State{omega, net / p.Inertia()}
}

func (p *Pendulum) JumpMap(_ float64, x dynamo.State) dynamo.State {
	return x.Clone()
}

func (p *Pendulum) Clone() dynamo.System {
	cp := *p
	return &cp
}
