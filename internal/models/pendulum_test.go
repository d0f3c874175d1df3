package models

import (
	"math"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

func TestPendulumEquilibrium(t *testing.T) {
	p := NewPendulum()
	p.Damping = 0

	x := dynamo.State{0, 0}
	u := dynamo.Input{0}

	dx := p.FlowMap(0, x, u)

	if math.Abs(dx[0]) > 1e-10 {
		t.Errorf("expected zero velocity at equilibrium, got %f", dx[0])
	}

	if math.Abs(dx[1]) > 1e-10 {
		t.Errorf("expected zero acceleration at equilibrium, got %f", dx[1])
	}
}

func TestPendulumDimensions(t *testing.T) {
	p := NewPendulum()

	if p.StateDim() != 2 {
		t.Errorf("expected state dim 2, got %d", p.StateDim())
	}

	if p.InputDim() != 1 {
		t.Errorf("expected input dim 1, got %d", p.InputDim())
	}
}

func TestPendulumNumericalLinearization(t *testing.T) {
	p := NewPendulum()
	prob := &dynamo.Problem{System: p}

	a, b := prob.Linearize(0, dynamo.State{0, 0}, dynamo.Input{0})

	g := p.Gravity / p.Length
	if math.Abs(a.At(1, 0)+g) > 1e-5 {
		t.Errorf("expected dAlpha/dTheta %f, got %f", -g, a.At(1, 0))
	}
	if math.Abs(a.At(0, 1)-1) > 1e-6 {
		t.Errorf("expected dTheta/dOmega 1, got %f", a.At(0, 1))
	}
	if math.Abs(b.At(1, 0)-1/(p.Mass*p.Length*p.Length)) > 1e-6 {
		t.Errorf("expected input gain %f, got %f", 1/(p.Mass*p.Length*p.Length), b.At(1, 0))
	}
}
