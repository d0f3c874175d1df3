package models

import (
	"math"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

func TestDroneStateDim(t *testing.T) {
	d := NewDrone()
	if d.StateDim() != 6 {
		t.Errorf("expected 6 states, got %d", d.StateDim())
	}
	if d.InputDim() != 2 {
		t.Errorf("expected 2 inputs, got %d", d.InputDim())
	}
}

func TestDroneHover(t *testing.T) {
	d := NewDrone()
	hoverThrust := d.HoverThrust()

	x := dynamo.State{0, 5, 0, 0, 0, 0}
	u := dynamo.Input{hoverThrust, hoverThrust}

	dx := d.FlowMap(0, x, u)

	if math.Abs(dx[4]) > 0.01 {
		t.Errorf("vertical acceleration should be ~0, got %f", dx[4])
	}

	if math.Abs(dx[3]) > 0.01 {
		t.Errorf("horizontal acceleration should be ~0, got %f", dx[3])
	}

	if math.Abs(dx[5]) > 0.01 {
		t.Errorf("angular acceleration should be ~0, got %f", dx[5])
	}
}

func TestDroneAnalyticJacobians(t *testing.T) {
	d := NewDrone()
	x := dynamo.State{0.3, 2, 0.4, -0.5, 0.2, 0.7}
	u := dynamo.Input{4, 6}

	a, b := d.Linearize(0, x, u)
	na, nb := dynamo.NumericalLinearizer{System: d}.Linearize(0, x, u)

	if !mat.EqualApprox(a, na, 1e-5) {
		t.Errorf("state Jacobian mismatch:\n%v\n%v", mat.Formatted(a), mat.Formatted(na))
	}
	if !mat.EqualApprox(b, nb, 1e-5) {
		t.Errorf("input Jacobian mismatch:\n%v\n%v", mat.Formatted(b), mat.Formatted(nb))
	}
}
