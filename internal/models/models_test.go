package models

import (
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestQuadraticCostDerivatives(t *testing.T) {
	c := NewQuadraticCost([]float64{2, 4}, []float64{1}, []float64{10, 10}, nil, dynamo.State{1, 0}, nil)
	x := dynamo.State{2, 1}
	u := dynamo.Input{3}

	quad := c.IntermediateQuadratic(0, x, u)
	assert.InDelta(t, 0.5*(2*1+4*1)+0.5*9, quad.Value, 1e-12)
	assert.InDelta(t, c.Intermediate(0, x, u), quad.Value, 1e-12)
	assert.InDeltaSlice(t, []float64{2, 4}, quad.Dx.RawVector().Data, 1e-12)
	assert.InDeltaSlice(t, []float64{3}, quad.Du.RawVector().Data, 1e-12)

	final := c.FinalQuadratic(1, x)
	assert.InDelta(t, 10.0, final.Value, 1e-12)
	assert.InDelta(t, 0.0, c.PreJump(1, x), 1e-12)
}

func TestQuadraticCostFollowsDesired(t *testing.T) {
	c := NewQuadraticCost([]float64{1}, []float64{1}, nil, nil, nil, nil)
	c.SetDesired(&dynamo.Desired{Times: []float64{0, 1}, States: []dynamo.State{{0}, {2}}})

	assert.InDelta(t, 0.0, c.Intermediate(0.5, dynamo.State{1}, dynamo.Input{0}), 1e-12)

	clone := c.Clone()
	clone.SetDesired(nil)
	assert.InDelta(t, 0.5, clone.Intermediate(0.5, dynamo.State{1}, dynamo.Input{0}), 1e-12)
}

func TestInputEquality(t *testing.T) {
	c := BalancedActuators()
	lin := c.StateInput(0, dynamo.State{0, 0}, dynamo.Input{3, 1})
	require.Equal(t, 1, lin.Count())
	assert.Equal(t, 2.0, lin.Value.AtVec(0))
	assert.True(t, mat.Equal(lin.Du, mat.NewDense(1, 2, []float64{1, -1})))
}

func TestWaypointAndFloor(t *testing.T) {
	w := Waypoint{Index: 0, Value: 1}
	lin := w.PreJumpStateOnly(0, dynamo.State{3, 0})
	require.Equal(t, 1, lin.Count())
	assert.Equal(t, 2.0, lin.Value.AtVec(0))

	f := Floor{Index: 0}
	assert.Equal(t, 0, f.StateOnly(0, dynamo.State{1, 0}).Count())
	assert.Equal(t, 1, f.StateOnly(0, dynamo.State{-1, 0}).Count())
}

func TestSwitchedLinearModes(t *testing.T) {
	s := NewSwitchedLinear()
	x := dynamo.State{1, 0}
	u := dynamo.Input{0}

	s.SetMode(0)
	assert.InDeltaSlice(t, []float64{0.6, -0.8}, []float64(s.FlowMap(0, x, u)), 1e-12)
	s.SetMode(1)
	assert.InDeltaSlice(t, []float64{4, -1}, []float64(s.FlowMap(0, x, u)), 1e-12)

	clone := s.Clone().(*SwitchedLinear)
	assert.Equal(t, 1, clone.Mode())
}

func TestBouncingMassJump(t *testing.T) {
	b := NewBouncingMass()
	x := b.JumpMap(0, dynamo.State{0, -5})
	assert.InDelta(t, 4.0, x[1], 1e-12)
	assert.Equal(t, []float64{-1}, b.GuardSurfaces(0, dynamo.State{-1, 0}))
	dx := b.FlowMap(0, dynamo.State{1, 0}, dynamo.Input{b.HoverForce()})
	assert.InDelta(t, 0.0, dx[1], 1e-12)
}
