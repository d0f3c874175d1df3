package metrics

import (
	"math"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestISEConstantError(t *testing.T) {
	m := NewISE("ise")
	for _, tm := range []float64{0, 0.5, 1, 2} {
		m.Observe(tm, []float64{1, 1})
	}
	assert.InDelta(t, 4.0, m.Value(), 1e-12)
	assert.InDelta(t, math.Sqrt2, m.MaxNorm(), 1e-12)

	m.Reset()
	assert.Zero(t, m.Value())
	assert.Zero(t, m.MaxNorm())
}

func TestISEBreakSkipsGap(t *testing.T) {
	m := NewISE("ise")
	m.Observe(0, []float64{1})
	m.Observe(1, []float64{1})
	m.Break()
	m.Observe(5, []float64{2})
	m.Observe(6, nil)
	assert.InDelta(t, 1+2, m.Value(), 1e-12)
}

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	m.Observe(0, nil, dynamo.Input{1, -1})
	if m.Value() != math.Sqrt(2) {
		t.Errorf("expected single-sample effort %f, got %f", math.Sqrt(2), m.Value())
	}
	m.Observe(1, nil, dynamo.Input{0, 2})
	assert.InDelta(t, math.Sqrt(3), m.Value(), 1e-12)
	m.Observe(3, nil, dynamo.Input{0, 0})
	assert.InDelta(t, math.Sqrt(7.0/3), m.Value(), 1e-12)
	m.Reset()
	if m.Value() != 0 {
		t.Errorf("expected zero after reset, got %f", m.Value())
	}
}

func TestStability(t *testing.T) {
	m := NewStability(0.5, dynamo.State{1, 0})
	var tr dynamo.Trajectory
	tr.Append(0, dynamo.State{1.2, 0}, nil)
	tr.Append(1, dynamo.State{2, 0}, nil)
	tr.Append(2, dynamo.State{1, 0.1}, nil)
	tr.Append(3, dynamo.State{1, -0.9}, nil)
	Observe(&tr, m)
	assert.InDelta(t, 2.0/3, m.Value(), 1e-12)

	m.Reset()
	assert.Equal(t, 1.0, m.Value())
	m.Observe(0, dynamo.State{3, 0}, nil)
	assert.Equal(t, 0.0, m.Value())
}

func TestEvaluateRolloutCost(t *testing.T) {
	p := &dynamo.Problem{
		System: models.NewDoubleIntegrator(),
		Cost:   models.NewQuadraticCost([]float64{0, 0}, []float64{2}, []float64{4, 0}, []float64{2, 0}, nil, nil),
	}
	p = p.Clone()

	var tr dynamo.Trajectory
	tr.Append(0, dynamo.State{1, 0}, dynamo.Input{1})
	tr.Append(0.5, dynamo.State{1, 0}, dynamo.Input{1})
	tr.MarkEvent()
	tr.Append(0.5, dynamo.State{1, 0}, dynamo.Input{1})
	tr.Append(1, dynamo.State{1, 0}, dynamo.Input{1})

	rc := approx.RolloutConstraints{
		Ev:      make([][]float64, 4),
		Hv:      [][]float64{{1}, {1}, {1}, {1}},
		HvFinal: [][]float64{{2}},
	}
	modeAt := func(float64) int { return 0 }

	perf := Evaluate(p, []dynamo.Trajectory{tr}, []approx.RolloutConstraints{rc}, 0, 2, modeAt)

	// intermediate 1, pre-jump 1, final 2, penalty 0.5*2*1 + 0.5*2*4
	assert.InDelta(t, 9, perf.Cost, 1e-12)
	assert.InDelta(t, 1, perf.ISE2, 1e-12)
	assert.InDelta(t, 1, perf.MaxNorm2, 1e-12)
	assert.Zero(t, perf.ISE1)
	assert.Equal(t, perf.Cost, perf.Merit)

	noFinal := Evaluate(p, []dynamo.Trajectory{tr, {}}, []approx.RolloutConstraints{rc, {}}, 1, 0, modeAt)
	assert.InDelta(t, 2, noFinal.Cost, 1e-12)
}
