package rollout

import (
	"errors"
	"math"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ball falls under gravity and bounces with restitution 0.5; velocity is
// flipped by the jump map, position by nothing. The flow optionally blows up.
type ball struct {
	jumps   int
	explode bool
	modes   []int
}

func (b *ball) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State {
	if b.explode {
		return dynamo.State{math.Inf(1), 0}
	}
	return dynamo.State{x[1], -9.81 + u[0]}
}

func (b *ball) JumpMap(_ float64, x dynamo.State) dynamo.State {
	b.jumps++
	return dynamo.State{x[0], -0.5 * x[1]}
}

func (b *ball) GuardSurfaces(_ float64, x dynamo.State) []float64 { return []float64{x[0]} }
func (b *ball) StateDim() int                                     { return 2 }
func (b *ball) InputDim() int                                     { return 1 }
func (b *ball) Clone() dynamo.System                              { return &ball{explode: b.explode} }
func (b *ball) SetMode(mode int)                                  { b.modes = append(b.modes, mode) }

func problem(sys dynamo.System) *dynamo.Problem {
	return &dynamo.Problem{
		System:     sys,
		Constraint: dynamo.NoConstraint{},
		Operating:  dynamo.StationaryOperating{Input: dynamo.Input{0}},
	}
}

func machine(t *testing.T, rules schedule.LogicRules, partitioning []float64) *schedule.Machine {
	m, err := schedule.NewMachine(rules)
	require.NoError(t, err)
	require.NoError(t, m.Update(partitioning))
	return m
}

func TestTimeTriggeredSpansHorizon(t *testing.T) {
	partitioning := []float64{0, 0.5, 1}
	m := machine(t, schedule.LogicRules{SwitchingTimes: []float64{0.25}, Modes: []int{0, 1}}, partitioning)
	eng, err := NewTimeTriggered(DefaultSettings())
	require.NoError(t, err)

	sys := &ball{}
	out, err := eng.Run(problem(sys), 0, dynamo.State{10, 0}, 1, partitioning, nil, m)
	require.NoError(t, err)
	require.Len(t, out.Partitions, 2)

	first, last := out.Partitions[0], out.Partitions[1]
	start, _ := first.Span()
	_, end := last.Span()
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 1.0, end)

	for _, tr := range out.Partitions {
		for k := 1; k < tr.Len(); k++ {
			assert.GreaterOrEqual(t, tr.Times[k], tr.Times[k-1])
		}
	}

	require.Len(t, first.Events, 1)
	e := first.Events[0]
	assert.Equal(t, 0.25, first.Times[e-1])
	assert.Equal(t, 0.25, first.Times[e])
	assert.InDelta(t, -0.5*first.States[e-1][1], first.States[e][1], 1e-12)
	assert.Equal(t, 1, sys.jumps)
	assert.Equal(t, []int{0, 1, 1}, sys.modes)
	assert.Greater(t, out.AvgTimeStep, 0.0)
}

func TestStateTriggeredSingleCrossing(t *testing.T) {
	partitioning := []float64{0, 1}
	m := machine(t, schedule.LogicRules{}, partitioning)
	settings := DefaultSettings()
	settings.MinStep = 1e-10
	eng, err := NewStateTriggered(settings)
	require.NoError(t, err)

	sys := &ball{}
	// lands at sqrt(2/9.81) ~ 0.4515, bounces to ~0.25 m and lands again after 1 s
	out, err := eng.Run(problem(sys), 0, dynamo.State{1, 0}, 0.8, partitioning, nil, m)
	require.NoError(t, err)

	tr := out.Partitions[0]
	require.Len(t, tr.Events, 1)
	e := tr.Events[0]
	want := math.Sqrt(2 / 9.81)
	assert.InDelta(t, want, tr.Times[e-1], 1e-8)
	assert.Equal(t, tr.Times[e-1], tr.Times[e])
	assert.Less(t, tr.States[e-1][0], 0.0)
	assert.Greater(t, tr.States[e][1], 0.0)
	assert.Equal(t, 1, sys.jumps)

	assert.Equal(t, []float64{tr.Times[e]}, m.EventTimes(0))
	assert.Equal(t, []int{0, 1}, m.Subsystems(0))
}

func TestRunUsesPolicy(t *testing.T) {
	partitioning := []float64{0, 1}
	m := machine(t, schedule.LogicRules{}, partitioning)
	eng, err := NewTimeTriggered(DefaultSettings())
	require.NoError(t, err)

	// hovering input cancels gravity
	hover := control.NewLinear([][]float64{{0, 0}}, dynamo.State{0, 0}, dynamo.Input{9.81})
	policies := []control.Policy{hover.Sample([]float64{0, 1})}

	out, err := eng.Run(problem(&ball{}), 0, dynamo.State{3, 0}, 1, partitioning, policies, m)
	require.NoError(t, err)
	_, x, u := out.Partitions[0].Final()
	assert.InDelta(t, 3.0, x[0], 1e-9)
	assert.InDelta(t, 9.81, u[0], 1e-12)
}

func TestRunErrors(t *testing.T) {
	partitioning := []float64{0, 1}
	m := machine(t, schedule.LogicRules{}, partitioning)
	eng, err := NewTimeTriggered(DefaultSettings())
	require.NoError(t, err)

	_, err = eng.Run(problem(&ball{}), 1, dynamo.State{0, 0}, 0.5, partitioning, nil, m)
	assert.ErrorIs(t, err, dynamo.ErrTimeOrder)

	_, err = eng.Run(problem(&ball{}), 0, dynamo.State{0, 0}, 1, partitioning, make([]control.Policy, 3), m)
	assert.ErrorIs(t, err, ErrControllerCount)

	_, err = eng.Run(problem(&ball{explode: true}), 0, dynamo.State{0, 0}, 1, partitioning, nil, m)
	var simErr *dynamo.SimulationError
	require.True(t, errors.As(err, &simErr))
	assert.ErrorIs(t, err, ErrDiverged)
}

type plain struct{}

func (plain) FlowMap(_ float64, x dynamo.State, u dynamo.Input) dynamo.State { return dynamo.State{u[0]} }
func (plain) JumpMap(_ float64, x dynamo.State) dynamo.State                 { return x }
func (plain) StateDim() int                                                  { return 1 }
func (plain) InputDim() int                                                  { return 1 }
func (plain) Clone() dynamo.System                                           { return plain{} }

func TestStateTriggeredNeedsGuards(t *testing.T) {
	partitioning := []float64{0, 1}
	m := machine(t, schedule.LogicRules{}, partitioning)
	eng, err := NewStateTriggered(DefaultSettings())
	require.NoError(t, err)
	_, err = eng.Run(problem(plain{}), 0, dynamo.State{0}, 1, partitioning, nil, m)
	assert.ErrorIs(t, err, ErrNoGuards)
}

func TestPartitionsOutsideHorizonAreEmpty(t *testing.T) {
	partitioning := []float64{0, 1, 2, 3}
	m := machine(t, schedule.LogicRules{}, partitioning)
	eng, err := NewTimeTriggered(DefaultSettings())
	require.NoError(t, err)

	out, err := eng.Run(problem(plain{}), 1.5, dynamo.State{0}, 2.5, partitioning, nil, m)
	require.NoError(t, err)
	assert.True(t, out.Partitions[0].Empty())
	assert.False(t, out.Partitions[1].Empty())
	assert.False(t, out.Partitions[2].Empty())
	start, _ := out.Partitions[1].Span()
	_, end := out.Partitions[2].Span()
	assert.Equal(t, 1.5, start)
	assert.Equal(t, 2.5, end)
}
