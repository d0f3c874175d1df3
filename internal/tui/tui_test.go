package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/mpc"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(m tea.Model, msgs ...tea.Msg) Monitor {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m.(Monitor)
}

func TestMonitorRecordsIterations(t *testing.T) {
	m := feed(NewMonitor("slq", "double_integrator"),
		IterationMsg{Iteration: 0, Performance: linesearch.Performance{Cost: 4}, StepType: "init"},
		IterationMsg{Iteration: 1, Performance: linesearch.Performance{Cost: 2}, LearningRate: 1, StepType: "cost"},
	)
	assert.Len(t, m.records, 2)
	assert.Equal(t, []float64{4, 2}, m.costs)

	view := m.View()
	assert.Contains(t, view, "slq")
	assert.Contains(t, view, "running")
	assert.Contains(t, view, "cost")
}

func TestMonitorDone(t *testing.T) {
	m := feed(NewMonitor("slq", "pendulum"), DoneMsg{})
	assert.Contains(t, m.View(), "done")

	_, cmd := m.Update(tickMsg{})
	assert.Nil(t, cmd)

	m = feed(NewMonitor("slq", "pendulum"), DoneMsg{Err: errors.New("riccati diverged")})
	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "riccati diverged")
}

func TestMonitorQuits(t *testing.T) {
	_, cmd := NewMonitor("slq", "drone").Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMonitorShowsMPCSteps(t *testing.T) {
	m := feed(NewMonitor("mpc", "pendulum"),
		StepMsg(mpc.Step{Time: 0.5, State: dynamo.State{0.3, 0}, Cost: 1, Iterations: 2, Rewinds: 1}),
	)
	view := m.View()
	assert.Contains(t, view, "t=0.50s")
	assert.Contains(t, view, "rewinds=1")
	assert.Contains(t, view, "O")
}

func TestSceneDrawsEveryModel(t *testing.T) {
	for model, x := range map[string]dynamo.State{
		"pendulum":      {0.5, 0},
		"drone":         {0, 3, 0.2, 0, 0, 0},
		"bouncing_mass": {0.4, 0},
		"other":         {1, -2, 0.5},
	} {
		out := NewScene(model).Draw(x)
		assert.Equal(t, sceneHeight, strings.Count(out, "\n"), model)
		assert.NotEmpty(t, strings.TrimSpace(out), model)
	}
}

func TestSummaryAndHistory(t *testing.T) {
	stats := slq.Stats{Iterations: 3, Converged: true, Reason: "converged"}
	out := Summary("double_integrator", stats, linesearch.Performance{Cost: 1.25}, map[string]float64{"stability": 1})
	assert.Contains(t, out, "double_integrator")
	assert.Contains(t, out, "1.25")
	assert.Contains(t, out, "stability")

	log := []slq.IterationRecord{
		{Performance: linesearch.Performance{Cost: 3}},
		{Performance: linesearch.Performance{Cost: 2}},
		{Performance: linesearch.Performance{Cost: 1.5}},
	}
	assert.Contains(t, History(log, 40), "cost per iteration")
	assert.Empty(t, History(log[:1], 40))
}
