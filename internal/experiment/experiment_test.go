package experiment

import (
	"context"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryModelsBuildValidProblems(t *testing.T) {
	reg := NewRegistry()
	names := reg.ListModels()
	require.NotEmpty(t, names)
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			m, err := reg.GetModel(name)
			require.NoError(t, err)
			p := m.Problem()
			require.NoError(t, p.Validate())
			assert.Len(t, m.InitState, p.System.StateDim())
			assert.Len(t, m.Reference, p.System.StateDim())
		})
	}

	_, err := reg.GetModel("nonexistent")
	assert.Error(t, err)
}

func TestRegistryIntegrators(t *testing.T) {
	reg := NewRegistry()
	for _, name := range reg.ListIntegrators() {
		integ, err := reg.GetIntegrator(name)
		require.NoError(t, err)
		assert.NotEmpty(t, integ.Name())
	}
	_, err := reg.GetIntegrator("verlet")
	assert.Error(t, err)
}

func TestJoinDropsRepeatedBoundarySamples(t *testing.T) {
	a := dynamo.Trajectory{}
	a.Append(0, dynamo.State{0}, dynamo.Input{0})
	a.Append(0.5, dynamo.State{1}, dynamo.Input{0})
	a.MarkEvent()
	a.Append(0.5, dynamo.State{2}, dynamo.Input{0})
	a.Append(1, dynamo.State{3}, dynamo.Input{0})

	b := dynamo.Trajectory{}
	b.Append(1, dynamo.State{3}, dynamo.Input{0})
	b.Append(2, dynamo.State{4}, dynamo.Input{0})

	out := Join([]dynamo.Trajectory{a, b})
	assert.Equal(t, []float64{0, 0.5, 0.5, 1, 2}, out.Times)
	assert.Equal(t, []int{2}, out.Events)
}

func TestExperimentRun(t *testing.T) {
	cfg := config.GetPreset("double_integrator", "partitioned")
	require.NotNil(t, cfg)
	cfg.Solver.Rollout.Integrator = "rk4"
	cfg.Solver.Rollout.InitialStep = 0.01

	exp, err := New(cfg, NewRegistry(), nil)
	require.NoError(t, err)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "double_integrator", res.Model)
	assert.Len(t, res.Log, res.Stats.Iterations+1)
	assert.Len(t, res.Controller, 4)
	assert.Equal(t, 0.0, res.Trajectory.Times[0])
	assert.Equal(t, 2.0, res.Trajectory.Times[res.Trajectory.Len()-1])
	assert.Contains(t, res.Metrics, "control_effort")
	assert.Equal(t, res.Performance.Cost, res.Metrics["cost"])
}

func TestExperimentLQRWarmstart(t *testing.T) {
	cfg := config.GetPreset("double_integrator", "short")
	require.NotNil(t, cfg)
	cfg.Problem.Warmstart = config.WarmstartLQR
	cfg.Solver.Rollout.Integrator = "rk4"
	cfg.Solver.Rollout.InitialStep = 0.01

	exp, err := New(cfg, NewRegistry(), nil)
	require.NoError(t, err)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, res.Performance.Cost, res.Log[0].Performance.Cost+1e-9)
}

func TestExperimentRejectsMissingWarmstart(t *testing.T) {
	cfg := config.GetPreset("switched_linear", "two_modes")
	require.NotNil(t, cfg)
	cfg.Problem.Warmstart = config.WarmstartLQR
	_, err := New(cfg, NewRegistry(), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestExperimentRunCancelled(t *testing.T) {
	exp, err := New(config.DefaultConfig(), NewRegistry(), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
