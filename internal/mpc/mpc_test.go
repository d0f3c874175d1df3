package mpc

import (
	"context"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/metrics"
	"github.com/lizqwerscott/ocs2-ros2/internal/models"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubleIntegrator() *dynamo.Problem {
	return &dynamo.Problem{
		System: models.NewDoubleIntegrator(),
		Cost:   models.NewQuadraticCost([]float64{1, 1}, []float64{0.1}, []float64{10, 10}, nil, nil, nil),
	}
}

func newLoop(t *testing.T, cfg Config) *Loop {
	t.Helper()
	settings := slq.DefaultSettings()
	settings.MaxIterations = 5
	settings.Rollout.Integrator = "rk4"
	settings.Rollout.InitialStep = 0.01
	solver, err := slq.New(doubleIntegrator(), schedule.LogicRules{}, settings)
	require.NoError(t, err)
	loop, err := New(solver, doubleIntegrator(), cfg, nil)
	require.NoError(t, err)
	return loop
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"duration", func(c *Config) { c.Duration = 0 }},
		{"horizon", func(c *Config) { c.Horizon = -1 }},
		{"period", func(c *Config) { c.Period = 1 }},
		{"plant step", func(c *Config) { c.PlantStep = 0 }},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestPartitioningCoversRunAndHorizon(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration, cfg.Horizon, cfg.PartitionLength = 1, 0.5, 0.25
	loop := newLoop(t, cfg)

	grid := loop.Partitioning(0)
	assert.Equal(t, 0.0, grid[0])
	assert.GreaterOrEqual(t, grid[len(grid)-1], 1.5)
	for i := 1; i < len(grid); i++ {
		assert.InDelta(t, 0.25, grid[i]-grid[i-1], 1e-12)
	}
}

func TestLoopDrivesStateToOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration, cfg.Horizon, cfg.PartitionLength, cfg.Period = 1, 0.5, 0.25, 0.05
	loop := newLoop(t, cfg)
	loop.AddMetric(metrics.NewControlEffort())
	loop.AddMetric(metrics.NewStability(0.5, dynamo.State{0, 0}))

	var steps []Step
	loop.AddObserver(func(s Step) { steps = append(steps, s) })

	res, err := loop.Run(context.Background(), 0, dynamo.State{1, 0})
	require.NoError(t, err)

	assert.InDelta(t, 20, res.Solves, 1)
	assert.InDelta(t, 3, res.Rewinds, 1)
	assert.Len(t, steps, res.Solves)
	assert.Contains(t, res.Metrics, "control_effort")
	assert.Contains(t, res.Metrics, "stability")
	assert.Greater(t, res.Metrics["control_effort"], 0.0)

	_, x, _ := res.Trajectory.Final()
	assert.Less(t, x[0], 0.9)
	for k := 1; k < res.Trajectory.Len(); k++ {
		assert.Greater(t, res.Trajectory.Times[k], res.Trajectory.Times[k-1])
	}
	assert.Equal(t, steps[len(steps)-1].Rewinds, res.Rewinds)
}

func TestLoopStopsOnCancel(t *testing.T) {
	loop := newLoop(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := loop.Run(ctx, 0, dynamo.State{1, 0})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Solves)
}
