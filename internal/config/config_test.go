package config

import (
	"path/filepath"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultModel, cfg.Problem.Model)
	assert.Greater(t, cfg.Problem.FinalTime, cfg.Problem.InitTime)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []float64{0, DefaultFinalTime}, cfg.PartitionTimes())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("switched_linear", "three_switches")
	require.NotNil(t, cfg)
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Problem, loaded.Problem)
	assert.Equal(t, riccati.Sweep, loaded.Solver.Riccati.Policy)
	assert.Equal(t, cfg.Solver.MaxIterations, loaded.Solver.MaxIterations)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.Problem.Model = "" }},
		{"time order", func(c *Config) { c.Problem.InitTime = 5 }},
		{"partitioning", func(c *Config) { c.Problem.Partitioning = []float64{0, 0} }},
		{"modes", func(c *Config) { c.Problem.Modes = []int{0} }},
		{"rollout", func(c *Config) { c.Problem.Rollout = "event" }},
		{"warmstart", func(c *Config) { c.Problem.Warmstart = "pid" }},
		{"backend", func(c *Config) { c.Output.Backend = "postgres" }},
		{"iterations", func(c *Config) { c.Solver.MaxIterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSolverSettingsAppliesRollout(t *testing.T) {
	cfg := GetPreset("bouncing_mass", "drop")
	require.NotNil(t, cfg)
	assert.True(t, cfg.SolverSettings().StateTriggered)
	assert.False(t, DefaultConfig().SolverSettings().StateTriggered)
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("pendulum", "small")
	require.NotNil(t, cfg)
	assert.Equal(t, []float64{0.2, 0}, cfg.Problem.InitState)

	assert.Nil(t, GetPreset("pendulum", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "small"))
}

func TestPresetsAreValid(t *testing.T) {
	for model, presets := range Presets {
		for name, cfg := range presets {
			assert.NoError(t, cfg.Validate(), "%s/%s", model, name)
		}
	}
}

func TestListPresets(t *testing.T) {
	assert.NotEmpty(t, ListPresets("double_integrator"))
	assert.Nil(t, ListPresets("nonexistent"))
}
