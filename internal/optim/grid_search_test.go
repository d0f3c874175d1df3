package optim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParams(t *testing.T, names ...string) []Param {
	t.Helper()
	out := make([]Param, len(names))
	for i, n := range names {
		p, err := LookupParam(n)
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func TestLookupParam(t *testing.T) {
	_, err := LookupParam("contraction")
	assert.NoError(t, err)
	_, err = LookupParam("kp")
	assert.Error(t, err)
	assert.Contains(t, ParamNames(), "merit_rho")
}

func TestPointsEnumerateGrid(t *testing.T) {
	g, err := NewGridSearch(mustParams(t, "contraction", "merit_rho"), [][]float64{{0.3, 0.5}, {0, 1, 2}}, 1)
	require.NoError(t, err)

	points := g.Points()
	require.Len(t, points, 6)
	assert.Equal(t, map[string]float64{"contraction": 0.3, "merit_rho": 0}, points[0])
	assert.Equal(t, map[string]float64{"contraction": 0.5, "merit_rho": 2}, points[5])
}

func TestNewGridSearchRejectsMismatch(t *testing.T) {
	_, err := NewGridSearch(mustParams(t, "contraction"), nil, 1)
	assert.Error(t, err)
	_, err = NewGridSearch(mustParams(t, "contraction"), [][]float64{{}}, 1)
	assert.Error(t, err)
}

func TestSearchSortsByScore(t *testing.T) {
	g, err := NewGridSearch(mustParams(t, "constraint_step_size", "merit_rho"), [][]float64{{0.25, 0.5, 1}, {0, 1}}, 3)
	require.NoError(t, err)

	var calls atomic.Int32
	trials, err := g.Search(context.Background(), config.DefaultConfig(), func(_ context.Context, c *config.Config) (float64, error) {
		calls.Add(1)
		if c.Solver.MeritRho == 1 && c.Solver.ConstraintStepSize == 0.25 {
			return 0, errors.New("diverged")
		}
		return math.Abs(c.Solver.ConstraintStepSize-0.5) + c.Solver.MeritRho, nil
	})
	require.NoError(t, err)

	assert.EqualValues(t, 6, calls.Load())
	require.Len(t, trials, 6)
	assert.Equal(t, map[string]float64{"constraint_step_size": 0.5, "merit_rho": 0}, trials[0].Values)
	assert.Zero(t, trials[0].Score)
	assert.True(t, math.IsInf(trials[5].Score, 1))
	assert.Error(t, trials[5].Err)
}

func TestSearchSkipsInvalidConfigs(t *testing.T) {
	g, err := NewGridSearch(mustParams(t, "max_iterations"), [][]float64{{0, 5}}, 1)
	require.NoError(t, err)

	trials, err := g.Search(context.Background(), config.DefaultConfig(), func(context.Context, *config.Config) (float64, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, trials[0].Score)
	assert.ErrorIs(t, trials[1].Err, config.ErrInvalidConfig)
}

func TestSearchCancelled(t *testing.T) {
	g, err := NewGridSearch(mustParams(t, "merit_rho"), [][]float64{{0, 1}}, 1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Search(ctx, config.DefaultConfig(), func(context.Context, *config.Config) (float64, error) { return 0, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
