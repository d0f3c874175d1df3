package linesearch

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRates(t *testing.T) {
	s := DefaultSettings()
	s.MinRate = 0.1
	assert.Equal(t, []float64{1, 0.5, 0.25, 0.125}, s.Rates())

	s.MinRate = 2
	assert.Empty(t, s.Rates())
}

func TestMeritWeight(t *testing.T) {
	assert.Equal(t, 0.0, MeritWeight(0, 10, 4))
	assert.Equal(t, 0.0, MeritWeight(1, 10, 4))
	assert.InDelta(t, 2.0, MeritWeight(5, 9, 4), 1e-12)
	assert.Equal(t, 0.0, MeritWeight(3, 1, 4))

	p := Performance{Cost: 1, ISE1: 4}.WithMerit(0.5)
	assert.Equal(t, 2.0, p.Merit)
}

func TestAccept(t *testing.T) {
	s := DefaultSettings()
	s.GMin, s.GMax, s.GammaC, s.ArmijoFactor = 1e-3, 10, 0.1, 0.5

	tests := []struct {
		name    string
		base    Performance
		cand    Performance
		descent float64
		want    StepType
	}{
		{
			name: "large violation reduced",
			base: Performance{ISE1: 400, Merit: 1},
			cand: Performance{ISE1: 144, Merit: 5},
			want: Constraint,
		},
		{
			name: "large violation not reduced enough",
			base: Performance{ISE1: 144, Merit: 1},
			cand: Performance{ISE1: 121, Merit: 0},
			want: Zero,
		},
		{
			name:    "armijo satisfied",
			base:    Performance{Merit: 10},
			cand:    Performance{Merit: 9},
			descent: -1,
			want:    Cost,
		},
		{
			name:    "armijo violated",
			base:    Performance{Merit: 10},
			cand:    Performance{Merit: 9.9},
			descent: -1,
			want:    Zero,
		},
		{
			name: "dual by merit",
			base: Performance{ISE1: 1, Merit: 10},
			cand: Performance{ISE1: 1, Merit: 9},
			want: Dual,
		},
		{
			name: "dual by violation",
			base: Performance{ISE1: 1, Merit: 10},
			cand: Performance{ISE1: 0.25, Merit: 11},
			want: Dual,
		},
		{
			name: "diverged",
			base: Performance{ISE1: 1, Merit: 10},
			cand: Diverged(),
			want: Zero,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Accept(tt.base, tt.cand, tt.descent, 1))
		})
	}
}

func TestSearchPicksLargestAcceptedRate(t *testing.T) {
	s := DefaultSettings()
	s.MinRate = 0.1
	s.Workers = 2
	base := Performance{Cost: 10, Merit: 10, ISE1: 1}

	var calls atomic.Int32
	step := Search(s, nil, base, -1, func(worker int, rate float64) (Performance, string, error) {
		calls.Add(1)
		if rate > 0.3 {
			return Performance{Cost: 20, Merit: 20, ISE1: 1}, "bad", nil
		}
		return Performance{Cost: 9, Merit: 9, ISE1: 1}, "good", nil
	})

	assert.Equal(t, 0.25, step.Rate)
	assert.Equal(t, Dual, step.Type)
	assert.Equal(t, "good", step.Result)
	assert.Equal(t, int32(4), calls.Load())
}

func TestSearchRejectsDivergentCandidates(t *testing.T) {
	s := DefaultSettings()
	s.MinRate = 0.2
	base := Performance{Cost: 10, Merit: 10}

	step := Search(s, nil, base, -1, func(_ int, rate float64) (Performance, int, error) {
		if rate == 1 {
			return Performance{}, 0, errors.New("diverged")
		}
		return Performance{Cost: 5, Merit: 5}, 7, nil
	})
	assert.Equal(t, 0.5, step.Rate)
	assert.Equal(t, Cost, step.Type)
	assert.Equal(t, 7, step.Result)
}

func TestSearchWithoutAcceptance(t *testing.T) {
	s := DefaultSettings()
	base := Performance{Cost: 1, Merit: 1}
	step := Search(s, nil, base, -1, func(int, float64) (Performance, int, error) {
		return Performance{Cost: math.NaN(), Merit: math.NaN()}, 3, nil
	})
	require.Equal(t, Zero, step.Type)
	assert.Zero(t, step.Rate)
	assert.Zero(t, step.Result)
	assert.Equal(t, base, step.Performance)
}
