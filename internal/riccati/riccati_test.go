package riccati

import (
	"errors"
	"math"
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// scalarSample models x' = u with cost 0.5(x^2 + u^2), whose Riccati
// equation -S' = 1 - S^2 with S(1) = 0 gives S(0) = tanh(1).
func scalarSample(t float64) approx.Sample {
	one := func() *mat.Dense { return mat.NewDense(1, 1, []float64{1}) }
	s := approx.Sample{
		Time:      t,
		Am:        mat.NewDense(1, 1, []float64{0}),
		Bm:        one(),
		Qv:        mat.NewVecDense(1, nil),
		Qm:        one(),
		Rv:        mat.NewVecDense(1, nil),
		Rm:        one(),
		Pm:        mat.NewDense(1, 1, nil),
		RmInverse: one(),
		EvProj:    mat.NewVecDense(1, nil),
		CmProj:    mat.NewDense(1, 1, nil),
		DmProj:    mat.NewDense(1, 1, nil),
		NullProj:  one(),
	}
	s.AmC, s.QmC, s.QvC, s.RmC = s.Am, s.Qm, s.Qv, s.Rm
	return s
}

func scalarPartition(t0, t1 float64, n int) (dynamo.Trajectory, approx.Partition) {
	var tr dynamo.Trajectory
	var lq approx.Partition
	for k := 0; k < n; k++ {
		t := t0 + (t1-t0)*float64(k)/float64(n-1)
		tr.Append(t, dynamo.State{0}, dynamo.Input{0})
		lq.Samples = append(lq.Samples, scalarSample(t))
	}
	return tr, lq
}

func zeroBoundary() Boundary {
	return Boundary{
		Sm:  mat.NewDense(1, 1, nil),
		Sv:  mat.NewVecDense(1, nil),
		Sve: mat.NewVecDense(1, nil),
		X:   dynamo.State{0},
	}
}

func TestScalarRiccatiMatchesTanh(t *testing.T) {
	tests := []struct {
		policy Policy
		tol    float64
	}{
		{Adaptive, 1e-4},
		{Nominal, 1e-5},
		{Sweep, 1e-9},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			settings := DefaultSettings()
			settings.Policy = tt.policy
			solver, err := New(settings, nil)
			require.NoError(t, err)

			tr, lq := scalarPartition(0, 1, 51)
			sol, err := solver.Partition(0, &tr, &lq, zeroBoundary())
			require.NoError(t, err)
			require.Equal(t, tr.Len(), sol.Len())

			assert.InDelta(t, math.Tanh(1), sol.Sm[0].At(0, 0), tt.tol)
			assert.InDelta(t, math.Tanh(0.5), sol.Sm[25].At(0, 0), tt.tol)
			assert.Equal(t, 0.0, sol.Sm[50].At(0, 0))
			assert.InDelta(t, 0, sol.Sv[0].AtVec(0), 1e-12)
			assert.InDelta(t, 0, sol.S[0], 1e-12)
		})
	}
}

func TestEventJumpAddsPreJumpCost(t *testing.T) {
	solver, err := New(DefaultSettings(), nil)
	require.NoError(t, err)

	tr, lq := scalarPartition(0, 0.5, 11)
	post, postLQ := scalarPartition(0.5, 1, 11)
	tr.MarkEvent()
	for k := 0; k < post.Len(); k++ {
		tr.Append(post.Times[k], post.States[k], post.Inputs[k])
	}
	lq.Samples = append(lq.Samples, postLQ.Samples...)
	lq.Events = []approx.EventSample{{
		Index: 10,
		Time:  0.5,
		Q:     2,
		Qv:    mat.NewVecDense(1, []float64{0.5}),
		Qm:    mat.NewDense(1, 1, []float64{1}),
	}}

	sol, err := solver.Partition(0, &tr, &lq, zeroBoundary())
	require.NoError(t, err)

	assert.InDelta(t, math.Tanh(0.5), sol.Sm[11].At(0, 0), 1e-5)
	assert.InDelta(t, 1, sol.Sm[10].At(0, 0)-sol.Sm[11].At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, sol.Sv[10].AtVec(0)-sol.Sv[11].AtVec(0), 1e-12)
	assert.InDelta(t, 2, sol.S[10]-sol.S[11], 1e-12)
	assert.Equal(t, []int{11}, sol.Events)
}

func TestEventOnLastSampleJumpsFinalBoundary(t *testing.T) {
	solver, err := New(DefaultSettings(), nil)
	require.NoError(t, err)

	tr, lq := scalarPartition(0, 1, 11)
	tr.MarkEvent()
	lq.Events = []approx.EventSample{{
		Index: 10,
		Time:  1,
		Q:     2,
		Qv:    mat.NewVecDense(1, []float64{0.5}),
		Qm:    mat.NewDense(1, 1, []float64{1}),
	}}

	sol, err := solver.Partition(0, &tr, &lq, zeroBoundary())
	require.NoError(t, err)

	assert.InDelta(t, 1, sol.Sm[10].At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, sol.Sv[10].AtVec(0), 1e-12)
	assert.InDelta(t, 2, sol.S[10], 1e-12)
	assert.Greater(t, sol.Sm[0].At(0, 0), math.Tanh(1))
}

func TestSequentialChainsPartitions(t *testing.T) {
	solver, err := New(DefaultSettings(), nil)
	require.NoError(t, err)

	tr0, lq0 := scalarPartition(0, 0.5, 26)
	tr1, lq1 := scalarPartition(0.5, 1, 26)
	parts := []Input{{&tr0, &lq0}, {&tr1, &lq1}}

	sols, err := solver.Sequential(parts, 0, 1, zeroBoundary())
	require.NoError(t, err)
	require.Len(t, sols, 2)
	assert.InDelta(t, math.Tanh(1), sols[0].Sm[0].At(0, 0), 1e-5)
	assert.InDelta(t, sols[1].Sm[0].At(0, 0), sols[0].Sm[25].At(0, 0), 1e-12)
}

func TestParallelConvergesToSequential(t *testing.T) {
	settings := DefaultSettings()
	settings.ParallelMaxSweeps = 3
	settings.Workers = 2
	solver, err := New(settings, nil)
	require.NoError(t, err)

	tr0, lq0 := scalarPartition(0, 0.5, 26)
	tr1, lq1 := scalarPartition(0.5, 1, 26)
	parts := []Input{{&tr0, &lq0}, {&tr1, &lq1}}

	seq, err := solver.Sequential(parts, 0, 1, zeroBoundary())
	require.NoError(t, err)
	par, converged, err := solver.Parallel(parts, 0, 1, zeroBoundary(), []Boundary{zeroBoundary()})
	require.NoError(t, err)

	assert.True(t, converged)
	assert.InDelta(t, seq[0].Sm[0].At(0, 0), par[0].Sm[0].At(0, 0), 1e-12)
}

func TestParallelFallsBackToSequential(t *testing.T) {
	settings := DefaultSettings()
	settings.ParallelMaxSweeps = 1
	solver, err := New(settings, nil)
	require.NoError(t, err)

	tr0, lq0 := scalarPartition(0, 0.5, 26)
	tr1, lq1 := scalarPartition(0.5, 1, 26)
	parts := []Input{{&tr0, &lq0}, {&tr1, &lq1}}

	sols, converged, err := solver.Parallel(parts, 0, 1, zeroBoundary(), nil)
	require.NoError(t, err)
	assert.False(t, converged)
	assert.InDelta(t, math.Tanh(1), sols[0].Sm[0].At(0, 0), 1e-5)
}

func TestDivergenceReportsNeighbourhood(t *testing.T) {
	settings := DefaultSettings()
	settings.Policy = Sweep
	solver, err := New(settings, nil)
	require.NoError(t, err)

	tr, lq := scalarPartition(0, 1, 21)
	lq.Samples[5].Q = math.NaN()

	_, err = solver.Partition(3, &tr, &lq, zeroBoundary())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDiverged))

	var derr *DivergenceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Partition)
	assert.Contains(t, derr.Neighbourhood, "t=")
}

func TestBoundaryRecenter(t *testing.T) {
	b := Boundary{
		Sm:  mat.NewDense(1, 1, []float64{2}),
		Sv:  mat.NewVecDense(1, []float64{1}),
		S:   3,
		Sve: mat.NewVecDense(1, nil),
		X:   dynamo.State{0},
	}
	r := b.Recenter(dynamo.State{1})

	// V(x) = 3 + x + x^2 evaluated around x = 1
	assert.InDelta(t, 5, r.S, 1e-12)
	assert.InDelta(t, 3, r.Sv.AtVec(0), 1e-12)
	assert.Equal(t, 2.0, r.Sm.At(0, 0))
	assert.Equal(t, 1.0, b.Sv.AtVec(0))
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.Policy = "bogus"
	assert.ErrorIs(t, s.Validate(), ErrUnknownPolicy)

	s = DefaultSettings()
	s.Integrator = "leapfrog"
	assert.Error(t, s.Validate())
}
