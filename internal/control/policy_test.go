package control

import (
	"testing"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func rampPolicy() Policy {
	var p Policy
	for i, t := range []float64{0, 1, 1, 2} {
		k := mat.NewDense(1, 2, []float64{float64(i), 0})
		p.Append(t, k, dynamo.Input{float64(10 * i)}, dynamo.Input{1})
	}
	return p
}

func TestPolicyCompute(t *testing.T) {
	p := rampPolicy()
	x := dynamo.State{1, 5}

	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"first sample", 0, 0},
		{"midway", 0.5, 5.5},
		{"duplicate stamp uses post jump", 1, 22},
		{"after jump", 1.5, 27.5},
		{"clamped after end", 3, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := p.Compute(tt.t, x)
			require.Len(t, u, 1)
			assert.InDelta(t, tt.want, u[0], 1e-12)
		})
	}
}

func TestPolicyStepDoesNotMutate(t *testing.T) {
	p := rampPolicy()
	s := p.Step(0.5)
	assert.Equal(t, 10.5, s.Feedforward[1][0])
	assert.Equal(t, 10.0, p.Feedforward[1][0])
}

func TestPolicyTruncateSplice(t *testing.T) {
	p := rampPolicy()
	orig := p.Clone()

	prefix := p.Truncate(1)
	assert.Equal(t, []float64{0}, prefix.Times)
	assert.Equal(t, []float64{1, 1, 2}, p.Times)

	p.Splice(prefix)
	assert.Equal(t, orig.Times, p.Times)
	assert.Equal(t, orig.Feedforward, p.Feedforward)
}

func TestPolicyTruncateBetweenSamplesInterpolates(t *testing.T) {
	p := rampPolicy()
	x := dynamo.State{1, 5}
	want := p.Compute(0.25, x)

	prefix := p.Truncate(0.25)
	assert.Equal(t, []float64{0}, prefix.Times)
	require.Equal(t, []float64{0.25, 1, 1, 2}, p.Times)
	assert.InDelta(t, want[0], p.Compute(0.25, x)[0], 1e-12)
	assert.InDelta(t, 2.5, p.Feedforward[0][0], 1e-12)
	assert.InDelta(t, 0.25, p.Gains[0].At(0, 0), 1e-12)
	assert.Equal(t, dynamo.Input{1}, p.DeltaFeedforward[0])

	mid := p.Compute(0.5, x)
	assert.InDelta(t, 5.5, mid[0], 1e-12)
}

func TestPolicyTruncateAll(t *testing.T) {
	p := rampPolicy()
	prefix := p.Truncate(10)
	assert.True(t, p.Empty())
	assert.Equal(t, 4, prefix.Len())
}

func TestPolicyMaxDeltaNorm(t *testing.T) {
	p := rampPolicy()
	p.DeltaFeedforward[2] = dynamo.Input{-3}
	n, at := p.MaxDeltaNorm()
	assert.Equal(t, 3.0, n)
	assert.Equal(t, 1.0, at)
	assert.Equal(t, -1, p.Finite())
}

func TestLinearSampleMatchesCompute(t *testing.T) {
	lin := NewLinear([][]float64{{2, 1}}, dynamo.State{1, 0}, dynamo.Input{0.5})
	p := lin.Sample([]float64{0, 1})
	x := dynamo.State{0.3, -0.7}

	assert.InDelta(t, lin.Compute(0, x)[0], p.Compute(0.5, x)[0], 1e-12)
	assert.InDelta(t, 0.5-2*(0.3-1)-1*(-0.7), lin.Compute(0, x)[0], 1e-12)
}
