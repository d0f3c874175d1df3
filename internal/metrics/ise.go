package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ISE integrates the squared norm of an error signal with the trapezoidal
// rule. Break starts a new stretch so no area is accumulated across a jump
// or a partition boundary.
type ISE struct {
	name    string
	sum     float64
	maxNorm float64
	prevT   float64
	prevSq  float64
	started bool
}

func NewISE(name string) *ISE {
	return &ISE{name: name}
}

func (m *ISE) Name() string { return m.name }

// Observe records the error e at time t. A nil e counts as zero error.
func (m *ISE) Observe(t float64, e []float64) {
	sq := floats.Dot(e, e)
	if m.started {
		m.sum += 0.5 * (t - m.prevT) * (sq + m.prevSq)
	}
	m.maxNorm = math.Max(m.maxNorm, math.Sqrt(sq))
	m.prevT, m.prevSq, m.started = t, sq, true
}

func (m *ISE) Break() { m.started = false }

func (m *ISE) Value() float64 { return m.sum }

func (m *ISE) MaxNorm() float64 { return m.maxNorm }

func (m *ISE) Reset() {
	m.sum, m.maxNorm = 0, 0
	m.started = false
}
