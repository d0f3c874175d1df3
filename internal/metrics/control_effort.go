package metrics

import (
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// ControlEffort is the time-RMS of the input norm, integrated with the
// trapezoidal rule over the observed samples.
type ControlEffort struct {
	integral float64
	first    float64
	lastT    float64
	lastSq   float64
	samples  int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(t float64, _ dynamo.State, u dynamo.Input) {
	sq := floats.Dot(u, u)
	if c.samples == 0 {
		c.first = t
	} else {
		c.integral += 0.5 * (t - c.lastT) * (sq + c.lastSq)
	}
	c.lastT, c.lastSq = t, sq
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	switch {
	case c.samples == 0:
		return 0
	case c.lastT <= c.first:
		return math.Sqrt(c.lastSq)
	}
	return math.Sqrt(c.integral / (c.lastT - c.first))
}

func (c *ControlEffort) Reset() {
	*c = ControlEffort{}
}
