// Package metrics accumulates scalar figures of merit along rollouts: the
// integrated constraint errors and total cost used by the line search, and
// the control effort and stability summaries reported by the MPC loop.
package metrics

import "github.com/lizqwerscott/ocs2-ros2/internal/dynamo"

// Metric observes a closed-loop trajectory sample by sample.
type Metric interface {
	Name() string
	Observe(t float64, x dynamo.State, u dynamo.Input)
	Value() float64
	Reset()
}

// Observe feeds every sample of tr to the metrics.
func Observe(tr *dynamo.Trajectory, ms ...Metric) {
	for k := 0; k < tr.Len(); k++ {
		for _, m := range ms {
			m.Observe(tr.Times[k], tr.States[k], tr.Inputs[k])
		}
	}
}
