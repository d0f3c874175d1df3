// Package dynamo provides the core primitives shared by the hybrid optimal
// control packages.
//
// The package defines the model services consumed by the solver and the
// per-partition trajectory container:
//
//   - [State], [Input]: vectors along a trajectory
//   - [System]: flow and jump maps of a hybrid plant (dx/dt = f(t, x, u))
//   - [Cost], [Constraint]: quadratic cost and linearized equality constraints
//   - [Problem]: bundle of services cloned once per worker
//   - [Trajectory]: time/state/input samples of one partition with event markers
//
// # Example
//
//	p := &dynamo.Problem{System: models.NewDoubleIntegrator(), Cost: cost}
//	worker := p.Clone()
//	a, b := worker.Linearize(0, x, u)
//
// # Thread Safety
//
// Models are NOT thread-safe. Every parallel task works on its own
// [Problem.Clone]; shared buffers are partitioned by index.
package dynamo
