// Package control provides the feedback laws produced and consumed by the
// optimizer.
//
// A [Policy] is the time-indexed affine law u = uff(t) + K(t) x of one
// partition. It is rebuilt every outer iteration, scaled by the line search
// through its feedforward increment, and truncated/spliced when the horizon
// recedes.
//
//   - [Policy]: piecewise-affine law sampled on the rollout grid
//   - [Linear]: constant-gain law u = uRef - K (x - xRef), used for warm starts
//
// # Usage
//
//	lin := control.NewLinear(k, xRef, uRef)
//	policy := lin.Sample([]float64{0, 0.5, 1})
//	u := policy.Compute(0.25, x)
package control
