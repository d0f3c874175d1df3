package control

import (
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Controller computes an input from the current time and state.
type Controller interface {
	Compute(t float64, x dynamo.State) dynamo.Input
}

// Policy is the affine law of one partition. Gains are treated as read-only
// once synthesized; copies produced by Step share them.
type Policy struct {
	Times            []float64
	Gains            []*mat.Dense
	Feedforward      []dynamo.Input
	DeltaFeedforward []dynamo.Input
}

func (p *Policy) Empty() bool {
	return p == nil || len(p.Times) == 0
}

func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Times)
}

func (p *Policy) Append(t float64, k *mat.Dense, uff, duff dynamo.Input) {
	p.Times = append(p.Times, t)
	p.Gains = append(p.Gains, k)
	p.Feedforward = append(p.Feedforward, uff)
	p.DeltaFeedforward = append(p.DeltaFeedforward, duff)
}

func (p *Policy) Clone() Policy {
	c := Policy{
		Times:            append([]float64(nil), p.Times...),
		Gains:            make([]*mat.Dense, len(p.Gains)),
		Feedforward:      make([]dynamo.Input, len(p.Feedforward)),
		DeltaFeedforward: make([]dynamo.Input, len(p.DeltaFeedforward)),
	}
	for i, k := range p.Gains {
		c.Gains[i] = dynamo.CloneDense(k)
	}
	for i, u := range p.Feedforward {
		c.Feedforward[i] = u.Clone()
	}
	for i, u := range p.DeltaFeedforward {
		c.DeltaFeedforward[i] = u.Clone()
	}
	return c
}

// Compute evaluates uff(t) + K(t) x with linear interpolation between
// samples. At a duplicated time stamp the post-jump sample is used.
func (p *Policy) Compute(t float64, x dynamo.State) dynamo.Input {
	k, alpha := dynamo.Locate(p.Times, t)
	u := p.sample(k, x)
	if alpha > 0 && k+1 < len(p.Times) {
		next := p.sample(k+1, x)
		for i := range u {
			u[i] += alpha * (next[i] - u[i])
		}
	}
	return u
}

func (p *Policy) sample(k int, x dynamo.State) dynamo.Input {
	u := p.Feedforward[k].Clone()
	var kx mat.VecDense
	kx.MulVec(p.Gains[k], x.Vec())
	for i := range u {
		u[i] += kx.AtVec(i)
	}
	return u
}

// Step returns a copy whose feedforward is uff + rate*deltaUff.
func (p *Policy) Step(rate float64) Policy {
	c := Policy{
		Times:            p.Times,
		Gains:            p.Gains,
		Feedforward:      make([]dynamo.Input, len(p.Feedforward)),
		DeltaFeedforward: p.DeltaFeedforward,
	}
	for i, u := range p.Feedforward {
		c.Feedforward[i] = u.Clone()
		if rate != 0 && i < len(p.DeltaFeedforward) {
			floats.AddScaled(c.Feedforward[i], rate, p.DeltaFeedforward[i])
		}
	}
	return c
}

// Truncate removes the samples strictly before t and returns them. When t
// falls between two samples, the kept policy starts with a sample
// interpolated at t.
func (p *Policy) Truncate(t float64) Policy {
	n := 0
	for n < len(p.Times) && p.Times[n] < t {
		n++
	}
	prefix := Policy{
		Times:            append([]float64(nil), p.Times[:n]...),
		Gains:            append([]*mat.Dense(nil), p.Gains[:n]...),
		Feedforward:      append([]dynamo.Input(nil), p.Feedforward[:n]...),
		DeltaFeedforward: append([]dynamo.Input(nil), p.DeltaFeedforward[:n]...),
	}

	var head Policy
	if n > 0 && n < len(p.Times) && p.Times[n] > t {
		alpha := (t - p.Times[n-1]) / (p.Times[n] - p.Times[n-1])
		head.Times = []float64{t}
		head.Gains = []*mat.Dense{dynamo.LerpDense(p.Gains[n-1], p.Gains[n], alpha)}
		head.Feedforward = []dynamo.Input{dynamo.Lerp(p.Feedforward[n-1], p.Feedforward[n], alpha)}
		if n < len(p.DeltaFeedforward) {
			head.DeltaFeedforward = []dynamo.Input{dynamo.Lerp(p.DeltaFeedforward[n-1], p.DeltaFeedforward[n], alpha)}
		}
	}

	p.Times = append(head.Times, p.Times[n:]...)
	p.Gains = append(head.Gains, p.Gains[n:]...)
	p.Feedforward = append(head.Feedforward, p.Feedforward[n:]...)
	p.DeltaFeedforward = append(head.DeltaFeedforward, p.DeltaFeedforward[n:]...)
	return prefix
}

// Splice prepends a previously truncated prefix.
func (p *Policy) Splice(prefix Policy) {
	if prefix.Empty() {
		return
	}
	p.Times = append(append([]float64(nil), prefix.Times...), p.Times...)
	p.Gains = append(append([]*mat.Dense(nil), prefix.Gains...), p.Gains...)
	p.Feedforward = append(append([]dynamo.Input(nil), prefix.Feedforward...), p.Feedforward...)
	p.DeltaFeedforward = append(append([]dynamo.Input(nil), prefix.DeltaFeedforward...), p.DeltaFeedforward...)
}

// MaxDeltaNorm returns the largest feedforward increment and its time.
func (p *Policy) MaxDeltaNorm() (float64, float64) {
	best, at := 0.0, math.NaN()
	for i, du := range p.DeltaFeedforward {
		if n := du.Norm(); n > best || math.IsNaN(at) {
			best, at = n, p.Times[i]
		}
	}
	return best, at
}

// Finite reports the first sample holding a NaN or Inf, or -1.
func (p *Policy) Finite() int {
	for i := range p.Times {
		if !dynamo.FiniteDense(p.Gains[i]) || !p.Feedforward[i].IsValid() ||
			(i < len(p.DeltaFeedforward) && !p.DeltaFeedforward[i].IsValid()) {
			return i
		}
	}
	return -1
}
