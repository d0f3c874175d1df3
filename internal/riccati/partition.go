package riccati

import (
	"fmt"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Partition solves the backward pass along one partition's nominal
// trajectory, starting from the value function final at its last sample.
// The solution is delivered on the rollout time stamps.
func (s *Solver) Partition(index int, tr *dynamo.Trajectory, lq *approx.Partition, final Boundary) (Solution, error) {
	n := tr.Len()
	if n == 0 {
		return Solution{}, nil
	}
	if len(lq.Samples) != n {
		return Solution{}, fmt.Errorf("riccati: partition %d has %d samples and %d LQ models", index, n, len(lq.Samples))
	}
	nx := len(tr.States[0])
	ts, te := tr.Span()

	final = final.Recenter(tr.States[n-1])
	if final.Sve == nil {
		final.Sve = mat.NewVecDense(nx, nil)
	}
	y := pack(nx, final.Sm, final.Sv, final.S, final.Sve)

	jumps := make(map[int]*approx.EventSample, len(lq.Events))
	for i := range lq.Events {
		jumps[lq.Events[i].Index] = &lq.Events[i]
	}

	sol := newSolution(tr.Times, tr.Events)
	segs := tr.Segments()
	for j := len(segs) - 1; j >= 0; j-- {
		b, e := segs[j][0], segs[j][1]
		if b >= e {
			continue
		}
		// a jump on the last sample applies to the final boundary
		if ev, ok := jumps[e-1]; ok {
			applyJump(nx, y, ev)
		}
		seg := &segment{
			nx:          nx,
			end:         te,
			scale:       te - ts,
			times:       tr.Times[b:e],
			samples:     lq.Samples[b:e],
			constrained: s.settings.SimulationIsConstrained,
		}
		var err error
		switch s.settings.Policy {
		case Nominal:
			err = s.nominal(seg, y, &sol, b)
		case Sweep:
			s.sweep(seg, y, &sol, b)
		default:
			err = s.adaptive(seg, y, &sol, b)
		}
		if err != nil {
			if serr := checkFinite(index, &sol); serr != nil {
				return sol, serr
			}
			return sol, fmt.Errorf("%w: partition %d: %w", ErrDiverged, index, err)
		}
		copy(y, pack(nx, sol.Sm[b], sol.Sv[b], sol.S[b], sol.Sve[b]))
	}

	if err := checkFinite(index, &sol); err != nil {
		return sol, err
	}
	return sol, nil
}

// applyJump adds the pre-jump cost expansion to the value function.
func applyJump(nx int, y []float64, ev *approx.EventSample) {
	v := view(nx, y)
	v.Sm.Add(v.Sm, ev.Qm)
	v.Sv.AddVec(v.Sv, ev.Qv)
	v.S[0] += ev.Q
}

func (s *Solver) rhs(seg *segment) integrators.Func {
	return func(tau float64, y, dy []float64) {
		derivative(seg.at(seg.time(tau)), seg.nx, y, dy, seg.constrained)
		floats.Scale(seg.scale, dy)
	}
}

func store(nx int, sol *Solution, k int, y []float64) {
	v := view(nx, y)
	sm := mat.DenseCopyOf(v.Sm)
	dynamo.Symmetrize(sm)
	sol.Sm[k] = sm
	sol.Sv[k] = mat.VecDenseCopyOf(v.Sv)
	sol.S[k] = v.S[0]
	sol.Sve[k] = mat.VecDenseCopyOf(v.Sve)
}

// nominal integrates between consecutive rollout time stamps.
func (s *Solver) nominal(seg *segment, y []float64, sol *Solution, offset int) error {
	m := len(seg.times)
	taus := make([]float64, m)
	for i := range taus {
		taus[i] = seg.tau(seg.times[m-1-i])
	}
	integ, err := integrators.New(s.settings.Integrator)
	if err != nil {
		return err
	}
	x := append([]float64(nil), y...)
	i := 0
	_, err = integ.IntegrateTimes(s.rhs(seg), x, taus, s.settings.config(seg.scale), func(_ float64, x []float64) {
		store(seg.nx, sol, offset+m-1-i, x)
		i++
	})
	return err
}

// adaptive integrates on the integrator's own grid and resamples the dense
// record onto the rollout time stamps with cubic Hermite interpolation.
func (s *Solver) adaptive(seg *segment, y []float64, sol *Solution, offset int) error {
	m := len(seg.times)
	tau0, tau1 := seg.tau(seg.times[m-1]), seg.tau(seg.times[0])
	integ, err := integrators.New(s.settings.Integrator)
	if err != nil {
		return err
	}

	f := s.rhs(seg)
	var taus []float64
	var record, slopes [][]float64
	x := append([]float64(nil), y...)
	_, err = integ.Integrate(f, x, tau0, tau1, s.settings.config(seg.scale), nil, func(tau float64, x []float64) {
		dx := make([]float64, len(x))
		f(tau, x, dx)
		taus = append(taus, tau)
		record = append(record, append([]float64(nil), x...))
		slopes = append(slopes, dx)
	})
	if err != nil {
		return err
	}

	for k := 0; k < m; k++ {
		j, alpha := dynamo.Locate(taus, seg.tau(seg.times[k]))
		if alpha == 0 || j+1 >= len(taus) {
			store(seg.nx, sol, offset+k, record[j])
			continue
		}
		store(seg.nx, sol, offset+k, hermite(record[j], slopes[j], record[j+1], slopes[j+1], taus[j+1]-taus[j], alpha))
	}
	return nil
}

func hermite(y0, m0, y1, m1 []float64, h, s float64) []float64 {
	s2, s3 := s*s, s*s*s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	out := make([]float64, len(y0))
	for i := range out {
		out[i] = h00*y0[i] + h10*h*m0[i] + h01*y1[i] + h11*h*m1[i]
	}
	return out
}
