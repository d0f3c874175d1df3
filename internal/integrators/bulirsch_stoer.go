package integrators

import "math"

// BulirschStoer is a variable-order extrapolation integrator built on the
// modified midpoint rule. The extrapolation column grows until the error
// estimate passes, so the order adapts to the smoothness of the solution.
type BulirschStoer struct {
	driver
	seq     []int
	table   [][]float64
	z0, z1  []float64
	dz      []float64
	errBuf  []float64
	lastCol int
}

func NewBulirschStoer() *BulirschStoer {
	b := &BulirschStoer{seq: []int{2, 4, 6, 8, 10, 12, 14, 16}}
	b.driver.s = b
	return b
}

func (b *BulirschStoer) Name() string   { return "bulirsch_stoer" }
func (b *BulirschStoer) adaptive() bool { return true }

func (b *BulirschStoer) scale(errNorm float64) float64 {
	if math.IsNaN(errNorm) {
		return 0.2
	}
	if errNorm == 0 {
		return 4
	}
	k := b.lastCol
	s := 0.94 * math.Pow(0.65/errNorm, 1/float64(2*k+1))
	return math.Max(0.2, math.Min(4, s))
}

func (b *BulirschStoer) ensureScratch(n int) {
	if len(b.z0) != n {
		b.table = make([][]float64, len(b.seq))
		for i := range b.table {
			b.table[i] = make([]float64, n)
		}
		b.z0 = make([]float64, n)
		b.z1 = make([]float64, n)
		b.dz = make([]float64, n)
		b.errBuf = make([]float64, n)
	}
}

// midpoint integrates one step of size h with m substeps into out.
func (b *BulirschStoer) midpoint(f Func, t float64, x []float64, h float64, m int, out []float64) {
	n := len(x)
	hs := h / float64(m)

	copy(b.z0, x)
	f(t, x, b.dz)
	for i := 0; i < n; i++ {
		b.z1[i] = x[i] + hs*b.dz[i]
	}
	for j := 1; j < m; j++ {
		f(t+float64(j)*hs, b.z1, b.dz)
		for i := 0; i < n; i++ {
			z2 := b.z0[i] + 2*hs*b.dz[i]
			b.z0[i] = b.z1[i]
			b.z1[i] = z2
		}
	}
	f(t+h, b.z1, b.dz)
	for i := 0; i < n; i++ {
		out[i] = 0.5 * (b.z1[i] + b.z0[i] + hs*b.dz[i])
	}
}

func (b *BulirschStoer) step(f Func, t float64, x []float64, h float64, out []float64, cfg Config) (float64, int) {
	n := len(x)
	b.ensureScratch(n)

	evals := 0
	errNorm := math.Inf(1)
	for k := range b.seq {
		b.midpoint(f, t, x, h, b.seq[k], b.table[k])
		evals += b.seq[k] + 1

		// Neville extrapolation in h^2, overwriting the row in place.
		for j := k - 1; j >= 0; j-- {
			ratio := float64(b.seq[k]) / float64(b.seq[j])
			den := ratio*ratio - 1
			for i := 0; i < n; i++ {
				b.table[j][i] = b.table[j+1][i] + (b.table[j+1][i]-b.table[j][i])/den
			}
		}

		if k == 0 {
			copy(out, b.table[0])
			continue
		}
		for i := 0; i < n; i++ {
			b.errBuf[i] = b.table[0][i] - out[i]
		}
		copy(out, b.table[0])
		errNorm = errorNorm(b.errBuf, x, out, cfg)
		b.lastCol = k
		if errNorm <= 1 {
			break
		}
	}
	return errNorm, evals
}

func (b *BulirschStoer) Integrate(f Func, x []float64, t0, t1 float64, cfg Config, guard Guard, obs Observer) (Result, error) {
	return b.integrate(f, x, t0, t1, cfg, guard, obs)
}

func (b *BulirschStoer) IntegrateTimes(f Func, x []float64, times []float64, cfg Config, obs Observer) (Result, error) {
	return b.integrateTimes(f, x, times, cfg, obs)
}
