package integrators

// Euler is the explicit first-order scheme, kept for cheap smoke runs.
type Euler struct {
	driver
	dx []float64
}

func NewEuler() *Euler {
	e := &Euler{}
	e.driver.s = e
	return e
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) adaptive() bool        { return false }
func (e *Euler) scale(float64) float64 { return 1 }

func (e *Euler) step(f Func, t float64, x []float64, dt float64, out []float64, _ Config) (float64, int) {
	if len(e.dx) != len(x) {
		e.dx = make([]float64, len(x))
	}
	f(t, x, e.dx)
	for i := range x {
		out[i] = x[i] + dt*e.dx[i]
	}
	return 0, 1
}

func (e *Euler) Integrate(f Func, x []float64, t0, t1 float64, cfg Config, guard Guard, obs Observer) (Result, error) {
	return e.integrate(f, x, t0, t1, cfg, guard, obs)
}

func (e *Euler) IntegrateTimes(f Func, x []float64, times []float64, cfg Config, obs Observer) (Result, error) {
	return e.integrateTimes(f, x, times, cfg, obs)
}
