package integrators

// RK4 is the classic fixed-step fourth-order Runge-Kutta scheme. The step
// size is Config.InitialStep, shortened to land on the final time.
type RK4 struct {
	driver
	k1, k2, k3, k4 []float64
	scratch        []float64
}

func NewRK4() *RK4 {
	r := &RK4{}
	r.driver.s = r
	return r
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
}

func (r *RK4) adaptive() bool        { return false }
func (r *RK4) scale(float64) float64 { return 1 }

func (r *RK4) step(f Func, t float64, x []float64, dt float64, out []float64, _ Config) (float64, int) {
	n := len(x)
	r.ensureScratch(n)

	f(t, x, r.k1)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	f(t+dt*0.5, r.scratch, r.k2)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	f(t+dt*0.5, r.scratch, r.k3)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	f(t+dt, r.scratch, r.k4)

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		out[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return 0, 4
}

func (r *RK4) Integrate(f Func, x []float64, t0, t1 float64, cfg Config, guard Guard, obs Observer) (Result, error) {
	return r.integrate(f, x, t0, t1, cfg, guard, obs)
}

func (r *RK4) IntegrateTimes(f Func, x []float64, times []float64, cfg Config, obs Observer) (Result, error) {
	return r.integrateTimes(f, x, times, cfg, obs)
}
