package integrators

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMaxSteps     = errors.New("integrators: maximum number of steps exceeded")
	ErrStepTooSmall = errors.New("integrators: adaptive timestep below minimum")
	ErrInvalidSpan  = errors.New("integrators: final time before initial time")
)

// Func writes dx/dt at (t, x) into dx.
type Func func(t float64, x, dx []float64)

// Observer receives every accepted sample. x is reused by the integrator and
// must be copied if retained.
type Observer func(t float64, x []float64)

// Guard returns the guard surface values at (t, x).
type Guard func(t float64, x []float64) []float64

type Config struct {
	InitialStep float64
	MinStep     float64
	MaxStep     float64
	AbsTol      float64
	RelTol      float64
	MaxSteps    int
}

func DefaultConfig() Config {
	return Config{
		InitialStep: 1e-2,
		MinStep:     1e-9,
		AbsTol:      1e-9,
		RelTol:      1e-6,
		MaxSteps:    100000,
	}
}

// Result summarizes one integration. Event is the index of the guard whose
// zero crossing stopped integration, or -1.
type Result struct {
	Steps       int
	Rejected    int
	Evaluations int
	Time        float64
	Event       int
}

func (r *Result) add(o Result) {
	r.Steps += o.Steps
	r.Rejected += o.Rejected
	r.Evaluations += o.Evaluations
	r.Time = o.Time
	r.Event = o.Event
}

// Integrator advances x in place. Instances hold scratch buffers and are not
// safe for concurrent use.
type Integrator interface {
	Name() string
	Integrate(f Func, x []float64, t0, t1 float64, cfg Config, guard Guard, obs Observer) (Result, error)
	IntegrateTimes(f Func, x []float64, times []float64, cfg Config, obs Observer) (Result, error)
}

// New returns an integrator by name.
func New(kind string) (Integrator, error) {
	switch kind {
	case "euler":
		return NewEuler(), nil
	case "rk4", "":
		return NewRK4(), nil
	case "rk45", "dopri5":
		return NewRK45(), nil
	case "bulirsch_stoer", "bs":
		return NewBulirschStoer(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", kind)
	}
}

func Names() []string {
	return []string{"euler", "rk4", "rk45", "bulirsch_stoer"}
}

// stepper performs a single trial step of size h from (t, x) into out.
// Adaptive steppers return a scaled error norm where <= 1 means accept, and
// a factor for the next step size.
type stepper interface {
	step(f Func, t float64, x []float64, h float64, out []float64, cfg Config) (errNorm float64, evals int)
	adaptive() bool
	scale(errNorm float64) float64
}

// driver implements the integration loop shared by every stepper.
type driver struct {
	s    stepper
	next []float64
	mid  []float64
	h    float64
}

func (d *driver) ensureScratch(n int) {
	if len(d.next) != n {
		d.next = make([]float64, n)
		d.mid = make([]float64, n)
	}
}

func (d *driver) integrate(f Func, x []float64, t0, t1 float64, cfg Config, guard Guard, obs Observer) (Result, error) {
	res := Result{Time: t0, Event: -1}
	if t1 < t0 {
		return res, fmt.Errorf("%w: [%g, %g]", ErrInvalidSpan, t0, t1)
	}
	d.ensureScratch(len(x))
	if obs != nil {
		obs(t0, x)
	}
	if t1 == t0 {
		return res, nil
	}

	h := d.h
	if !d.s.adaptive() || h <= 0 {
		h = cfg.InitialStep
	}
	if h <= 0 {
		h = (t1 - t0) / 100
	}
	if cfg.MaxStep > 0 {
		h = math.Min(h, cfg.MaxStep)
	}

	var g0 []float64
	if guard != nil {
		g0 = guard(t0, x)
	}

	t := t0
	for t < t1 {
		if cfg.MaxSteps > 0 && res.Steps+res.Rejected >= cfg.MaxSteps {
			res.Time = t
			return res, fmt.Errorf("%w: %d steps at t=%g", ErrMaxSteps, cfg.MaxSteps, t)
		}

		hs := h
		last := false
		if t+hs >= t1 || t1-(t+hs) < 1e-12*math.Max(1, math.Abs(t1)) {
			hs = t1 - t
			last = true
		}

		errNorm, evals := d.s.step(f, t, x, hs, d.next, cfg)
		res.Evaluations += evals

		if d.s.adaptive() {
			if errNorm > 1 || math.IsNaN(errNorm) {
				res.Rejected++
				h = hs * d.s.scale(errNorm)
				if h < cfg.MinStep {
					res.Time = t
					return res, fmt.Errorf("%w: dt=%g at t=%g", ErrStepTooSmall, h, t)
				}
				continue
			}
		}

		tNext := t + hs
		if last {
			tNext = t1
		}

		if guard != nil {
			g1 := guard(tNext, d.next)
			if crossed(g0, g1) >= 0 {
				return d.locateEvent(f, x, t, hs, cfg, guard, g0, obs, res)
			}
			g0 = g1
		}

		copy(x, d.next)
		t = tNext
		res.Steps++
		if obs != nil {
			obs(t, x)
		}

		if d.s.adaptive() {
			h = hs * d.s.scale(errNorm)
			if cfg.MaxStep > 0 {
				h = math.Min(h, cfg.MaxStep)
			}
			if !last {
				d.h = h
			}
		}
	}

	res.Time = t
	return res, nil
}

// locateEvent bisects the step [t, t+h] until the guard crossing is bracketed
// within MinStep, then stops on the post-crossing side.
func (d *driver) locateEvent(f Func, x []float64, t, h float64, cfg Config, guard Guard,
	g0 []float64, obs Observer, res Result) (Result, error) {
	tol := cfg.MinStep
	if tol <= 0 {
		tol = 1e-10
	}

	lo, hi := 0.0, h
	copy(d.mid, d.next)
	event := crossed(g0, guard(t+hi, d.next))
	for hi-lo > tol {
		m := 0.5 * (lo + hi)
		_, evals := d.s.step(f, t, x, m, d.next, cfg)
		res.Evaluations += evals
		if idx := crossed(g0, guard(t+m, d.next)); idx >= 0 {
			hi = m
			event = idx
			copy(d.mid, d.next)
		} else {
			lo = m
		}
	}

	copy(x, d.mid)
	res.Steps++
	res.Time = t + hi
	res.Event = event
	if obs != nil {
		obs(res.Time, x)
	}
	return res, nil
}

func (d *driver) integrateTimes(f Func, x []float64, times []float64, cfg Config, obs Observer) (Result, error) {
	res := Result{Event: -1}
	if len(times) == 0 {
		return res, nil
	}
	res.Time = times[0]
	if obs != nil {
		obs(times[0], x)
	}
	for k := 0; k+1 < len(times); k++ {
		r, err := d.integrate(f, x, times[k], times[k+1], cfg, nil, nil)
		res.add(r)
		if err != nil {
			return res, err
		}
		if obs != nil {
			obs(times[k+1], x)
		}
	}
	return res, nil
}

// crossed returns the first guard that went from non-negative to negative.
func crossed(g0, g1 []float64) int {
	for i := range g1 {
		if i < len(g0) && g0[i] >= 0 && g1[i] < 0 {
			return i
		}
	}
	return -1
}

// errorNorm is the max-norm of err scaled by the mixed tolerance.
func errorNorm(err, x, xNew []float64, cfg Config) float64 {
	atol, rtol := cfg.AbsTol, cfg.RelTol
	if atol <= 0 && rtol <= 0 {
		atol, rtol = 1e-9, 1e-6
	}
	m := 0.0
	for i := range err {
		sc := atol + rtol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		m = math.Max(m, math.Abs(err[i])/sc)
	}
	return m
}
