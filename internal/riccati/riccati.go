package riccati

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrDiverged      = errors.New("riccati: solution is not finite")
	ErrUnknownPolicy = errors.New("riccati: unknown evaluation policy")
)

// Policy selects how the backward pass is evaluated.
type Policy string

const (
	// Adaptive integrates on the integrator's own grid and resamples onto
	// the rollout time stamps.
	Adaptive Policy = "adaptive"
	// Nominal integrates between consecutive rollout time stamps.
	Nominal Policy = "nominal"
	// Sweep propagates the value Hessian with the Hamiltonian matrix
	// exponential between rollout time stamps.
	Sweep Policy = "sweep"
)

type Settings struct {
	Policy                  Policy  `yaml:"policy" json:"policy"`
	Integrator              string  `yaml:"integrator" json:"integrator"`
	AbsTol                  float64 `yaml:"abs_tol" json:"abs_tol"`
	RelTol                  float64 `yaml:"rel_tol" json:"rel_tol"`
	MinStep                 float64 `yaml:"min_step" json:"min_step"`
	MaxStepsPerSecond       int     `yaml:"max_steps_per_second" json:"max_steps_per_second"`
	SimulationIsConstrained bool    `yaml:"simulation_is_constrained" json:"simulation_is_constrained"`
	ParallelMaxSweeps       int     `yaml:"parallel_max_sweeps" json:"parallel_max_sweeps"`
	ParallelTolerance       float64 `yaml:"parallel_tolerance" json:"parallel_tolerance"`
	Workers                 int     `yaml:"workers" json:"workers"`
}

func DefaultSettings() Settings {
	return Settings{
		Policy:            Adaptive,
		Integrator:        "rk45",
		AbsTol:            1e-9,
		RelTol:            1e-6,
		MinStep:           1e-9,
		MaxStepsPerSecond: 5000,
		ParallelMaxSweeps: 5,
		ParallelTolerance: 1e-6,
	}
}

func (s Settings) Validate() error {
	switch s.Policy {
	case Adaptive, Nominal, Sweep:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, s.Policy)
	}
	if _, err := integrators.New(s.Integrator); err != nil {
		return err
	}
	return nil
}

// config returns the integrator config for normalized time, where one unit
// spans the whole partition.
func (s Settings) config(duration float64) integrators.Config {
	cfg := integrators.Config{
		InitialStep: 1e-2,
		MinStep:     s.MinStep,
		AbsTol:      s.AbsTol,
		RelTol:      s.RelTol,
	}
	if s.MaxStepsPerSecond > 0 {
		cfg.MaxSteps = max(1000, int(float64(s.MaxStepsPerSecond)*duration))
	}
	return cfg
}

// Solution holds the value function along one partition on the rollout
// time stamps: V(dx) = S + dx'Sv + 0.5 dx'Sm dx, plus the error term Sve.
type Solution struct {
	Times  []float64
	Sm     []*mat.Dense
	Sv     []*mat.VecDense
	S      []float64
	Sve    []*mat.VecDense
	Events []int
}

func (s *Solution) Len() int { return len(s.Times) }

func (s *Solution) Empty() bool { return len(s.Times) == 0 }

func newSolution(times []float64, events []int) Solution {
	n := len(times)
	return Solution{
		Times:  append([]float64(nil), times...),
		Sm:     make([]*mat.Dense, n),
		Sv:     make([]*mat.VecDense, n),
		S:      make([]float64, n),
		Sve:    make([]*mat.VecDense, n),
		Events: append([]int(nil), events...),
	}
}

// Start returns the value function at the first sample as a boundary.
func (s *Solution) Start(x dynamo.State) Boundary {
	return Boundary{
		Sm:  dynamo.CloneDense(s.Sm[0]),
		Sv:  dynamo.CloneVec(s.Sv[0]),
		S:   s.S[0],
		Sve: dynamo.CloneVec(s.Sve[0]),
		X:   x.Clone(),
	}
}

// Boundary is the value function handed from a partition to the one before
// it, expressed around the nominal state X.
type Boundary struct {
	Sm  *mat.Dense
	Sv  *mat.VecDense
	S   float64
	Sve *mat.VecDense
	X   dynamo.State
}

func (b Boundary) Empty() bool { return b.Sm == nil }

func (b Boundary) Clone() Boundary {
	return Boundary{
		Sm:  dynamo.CloneDense(b.Sm),
		Sv:  dynamo.CloneVec(b.Sv),
		S:   b.S,
		Sve: dynamo.CloneVec(b.Sve),
		X:   b.X.Clone(),
	}
}

// Recenter expresses the same quadratic value function around x.
func (b Boundary) Recenter(x dynamo.State) Boundary {
	c := b.Clone()
	if b.X == nil || len(x) != len(b.X) {
		c.X = x.Clone()
		return c
	}
	d := x.Sub(b.X).Vec()
	var smd mat.VecDense
	smd.MulVec(b.Sm, d)
	c.S = b.S + mat.Dot(d, b.Sv) + 0.5*mat.Dot(d, &smd)
	c.Sv.AddVec(c.Sv, &smd)
	c.X = x.Clone()
	return c
}

// Distance is the largest absolute difference over Sm, Sv and S.
func (b Boundary) Distance(o Boundary) float64 {
	d := math.Abs(b.S - o.S)
	r, c := b.Sm.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d = math.Max(d, math.Abs(b.Sm.At(i, j)-o.Sm.At(i, j)))
		}
	}
	for i := 0; i < b.Sv.Len(); i++ {
		d = math.Max(d, math.Abs(b.Sv.AtVec(i)-o.Sv.AtVec(i)))
	}
	return d
}

// Terminal builds a boundary from a terminal cost expansion.
func Terminal(q dynamo.TerminalQuadratic, x dynamo.State) Boundary {
	return Boundary{
		Sm:  mat.DenseCopyOf(q.Dxx),
		Sv:  mat.VecDenseCopyOf(q.Dx),
		S:   q.Value,
		Sve: mat.NewVecDense(len(x), nil),
		X:   x.Clone(),
	}
}

// DivergenceError reports the first non-finite sample of a backward pass
// together with the samples that follow it.
type DivergenceError struct {
	Partition     int
	Time          float64
	Neighbourhood string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("riccati: partition %d diverged at t=%g\n%s", e.Partition, e.Time, e.Neighbourhood)
}

func (e *DivergenceError) Unwrap() error { return ErrDiverged }

// checkFinite scans the solution and returns a DivergenceError for the
// first non-finite sample.
func checkFinite(partition int, sol *Solution) error {
	bad := -1
	for k := sol.Len() - 1; k >= 0; k-- {
		if !sampleFinite(sol, k) {
			bad = k
			break
		}
	}
	if bad < 0 {
		return nil
	}
	var b strings.Builder
	for k := bad; k < min(bad+10, sol.Len()); k++ {
		fmt.Fprintf(&b, "  t=%.6f s=%g |Sm|=%g |Sv|=%g |Sve|=%g\n",
			sol.Times[k], sol.S[k], mat.Norm(sol.Sm[k], 2), mat.Norm(sol.Sv[k], 2), mat.Norm(sol.Sve[k], 2))
	}
	return &DivergenceError{Partition: partition, Time: sol.Times[bad], Neighbourhood: b.String()}
}

func sampleFinite(sol *Solution, k int) bool {
	if sol.Sm[k] == nil {
		return true
	}
	return !math.IsNaN(sol.S[k]) && !math.IsInf(sol.S[k], 0) &&
		dynamo.FiniteDense(sol.Sm[k]) && dynamo.FiniteVec(sol.Sv[k]) && dynamo.FiniteVec(sol.Sve[k])
}
