package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	return floats.Norm(s, 2)
}

func (s State) Sub(other State) State {
	result := s.Clone()
	floats.Sub(result, other)
	return result
}

// Vec returns a gonum view sharing the backing array of s.
func (s State) Vec() *mat.VecDense {
	return mat.NewVecDense(len(s), s)
}

type Input []float64

func (u Input) Clone() Input {
	c := make(Input, len(u))
	copy(c, u)
	return c
}

func (u Input) IsValid() bool {
	return State(u).IsValid()
}

func (u Input) Norm() float64 {
	return floats.Norm(u, 2)
}

func (u Input) Vec() *mat.VecDense {
	return mat.NewVecDense(len(u), u)
}

// System is the flow/jump description of a hybrid plant. Implementations are
// cloned once per worker and never shared for writing.
type System interface {
	FlowMap(t float64, x State, u Input) State
	JumpMap(t float64, x State) State
	StateDim() int
	InputDim() int
	Clone() System
}

// Guarded systems expose guard surfaces for state-triggered switching. A guard
// is considered active while its value is negative.
type Guarded interface {
	GuardSurfaces(t float64, x State) []float64
}

// Linearizer provides analytic flow-map Jacobians. Systems that do not
// implement it are linearized numerically.
type Linearizer interface {
	Linearize(t float64, x State, u Input) (a, b *mat.Dense)
}

// ModeSetter is implemented by models whose flow map, cost or constraints
// depend on the active subsystem.
type ModeSetter interface {
	SetMode(mode int)
}

// Resetter is implemented by models holding per-run bookkeeping such as
// function-call counters.
type Resetter interface {
	Reset()
}

// Quadratic is the second-order expansion of an intermediate cost.
type Quadratic struct {
	Value float64
	Dx    *mat.VecDense
	Du    *mat.VecDense
	Dxx   *mat.Dense
	Duu   *mat.Dense
	Dux   *mat.Dense
}

// TerminalQuadratic is the second-order expansion of a state-only cost.
type TerminalQuadratic struct {
	Value float64
	Dx    *mat.VecDense
	Dxx   *mat.Dense
}

type Cost interface {
	Intermediate(t float64, x State, u Input) float64
	IntermediateQuadratic(t float64, x State, u Input) Quadratic
	PreJump(t float64, x State) float64
	PreJumpQuadratic(t float64, x State) TerminalQuadratic
	Final(t float64, x State) float64
	FinalQuadratic(t float64, x State) TerminalQuadratic
	SetDesired(d *Desired)
	Clone() Cost
}

// Linear is a linearized state-input equality constraint
// Value + Dx*dx + Du*du = 0. A nil Value means no active constraint.
type Linear struct {
	Value *mat.VecDense
	Dx    *mat.Dense
	Du    *mat.Dense
}

func (l Linear) Count() int {
	if l.Value == nil {
		return 0
	}
	return l.Value.Len()
}

// StateLinear is a linearized state-only equality constraint.
type StateLinear struct {
	Value *mat.VecDense
	Dx    *mat.Dense
}

func (l StateLinear) Count() int {
	if l.Value == nil {
		return 0
	}
	return l.Value.Len()
}

type Constraint interface {
	StateInput(t float64, x State, u Input) Linear
	StateOnly(t float64, x State) StateLinear
	PreJumpStateOnly(t float64, x State) StateLinear
	Clone() Constraint
}

// Operating supplies the default trajectory used when a partition has no
// controller yet.
type Operating interface {
	Trajectory(t0 float64, x0 State, t1 float64) ([]float64, []State, []Input)
}
