package dynamo

import (
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Problem bundles the model services consumed by the solver. Each worker owns
// a private clone obtained from Clone.
type Problem struct {
	System     System
	Cost       Cost
	Constraint Constraint
	Operating  Operating
}

func (p *Problem) Validate() error {
	if p.System == nil {
		return fmt.Errorf("%w: problem has no system", ErrInvalidProblem)
	}
	if p.Cost == nil {
		return fmt.Errorf("%w: problem has no cost", ErrInvalidProblem)
	}
	if p.System.StateDim() <= 0 || p.System.InputDim() <= 0 {
		return fmt.Errorf("%w: state and input dimensions must be positive, got %d and %d",
			ErrInvalidProblem, p.System.StateDim(), p.System.InputDim())
	}
	return nil
}

// Clone returns a deep copy suitable for exclusive use by one worker.
// Missing optional services are filled with their defaults.
func (p *Problem) Clone() *Problem {
	c := &Problem{
		System: p.System.Clone(),
		Cost:   p.Cost.Clone(),
	}
	if p.Constraint != nil {
		c.Constraint = p.Constraint.Clone()
	} else {
		c.Constraint = NoConstraint{}
	}
	if p.Operating != nil {
		c.Operating = p.Operating
	} else {
		c.Operating = StationaryOperating{Input: make(Input, p.System.InputDim())}
	}
	return c
}

// SetMode forwards the active subsystem to every mode-dependent service.
func (p *Problem) SetMode(mode int) {
	for _, s := range []any{p.System, p.Cost, p.Constraint} {
		if ms, ok := s.(ModeSetter); ok {
			ms.SetMode(mode)
		}
	}
}

// Reset clears per-run bookkeeping held by the services.
func (p *Problem) Reset() {
	for _, s := range []any{p.System, p.Cost, p.Constraint} {
		if r, ok := s.(Resetter); ok {
			r.Reset()
		}
	}
}

// Linearize returns the flow-map Jacobians, analytic when the system provides
// them and central finite differences otherwise.
func (p *Problem) Linearize(t float64, x State, u Input) (a, b *mat.Dense) {
	if l, ok := p.System.(Linearizer); ok {
		return l.Linearize(t, x, u)
	}
	return NumericalLinearizer{System: p.System}.Linearize(t, x, u)
}

// NumericalLinearizer differentiates a flow map with central differences.
type NumericalLinearizer struct {
	System System
	Step   float64
}

func (n NumericalLinearizer) Linearize(t float64, x State, u Input) (a, b *mat.Dense) {
	nx, nu := len(x), len(u)
	settings := &fd.JacobianSettings{Formula: fd.Central, Step: n.Step}

	a = mat.NewDense(nx, nx, nil)
	fd.Jacobian(a, func(y, xx []float64) {
		copy(y, n.System.FlowMap(t, xx, u))
	}, x, settings)

	b = mat.NewDense(nx, nu, nil)
	fd.Jacobian(b, func(y, uu []float64) {
		copy(y, n.System.FlowMap(t, x, uu))
	}, u, settings)
	return a, b
}

// NoConstraint is the constraint service of an unconstrained problem.
type NoConstraint struct{}

func (NoConstraint) StateInput(float64, State, Input) Linear     { return Linear{} }
func (NoConstraint) StateOnly(float64, State) StateLinear        { return StateLinear{} }
func (NoConstraint) PreJumpStateOnly(float64, State) StateLinear { return StateLinear{} }
func (NoConstraint) Clone() Constraint                           { return NoConstraint{} }

// StationaryOperating holds the state still and applies a constant input.
type StationaryOperating struct {
	Input Input
}

func (o StationaryOperating) Trajectory(t0 float64, x0 State, t1 float64) ([]float64, []State, []Input) {
	return []float64{t0, t1}, []State{x0.Clone(), x0.Clone()}, []Input{o.Input.Clone(), o.Input.Clone()}
}

// Desired is the reference trajectory handed to cost functions.
type Desired struct {
	Times  []float64
	States []State
	Inputs []Input
}

// At returns the linearly interpolated reference at t, clamped at the ends.
func (d *Desired) At(t float64) (State, Input) {
	if d == nil || len(d.Times) == 0 {
		return nil, nil
	}
	k, alpha := Locate(d.Times, t)
	var x State
	if len(d.States) > 0 {
		x = State(Lerp(d.States[k], d.States[min(k+1, len(d.States)-1)], alpha))
	}
	var u Input
	if len(d.Inputs) > 0 {
		u = Input(Lerp(d.Inputs[k], d.Inputs[min(k+1, len(d.Inputs)-1)], alpha))
	}
	return x, u
}
