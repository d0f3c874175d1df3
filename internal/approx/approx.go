package approx

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrOverConstrained = errors.New("approx: more active constraints than inputs")
	ErrInputCost       = errors.New("approx: input cost Hessian is not positive definite")
)

type Settings struct {
	UseMakePSD         bool    `yaml:"use_make_psd" json:"use_make_psd"`
	PenaltyCoeff       float64 `yaml:"state_constraint_penalty_coeff" json:"state_constraint_penalty_coeff"`
	PenaltyBase        float64 `yaml:"state_constraint_penalty_base" json:"state_constraint_penalty_base"`
	NoStateConstraints bool    `yaml:"no_state_constraints" json:"no_state_constraints"`
	CheckRank          bool    `yaml:"check_numerical_stability" json:"check_numerical_stability"`
	Workers            int     `yaml:"workers" json:"workers"`
}

func DefaultSettings() Settings {
	return Settings{
		UseMakePSD:   true,
		PenaltyCoeff: 0,
		PenaltyBase:  1,
		CheckRank:    true,
	}
}

// Penalty is the state-only constraint weight at the given outer iteration.
func (s Settings) Penalty(iteration int) float64 {
	return s.PenaltyCoeff * math.Pow(s.PenaltyBase, float64(iteration))
}

// Sample is the LQ model of one rollout sample: raw coefficients, the type-1
// and type-2 constraint data and their projected counterparts. With no active
// type-1 constraint the projected fields alias the raw ones.
type Sample struct {
	Time float64

	Am, Bm    *mat.Dense
	Q         float64
	Qv        *mat.VecDense
	Qm        *mat.Dense
	Rv        *mat.VecDense
	Rm        *mat.Dense
	Pm        *mat.Dense
	RmInverse *mat.Dense

	Nc1    int
	Ev     *mat.VecDense
	Cm, Dm *mat.Dense

	Nc2 int
	Hv  *mat.VecDense
	Fm  *mat.Dense

	AmC      *mat.Dense
	QmC      *mat.Dense
	QvC      *mat.VecDense
	RmC      *mat.Dense
	DmDager  *mat.Dense
	EvProj   *mat.VecDense
	CmProj   *mat.Dense
	DmProj   *mat.Dense
	NullProj *mat.Dense

	Repaired      bool
	RankDeficient bool
}

// EventSample is the pre-jump cost expansion at an event marker, evaluated
// at sample Index = event-1.
type EventSample struct {
	Index int
	Time  float64
	Q     float64
	Qv    *mat.VecDense
	Qm    *mat.Dense
	Nc2   int
	Hv    *mat.VecDense
	Fm    *mat.Dense
}

// Partition is the LQ model along one partition's nominal trajectory.
type Partition struct {
	Samples []Sample
	Events  []EventSample
}

func (p *Partition) Empty() bool { return len(p.Samples) == 0 }

// Approximator builds LQ models along nominal trajectories.
type Approximator struct {
	settings Settings
	logger   *slog.Logger
}

func New(settings Settings, logger *slog.Logger) *Approximator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Approximator{settings: settings, logger: logger}
}

func (a *Approximator) Settings() Settings { return a.settings }

// ModeFunc returns the active mode of a trajectory sample.
type ModeFunc func(t float64) int

// SegmentModes resolves the mode of every sample from the start time of its
// event-delimited segment.
func SegmentModes(tr *dynamo.Trajectory, modeAt ModeFunc) []int {
	modes := make([]int, tr.Len())
	for _, seg := range tr.Segments() {
		if seg[0] >= seg[1] {
			continue
		}
		m := modeAt(tr.Times[seg[0]])
		for k := seg[0]; k < seg[1]; k++ {
			modes[k] = m
		}
	}
	return modes
}

// Partition approximates every sample of tr in parallel. workers holds one
// private problem clone per worker.
func (a *Approximator) Partition(workers []*dynamo.Problem, tr *dynamo.Trajectory, modeAt ModeFunc, iteration int) (Partition, error) {
	n := tr.Len()
	out := Partition{Samples: make([]Sample, n)}
	if n == 0 {
		return out, nil
	}
	modes := SegmentModes(tr, modeAt)
	penalty := a.settings.Penalty(iteration)

	errs := make([]error, n)
	dynamo.ForEach(n, len(workers), func(w, k int) {
		p := workers[w]
		p.SetMode(modes[k])
		out.Samples[k], errs[k] = a.Sample(p, tr.Times[k], tr.States[k], tr.Inputs[k], penalty)
	})
	if err := errors.Join(errs...); err != nil {
		return out, err
	}

	out.Events = make([]EventSample, 0, len(tr.Events))
	for _, e := range tr.Events {
		k := e - 1
		p := workers[0]
		p.SetMode(modes[k])
		ev, err := a.Event(p, k, tr.Times[k], tr.States[k], penalty)
		if err != nil {
			return out, err
		}
		out.Events = append(out.Events, ev)
	}

	repaired, deficient := 0, 0
	for k := range out.Samples {
		if out.Samples[k].Repaired {
			repaired++
		}
		if out.Samples[k].RankDeficient {
			deficient++
		}
	}
	if repaired > 0 {
		a.logger.Debug("[approx]", slog.String("event", "hessian_repaired"), slog.Int("samples", repaired))
	}
	if deficient > 0 {
		a.logger.Warn("[approx]", slog.String("event", "rank_deficient_partition"), slog.Int("samples", deficient))
	}
	return out, nil
}

// Sample linearizes the dynamics, quadratizes the cost and projects the
// type-1 constraints at one point.
func (a *Approximator) Sample(p *dynamo.Problem, t float64, x dynamo.State, u dynamo.Input, penalty float64) (Sample, error) {
	nx, nu := len(x), len(u)
	s := Sample{Time: t}

	s.Am, s.Bm = p.Linearize(t, x, u)

	c1 := p.Constraint.StateInput(t, x, u)
	if c1.Count() > nu {
		return s, fmt.Errorf("%w: %d type-1 constraints for %d inputs at t=%g", ErrOverConstrained, c1.Count(), nu, t)
	}
	s.Nc1, s.Ev, s.Cm, s.Dm = c1.Count(), c1.Value, c1.Dx, c1.Du

	if !a.settings.NoStateConstraints {
		c2 := p.Constraint.StateOnly(t, x)
		if c2.Count() > nu {
			return s, fmt.Errorf("%w: %d type-2 constraints for %d inputs at t=%g", ErrOverConstrained, c2.Count(), nu, t)
		}
		s.Nc2, s.Hv, s.Fm = c2.Count(), c2.Value, c2.Dx
	}

	quad := p.Cost.IntermediateQuadratic(t, x, u)
	s.Q = quad.Value
	s.Qv = dynamo.CloneVec(quad.Dx)
	s.Qm = dynamo.CloneDense(quad.Dxx)
	s.Rv = quad.Du
	s.Rm = quad.Duu
	s.Pm = quad.Dux
	if s.Pm == nil {
		s.Pm = mat.NewDense(nu, nx, nil)
	}

	rinv, ok := inverseSPD(s.Rm)
	if !ok {
		return s, fmt.Errorf("%w at t=%g", ErrInputCost, t)
	}
	s.RmInverse = rinv

	if s.Nc2 > 0 {
		addPenalty(&s.Q, s.Qv, s.Qm, s.Hv, s.Fm, penalty)
	}

	if s.Nc1 == 0 {
		s.AmC, s.QmC, s.QvC, s.RmC = s.Am, s.Qm, s.Qv, s.Rm
		s.EvProj = mat.NewVecDense(nu, nil)
		s.CmProj = mat.NewDense(nu, nx, nil)
		s.DmProj = mat.NewDense(nu, nu, nil)
		s.NullProj = dynamo.Identity(nu)
	} else {
		a.project(&s)
	}

	if a.settings.UseMakePSD {
		s.QmC, s.Repaired = MakePSD(s.QmC)
	}
	return s, nil
}

func (a *Approximator) project(s *Sample) {
	if a.settings.CheckRank && rank(s.Dm) != s.Nc1 {
		s.RankDeficient = true
		a.logger.Warn("[approx]",
			slog.String("event", "rank_deficient"),
			slog.Float64("time", s.Time),
			slog.Int("constraints", s.Nc1),
		)
	}

	dRinv := dynamo.Mul(s.Dm, s.RmInverse)
	dRinvDt := dynamo.Mul(dRinv, s.Dm.T())
	rmProjected, ok := inverseSPD(dRinvDt)
	if !ok {
		rmProjected = pseudoInverse(dRinvDt)
	}

	s.DmDager = dynamo.Mul(dynamo.Mul(s.RmInverse, s.Dm.T()), rmProjected)
	s.EvProj = mat.NewVecDense(s.DmDager.RawMatrix().Rows, nil)
	s.EvProj.MulVec(s.DmDager, s.Ev)
	s.CmProj = dynamo.Mul(s.DmDager, s.Cm)
	s.DmProj = dynamo.Mul(s.DmDager, s.Dm)

	nu := s.DmProj.RawMatrix().Rows
	s.NullProj = dynamo.Identity(nu)
	s.NullProj.Sub(s.NullProj, s.DmProj)

	s.AmC = mat.DenseCopyOf(s.Am)
	s.AmC.Sub(s.AmC, dynamo.Mul(s.Bm, s.CmProj))

	ptCm := dynamo.Mul(s.Pm.T(), s.CmProj)
	s.QmC = mat.DenseCopyOf(s.Qm)
	s.QmC.Add(s.QmC, dynamo.Mul(dynamo.Mul(s.Cm.T(), rmProjected), s.Cm))
	s.QmC.Sub(s.QmC, ptCm)
	s.QmC.Sub(s.QmC, ptCm.T())

	s.QvC = mat.VecDenseCopyOf(s.Qv)
	var cRv mat.VecDense
	cRv.MulVec(s.CmProj.T(), s.Rv)
	s.QvC.SubVec(s.QvC, &cRv)

	s.RmC = dynamo.Mul(dynamo.Mul(s.NullProj.T(), s.Rm), s.NullProj)
}

// Event evaluates the pre-jump cost and state-only constraint at sample k.
func (a *Approximator) Event(p *dynamo.Problem, k int, t float64, x dynamo.State, penalty float64) (EventSample, error) {
	quad := p.Cost.PreJumpQuadratic(t, x)
	ev := EventSample{
		Index: k,
		Time:  t,
		Q:     quad.Value,
		Qv:    dynamo.CloneVec(quad.Dx),
		Qm:    dynamo.CloneDense(quad.Dxx),
	}
	if !a.settings.NoStateConstraints {
		c2 := p.Constraint.PreJumpStateOnly(t, x)
		if c2.Count() > p.System.InputDim() {
			return ev, fmt.Errorf("%w: %d pre-jump type-2 constraints at t=%g", ErrOverConstrained, c2.Count(), t)
		}
		ev.Nc2, ev.Hv, ev.Fm = c2.Count(), c2.Value, c2.Dx
		if ev.Nc2 > 0 {
			addPenalty(&ev.Q, ev.Qv, ev.Qm, ev.Hv, ev.Fm, penalty)
		}
	}
	if a.settings.UseMakePSD {
		ev.Qm, _ = MakePSD(ev.Qm)
	}
	return ev, nil
}

// Heuristics returns the final cost expansion used as the terminal condition
// of the last active partition.
func (a *Approximator) Heuristics(p *dynamo.Problem, t float64, x dynamo.State) dynamo.TerminalQuadratic {
	quad := p.Cost.FinalQuadratic(t, x)
	quad.Dx = dynamo.CloneVec(quad.Dx)
	quad.Dxx = dynamo.CloneDense(quad.Dxx)
	if a.settings.UseMakePSD {
		quad.Dxx, _ = MakePSD(quad.Dxx)
	}
	return quad
}

// addPenalty adds 0.5*rho*|h|^2 to the cost expansion of a linearized
// state-only constraint h + F dx.
func addPenalty(q *float64, qv *mat.VecDense, qm *mat.Dense, h *mat.VecDense, f *mat.Dense, rho float64) {
	if rho == 0 {
		return
	}
	*q += 0.5 * rho * mat.Dot(h, h)
	var fh mat.VecDense
	fh.MulVec(f.T(), h)
	qv.AddScaledVec(qv, rho, &fh)
	var ff mat.Dense
	ff.Mul(f.T(), f)
	ff.Scale(rho, &ff)
	qm.Add(qm, &ff)
}
