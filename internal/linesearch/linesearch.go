// Package linesearch chooses the learning rate of a controller update by
// rolling out a contracting sequence of candidate rates and filtering them
// on cost and constraint violation.
package linesearch

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

// Performance summarizes one rollout.
type Performance struct {
	Cost     float64 `json:"cost"`
	ISE1     float64 `json:"ise1"`
	MaxNorm1 float64 `json:"max_norm1"`
	ISE2     float64 `json:"ise2"`
	MaxNorm2 float64 `json:"max_norm2"`
	Merit    float64 `json:"merit"`
}

// Violation is the L2 norm of the type-1 constraint over the horizon.
func (p Performance) Violation() float64 { return math.Sqrt(p.ISE1) }

// Diverged returns the performance of a rejected rollout.
func Diverged() Performance {
	inf := math.Inf(1)
	return Performance{Cost: inf, ISE1: inf, MaxNorm1: inf, ISE2: inf, MaxNorm2: inf, Merit: inf}
}

// MeritWeight ramps the constraint weight of the merit function from zero at
// the first iteration to rho at the last.
func MeritWeight(iteration, maxIterations int, rho float64) float64 {
	if maxIterations <= 1 {
		return 0
	}
	return max(0, float64(iteration-1)/float64(maxIterations-1)) * rho
}

// WithMerit sets Merit = Cost + 0.5*rho*ISE1.
func (p Performance) WithMerit(rho float64) Performance {
	p.Merit = p.Cost + 0.5*rho*p.ISE1
	return p
}

type StepType int

const (
	Zero StepType = iota
	Constraint
	Cost
	Dual
)

func (t StepType) String() string {
	switch t {
	case Constraint:
		return "constraint"
	case Cost:
		return "cost"
	case Dual:
		return "dual"
	default:
		return "zero"
	}
}

type Settings struct {
	MaxRate      float64 `yaml:"max_learning_rate" json:"max_learning_rate"`
	MinRate      float64 `yaml:"min_learning_rate" json:"min_learning_rate"`
	Contraction  float64 `yaml:"line_search_contraction_rate" json:"line_search_contraction_rate"`
	ArmijoFactor float64 `yaml:"armijo_coefficient" json:"armijo_coefficient"`
	GammaC       float64 `yaml:"gamma_c" json:"gamma_c"`
	GMin         float64 `yaml:"g_min" json:"g_min"`
	GMax         float64 `yaml:"g_max" json:"g_max"`
	Workers      int     `yaml:"workers" json:"workers"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxRate:      1,
		MinRate:      0.05,
		Contraction:  0.5,
		ArmijoFactor: 1e-4,
		GammaC:       1e-6,
		GMin:         1e-6,
		GMax:         1e6,
		Workers:      1,
	}
}

func (s Settings) Validate() error {
	if s.MaxRate <= 0 || s.MinRate <= 0 || s.MinRate > s.MaxRate {
		return fmt.Errorf("linesearch: learning rates must satisfy 0 < min <= max, got min=%g max=%g", s.MinRate, s.MaxRate)
	}
	if s.Contraction <= 0 || s.Contraction >= 1 {
		return fmt.Errorf("linesearch: contraction rate must be in (0, 1), got %g", s.Contraction)
	}
	return nil
}

// Rates lists MaxRate * Contraction^j for every j with the rate >= MinRate.
func (s Settings) Rates() []float64 {
	var rates []float64
	for a := s.MaxRate; a >= s.MinRate && a > 0; a *= s.Contraction {
		rates = append(rates, a)
		if s.Contraction <= 0 || s.Contraction >= 1 {
			break
		}
	}
	return rates
}

// Accept classifies a candidate against the baseline. descent is the
// directional derivative of the cost along the update.
func (s Settings) Accept(base, cand Performance, descent, rate float64) StepType {
	if math.IsNaN(cand.Merit) || math.IsInf(cand.Merit, 1) {
		return Zero
	}
	v, bv := cand.Violation(), base.Violation()
	switch {
	case v > s.GMax:
		if v < (1-s.GammaC)*bv {
			return Constraint
		}
		return Zero
	case v < s.GMin && bv < s.GMin && descent < 0:
		if cand.Merit < base.Merit+s.ArmijoFactor*rate*descent {
			return Cost
		}
		return Zero
	case cand.Merit < base.Merit-s.GammaC*bv || v < (1-s.GammaC)*bv:
		return Dual
	}
	return Zero
}

// Step is the outcome of a search. Rate is zero when no candidate was
// accepted; Result then holds the zero value.
type Step[T any] struct {
	Rate        float64
	Type        StepType
	Performance Performance
	Result      T
}

// Eval rolls out the candidate rate on the given worker. An error rejects
// the candidate.
type Eval[T any] func(worker int, rate float64) (Performance, T, error)

// Search evaluates candidate rates in batches of Workers, largest first, and
// returns the largest accepted one.
func Search[T any](s Settings, logger *slog.Logger, base Performance, descent float64, eval Eval[T]) Step[T] {
	if logger == nil {
		logger = slog.Default()
	}
	rates := s.Rates()
	workers := dynamo.Workers(s.Workers)
	best := Step[T]{Type: Zero, Performance: base}

	for start := 0; start < len(rates); start += workers {
		batch := rates[start:min(start+workers, len(rates))]
		perfs := make([]Performance, len(batch))
		results := make([]T, len(batch))
		dynamo.ForEach(len(batch), workers, func(worker, i int) {
			p, r, err := eval(worker, batch[i])
			if err != nil {
				logger.Debug("[linesearch]",
					slog.String("event", "rejected"),
					slog.Float64("rate", batch[i]),
					slog.String("error", err.Error()),
				)
				p = Diverged()
			}
			perfs[i], results[i] = p, r
		})

		for i, rate := range batch {
			typ := s.Accept(base, perfs[i], descent, rate)
			logger.Debug("[linesearch]",
				slog.Float64("rate", rate),
				slog.Float64("merit", perfs[i].Merit),
				slog.Float64("violation", perfs[i].Violation()),
				slog.String("type", typ.String()),
			)
			if typ != Zero {
				return Step[T]{Rate: rate, Type: typ, Performance: perfs[i], Result: results[i]}
			}
		}
	}
	return best
}
