package metrics

import (
	"math"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

// Stability is the fraction of elapsed time during which the state stays
// within Band of the reference in the infinity norm. Coordinates beyond the
// reference are compared against zero.
type Stability struct {
	Band      float64
	Reference dynamo.State

	inside, elapsed float64
	lastT           float64
	lastIn          bool
	started         bool
}

func NewStability(band float64, reference dynamo.State) *Stability {
	return &Stability{Band: band, Reference: reference}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(t float64, x dynamo.State, _ dynamo.Input) {
	in := s.deviation(x) <= s.Band
	if s.started {
		dt := t - s.lastT
		s.elapsed += dt
		if s.lastIn {
			s.inside += dt
		}
	}
	s.started = true
	s.lastT, s.lastIn = t, in
}

func (s *Stability) deviation(x dynamo.State) float64 {
	var worst float64
	for i, v := range x {
		if i < len(s.Reference) {
			v -= s.Reference[i]
		}
		worst = math.Max(worst, math.Abs(v))
	}
	return worst
}

func (s *Stability) Value() float64 {
	if s.elapsed == 0 {
		if !s.started || s.lastIn {
			return 1
		}
		return 0
	}
	return s.inside / s.elapsed
}

func (s *Stability) Reset() {
	s.inside, s.elapsed, s.lastT = 0, 0, 0
	s.lastIn, s.started = false, false
}
