package slq

import (
	"fmt"

	"github.com/lizqwerscott/ocs2-ros2/internal/approx"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/lizqwerscott/ocs2-ros2/internal/rollout"
)

type Settings struct {
	MaxIterations        int     `yaml:"max_iterations" json:"max_iterations"`
	MinRelCost           float64 `yaml:"min_rel_cost" json:"min_rel_cost"`
	MinAbsConstraint1ISE float64 `yaml:"min_abs_constraint1_ise" json:"min_abs_constraint1_ise"`
	MinRelConstraint1ISE float64 `yaml:"min_rel_constraint1_ise" json:"min_rel_constraint1_ise"`
	ConstraintStepSize   float64 `yaml:"constraint_step_size" json:"constraint_step_size"`
	MeritRho             float64 `yaml:"merit_rho" json:"merit_rho"`
	DisplayInfo          bool    `yaml:"display_info" json:"display_info"`
	DisplayShortSummary  bool    `yaml:"display_short_summary" json:"display_short_summary"`
	Workers              int     `yaml:"workers" json:"workers"`
	StateTriggered       bool    `yaml:"state_triggered" json:"state_triggered"`
	ParallelRiccati      bool    `yaml:"parallel_riccati" json:"parallel_riccati"`

	Rollout    rollout.Settings    `yaml:"rollout" json:"rollout"`
	Approx     approx.Settings     `yaml:"approximation" json:"approximation"`
	Riccati    riccati.Settings    `yaml:"riccati" json:"riccati"`
	LineSearch linesearch.Settings `yaml:"line_search" json:"line_search"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxIterations:        15,
		MinRelCost:           1e-3,
		MinAbsConstraint1ISE: 1e-3,
		MinRelConstraint1ISE: 1e-3,
		ConstraintStepSize:   1,
		MeritRho:             0,
		Workers:              1,
		Rollout:              rollout.DefaultSettings(),
		Approx:               approx.DefaultSettings(),
		Riccati:              riccati.DefaultSettings(),
		LineSearch:           linesearch.DefaultSettings(),
	}
}

func (s Settings) Validate() error {
	if s.MaxIterations < 1 {
		return fmt.Errorf("slq: max iterations must be positive, got %d", s.MaxIterations)
	}
	if s.ConstraintStepSize < 0 || s.ConstraintStepSize > 1 {
		return fmt.Errorf("slq: constraint step size must be in [0, 1], got %g", s.ConstraintStepSize)
	}
	if err := s.Riccati.Validate(); err != nil {
		return err
	}
	return s.LineSearch.Validate()
}
