package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/lizqwerscott/ocs2-ros2/internal/mpc"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel     = "double_integrator"
	DefaultFinalTime = 2.0
	DefaultOutputDir = "runs"

	RolloutTime  = "time"
	RolloutState = "state"

	WarmstartNone = "none"
	WarmstartLQR  = "lqr"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Problem ProblemConfig `yaml:"problem"`
	Solver  slq.Settings  `yaml:"solver"`
	MPC     mpc.Config    `yaml:"mpc"`
	Output  OutputConfig  `yaml:"output"`
}

// ProblemConfig selects a registered model and the horizon to optimize it
// over. Empty slices fall back to the model defaults.
type ProblemConfig struct {
	Model          string    `yaml:"model"`
	Warmstart      string    `yaml:"warmstart"`
	InitTime       float64   `yaml:"init_time"`
	FinalTime      float64   `yaml:"final_time"`
	Partitioning   []float64 `yaml:"partitioning,omitempty"`
	InitState      []float64 `yaml:"init_state,omitempty"`
	SwitchingTimes []float64 `yaml:"switching_times,omitempty"`
	Modes          []int     `yaml:"modes,omitempty"`
	Rollout        string    `yaml:"rollout"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Backend string `yaml:"backend"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem: ProblemConfig{
			Model:     DefaultModel,
			Warmstart: WarmstartNone,
			FinalTime: DefaultFinalTime,
			Rollout:   RolloutTime,
		},
		Solver: slq.DefaultSettings(),
		MPC:    mpc.DefaultConfig(),
		Output: OutputConfig{
			Dir:     DefaultOutputDir,
			Backend: BackendFile,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	p := c.Problem
	if p.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if p.InitTime > p.FinalTime {
		return fmt.Errorf("%w: init time %g after final time %g", ErrInvalidConfig, p.InitTime, p.FinalTime)
	}
	if len(p.Partitioning) > 0 {
		if err := schedule.Validate(p.Partitioning); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !slices.Contains([]string{RolloutTime, RolloutState}, p.Rollout) {
		return fmt.Errorf("%w: unknown rollout %q", ErrInvalidConfig, p.Rollout)
	}
	if !slices.Contains([]string{WarmstartNone, WarmstartLQR}, p.Warmstart) {
		return fmt.Errorf("%w: unknown warmstart %q", ErrInvalidConfig, p.Warmstart)
	}
	if !slices.Contains([]string{BackendFile, BackendSQLite}, c.Output.Backend) {
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Output.Backend)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SolverSettings returns the solver settings with the rollout kind applied.
func (c *Config) SolverSettings() slq.Settings {
	s := c.Solver
	s.StateTriggered = c.Problem.Rollout == RolloutState
	return s
}

func (c *Config) Rules() schedule.LogicRules {
	return schedule.LogicRules{
		SwitchingTimes: c.Problem.SwitchingTimes,
		Modes:          c.Problem.Modes,
	}
}

// PartitionTimes returns the configured partitioning, or a single partition
// spanning the horizon.
func (c *Config) PartitionTimes() []float64 {
	if len(c.Problem.Partitioning) > 0 {
		return c.Problem.Partitioning
	}
	return []float64{c.Problem.InitTime, c.Problem.FinalTime}
}
