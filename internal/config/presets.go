package config

func preset(p ProblemConfig, tweak func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Problem = p
	if cfg.Problem.Rollout == "" {
		cfg.Problem.Rollout = RolloutTime
	}
	if cfg.Problem.Warmstart == "" {
		cfg.Problem.Warmstart = WarmstartNone
	}
	if tweak != nil {
		tweak(cfg)
	}
	return cfg
}

var Presets = map[string]map[string]*Config{
	"double_integrator": {
		"short": preset(ProblemConfig{
			Model: "double_integrator", FinalTime: 2,
			InitState: []float64{1, 0},
		}, nil),
		"partitioned": preset(ProblemConfig{
			Model: "double_integrator", FinalTime: 2,
			Partitioning: []float64{0, 0.5, 1, 1.5, 2},
			InitState:    []float64{1, 0},
		}, func(c *Config) { c.Solver.Workers = 4 }),
		"parallel": preset(ProblemConfig{
			Model: "double_integrator", FinalTime: 2,
			Partitioning: []float64{0, 0.5, 1, 1.5, 2},
			InitState:    []float64{1, 0},
		}, func(c *Config) {
			c.Solver.Workers = 4
			c.Solver.ParallelRiccati = true
		}),
	},
	"constrained_double_integrator": {
		"balanced": preset(ProblemConfig{
			Model: "constrained_double_integrator", FinalTime: 2,
			InitState: []float64{1, 0},
		}, nil),
	},
	"switched_linear": {
		"two_modes": preset(ProblemConfig{
			Model: "switched_linear", FinalTime: 2,
			InitState:      []float64{2, 3},
			SwitchingTimes: []float64{1},
			Modes:          []int{0, 1},
		}, nil),
		"three_switches": preset(ProblemConfig{
			Model: "switched_linear", FinalTime: 3,
			Partitioning:   []float64{0, 1.5, 3},
			InitState:      []float64{2, 3},
			SwitchingTimes: []float64{0.8, 1.6, 2.4},
			Modes:          []int{0, 1, 0, 1},
		}, func(c *Config) { c.Solver.Riccati.Policy = "sweep" }),
	},
	"bouncing_mass": {
		"drop": preset(ProblemConfig{
			Model: "bouncing_mass", FinalTime: 1.5,
			InitState: []float64{0.5, -1},
			Rollout:   RolloutState,
		}, func(c *Config) { c.Solver.MaxIterations = 8 }),
	},
	"pendulum": {
		"small": preset(ProblemConfig{
			Model: "pendulum", FinalTime: 3,
			InitState: []float64{0.2, 0},
		}, nil),
		"swing_up": preset(ProblemConfig{
			Model: "pendulum", FinalTime: 4, Warmstart: WarmstartLQR,
			InitState: []float64{2.5, 0},
		}, func(c *Config) { c.Solver.MaxIterations = 30 }),
	},
	"drone": {
		"hover": preset(ProblemConfig{
			Model: "drone", FinalTime: 3,
			InitState: []float64{0, 4, 0.3, 0, 0, 0},
		}, func(c *Config) { c.Solver.MaxIterations = 20 }),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}
