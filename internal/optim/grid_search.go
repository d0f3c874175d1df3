// Package optim tunes solver settings by exhaustive search over a grid of
// candidate values.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
)

// Param is a tunable solver setting.
type Param struct {
	Name  string
	Apply func(c *config.Config, v float64)
}

var params = map[string]func(c *config.Config, v float64){
	"max_learning_rate":    func(c *config.Config, v float64) { c.Solver.LineSearch.MaxRate = v },
	"min_learning_rate":    func(c *config.Config, v float64) { c.Solver.LineSearch.MinRate = v },
	"contraction":          func(c *config.Config, v float64) { c.Solver.LineSearch.Contraction = v },
	"armijo":               func(c *config.Config, v float64) { c.Solver.LineSearch.ArmijoFactor = v },
	"constraint_step_size": func(c *config.Config, v float64) { c.Solver.ConstraintStepSize = v },
	"merit_rho":            func(c *config.Config, v float64) { c.Solver.MeritRho = v },
	"min_rel_cost":         func(c *config.Config, v float64) { c.Solver.MinRelCost = v },
	"penalty_coeff":        func(c *config.Config, v float64) { c.Solver.Approx.PenaltyCoeff = v },
	"max_iterations":       func(c *config.Config, v float64) { c.Solver.MaxIterations = int(v) },
}

// ParamNames lists the settings the grid search can vary.
func ParamNames() []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupParam(name string) (Param, error) {
	fn, ok := params[name]
	if !ok {
		return Param{}, fmt.Errorf("optim: unknown parameter %q (known: %s)", name, strings.Join(ParamNames(), ", "))
	}
	return Param{Name: name, Apply: fn}, nil
}

// Trial is one evaluated grid point.
type Trial struct {
	Values map[string]float64
	Score  float64
	Err    error
}

// Objective scores a configuration; lower is better.
type Objective func(ctx context.Context, cfg *config.Config) (float64, error)

type GridSearch struct {
	params  []Param
	ranges  [][]float64
	workers int
}

func NewGridSearch(params []Param, ranges [][]float64, workers int) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i].Name)
		}
	}
	return &GridSearch{params: params, ranges: ranges, workers: workers}, nil
}

// Points enumerates the grid in lexicographic order.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.params) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}
	for _, val := range g.ranges[depth] {
		current[g.params[depth].Name] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, g.params[depth].Name)
}

// Search evaluates every grid point on a copy of base and returns the trials
// sorted by score. Failed trials score +Inf.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective Objective) ([]Trial, error) {
	points := g.Points()
	trials := make([]Trial, len(points))

	dynamo.ForEach(len(points), g.workers, func(_, i int) {
		trials[i] = Trial{Values: points[i], Score: math.Inf(1)}
		if err := ctx.Err(); err != nil {
			trials[i].Err = err
			return
		}
		cfg := *base
		for _, p := range g.params {
			p.Apply(&cfg, points[i][p.Name])
		}
		if err := cfg.Validate(); err != nil {
			trials[i].Err = err
			return
		}
		score, err := objective(ctx, &cfg)
		if err != nil {
			trials[i].Err = err
			return
		}
		trials[i].Score = score
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })
	return trials, nil
}
