package experiment

import (
	"fmt"
	"sort"

	"github.com/lizqwerscott/ocs2-ros2/internal/control"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/integrators"
	"github.com/lizqwerscott/ocs2-ros2/internal/models"
)

// Model describes a registered plant: how to build its problem, where it
// starts by default and, optionally, a stabilizing law for warm starts.
type Model struct {
	Name        string
	Description string
	InitState   dynamo.State
	Reference   dynamo.State
	Problem     func() *dynamo.Problem
	LQR         func() *control.Linear
}

type Registry struct {
	models      map[string]Model
	integrators map[string]func() integrators.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]Model),
		integrators: make(map[string]func() integrators.Integrator),
	}

	r.Register(Model{
		Name:        "double_integrator",
		Description: "unit mass driven by a force",
		InitState:   dynamo.State{1, 0},
		Reference:   dynamo.State{0, 0},
		Problem: func() *dynamo.Problem {
			return &dynamo.Problem{
				System: models.NewDoubleIntegrator(),
				Cost:   models.NewQuadraticCost([]float64{1, 1}, []float64{0.1}, []float64{10, 10}, nil, nil, nil),
			}
		},
		LQR: func() *control.Linear {
			return control.NewLinear([][]float64{{3.16, 4.04}}, dynamo.State{0, 0}, nil)
		},
	})
	r.Register(Model{
		Name:        "constrained_double_integrator",
		Description: "double integrator with two actuators constrained to agree",
		InitState:   dynamo.State{1, 0},
		Reference:   dynamo.State{0, 0},
		Problem: func() *dynamo.Problem {
			return &dynamo.Problem{
				System:     models.NewConstrainedDoubleIntegrator(),
				Cost:       models.NewQuadraticCost([]float64{1, 1}, []float64{0.1, 0.1}, []float64{10, 10}, nil, nil, nil),
				Constraint: models.BalancedActuators(),
			}
		},
	})
	r.Register(Model{
		Name:        "switched_linear",
		Description: "two-mode linear system switched at prescribed times",
		InitState:   dynamo.State{2, 3},
		Reference:   dynamo.State{0, 0},
		Problem: func() *dynamo.Problem {
			return &dynamo.Problem{
				System: models.NewSwitchedLinear(),
				Cost:   models.NewQuadraticCost([]float64{1, 1}, []float64{1}, []float64{1, 1}, []float64{1, 1}, nil, nil),
			}
		},
	})
	r.Register(Model{
		Name:        "bouncing_mass",
		Description: "mass above a floor with state-triggered impacts",
		InitState:   dynamo.State{0.5, -1},
		Reference:   dynamo.State{0.8, 0},
		Problem: func() *dynamo.Problem {
			m := models.NewBouncingMass()
			hover := dynamo.Input{m.HoverForce()}
			return &dynamo.Problem{
				System:    m,
				Cost:      models.NewQuadraticCost([]float64{10, 1}, []float64{0.01}, []float64{10, 1}, nil, dynamo.State{0.8, 0}, hover),
				Operating: models.Hover(hover),
			}
		},
	})
	r.Register(Model{
		Name:        "pendulum",
		Description: "damped torque-driven pendulum, numerically linearized",
		InitState:   dynamo.State{0.2, 0},
		Reference:   dynamo.State{0, 0},
		Problem: func() *dynamo.Problem {
			return &dynamo.Problem{
				System: models.NewPendulum(),
				Cost:   models.NewQuadraticCost([]float64{10, 1}, []float64{0.1}, []float64{50, 5}, nil, nil, nil),
			}
		},
		LQR: func() *control.Linear {
			return control.NewLinear([][]float64{{31.62, 10.0}}, dynamo.State{0, 0}, nil)
		},
	})
	r.Register(Model{
		Name:        "drone",
		Description: "planar quadrotor holding altitude",
		InitState:   dynamo.State{0, 4, 0.3, 0, 0, 0},
		Reference:   dynamo.State{0, 5, 0, 0, 0, 0},
		Problem: func() *dynamo.Problem {
			d := models.NewDrone()
			hover := dynamo.Input{d.HoverThrust(), d.HoverThrust()}
			return &dynamo.Problem{
				System: d,
				Cost: models.NewQuadraticCost(
					[]float64{1, 10, 10, 1, 1, 1}, []float64{0.1, 0.1}, []float64{10, 100, 100, 10, 10, 10}, nil,
					dynamo.State{0, 5, 0, 0, 0, 0}, hover),
				Operating: models.Hover(hover),
			}
		},
	})

	r.integrators["euler"] = func() integrators.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() integrators.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() integrators.Integrator { return integrators.NewRK45() }
	r.integrators["bulirsch_stoer"] = func() integrators.Integrator { return integrators.NewBulirschStoer() }

	return r
}

func (r *Registry) Register(m Model) {
	r.models[m.Name] = m
}

func (r *Registry) GetModel(name string) (Model, error) {
	m, ok := r.models[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown model: %s", name)
	}
	return m, nil
}

func (r *Registry) GetIntegrator(name string) (integrators.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
