// Package experiment wires a configured problem, a controller kind and the
// default metrics into closed-loop simulations.
package experiment

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/san-kum/pwampc/internal/config"
	"github.com/san-kum/pwampc/internal/sim"
)

type Config struct {
	Problem    *config.Problem
	Controller config.ControllerConfig
	Steps      int
	// X0s defaults to the problem's initial state.
	X0s      []sim.State
	Parallel int
	Logger   *slog.Logger
}

type Experiment struct {
	cfg        Config
	registry   *Registry
	plant      sim.Dynamics
	controller sim.Controller
	factory    func() sim.Controller
}

func New(cfg Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.X0s) == 0 && cfg.Problem != nil {
		cfg.X0s = []sim.State{cfg.Problem.X0}
	}
	return &Experiment{cfg: cfg, registry: registry}
}

// Setup builds the plant and controller. The explicit controller enumerates
// its regions here.
func (e *Experiment) Setup(ctx context.Context) error {
	if e.cfg.Problem == nil {
		return errors.New("experiment: no problem")
	}
	factory, first, err := e.registry.ControllerFactory(ctx, e.cfg.Problem, e.cfg.Controller, e.cfg.Logger)
	if err != nil {
		return err
	}
	e.plant = e.cfg.Problem.Plant()
	e.controller = first
	e.factory = factory
	return nil
}

// Controller returns the controller built by Setup.
func (e *Experiment) Controller() sim.Controller {
	return e.controller
}

func (e *Experiment) simConfig() sim.Config {
	cfg := sim.DefaultConfig()
	if e.cfg.Steps > 0 {
		cfg.Steps = e.cfg.Steps
	}
	return cfg
}

// Run simulates one closed loop per initial state, in parallel when there is
// more than one.
func (e *Experiment) Run(ctx context.Context) ([]*sim.Result, error) {
	if e.factory == nil {
		return nil, errors.New("experiment not setup")
	}

	if len(e.cfg.X0s) == 1 {
		s := sim.New(e.plant, e.controller)
		for _, m := range e.registry.DefaultMetrics(e.cfg.Problem) {
			s.AddMetric(m)
		}
		res, err := s.Run(ctx, e.cfg.X0s[0], e.simConfig())
		if err != nil {
			return nil, err
		}
		return []*sim.Result{res}, nil
	}

	ens := sim.NewEnsemble(e.plant, e.factory, func() []sim.Metric {
		return e.registry.DefaultMetrics(e.cfg.Problem)
	}, e.cfg.Parallel)
	return ens.Run(ctx, e.cfg.X0s, e.simConfig())
}
