package experiment

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/pwampc/internal/config"
	"github.com/san-kum/pwampc/internal/control"
	"github.com/san-kum/pwampc/internal/metrics"
	"github.com/san-kum/pwampc/internal/sim"
)

// ErrUnknownController is returned for controller kinds without a builder.
var ErrUnknownController = errors.New("unknown controller")

type builder func(ctx context.Context, p *config.Problem, c config.ControllerConfig, logger *slog.Logger) (sim.Controller, error)

// Registry maps controller kinds to builders for a Problem.
type Registry struct {
	controllers map[string]builder
	// stateful kinds get a fresh instance per closed loop
	stateful map[string]bool
}

func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]builder),
		stateful:    make(map[string]bool),
	}

	r.controllers[config.ControllerNone] = func(_ context.Context, p *config.Problem, _ config.ControllerConfig, _ *slog.Logger) (sim.Controller, error) {
		return control.NewNone(p.System.Nu()), nil
	}
	r.controllers[config.ControllerPID] = func(_ context.Context, p *config.Problem, c config.ControllerConfig, _ *slog.Logger) (sim.Controller, error) {
		return control.NewPID(c.Kp, c.Ki, c.Kd, c.Target, 1, p.System.Nu()), nil
	}
	r.stateful[config.ControllerPID] = true
	r.controllers[config.ControllerLQR] = func(_ context.Context, p *config.Problem, _ config.ControllerConfig, _ *slog.Logger) (sim.Controller, error) {
		lqr, _, err := control.NewLQRFromSystem(p.System, p.Q, p.R)
		if err != nil {
			return nil, errors.Wrap(err, "could not build lqr")
		}
		return lqr, nil
	}
	r.controllers[config.ControllerMPC] = func(_ context.Context, p *config.Problem, _ config.ControllerConfig, logger *slog.Logger) (sim.Controller, error) {
		mpc, err := p.NewMPC(control.WithLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, "could not build mpc")
		}
		return mpc, nil
	}
	r.controllers[config.ControllerExplicit] = func(ctx context.Context, p *config.Problem, _ config.ControllerConfig, logger *slog.Logger) (sim.Controller, error) {
		mpc, err := p.NewMPC(control.WithLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, "could not build mpc")
		}
		if err := mpc.StoreExplicitSolution(ctx); err != nil {
			return nil, err
		}
		return mpc, nil
	}

	return r
}

func (r *Registry) GetController(ctx context.Context, p *config.Problem, c config.ControllerConfig, logger *slog.Logger) (sim.Controller, error) {
	fn, ok := r.controllers[c.Kind]
	if !ok {
		return nil, errors.Wrap(ErrUnknownController, c.Kind)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return fn(ctx, p, c, logger)
}

// ControllerFactory builds the controller once and returns a factory that
// hands out that instance, or a fresh one for stateful kinds.
func (r *Registry) ControllerFactory(ctx context.Context, p *config.Problem, c config.ControllerConfig, logger *slog.Logger) (func() sim.Controller, sim.Controller, error) {
	first, err := r.GetController(ctx, p, c, logger)
	if err != nil {
		return nil, nil, err
	}
	if !r.stateful[c.Kind] {
		return func() sim.Controller { return first }, first, nil
	}
	fn := r.controllers[c.Kind]
	return func() sim.Controller {
		ctrl, err := fn(ctx, p, c, logger)
		if err != nil {
			// the first build succeeded with the same inputs
			return first
		}
		return ctrl
	}, first, nil
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns fresh metrics for one closed loop of p.
func (r *Registry) DefaultMetrics(p *config.Problem) []sim.Metric {
	return []sim.Metric{
		metrics.NewStageCost(p.Q, p.R),
		metrics.NewStability(10.0),
		metrics.NewControlEffort(),
		metrics.NewConstraintViolation(p.Stage, 1e-6),
	}
}
