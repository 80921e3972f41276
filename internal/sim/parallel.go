package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs the same closed loop from several initial states. Each run
// gets its own Simulator, controller and metrics from the factories, so
// stateful controllers are never shared between goroutines.
type Ensemble struct {
	dyn        Dynamics
	controller func() Controller
	metrics    func() []Metric
	limit      int
}

func NewEnsemble(dyn Dynamics, controller func() Controller, metrics func() []Metric, limit int) *Ensemble {
	return &Ensemble{dyn: dyn, controller: controller, metrics: metrics, limit: limit}
}

func (e *Ensemble) Run(ctx context.Context, x0s []State, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(x0s))

	g, ctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i, x0 := range x0s {
		i, x0 := i, x0
		g.Go(func() error {
			s := New(e.dyn, e.controller())
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			res, err := s.Run(ctx, x0, cfg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
