package sim

import (
	"context"
	"fmt"
)

type Simulator struct {
	dyn        Dynamics
	controller Controller
	metrics    []Metric
	observers  []Observer
}

func New(dyn Dynamics, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run closes the loop for cfg.Steps samples starting at x0. The run stops
// early, without an error return, when the controller has no admissible
// input or the state becomes invalid; the reason is kept in Result.Errors.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	result := &Result{
		States:   make([]State, 0, cfg.Steps+1),
		Controls: make([]Control, 0, cfg.Steps),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	result.States = append(result.States, x.Clone())

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		u := s.controller.Compute(x, i)
		if u == nil {
			result.Errors = append(result.Errors, SimError{Step: i, Message: "no feasible control action"})
			break
		}

		for _, m := range s.metrics {
			m.Observe(x, u, i)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, i)
		}

		newX := s.dyn.Step(x, u)
		if cfg.ValidateState && !newX.IsValid() {
			result.Errors = append(result.Errors, SimError{Step: i, Message: "invalid state (NaN/Inf)"})
			break
		}

		x = newX
		result.StepsTaken++
		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("initial state has %d entries, plant has %d", len(x0), s.dyn.StateDim())
	}
	return nil
}

// RunWithCallback steps the loop until the callback returns false or the
// controller runs out of admissible inputs.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 State, cfg Config, callback func(State, Control, int) bool) error {
	if err := s.validate(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		u := s.controller.Compute(x, i)
		if u == nil {
			return SimError{Step: i, Message: "no feasible control action"}
		}

		if !callback(x, u, i) {
			return nil
		}

		x = s.dyn.Step(x, u)
		if cfg.ValidateState && !x.IsValid() {
			return fmt.Errorf("invalid state at step %d", i)
		}
	}

	return nil
}
