package config

import (
	"math"

	"github.com/pkg/errors"
	"github.com/san-kum/pwampc/internal/control"
	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/mpqp"
	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// Problem is a validated configuration turned into controller inputs.
type Problem struct {
	Name     string
	System   *dynamics.LinearSystem
	Horizon  int
	Q, R, P  *mat.Dense
	Stage    *geometry.Polyhedron
	Terminal *geometry.Polyhedron
	X0       sim.State
	Bound    float64
}

// Build validates the configuration and assembles the system, weights and
// constraint sets.
func (c *Config) Build() (*Problem, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	nx, nu := c.Nx(), c.Nu()

	a, b := dense(c.System.A), dense(c.System.B)
	var sys *dynamics.LinearSystem
	var err error
	if c.System.Continuous {
		sys, err = dynamics.FromContinuous(a, b, c.System.Dt)
	} else {
		sys, err = dynamics.NewLinearSystem(a, b)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not build system")
	}

	q, r := dense(c.Cost.Q), dense(c.Cost.R)
	var p *mat.Dense
	if c.Cost.TerminalCost == TerminalCostGiven {
		p = dense(c.Cost.P)
	} else {
		p, _, err = sys.SolveDARE(q, r)
		if err != nil {
			return nil, errors.Wrap(err, "could not compute terminal cost")
		}
	}

	lower := append(bounds(c.Stage.XMin, nx, math.Inf(-1)), bounds(c.Stage.UMin, nu, math.Inf(-1))...)
	upper := append(bounds(c.Stage.XMax, nx, math.Inf(1)), bounds(c.Stage.UMax, nu, math.Inf(1))...)
	stage, err := geometry.FromBounds(lower, upper)
	if err != nil {
		return nil, errors.Wrap(err, "could not build stage domain")
	}

	var terminal *geometry.Polyhedron
	switch c.Terminal.Kind {
	case TerminalOrigin:
		terminal, err = geometry.Point(make([]float64, nx))
	case TerminalBox:
		terminal, err = geometry.FromBounds(c.Terminal.XMin, c.Terminal.XMax)
	default:
		// No dedicated terminal set: x(N) keeps the stage state bounds.
		terminal, err = geometry.FromBounds(lower[:nx], upper[:nx])
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not build terminal set")
	}

	bound := c.Explicit.Bound
	if bound == 0 {
		bound = DefaultBound
	}

	return &Problem{
		Name:     c.Name,
		System:   sys,
		Horizon:  c.Horizon,
		Q:        q,
		R:        r,
		P:        p,
		Stage:    stage,
		Terminal: terminal,
		X0:       sim.State(c.InitState()),
		Bound:    bound,
	}, nil
}

// NewMPC builds the controller of the problem. Explicit solves are bounded
// to the configured parameter box.
func (p *Problem) NewMPC(opts ...control.Option) (*control.MPC, error) {
	opts = append([]control.Option{control.WithExplicitOptions(mpqp.WithParameterBound(p.Bound))}, opts...)
	return control.NewMPC(p.System, p.Horizon, p.Q, p.R, p.P, p.Stage, p.Terminal, opts...)
}

// Plant returns the simulated plant, the nominal model itself.
func (p *Problem) Plant() *dynamics.Plant {
	return dynamics.NewLinearPlant(p.System)
}

func dense(rows [][]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

func bounds(v []float64, n int, fill float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if v != nil {
			out[i] = v[i]
		} else {
			out[i] = fill
		}
	}
	return out
}
