package config

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHorizon = 5
	DefaultSteps   = 30
	DefaultBound   = 100.0
)

// Terminal set kinds.
const (
	TerminalOrigin = "origin"
	TerminalBox    = "box"
	TerminalNone   = "none"
)

// Terminal cost sources.
const (
	TerminalCostDARE  = "dare"
	TerminalCostGiven = "given"
)

// Closed-loop controller kinds.
const (
	ControllerMPC      = "mpc"
	ControllerExplicit = "explicit"
	ControllerLQR      = "lqr"
	ControllerPID      = "pid"
	ControllerNone     = "none"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Name       string           `yaml:"name"`
	System     SystemConfig     `yaml:"system"`
	Horizon    int              `yaml:"horizon"`
	Cost       CostConfig       `yaml:"cost"`
	Stage      StageConfig      `yaml:"stage"`
	Terminal   TerminalConfig   `yaml:"terminal"`
	Controller ControllerConfig `yaml:"controller"`
	Explicit   ExplicitConfig   `yaml:"explicit"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// SystemConfig holds x+ = A·x + B·u, or ẋ = A·x + B·u sampled with a
// zero-order hold of period Dt when Continuous is set.
type SystemConfig struct {
	A          [][]float64 `yaml:"a"`
	B          [][]float64 `yaml:"b"`
	Continuous bool        `yaml:"continuous"`
	Dt         float64     `yaml:"dt"`
}

type CostConfig struct {
	Q            [][]float64 `yaml:"q"`
	R            [][]float64 `yaml:"r"`
	P            [][]float64 `yaml:"p"`
	TerminalCost string      `yaml:"terminal_cost"`
}

// StageConfig bounds the state and input at every stage. Missing slices
// leave the coordinate unbounded.
type StageConfig struct {
	XMin []float64 `yaml:"x_min"`
	XMax []float64 `yaml:"x_max"`
	UMin []float64 `yaml:"u_min"`
	UMax []float64 `yaml:"u_max"`
}

type TerminalConfig struct {
	Kind string    `yaml:"kind"`
	XMin []float64 `yaml:"x_min"`
	XMax []float64 `yaml:"x_max"`
}

type ControllerConfig struct {
	Kind   string  `yaml:"kind"`
	Kp     float64 `yaml:"kp"`
	Ki     float64 `yaml:"ki"`
	Kd     float64 `yaml:"kd"`
	Target float64 `yaml:"target"`
}

type ExplicitConfig struct {
	Bound float64 `yaml:"bound"`
}

type SimulationConfig struct {
	Steps int       `yaml:"steps"`
	X0    []float64 `yaml:"x0"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "scalar",
		System: SystemConfig{
			A: [][]float64{{1}},
			B: [][]float64{{1}},
		},
		Horizon: DefaultHorizon,
		Cost: CostConfig{
			Q:            [][]float64{{1}},
			R:            [][]float64{{1}},
			TerminalCost: TerminalCostDARE,
		},
		Stage: StageConfig{
			XMin: []float64{-10},
			XMax: []float64{10},
			UMin: []float64{-1},
			UMax: []float64{1},
		},
		Terminal:   TerminalConfig{Kind: TerminalNone},
		Controller: ControllerConfig{Kind: ControllerMPC},
		Explicit:   ExplicitConfig{Bound: DefaultBound},
		Simulation: SimulationConfig{Steps: DefaultSteps, X0: []float64{5}},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "could not parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "could not encode config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "could not write config file")
	}
	return nil
}

// Nx and Nu are the state and input dimensions implied by System.
func (c *Config) Nx() int { return len(c.System.A) }

func (c *Config) Nu() int {
	if len(c.System.B) == 0 {
		return 0
	}
	return len(c.System.B[0])
}

// Validate checks dimensions and enumerations without building matrices.
func (c *Config) Validate() error {
	nx, nu := c.Nx(), c.Nu()
	if nx == 0 || nu == 0 {
		return errors.Wrap(ErrInvalidConfig, "system needs non-empty A and B")
	}
	if err := checkMatrix("system.a", c.System.A, nx, nx); err != nil {
		return err
	}
	if err := checkMatrix("system.b", c.System.B, nx, nu); err != nil {
		return err
	}
	if c.System.Continuous && c.System.Dt <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "continuous system needs dt > 0, got %g", c.System.Dt)
	}
	if c.Horizon < 1 {
		return errors.Wrapf(ErrInvalidConfig, "horizon must be positive, got %d", c.Horizon)
	}

	if err := checkMatrix("cost.q", c.Cost.Q, nx, nx); err != nil {
		return err
	}
	if err := checkMatrix("cost.r", c.Cost.R, nu, nu); err != nil {
		return err
	}
	switch c.Cost.TerminalCost {
	case "", TerminalCostDARE:
	case TerminalCostGiven:
		if err := checkMatrix("cost.p", c.Cost.P, nx, nx); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown terminal cost %q", c.Cost.TerminalCost)
	}

	for _, b := range []struct {
		name string
		v    []float64
		n    int
	}{
		{"stage.x_min", c.Stage.XMin, nx},
		{"stage.x_max", c.Stage.XMax, nx},
		{"stage.u_min", c.Stage.UMin, nu},
		{"stage.u_max", c.Stage.UMax, nu},
	} {
		if b.v != nil && len(b.v) != b.n {
			return errors.Wrapf(ErrInvalidConfig, "%s has %d entries, want %d", b.name, len(b.v), b.n)
		}
	}

	switch c.Terminal.Kind {
	case TerminalOrigin, TerminalNone, "":
	case TerminalBox:
		if len(c.Terminal.XMin) != nx || len(c.Terminal.XMax) != nx {
			return errors.Wrapf(ErrInvalidConfig, "terminal box needs x_min and x_max of length %d", nx)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown terminal kind %q", c.Terminal.Kind)
	}

	switch c.Controller.Kind {
	case "", ControllerMPC, ControllerExplicit, ControllerLQR, ControllerPID, ControllerNone:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown controller %q", c.Controller.Kind)
	}

	if c.Explicit.Bound < 0 {
		return errors.Wrapf(ErrInvalidConfig, "explicit bound must be non-negative, got %g", c.Explicit.Bound)
	}
	if c.Simulation.Steps < 0 {
		return errors.Wrapf(ErrInvalidConfig, "simulation steps must be non-negative, got %d", c.Simulation.Steps)
	}
	if c.Simulation.X0 != nil && len(c.Simulation.X0) != nx {
		return errors.Wrapf(ErrInvalidConfig, "simulation.x0 has %d entries, want %d", len(c.Simulation.X0), nx)
	}
	return nil
}

// InitState returns the configured initial state, or the origin.
func (c *Config) InitState() []float64 {
	if c.Simulation.X0 != nil {
		return append([]float64(nil), c.Simulation.X0...)
	}
	return make([]float64, c.Nx())
}

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return errors.Wrapf(ErrInvalidConfig, "%s has %d rows, want %d", name, len(m), rows)
	}
	for i, row := range m {
		if len(row) != cols {
			return errors.Wrapf(ErrInvalidConfig, "%s row %d has %d entries, want %d", name, i, len(row), cols)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrInvalidConfig, "%s row %d is not finite", name, i)
			}
		}
	}
	return nil
}
