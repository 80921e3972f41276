package config

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Name != "scalar" {
		t.Errorf("expected name scalar, got %s", cfg.Name)
	}
	if cfg.Horizon <= 0 {
		t.Error("horizon should be positive")
	}
	if cfg.Simulation.Steps <= 0 {
		t.Error("steps should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("scalar", "unit")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Stage.UMax[0] != 1 {
		t.Errorf("expected u_max 1, got %f", cfg.Stage.UMax[0])
	}

	cfg.Horizon = 99
	if Presets["scalar"]["unit"].Horizon == 99 {
		t.Error("GetPreset should return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("scalar", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "unit")
	if cfg != nil {
		t.Error("expected nil for nonexistent system")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("double_integrator")
	sort.Strings(presets)
	if len(presets) != 3 || presets[0] != "box" {
		t.Errorf("unexpected presets %v", presets)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent system")
	}

	if len(ListSystems()) != len(Presets) {
		t.Error("ListSystems should list every system")
	}
}

func TestAllPresetsBuild(t *testing.T) {
	for system, variants := range Presets {
		for name, cfg := range variants {
			t.Run(system+"/"+name, func(t *testing.T) {
				p, err := cfg.Build()
				if err != nil {
					t.Fatalf("build failed: %v", err)
				}
				if len(p.X0) != cfg.Nx() {
					t.Errorf("x0 has %d entries, want %d", len(p.X0), cfg.Nx())
				}
				if p.Stage.Dim() != cfg.Nx()+cfg.Nu() {
					t.Errorf("stage dim %d, want %d", p.Stage.Dim(), cfg.Nx()+cfg.Nu())
				}
				if p.Terminal.Dim() != cfg.Nx() {
					t.Errorf("terminal dim %d, want %d", p.Terminal.Dim(), cfg.Nx())
				}
				if _, err := p.NewMPC(); err != nil {
					t.Errorf("controller failed: %v", err)
				}
			})
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty system", func(c *Config) { c.System.A = nil }},
		{"non-square A", func(c *Config) { c.System.A = [][]float64{{1, 2}} }},
		{"B rows", func(c *Config) { c.System.B = [][]float64{{1}, {1}} }},
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"continuous without dt", func(c *Config) { c.System.Continuous = true }},
		{"Q shape", func(c *Config) { c.Cost.Q = [][]float64{{1, 0}, {0, 1}} }},
		{"given P missing", func(c *Config) { c.Cost.TerminalCost = TerminalCostGiven }},
		{"unknown terminal cost", func(c *Config) { c.Cost.TerminalCost = "lyapunov" }},
		{"stage bound length", func(c *Config) { c.Stage.UMin = []float64{-1, -1} }},
		{"terminal box", func(c *Config) { c.Terminal.Kind = TerminalBox }},
		{"unknown terminal", func(c *Config) { c.Terminal.Kind = "ellipsoid" }},
		{"unknown controller", func(c *Config) { c.Controller.Kind = "fuzzy" }},
		{"x0 length", func(c *Config) { c.Simulation.X0 = []float64{1, 2} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if errors.Cause(err) != ErrInvalidConfig {
				t.Errorf("expected ErrInvalidConfig cause, got %v", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "problem.yaml")
	cfg := GetPreset("double_integrator", "box")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Name != cfg.Name || loaded.Horizon != cfg.Horizon {
		t.Errorf("loaded %s/%d, want %s/%d", loaded.Name, loaded.Horizon, cfg.Name, cfg.Horizon)
	}
	if loaded.Terminal.XMax[1] != 1 {
		t.Errorf("terminal bound lost: %v", loaded.Terminal.XMax)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildTerminalCost(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// DARE of x+ = x + u with Q = R = 1 is the golden ratio.
	if got := p.P.At(0, 0); got < 1.618 || got > 1.6181 {
		t.Errorf("expected golden ratio terminal cost, got %f", got)
	}
	if p.Terminal.Rows() != 2 {
		t.Errorf("terminal kind none should reuse the state box, got %d rows", p.Terminal.Rows())
	}
}

func TestBuildNeedsBoundedTerminal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stage.XMin, cfg.Stage.XMax = nil, nil
	if _, err := cfg.Build(); err == nil {
		t.Error("expected error for unbounded terminal set")
	}

	cfg.Terminal.Kind = TerminalOrigin
	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !p.Terminal.Contains(mat.NewVecDense(1, []float64{0}), 0) {
		t.Error("origin terminal set should contain 0")
	}
	if _, err := p.NewMPC(); err != nil {
		t.Errorf("controller failed: %v", err)
	}
}
