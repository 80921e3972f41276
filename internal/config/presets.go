package config

var Presets = map[string]map[string]*Config{
	"scalar": {
		"unit": {
			Name:    "scalar/unit",
			System:  SystemConfig{A: [][]float64{{1}}, B: [][]float64{{1}}},
			Horizon: 2,
			Cost: CostConfig{
				Q: [][]float64{{1}}, R: [][]float64{{1}}, P: [][]float64{{1}},
				TerminalCost: TerminalCostGiven,
			},
			Stage: StageConfig{
				XMin: []float64{-10}, XMax: []float64{10},
				UMin: []float64{-1}, UMax: []float64{1},
			},
			Terminal:   TerminalConfig{Kind: TerminalOrigin},
			Controller: ControllerConfig{Kind: ControllerMPC},
			Explicit:   ExplicitConfig{Bound: 20},
			Simulation: SimulationConfig{Steps: 10, X0: []float64{1.5}},
		},
		"wide": {
			Name:    "scalar/wide",
			System:  SystemConfig{A: [][]float64{{1}}, B: [][]float64{{1}}},
			Horizon: 2,
			Cost: CostConfig{
				Q: [][]float64{{1}}, R: [][]float64{{1}}, P: [][]float64{{1}},
				TerminalCost: TerminalCostGiven,
			},
			Stage: StageConfig{
				XMin: []float64{-10}, XMax: []float64{10},
				UMin: []float64{-3}, UMax: []float64{3},
			},
			Terminal:   TerminalConfig{Kind: TerminalOrigin},
			Controller: ControllerConfig{Kind: ControllerMPC},
			Explicit:   ExplicitConfig{Bound: 20},
			Simulation: SimulationConfig{Steps: 10, X0: []float64{5}},
		},
		"unstable": {
			Name:    "scalar/unstable",
			System:  SystemConfig{A: [][]float64{{1.2}}, B: [][]float64{{1}}},
			Horizon: 5,
			Cost: CostConfig{
				Q: [][]float64{{1}}, R: [][]float64{{0.5}},
				TerminalCost: TerminalCostDARE,
			},
			Stage: StageConfig{
				XMin: []float64{-10}, XMax: []float64{10},
				UMin: []float64{-1}, UMax: []float64{1},
			},
			Terminal:   TerminalConfig{Kind: TerminalBox, XMin: []float64{-0.5}, XMax: []float64{0.5}},
			Controller: ControllerConfig{Kind: ControllerMPC},
			Explicit:   ExplicitConfig{Bound: 20},
			Simulation: SimulationConfig{Steps: 25, X0: []float64{3}},
		},
	},
	"double_integrator": {
		"origin": {
			Name:    "double_integrator/origin",
			System:  SystemConfig{A: [][]float64{{1, 1}, {0, 1}}, B: [][]float64{{0.5}, {1}}},
			Horizon: 5,
			Cost: CostConfig{
				Q: [][]float64{{1, 0}, {0, 1}}, R: [][]float64{{1}},
				TerminalCost: TerminalCostDARE,
			},
			Stage: StageConfig{
				XMin: []float64{-10, -5}, XMax: []float64{10, 5},
				UMin: []float64{-1}, UMax: []float64{1},
			},
			Terminal:   TerminalConfig{Kind: TerminalOrigin},
			Controller: ControllerConfig{Kind: ControllerMPC},
			Explicit:   ExplicitConfig{Bound: 20},
			Simulation: SimulationConfig{Steps: 30, X0: []float64{3, 0}},
		},
		"box": {
			Name:    "double_integrator/box",
			System:  SystemConfig{A: [][]float64{{1, 1}, {0, 1}}, B: [][]float64{{0.5}, {1}}},
			Horizon: 4,
			Cost: CostConfig{
				Q: [][]float64{{1, 0}, {0, 1}}, R: [][]float64{{0.1}},
				TerminalCost: TerminalCostDARE,
			},
			Stage: StageConfig{
				XMin: []float64{-10, -5}, XMax: []float64{10, 5},
				UMin: []float64{-1}, UMax: []float64{1},
			},
			Terminal:   TerminalConfig{Kind: TerminalBox, XMin: []float64{-1, -1}, XMax: []float64{1, 1}},
			Controller: ControllerConfig{Kind: ControllerExplicit},
			Explicit:   ExplicitConfig{Bound: 10},
			Simulation: SimulationConfig{Steps: 30, X0: []float64{-4, 1}},
		},
		"sampled": {
			Name: "double_integrator/sampled",
			System: SystemConfig{
				A: [][]float64{{0, 1}, {0, 0}}, B: [][]float64{{0}, {1}},
				Continuous: true, Dt: 0.2,
			},
			Horizon: 8,
			Cost: CostConfig{
				Q: [][]float64{{1, 0}, {0, 0.1}}, R: [][]float64{{0.1}},
				TerminalCost: TerminalCostDARE,
			},
			Stage: StageConfig{
				XMin: []float64{-5, -2}, XMax: []float64{5, 2},
				UMin: []float64{-2}, UMax: []float64{2},
			},
			Terminal:   TerminalConfig{Kind: TerminalNone},
			Controller: ControllerConfig{Kind: ControllerMPC},
			Explicit:   ExplicitConfig{Bound: 10},
			Simulation: SimulationConfig{Steps: 60, X0: []float64{2, 0}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(system, preset string) *Config {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	cfg, ok := systemPresets[preset]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets(system string) []string {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(systemPresets))
	for name := range systemPresets {
		names = append(names, name)
	}
	return names
}

// ListSystems returns the systems that have presets.
func ListSystems() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
