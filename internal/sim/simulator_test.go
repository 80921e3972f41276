package sim

import (
	"context"
	"math"
	"testing"
)

// x(t+1) = 0.5·x(t) + u(t)
type testDynamics struct{}

func (t *testDynamics) Step(x State, u Control) State {
	return State{0.5*x[0] + u[0]}
}

func (t *testDynamics) StateDim() int   { return 1 }
func (t *testDynamics) ControlDim() int { return 1 }

type testController struct {
	// nil input from this step on
	failAt int
}

func (t *testController) Compute(x State, step int) Control {
	if t.failAt > 0 && step >= t.failAt {
		return nil
	}
	return Control{0}
}

type blowUp struct{}

func (b *blowUp) Step(x State, u Control) State { return State{math.Inf(1)} }
func (b *blowUp) StateDim() int                 { return 1 }
func (b *blowUp) ControlDim() int               { return 1 }

func TestSimulatorRun(t *testing.T) {
	sim := New(&testDynamics{}, &testController{})

	result, err := sim.Run(context.Background(), State{1.0}, Config{Steps: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}
	if len(result.Controls) != 10 {
		t.Errorf("expected 10 controls, got %d", len(result.Controls))
	}
	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}

	finalState := result.States[len(result.States)-1][0]
	expected := math.Pow(0.5, 10)
	if math.Abs(finalState-expected) > 1e-12 {
		t.Errorf("expected final state %.6f, got %.6f", expected, finalState)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(&testDynamics{}, &testController{})

	tests := []struct {
		name string
		x0   State
		cfg  Config
	}{
		{"zero steps", State{1}, Config{Steps: 0}},
		{"negative steps", State{1}, Config{Steps: -3}},
		{"wrong state size", State{1, 2}, Config{Steps: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.x0, tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSimulatorStopsWithoutControl(t *testing.T) {
	sim := New(&testDynamics{}, &testController{failAt: 3})

	result, err := sim.Run(context.Background(), State{1.0}, Config{Steps: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.StepsTaken != 3 {
		t.Errorf("expected 3 steps, got %d", result.StepsTaken)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if se, ok := result.Errors[0].(SimError); !ok || se.Step != 3 {
		t.Errorf("unexpected error %v", result.Errors[0])
	}
}

func TestSimulatorInvalidState(t *testing.T) {
	sim := New(&blowUp{}, &testController{})

	result, err := sim.Run(context.Background(), State{1.0}, DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.StepsTaken != 0 || len(result.Errors) != 1 {
		t.Errorf("expected immediate stop, got %d steps and %v", result.StepsTaken, result.Errors)
	}
}

func TestSimulatorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&testDynamics{}, &testController{}).Run(ctx, State{1}, Config{Steps: 5})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x State, u Control, step int) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

type testObserver struct {
	steps []int
}

func (o *testObserver) OnStep(x State, u Control, step int) {
	o.steps = append(o.steps, step)
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(&testDynamics{}, &testController{})

	metric := &testMetric{}
	obs := &testObserver{}
	sim.AddMetric(metric)
	sim.AddObserver(obs)

	result, err := sim.Run(context.Background(), State{1.0}, Config{Steps: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
	if len(obs.steps) != 10 || obs.steps[9] != 9 {
		t.Errorf("observer saw steps %v", obs.steps)
	}
}

func TestRunWithCallback(t *testing.T) {
	sim := New(&testDynamics{}, &testController{})

	var seen int
	err := sim.RunWithCallback(context.Background(), State{1}, Config{Steps: 10}, func(x State, u Control, step int) bool {
		seen++
		return step < 4
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if seen != 5 {
		t.Errorf("expected 5 callbacks, got %d", seen)
	}

	err = New(&testDynamics{}, &testController{failAt: 2}).RunWithCallback(context.Background(), State{1}, Config{Steps: 10},
		func(State, Control, int) bool { return true })
	if _, ok := err.(SimError); !ok {
		t.Errorf("expected SimError, got %v", err)
	}
}

func TestEnsemble(t *testing.T) {
	e := NewEnsemble(&testDynamics{}, func() Controller { return &testController{} }, func() []Metric {
		return []Metric{&testMetric{}}
	}, 2)

	x0s := []State{{1}, {2}, {4}, {8}}
	results, err := e.Run(context.Background(), x0s, Config{Steps: 3})
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(results) != len(x0s) {
		t.Fatalf("expected %d results, got %d", len(x0s), len(results))
	}
	for i, res := range results {
		want := x0s[i][0] / 8
		if got := res.States[3][0]; math.Abs(got-want) > 1e-12 {
			t.Errorf("run %d: final state %f, want %f", i, got, want)
		}
		if _, ok := res.Metrics["test"]; !ok {
			t.Errorf("run %d: metric missing", i)
		}
	}
}
