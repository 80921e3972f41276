package sim

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

type Control []float64

// Dynamics advances a discrete-time plant by one sample.
type Dynamics interface {
	Step(x State, u Control) State
	StateDim() int
	ControlDim() int
}

// Controller maps the measured state at sample t to an input. A nil Control
// means no admissible action exists at x.
type Controller interface {
	Compute(x State, t int) Control
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t int)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t int)
}

type Config struct {
	Steps         int
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Steps:         30,
		ValidateState: true,
	}
}

type Result struct {
	States     []State
	Controls   []Control
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

type SimError struct {
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Message)
}
