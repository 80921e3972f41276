package dynamics

import (
	"math"

	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

type stepper interface {
	Nx() int
	Nu() int
}

// Plant adapts a system to sim.Dynamics.
type Plant struct {
	sys  stepper
	next func(x, u mat.Vector) (*mat.VecDense, bool)
}

// NewLinearPlant wraps a linear system for closed-loop simulation.
func NewLinearPlant(s *LinearSystem) *Plant {
	return &Plant{sys: s, next: func(x, u mat.Vector) (*mat.VecDense, bool) {
		return s.Next(x, u), true
	}}
}

// NewPWAPlant wraps a PWA system. Steps leaving every domain yield a NaN
// state, which the simulator reports as invalid.
func NewPWAPlant(s *PieceWiseAffineSystem) *Plant {
	return &Plant{sys: s, next: func(x, u mat.Vector) (*mat.VecDense, bool) {
		m := s.ModeOf(x, u, 1e-9)
		if m < 0 {
			return nil, false
		}
		return s.Affine[m].Next(x, u), true
	}}
}

func (p *Plant) StateDim() int   { return p.sys.Nx() }
func (p *Plant) ControlDim() int { return p.sys.Nu() }

func (p *Plant) Step(x sim.State, u sim.Control) sim.State {
	next, ok := p.next(mat.NewVecDense(len(x), x.Clone()), mat.NewVecDense(len(u), append([]float64(nil), u...)))
	out := make(sim.State, p.sys.Nx())
	if !ok {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	copy(out, next.RawVector().Data)
	return out
}
