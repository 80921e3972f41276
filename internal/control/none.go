package control

import "github.com/san-kum/pwampc/internal/sim"

type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(x sim.State, t int) sim.Control {
	return make(sim.Control, n.dim)
}
