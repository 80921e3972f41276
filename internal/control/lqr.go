package control

import (
	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// LQR applies u = -K·(x - Target).
type LQR struct {
	K      *mat.Dense
	Target sim.State
}

func NewLQR(k mat.Matrix, target sim.State) *LQR {
	return &LQR{K: mat.DenseCopyOf(k), Target: target}
}

// NewLQRFromSystem computes the infinite-horizon gain of sys for weights q
// and r. The Riccati solution is returned as well; it is the usual choice of
// terminal weight for MPC.
func NewLQRFromSystem(sys *dynamics.LinearSystem, q, r mat.Matrix) (*LQR, *mat.Dense, error) {
	p, k, err := sys.SolveDARE(q, r)
	if err != nil {
		return nil, nil, err
	}
	k.Scale(-1, k)
	return NewLQR(k, make(sim.State, sys.Nx())), p, nil
}

func (l *LQR) Compute(x sim.State, t int) sim.Control {
	rows, cols := l.K.Dims()
	u := make(sim.Control, rows)
	for i := range u {
		for j := 0; j < cols && j < len(x); j++ {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			u[i] -= l.K.At(i, j) * (x[j] - target)
		}
	}
	return u
}
