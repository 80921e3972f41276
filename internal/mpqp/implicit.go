package mpqp

import (
	"errors"
	"fmt"

	"github.com/san-kum/pwampc/internal/linalg"
	"github.com/san-kum/pwampc/internal/qp"
	"gonum.org/v1/gonum/mat"
)

// Solution is the optimiser of the program at one parameter value.
type Solution struct {
	Argmin      *mat.VecDense
	Min         float64
	ActiveSet   []int
	Multipliers []float64
}

// ImplicitSolveFixedPoint solves the QP obtained by fixing the parameter to
// x. It returns nil, nil when no u satisfies the constraints at x.
func (p *Program) ImplicitSolveFixedPoint(x mat.Vector) (*Solution, error) {
	if err := linalg.CheckLen("mpqp.ImplicitSolveFixedPoint", "x", x, p.Nx()); err != nil {
		return nil, err
	}

	var f mat.VecDense
	f.MulVec(p.Hux, x)
	f.AddVec(&f, p.Fu)

	res, err := qp.Solve(&qp.Problem{H: p.Huu, F: &f, A: p.Au, B: p.rhs(x)})
	if errors.Is(err, qp.ErrInfeasible) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mpqp: implicit solve: %w", err)
	}

	return &Solution{
		Argmin:      res.X,
		Min:         p.Cost(res.X, x),
		ActiveSet:   res.Active,
		Multipliers: res.Multipliers,
	}, nil
}
