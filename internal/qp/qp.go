package qp

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ActiveTol is the multiplier threshold above which a constraint is
// reported active.
const ActiveTol = 1e-9

// Problem is min ½xᵀHx + fᵀx s.t. A·x ≤ B. A and B may be nil.
type Problem struct {
	H mat.Matrix
	F mat.Vector
	A mat.Matrix
	B mat.Vector
}

type Result struct {
	X           *mat.VecDense
	Obj         float64
	Multipliers []float64
	Active      []int
}

// Solve factors H = UᵀU and substitutes z = U·x + U⁻ᵀf, which turns the
// objective into ½‖z‖² up to a constant. The constraints become
// A·U⁻¹·z ≤ b − A·x₀ with x₀ = −H⁻¹f, an LDP in z. The LDP multipliers are
// the multipliers of A·x ≤ b.
func Solve(p *Problem) (*Result, error) {
	n, c := p.H.Dims()
	if n != c || p.F.Len() != n {
		panic(mat.ErrShape)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(p.H.At(i, j)+p.H.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, ErrNotPositiveDefinite
	}

	var x0 mat.VecDense
	if err := chol.SolveVecTo(&x0, p.F); err != nil {
		return nil, err
	}
	x0.ScaleVec(-1, &x0)

	m := 0
	if p.A != nil {
		m, _ = p.A.Dims()
	}
	if m == 0 {
		return finish(p, &x0, nil), nil
	}

	var l, u mat.TriDense
	chol.LTo(&l)
	chol.UTo(&u)

	// Mᵀ = L⁻¹Aᵀ so that M = A·U⁻¹.
	var mt mat.Dense
	if err := mt.Solve(&l, p.A.T()); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}

	var slack mat.VecDense
	slack.MulVec(p.A, &x0)
	slack.SubVec(&slack, p.B)

	var g mat.Dense
	g.Scale(-1, mt.T())

	z, lambda, err := LDP(&g, slack.RawVector().Data)
	if errors.Is(err, ErrIncompatible) {
		return nil, ErrInfeasible
	}
	if err != nil {
		return nil, err
	}

	var x mat.VecDense
	if err := x.SolveVec(&u, mat.NewVecDense(n, z)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	x.AddVec(&x, &x0)

	return finish(p, &x, lambda), nil
}

func finish(p *Problem, x *mat.VecDense, lambda []float64) *Result {
	var hx mat.VecDense
	hx.MulVec(p.H, x)
	obj := 0.5*mat.Dot(x, &hx) + mat.Dot(p.F, x)

	var active []int
	for i, v := range lambda {
		if v > ActiveTol {
			active = append(active, i)
		}
	}
	return &Result{X: x, Obj: obj, Multipliers: lambda, Active: active}
}
