package qp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LDP solves the least distance problem min ‖x‖₂ subject to G·x ≥ h and
// returns x together with the multipliers of the m inequalities.
//
// With E = [G h]ᵀ, an (n+1)×m matrix, and f = [0 … 0 1]ᵀ, let u solve the
// NNLS problem E·u ≅ f with residual r = E·u − f. The constraints are
// compatible iff r ≠ 0, in which case
//
//	x = Gᵀu / (1 − hᵀu),   λ = u / (1 − hᵀu).
func LDP(g mat.Matrix, h []float64) ([]float64, []float64, error) {
	m, n := g.Dims()
	if len(h) != m {
		panic(mat.ErrShape)
	}
	x := make([]float64, n)
	if m == 0 {
		return x, nil, nil
	}

	e := mat.NewDense(n+1, m, nil)
	for j := 0; j < m; j++ {
		for i := 0; i < n; i++ {
			e.Set(i, j, g.At(j, i))
		}
		e.Set(n, j, h[j])
	}
	f := make([]float64, n+1)
	f[n] = 1

	u, rnorm, err := NNLS(e, f)
	if err != nil {
		return nil, nil, err
	}
	if rnorm <= 0 {
		return nil, nil, ErrIncompatible
	}
	fac := 1 - floats.Dot(h, u)
	if math.IsNaN(fac) || fac < eps {
		return nil, nil, ErrIncompatible
	}

	gu := mat.NewVecDense(n, x)
	gu.MulVec(g.T(), mat.NewVecDense(m, u))
	floats.Scale(1/fac, x)

	lambda := make([]float64, m)
	floats.ScaleTo(lambda, 1/fac, u)
	return x, lambda, nil
}
