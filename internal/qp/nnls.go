// Package qp solves small dense convex quadratic programs
//
//	minimise ½xᵀHx + fᵀx  subject to  Ax ≤ b
//
// with H positive definite. The program is reduced to a least distance
// problem (LDP), which in turn is solved through non-negative least squares
// (NNLS), following Lawson and Hanson, "Solving Least Squares Problems",
// chapter 23. The active-set NNLS terminates finitely, so the solver has no
// iteration tuning beyond a safety cap.
package qp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInfeasible indicates Ax ≤ b has no solution.
	ErrInfeasible = errors.New("qp: constraints are infeasible")

	// ErrIncompatible is the LDP form of ErrInfeasible.
	ErrIncompatible = errors.New("qp: ldp constraints incompatible")

	// ErrNotPositiveDefinite indicates a Hessian without Cholesky factor.
	ErrNotPositiveDefinite = errors.New("qp: hessian is not positive definite")

	// ErrMaxIter indicates the NNLS safety cap was hit.
	ErrMaxIter = errors.New("qp: nnls exceeded iteration limit")
)

const eps = 2.220446049250313e-16

// NNLS solves min ‖E·x − f‖₂ subject to x ≥ 0 and returns x with the
// residual norm.
//
// Indices move between the zero set Z (x_j held at 0) and the passive set P
// (x_j free). The dual w = Eᵀ(f − E·x) selects the next index to free; when
// the least squares solution on P leaves the positive orthant, x is moved
// towards it until the first passive component hits zero.
func NNLS(e mat.Matrix, f []float64) ([]float64, float64, error) {
	m, n := e.Dims()
	if len(f) != m {
		panic(mat.ErrShape)
	}

	x := make([]float64, n)
	passive := make([]bool, n)
	w := make([]float64, n)

	tol := 10 * eps * mat.Norm(e, 1) * float64(max(m, n))
	maxIter := max(3*n, 100)
	iter := 0

	dual(e, f, x, w)
	for {
		t := -1
		for j := 0; j < n; j++ {
			if !passive[j] && w[j] > tol && (t < 0 || w[j] > w[t]) {
				t = j
			}
		}
		if t < 0 {
			break
		}
		passive[t] = true

		z, err := passiveSolve(e, f, passive)
		if err != nil {
			return nil, 0, err
		}
		if z[t] <= 0 {
			// Round-off made the freed index useless; skip it this round.
			passive[t] = false
			w[t] = 0
			continue
		}

		for {
			iter++
			if iter > maxIter {
				return x, residual(e, f, x), ErrMaxIter
			}

			feasible := true
			alpha := math.Inf(1)
			for j := 0; j < n; j++ {
				if passive[j] && z[j] <= 0 {
					feasible = false
					if a := x[j] / (x[j] - z[j]); a < alpha {
						alpha = a
					}
				}
			}
			if feasible {
				copy(x, z)
				break
			}

			for j := 0; j < n; j++ {
				x[j] += alpha * (z[j] - x[j])
				if passive[j] && x[j] <= tol {
					passive[j] = false
					x[j] = 0
				}
			}

			z, err = passiveSolve(e, f, passive)
			if err != nil {
				return nil, 0, err
			}
		}

		dual(e, f, x, w)
	}

	return x, residual(e, f, x), nil
}

// passiveSolve returns the least squares solution of E_P·z ≅ f with the
// entries outside P set to zero.
func passiveSolve(e mat.Matrix, f []float64, passive []bool) ([]float64, error) {
	m, n := e.Dims()
	var idx []int
	for j := 0; j < n; j++ {
		if passive[j] {
			idx = append(idx, j)
		}
	}
	z := make([]float64, n)
	if len(idx) == 0 {
		return z, nil
	}

	ep := mat.NewDense(m, len(idx), nil)
	for c, j := range idx {
		for i := 0; i < m; i++ {
			ep.Set(i, c, e.At(i, j))
		}
	}

	var sol mat.VecDense
	if err := sol.SolveVec(ep, mat.NewVecDense(m, append([]float64(nil), f...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("qp: nnls subproblem: %w", err)
		}
	}
	for c, j := range idx {
		z[j] = sol.AtVec(c)
	}
	return z, nil
}

func dual(e mat.Matrix, f, x, w []float64) {
	m, _ := e.Dims()
	r := mat.NewVecDense(m, nil)
	r.MulVec(e, mat.NewVecDense(len(x), x))
	r.SubVec(mat.NewVecDense(m, append([]float64(nil), f...)), r)
	wv := mat.NewVecDense(len(w), w)
	wv.MulVec(e.T(), r)
}

func residual(e mat.Matrix, f, x []float64) float64 {
	m, _ := e.Dims()
	r := mat.NewVecDense(m, nil)
	r.MulVec(e, mat.NewVecDense(len(x), x))
	d := make([]float64, m)
	floats.SubTo(d, r.RawVector().Data, f)
	return floats.Norm(d, 2)
}
