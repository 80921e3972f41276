package dynamics

import (
	"fmt"
	"math"

	"github.com/san-kum/pwampc/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

type LinearSystem struct {
	A *mat.Dense
	B *mat.Dense
}

func NewLinearSystem(a, b mat.Matrix) (*LinearSystem, error) {
	if a == nil || b == nil {
		return nil, linalg.Mismatch("dynamics.NewLinearSystem", "A, B", "non-nil", "nil")
	}
	nx, _ := a.Dims()
	if err := linalg.CheckShape("dynamics.NewLinearSystem", "A", a, nx, nx); err != nil {
		return nil, err
	}
	if err := linalg.CheckShape("dynamics.NewLinearSystem", "B", b, nx, -1); err != nil {
		return nil, err
	}
	return &LinearSystem{A: mat.DenseCopyOf(a), B: mat.DenseCopyOf(b)}, nil
}

// FromContinuous discretises dx/dt = A·x + B·u with a zero-order hold of
// period h, using the exponential of the augmented matrix [[A, B], [0, 0]]·h.
func FromContinuous(a, b mat.Matrix, h float64) (*LinearSystem, error) {
	if h <= 0 {
		return nil, fmt.Errorf("dynamics: sampling period must be positive, got %g", h)
	}
	sys, err := NewLinearSystem(a, b)
	if err != nil {
		return nil, err
	}
	nx, nu := sys.Nx(), sys.Nu()

	m := mat.NewDense(nx+nu, nx+nu, nil)
	for i := 0; i < nx; i++ {
		for j := 0; j < nx; j++ {
			m.Set(i, j, sys.A.At(i, j)*h)
		}
		for j := 0; j < nu; j++ {
			m.Set(i, nx+j, sys.B.At(i, j)*h)
		}
	}
	var e mat.Dense
	e.Exp(m)

	return &LinearSystem{
		A: mat.DenseCopyOf(e.Slice(0, nx, 0, nx)),
		B: mat.DenseCopyOf(e.Slice(0, nx, nx, nx+nu)),
	}, nil
}

func (s *LinearSystem) Nx() int {
	r, _ := s.A.Dims()
	return r
}

func (s *LinearSystem) Nu() int {
	_, c := s.B.Dims()
	return c
}

// Next returns A·x + B·u.
func (s *LinearSystem) Next(x, u mat.Vector) *mat.VecDense {
	var ax, bu mat.VecDense
	ax.MulVec(s.A, x)
	bu.MulVec(s.B, u)
	ax.AddVec(&ax, &bu)
	return &ax
}

// Simulate returns x(0..len(us)).
func (s *LinearSystem) Simulate(x0 mat.Vector, us []mat.Vector) []*mat.VecDense {
	xs := make([]*mat.VecDense, 0, len(us)+1)
	xs = append(xs, mat.VecDenseCopyOf(x0))
	for _, u := range us {
		xs = append(xs, s.Next(xs[len(xs)-1], u))
	}
	return xs
}

// Affine returns the system as an affine one with zero offset.
func (s *LinearSystem) Affine() *AffineSystem {
	return &AffineSystem{
		A: mat.DenseCopyOf(s.A),
		B: mat.DenseCopyOf(s.B),
		C: mat.NewVecDense(s.Nx(), nil),
	}
}

// SolveDARE solves the discrete algebraic Riccati equation
//
//	P = Q + A'PA − A'PB (R + B'PB)⁻¹ B'PA
//
// by fixed-point iteration and returns P together with the LQR gain K such
// that u = K·x.
func (s *LinearSystem) SolveDARE(q, r mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	nx, nu := s.Nx(), s.Nu()
	if err := linalg.CheckShape("dynamics.SolveDARE", "Q", q, nx, nx); err != nil {
		return nil, nil, err
	}
	if err := linalg.CheckShape("dynamics.SolveDARE", "R", r, nu, nu); err != nil {
		return nil, nil, err
	}

	const (
		maxIter = 10000
		tol     = 1e-11
	)

	p := mat.DenseCopyOf(q)
	var gain mat.Dense
	for iter := 0; iter < maxIter; iter++ {
		var pa, pb, btpb, btpa, atpa, atpb mat.Dense
		pa.Mul(p, s.A)
		pb.Mul(p, s.B)
		btpb.Mul(s.B.T(), &pb)
		btpb.Add(&btpb, r)
		btpa.Mul(s.B.T(), &pa)

		if err := gain.Solve(&btpb, &btpa); err != nil {
			return nil, nil, fmt.Errorf("dynamics: DARE gain: %w", err)
		}

		atpa.Mul(s.A.T(), &pa)
		atpb.Mul(s.A.T(), &pb)

		var corr, next mat.Dense
		corr.Mul(&atpb, &gain)
		next.Sub(&atpa, &corr)
		next.Add(&next, q)
		symmetrize(&next)

		var diff mat.Dense
		diff.Sub(&next, p)
		delta := mat.Norm(&diff, 2)
		p = &next
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			break
		}
		if delta <= tol*math.Max(1, mat.Norm(p, 2)) {
			gain.Scale(-1, &gain)
			return p, &gain, nil
		}
	}
	return nil, nil, ErrDAREDiverged
}

func symmetrize(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}
