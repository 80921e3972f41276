package dynamics

import (
	"github.com/san-kum/pwampc/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

type AffineSystem struct {
	A *mat.Dense
	B *mat.Dense
	C *mat.VecDense
}

func NewAffineSystem(a, b mat.Matrix, c mat.Vector) (*AffineSystem, error) {
	lin, err := NewLinearSystem(a, b)
	if err != nil {
		return nil, err
	}
	if err := linalg.CheckLen("dynamics.NewAffineSystem", "c", c, lin.Nx()); err != nil {
		return nil, err
	}
	return &AffineSystem{A: lin.A, B: lin.B, C: mat.VecDenseCopyOf(c)}, nil
}

func (s *AffineSystem) Nx() int {
	r, _ := s.A.Dims()
	return r
}

func (s *AffineSystem) Nu() int {
	_, c := s.B.Dims()
	return c
}

// Next returns A·x + B·u + c.
func (s *AffineSystem) Next(x, u mat.Vector) *mat.VecDense {
	var ax, bu mat.VecDense
	ax.MulVec(s.A, x)
	bu.MulVec(s.B, u)
	ax.AddVec(&ax, &bu)
	ax.AddVec(&ax, s.C)
	return &ax
}

func (s *AffineSystem) Simulate(x0 mat.Vector, us []mat.Vector) []*mat.VecDense {
	xs := make([]*mat.VecDense, 0, len(us)+1)
	xs = append(xs, mat.VecDenseCopyOf(x0))
	for _, u := range us {
		xs = append(xs, s.Next(xs[len(xs)-1], u))
	}
	return xs
}
