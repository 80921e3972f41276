package dynamics

import (
	"fmt"

	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// PieceWiseAffineSystem switches between affine modes; mode i is active when
// [x; u] lies in Domains[i].
type PieceWiseAffineSystem struct {
	Affine  []*AffineSystem
	Domains []*geometry.Polyhedron
	nx, nu  int
}

func NewPieceWiseAffineSystem(affine []*AffineSystem, domains []*geometry.Polyhedron) (*PieceWiseAffineSystem, error) {
	const op = "dynamics.NewPieceWiseAffineSystem"
	if len(affine) == 0 {
		return nil, fmt.Errorf("%s: no modes", op)
	}
	if len(affine) != len(domains) {
		return nil, linalg.Mismatch(op, "domains",
			fmt.Sprintf("%d entries", len(affine)), fmt.Sprintf("%d entries", len(domains)))
	}

	nx, nu := affine[0].Nx(), affine[0].Nu()
	for i, s := range affine {
		if s.Nx() != nx || s.Nu() != nu {
			return nil, linalg.Mismatch(op, fmt.Sprintf("mode %d", i),
				fmt.Sprintf("nx=%d nu=%d", nx, nu), fmt.Sprintf("nx=%d nu=%d", s.Nx(), s.Nu()))
		}
		if domains[i] == nil || domains[i].Dim() != nx+nu {
			got := "nil"
			if domains[i] != nil {
				got = fmt.Sprintf("%d columns", domains[i].Dim())
			}
			return nil, linalg.Mismatch(op, fmt.Sprintf("domain %d", i), fmt.Sprintf("%d columns", nx+nu), got)
		}
	}

	return &PieceWiseAffineSystem{Affine: affine, Domains: domains, nx: nx, nu: nu}, nil
}

func (s *PieceWiseAffineSystem) Nx() int       { return s.nx }
func (s *PieceWiseAffineSystem) Nu() int       { return s.nu }
func (s *PieceWiseAffineSystem) NumModes() int { return len(s.Affine) }

// Domain returns the [x; u] domain of a mode.
func (s *PieceWiseAffineSystem) Domain(mode int) (*geometry.Polyhedron, error) {
	if mode < 0 || mode >= len(s.Domains) {
		return nil, fmt.Errorf("%w: %d of %d", ErrUnknownMode, mode, len(s.Domains))
	}
	return s.Domains[mode], nil
}

// Condense builds Ā, B̄ and c̄ of the trajectory [x(0); ...; x(N)] for the
// given mode sequence. Block row t+1 is obtained from block row t through
// the dynamics of mode z(t).
func (s *PieceWiseAffineSystem) Condense(modes []int) (aBar, bBar *mat.Dense, cBar *mat.VecDense, err error) {
	n := len(modes)
	if n == 0 {
		return nil, nil, nil, ErrEmptyModeSequence
	}
	for t, m := range modes {
		if m < 0 || m >= len(s.Affine) {
			return nil, nil, nil, fmt.Errorf("%w: stage %d selects mode %d of %d", ErrUnknownMode, t, m, len(s.Affine))
		}
	}

	nx, nu := s.nx, s.nu
	aBar = mat.NewDense((n+1)*nx, nx, nil)
	bBar = mat.NewDense((n+1)*nx, n*nu, nil)
	cBar = mat.NewVecDense((n+1)*nx, nil)

	aBar.Slice(0, nx, 0, nx).(*mat.Dense).Copy(linalg.Identity(nx))

	for t, m := range modes {
		mode := s.Affine[m]
		r0, r1 := t*nx, (t+1)*nx

		var aRow mat.Dense
		aRow.Mul(mode.A, aBar.Slice(r0, r1, 0, nx))
		aBar.Slice(r1, r1+nx, 0, nx).(*mat.Dense).Copy(&aRow)

		if t > 0 {
			var bRow mat.Dense
			bRow.Mul(mode.A, bBar.Slice(r0, r1, 0, t*nu))
			bBar.Slice(r1, r1+nx, 0, t*nu).(*mat.Dense).Copy(&bRow)
		}
		bBar.Slice(r1, r1+nx, t*nu, (t+1)*nu).(*mat.Dense).Copy(mode.B)

		var cRow mat.VecDense
		cRow.MulVec(mode.A, cBar.SliceVec(r0, r1))
		cRow.AddVec(&cRow, mode.C)
		cBar.SliceVec(r1, r1+nx).(*mat.VecDense).CopyVec(&cRow)
	}

	return aBar, bBar, cBar, nil
}

// ModeOf returns the first mode whose domain contains [x; u], or -1.
func (s *PieceWiseAffineSystem) ModeOf(x, u mat.Vector, tol float64) int {
	xu := linalg.StackVec(x, u)
	for i, d := range s.Domains {
		if d.Contains(xu, tol) {
			return i
		}
	}
	return -1
}

// Simulate applies us from x0 and returns the states x(0..N) along with the
// mode realised at each step.
func (s *PieceWiseAffineSystem) Simulate(x0 mat.Vector, us []mat.Vector) ([]*mat.VecDense, []int, error) {
	xs := make([]*mat.VecDense, 0, len(us)+1)
	modes := make([]int, 0, len(us))
	xs = append(xs, mat.VecDenseCopyOf(x0))
	for t, u := range us {
		x := xs[len(xs)-1]
		m := s.ModeOf(x, u, 1e-9)
		if m < 0 {
			return xs, modes, fmt.Errorf("%w at step %d", ErrOutsideDomains, t)
		}
		modes = append(modes, m)
		xs = append(xs, s.Affine[m].Next(x, u))
	}
	return xs, modes, nil
}
