package mpqp

import (
	"github.com/san-kum/pwampc/internal/geometry"
	"gonum.org/v1/gonum/mat"
)

// CriticalRegion is a polyhedron of parameters sharing one optimal active
// set. On it the optimiser is u = K·x + k and the optimal cost is
// ½x'Vxx x + Vx'x + ½V0.
type CriticalRegion struct {
	ActiveSet []int
	Region    *geometry.Polyhedron
	K         *mat.Dense
	Offset    *mat.VecDense
	Vxx       *mat.Dense
	Vx        *mat.VecDense
	V0        float64
}

func (r *CriticalRegion) Contains(x mat.Vector, tol float64) bool {
	return r.Region.Contains(x, tol)
}

// U evaluates the affine optimiser. It does not check membership.
func (r *CriticalRegion) U(x mat.Vector) *mat.VecDense {
	var u mat.VecDense
	u.MulVec(r.K, x)
	u.AddVec(&u, r.Offset)
	return &u
}

// Cost evaluates the quadratic value function. It does not check membership.
func (r *CriticalRegion) Cost(x mat.Vector) float64 {
	var t mat.VecDense
	t.MulVec(r.Vxx, x)
	return 0.5*mat.Dot(x, &t) + mat.Dot(r.Vx, x) + 0.5*r.V0
}

// ExplicitSolution is the piecewise-affine optimiser of a Program over the
// parameter box it was computed for.
type ExplicitSolution struct {
	program *Program
	regions []*CriticalRegion
	tol     float64
	bound   float64
}

// NewExplicitSolution assembles a solution from precomputed regions, e.g.
// regions loaded from disk. Only the bound and tolerance options apply.
func NewExplicitSolution(p *Program, regions []*CriticalRegion, opts ...Option) *ExplicitSolution {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &ExplicitSolution{program: p, regions: regions, tol: o.tol, bound: o.bound}
}

func (s *ExplicitSolution) Program() *Program { return s.program }

func (s *ExplicitSolution) Regions() []*CriticalRegion { return s.regions }

// Bound is the parameter box half-width used during enumeration.
func (s *ExplicitSolution) Bound() float64 { return s.bound }

// Locate returns the first region containing x, or nil.
func (s *ExplicitSolution) Locate(x mat.Vector) *CriticalRegion {
	if x.Len() != s.program.Nx() {
		return nil
	}
	for _, r := range s.regions {
		if r.Contains(x, s.tol) {
			return r
		}
	}
	return nil
}

// U returns the optimiser at x, or nil when x is infeasible or outside the
// parameter box.
func (s *ExplicitSolution) U(x mat.Vector) *mat.VecDense {
	r := s.Locate(x)
	if r == nil {
		return nil
	}
	return r.U(x)
}

// V returns the optimal cost at x and whether a region covers x.
func (s *ExplicitSolution) V(x mat.Vector) (float64, bool) {
	r := s.Locate(x)
	if r == nil {
		return 0, false
	}
	return r.Cost(x), true
}
