// Package geometry implements H-representation polyhedra {v : A·v <= b}.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/pwampc/internal/linalg"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

var (
	// ErrNoConstraints is returned when a constructor would produce a
	// polyhedron without any inequality.
	ErrNoConstraints = errors.New("geometry: polyhedron has no constraints")

	// ErrBadBounds indicates a lower bound above its upper bound.
	ErrBadBounds = errors.New("geometry: lower bound exceeds upper bound")
)

// MaxRadius caps Chebyshev radii so that unbounded sets give a finite LP.
const MaxRadius = 1e6

// Polyhedron is the set {v : A·v <= b}. It is immutable once built; the
// matrices returned by A and B must not be modified.
type Polyhedron struct {
	a *mat.Dense
	b *mat.VecDense
}

// NewPolyhedron copies a and b into a new polyhedron.
func NewPolyhedron(a mat.Matrix, b mat.Vector) (*Polyhedron, error) {
	if a == nil || b == nil {
		return nil, ErrNoConstraints
	}
	r, _ := a.Dims()
	if err := linalg.CheckLen("geometry.NewPolyhedron", "b", b, r); err != nil {
		return nil, err
	}
	return &Polyhedron{
		a: mat.DenseCopyOf(a),
		b: mat.VecDenseCopyOf(b),
	}, nil
}

// FromBounds builds the box lower <= v <= upper. Infinite bounds add no row,
// which lets a [x; u] domain constrain only some of its coordinates.
func FromBounds(lower, upper []float64) (*Polyhedron, error) {
	if len(lower) != len(upper) {
		return nil, linalg.Mismatch("geometry.FromBounds", "upper",
			fmt.Sprintf("%d", len(lower)), fmt.Sprintf("%d", len(upper)))
	}
	n := len(lower)
	var rows [][]float64
	var rhs []float64
	for i := 0; i < n; i++ {
		if lower[i] > upper[i] {
			return nil, fmt.Errorf("%w: coordinate %d (%g > %g)", ErrBadBounds, i, lower[i], upper[i])
		}
		if !math.IsInf(upper[i], 1) {
			row := make([]float64, n)
			row[i] = 1
			rows = append(rows, row)
			rhs = append(rhs, upper[i])
		}
		if !math.IsInf(lower[i], -1) {
			row := make([]float64, n)
			row[i] = -1
			rows = append(rows, row)
			rhs = append(rhs, -lower[i])
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoConstraints
	}
	a := mat.NewDense(len(rows), n, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	return &Polyhedron{a: a, b: mat.NewVecDense(len(rhs), rhs)}, nil
}

// Point returns the singleton {p} as pairs of opposite inequalities.
func Point(p []float64) (*Polyhedron, error) {
	return FromBounds(p, p)
}

// A returns the constraint matrix.
func (p *Polyhedron) A() *mat.Dense { return p.a }

// B returns the right-hand side.
func (p *Polyhedron) B() *mat.VecDense { return p.b }

// Dim is the dimension of the ambient space.
func (p *Polyhedron) Dim() int {
	_, c := p.a.Dims()
	return c
}

// Rows is the number of inequalities.
func (p *Polyhedron) Rows() int {
	r, _ := p.a.Dims()
	return r
}

// Columns copies the column block [from, to) of A, e.g. the state block of a
// [x; u] domain.
func (p *Polyhedron) Columns(from, to int) *mat.Dense {
	return linalg.Columns(p.a, from, to)
}

// Contains reports whether A·v <= b + tol holds row-wise.
func (p *Polyhedron) Contains(v mat.Vector, tol float64) bool {
	if v.Len() != p.Dim() {
		return false
	}
	var av mat.VecDense
	av.MulVec(p.a, v)
	for i := 0; i < av.Len(); i++ {
		if av.AtVec(i) > p.b.AtVec(i)+tol {
			return false
		}
	}
	return true
}

// Intersect stacks the inequalities of both polyhedra.
func (p *Polyhedron) Intersect(o *Polyhedron) (*Polyhedron, error) {
	if p.Dim() != o.Dim() {
		return nil, linalg.Mismatch("geometry.Intersect", "other",
			fmt.Sprintf("dim %d", p.Dim()), fmt.Sprintf("dim %d", o.Dim()))
	}
	return &Polyhedron{
		a: linalg.VStack(p.a, o.a),
		b: linalg.StackVec(p.b, o.b),
	}, nil
}

// ChebyshevBall returns the center and radius of the largest ball inside the
// polyhedron, capped at MaxRadius. A negative radius means the polyhedron is
// empty; a radius near zero means it is not full-dimensional.
func (p *Polyhedron) ChebyshevBall() (*mat.VecDense, float64, error) {
	n := p.Dim()

	// Coordinates that no row touches are free; leave them at zero so the
	// LP has no all-zero columns.
	var used []int
	for j := 0; j < n; j++ {
		for i := 0; i < p.Rows(); i++ {
			if p.a.At(i, j) != 0 {
				used = append(used, j)
				break
			}
		}
	}

	var rows []int
	norms := make([]float64, 0, p.Rows())
	for i := 0; i < p.Rows(); i++ {
		nrm := mat.Norm(p.a.RowView(i), 2)
		if nrm == 0 {
			if p.b.AtVec(i) < 0 {
				return nil, -1, nil
			}
			continue
		}
		rows = append(rows, i)
		norms = append(norms, nrm)
	}

	center := mat.NewVecDense(n, nil)
	if len(rows) == 0 {
		return center, MaxRadius, nil
	}

	// minimise -r  s.t.  A_i·x + ‖A_i‖·r <= b_i,  r <= MaxRadius
	nv := len(used) + 1
	g := mat.NewDense(len(rows)+1, nv, nil)
	h := make([]float64, len(rows)+1)
	for k, i := range rows {
		for c, j := range used {
			g.Set(k, c, p.a.At(i, j))
		}
		g.Set(k, nv-1, norms[k])
		h[k] = p.b.AtVec(i)
	}
	g.Set(len(rows), nv-1, 1)
	h[len(rows)] = MaxRadius

	c := make([]float64, nv)
	c[nv-1] = -1

	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	_, x, err := lp.Simplex(cStd, aStd, bStd, 1e-10, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("geometry: chebyshev ball: %w", err)
	}

	for c, j := range used {
		center.SetVec(j, x[c]-x[nv+c])
	}
	radius := x[nv-1] - x[2*nv-1]
	return center, radius, nil
}

// IsEmpty reports whether no point satisfies the inequalities.
func (p *Polyhedron) IsEmpty() (bool, error) {
	_, r, err := p.ChebyshevBall()
	if err != nil {
		return false, err
	}
	return r < 0, nil
}

func (p *Polyhedron) String() string {
	return fmt.Sprintf("Polyhedron(dim=%d, rows=%d)", p.Dim(), p.Rows())
}
