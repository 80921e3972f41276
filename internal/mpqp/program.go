// Package mpqp holds multi-parametric quadratic programs
//
//	V(x) = min_u ½u'Huu u + u'Hux x + ½x'Hxx x + fu'u + fx'x + ½g
//	       s.t.  Au u + Ax x <= b
//
// and solves them either at a fixed parameter x (implicit) or for every x
// at once (explicit, a partition into critical regions).
package mpqp

import (
	"fmt"

	"github.com/san-kum/pwampc/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Program is a condensed mpQP. Fields are read-only after New.
type Program struct {
	Huu *mat.Dense
	Hux *mat.Dense
	Hxx *mat.Dense
	Fu  *mat.VecDense
	Fx  *mat.VecDense
	G   float64
	Au  *mat.Dense
	Ax  *mat.Dense
	B   *mat.VecDense
}

// New validates the operand shapes against nu = rows(Huu), nx = rows(Hxx)
// and q = rows(Au), and copies them into a Program.
func New(huu, hux, hxx mat.Matrix, fu, fx mat.Vector, g float64, au, ax mat.Matrix, b mat.Vector) (*Program, error) {
	const op = "mpqp.New"
	if huu == nil || hxx == nil || au == nil {
		return nil, linalg.Mismatch(op, "Huu/Hxx/Au", "non-nil", "nil")
	}
	nu, _ := huu.Dims()
	nx, _ := hxx.Dims()
	q, _ := au.Dims()

	checks := []error{
		linalg.CheckShape(op, "Huu", huu, nu, nu),
		linalg.CheckShape(op, "Hux", hux, nu, nx),
		linalg.CheckShape(op, "Hxx", hxx, nx, nx),
		linalg.CheckLen(op, "fu", fu, nu),
		linalg.CheckLen(op, "fx", fx, nx),
		linalg.CheckShape(op, "Au", au, q, nu),
		linalg.CheckShape(op, "Ax", ax, q, nx),
		linalg.CheckLen(op, "b", b, q),
	}
	for _, err := range checks {
		if err != nil {
			return nil, err
		}
	}

	return &Program{
		Huu: mat.DenseCopyOf(huu),
		Hux: mat.DenseCopyOf(hux),
		Hxx: mat.DenseCopyOf(hxx),
		Fu:  mat.VecDenseCopyOf(fu),
		Fx:  mat.VecDenseCopyOf(fx),
		G:   g,
		Au:  mat.DenseCopyOf(au),
		Ax:  mat.DenseCopyOf(ax),
		B:   mat.VecDenseCopyOf(b),
	}, nil
}

// Nu is the number of decision variables.
func (p *Program) Nu() int {
	r, _ := p.Huu.Dims()
	return r
}

// Nx is the number of parameters.
func (p *Program) Nx() int {
	r, _ := p.Hxx.Dims()
	return r
}

// Rows is the number of inequality constraints.
func (p *Program) Rows() int {
	r, _ := p.Au.Dims()
	return r
}

// Cost evaluates the objective at (u, x).
func (p *Program) Cost(u, x mat.Vector) float64 {
	// Huu·u and Hux·x have length nu, Hxx·x has length nx.
	var hu, hx mat.VecDense
	hu.MulVec(p.Huu, u)
	v := 0.5 * mat.Dot(u, &hu)
	hu.MulVec(p.Hux, x)
	v += mat.Dot(u, &hu)
	hx.MulVec(p.Hxx, x)
	v += 0.5 * mat.Dot(x, &hx)
	v += mat.Dot(p.Fu, u) + mat.Dot(p.Fx, x)
	return v + 0.5*p.G
}

// FeasibleAt reports whether Au u + Ax x <= b + tol.
func (p *Program) FeasibleAt(u, x mat.Vector, tol float64) bool {
	if u.Len() != p.Nu() || x.Len() != p.Nx() {
		return false
	}
	s := p.slack(u, x)
	for i := 0; i < s.Len(); i++ {
		if s.AtVec(i) < -tol {
			return false
		}
	}
	return true
}

// slack returns b - Au u - Ax x.
func (p *Program) slack(u, x mat.Vector) *mat.VecDense {
	var au, ax mat.VecDense
	au.MulVec(p.Au, u)
	ax.MulVec(p.Ax, x)
	s := mat.VecDenseCopyOf(p.B)
	s.SubVec(s, &au)
	s.SubVec(s, &ax)
	return s
}

// rhs returns b - Ax x, the constraint bound seen by u at a fixed x.
func (p *Program) rhs(x mat.Vector) *mat.VecDense {
	var ax mat.VecDense
	ax.MulVec(p.Ax, x)
	r := mat.VecDenseCopyOf(p.B)
	r.SubVec(r, &ax)
	return r
}

func (p *Program) String() string {
	return fmt.Sprintf("mpQP(nu=%d, nx=%d, rows=%d)", p.Nu(), p.Nx(), p.Rows())
}
