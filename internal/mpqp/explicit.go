package mpqp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/linalg"
	"github.com/san-kum/pwampc/internal/qp"
	"gonum.org/v1/gonum/mat"
)

// Solve computes the explicit solution by enumerating candidate active sets
// in order of size. A set is expanded only while it is feasible and its
// rows of Au are linearly independent, since both properties are inherited
// by subsets. Each surviving set yields a critical region, kept when it is
// full-dimensional.
func (p *Program) Solve(ctx context.Context, opts ...Option) (*ExplicitSolution, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	e, err := newEnumerator(p, o)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var regions []*CriticalRegion
	level := [][]int{{}}
	alive := map[string]bool{key(nil): true}
	examined := 0

	for size := 0; len(level) > 0; size++ {
		nextAlive := make(map[string]bool)
		var next [][]int

		for _, w := range level {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !subsetsAlive(w, alive) {
				continue
			}
			examined++

			ok, err := e.admissible(w)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			nextAlive[key(w)] = true

			cr, err := e.region(w)
			if err != nil {
				return nil, err
			}
			if cr != nil {
				regions = append(regions, cr)
			}

			if len(w) < p.Nu() {
				last := -1
				if len(w) > 0 {
					last = w[len(w)-1]
				}
				for j := last + 1; j < p.Rows(); j++ {
					child := make([]int, len(w)+1)
					copy(child, w)
					child[len(w)] = j
					next = append(next, child)
				}
			}
		}

		o.logger.Debug("active set level enumerated",
			"size", size, "candidates", len(level), "admissible", len(nextAlive), "regions", len(regions))
		alive = nextAlive
		level = next
	}

	o.logger.Debug("explicit solution computed",
		"regions", len(regions), "examined", examined, "elapsed", time.Since(start))

	return &ExplicitSolution{program: p, regions: regions, tol: o.tol, bound: o.bound}, nil
}

type enumerator struct {
	p    *Program
	o    *options
	hinv *mat.Dense

	// -H⁻¹Hux and -H⁻¹fu, the unconstrained optimiser.
	hinvHux *mat.Dense
	hinvFu  *mat.VecDense
}

func newEnumerator(p *Program, o *options) (*enumerator, error) {
	n := p.Nu()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(p.Huu.At(i, j)+p.Huu.At(j, i)))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, fmt.Errorf("mpqp: explicit solve: %w", qp.ErrNotPositiveDefinite)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("mpqp: invert Huu: %w", err)
	}

	e := &enumerator{p: p, o: o, hinv: mat.DenseCopyOf(&inv)}
	e.hinvHux = mat.NewDense(n, p.Nx(), nil)
	e.hinvHux.Mul(e.hinv, p.Hux)
	e.hinvFu = mat.NewVecDense(n, nil)
	e.hinvFu.MulVec(e.hinv, p.Fu)
	return e, nil
}

// admissible reports whether the rows w of Au are independent and some
// (u, x) in the parameter box satisfies all constraints with w active.
func (e *enumerator) admissible(w []int) (bool, error) {
	p := e.p
	nu, nx, q := p.Nu(), p.Nx(), p.Rows()

	if len(w) > 0 && linalg.Rank(linalg.Rows(p.Au, w), licqTol) < len(w) {
		return false, nil
	}

	// Variables z = [u; x]; rows: all constraints, reversed active rows,
	// parameter box.
	rows := q + len(w) + 2*nx
	a := mat.NewDense(rows, nu+nx, nil)
	b := mat.NewVecDense(rows, nil)
	for i := 0; i < q; i++ {
		for j := 0; j < nu; j++ {
			a.Set(i, j, p.Au.At(i, j))
		}
		for j := 0; j < nx; j++ {
			a.Set(i, nu+j, p.Ax.At(i, j))
		}
		b.SetVec(i, p.B.AtVec(i))
	}
	for k, i := range w {
		r := q + k
		for j := 0; j < nu+nx; j++ {
			a.Set(r, j, -a.At(i, j))
		}
		b.SetVec(r, -p.B.AtVec(i)+e.o.tol)
	}
	for j := 0; j < nx; j++ {
		r := q + len(w) + 2*j
		a.Set(r, nu+j, 1)
		a.Set(r+1, nu+j, -1)
		b.SetVec(r, e.o.bound)
		b.SetVec(r+1, e.o.bound)
	}

	_, err := qp.Solve(&qp.Problem{
		H: linalg.Identity(nu + nx),
		F: mat.NewVecDense(nu+nx, nil),
		A: a,
		B: b,
	})
	if errors.Is(err, qp.ErrInfeasible) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mpqp: feasibility of active set %v: %w", w, err)
	}
	return true, nil
}

// region builds the critical region of active set w, or returns nil when it
// is empty or lower-dimensional.
func (e *enumerator) region(w []int) (*CriticalRegion, error) {
	p := e.p
	nu, nx, q := p.Nu(), p.Nx(), p.Rows()

	k := mat.NewDense(nu, nx, nil)
	k.Scale(-1, e.hinvHux)
	offset := mat.NewVecDense(nu, nil)
	offset.ScaleVec(-1, e.hinvFu)

	// λ_W(x) = Lx·x + lc.
	var lx *mat.Dense
	var lc *mat.VecDense
	if len(w) > 0 {
		auW := linalg.Rows(p.Au, w)
		axW := linalg.Rows(p.Ax, w)
		bW := linalg.VecRows(p.B, w)

		var hinvAuWt mat.Dense
		hinvAuWt.Mul(e.hinv, auW.T())
		var m mat.Dense
		m.Mul(auW, &hinvAuWt)

		var rx mat.Dense
		rx.Mul(auW, e.hinvHux)
		rx.Sub(axW, &rx)
		var rc mat.VecDense
		rc.MulVec(auW, e.hinvFu)
		rc.AddVec(&rc, bW)
		rc.ScaleVec(-1, &rc)

		lx = mat.NewDense(len(w), nx, nil)
		if err := lx.Solve(&m, &rx); err != nil && !isCondition(err) {
			return nil, fmt.Errorf("mpqp: multipliers of active set %v: %w", w, err)
		}
		lc = mat.NewVecDense(len(w), nil)
		if err := lc.SolveVec(&m, &rc); err != nil && !isCondition(err) {
			return nil, fmt.Errorf("mpqp: multipliers of active set %v: %w", w, err)
		}

		var t mat.Dense
		t.Mul(&hinvAuWt, lx)
		k.Sub(k, &t)
		var tv mat.VecDense
		tv.MulVec(&hinvAuWt, lc)
		offset.SubVec(offset, &tv)
	}

	active := make(map[int]bool, len(w))
	for _, i := range w {
		active[i] = true
	}

	var rows [][]float64
	var rhs []float64
	add := func(row []float64, b float64) bool {
		nrm := 0.0
		for _, v := range row {
			nrm += v * v
		}
		nrm = math.Sqrt(nrm)
		if nrm < 1e-12 {
			return b >= -e.o.tol
		}
		for j := range row {
			row[j] /= nrm
		}
		rows = append(rows, row)
		rhs = append(rhs, b/nrm)
		return true
	}

	// Primal feasibility of the inactive constraints.
	var ak mat.Dense
	ak.Mul(p.Au, k)
	ak.Add(&ak, p.Ax)
	var aOff mat.VecDense
	aOff.MulVec(p.Au, offset)
	for i := 0; i < q; i++ {
		if active[i] {
			continue
		}
		if !add(mat.Row(nil, i, &ak), p.B.AtVec(i)-aOff.AtVec(i)) {
			return nil, nil
		}
	}
	// Dual feasibility: -Lx·x <= lc.
	for j := range w {
		row := mat.Row(nil, j, lx)
		for c := range row {
			row[c] = -row[c]
		}
		if !add(row, lc.AtVec(j)) {
			return nil, nil
		}
	}
	for j := 0; j < nx; j++ {
		up := make([]float64, nx)
		up[j] = 1
		add(up, e.o.bound)
		lo := make([]float64, nx)
		lo[j] = -1
		add(lo, e.o.bound)
	}

	a := mat.NewDense(len(rows), nx, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	poly, err := geometry.NewPolyhedron(a, mat.NewVecDense(len(rhs), rhs))
	if err != nil {
		return nil, err
	}
	full, err := e.fullDimensional(poly)
	if err != nil {
		return nil, err
	}
	if !full {
		return nil, nil
	}

	cr := &CriticalRegion{
		ActiveSet: append([]int(nil), w...),
		Region:    poly,
		K:         k,
		Offset:    offset,
	}
	cr.Vxx, cr.Vx, cr.V0 = e.value(k, offset)
	return cr, nil
}

// value substitutes u = K·x + k into the objective.
func (e *enumerator) value(k *mat.Dense, off *mat.VecDense) (*mat.Dense, *mat.VecDense, float64) {
	p := e.p
	nx := p.Nx()

	var hk mat.Dense
	hk.Mul(p.Huu, k)
	vxx := mat.NewDense(nx, nx, nil)
	vxx.Mul(k.T(), &hk)
	var kh mat.Dense
	kh.Mul(k.T(), p.Hux)
	vxx.Add(vxx, &kh)
	vxx.Add(vxx, kh.T())
	vxx.Add(vxx, p.Hxx)

	var hOff mat.VecDense
	hOff.MulVec(p.Huu, off)
	vx := mat.NewVecDense(nx, nil)
	vx.MulVec(k.T(), &hOff)
	var t mat.VecDense
	t.MulVec(p.Hux.T(), off)
	vx.AddVec(vx, &t)
	t.MulVec(k.T(), p.Fu)
	vx.AddVec(vx, &t)
	vx.AddVec(vx, p.Fx)

	v0 := mat.Dot(off, &hOff) + 2*mat.Dot(p.Fu, off) + p.G
	return vxx, vx, v0
}

// fullDimensional checks the Chebyshev radius and falls back to an interior
// point search when the LP fails.
func (e *enumerator) fullDimensional(poly *geometry.Polyhedron) (bool, error) {
	_, r, err := poly.ChebyshevBall()
	if err == nil {
		return r > minRadius, nil
	}
	e.o.logger.Debug("chebyshev ball failed, using interior point test", "error", err)

	n := poly.Dim()
	b := mat.VecDenseCopyOf(poly.B())
	for i := 0; i < b.Len(); i++ {
		b.SetVec(i, b.AtVec(i)-interiorGap)
	}
	_, err = qp.Solve(&qp.Problem{
		H: linalg.Identity(n),
		F: mat.NewVecDense(n, nil),
		A: poly.A(),
		B: b,
	})
	if errors.Is(err, qp.ErrInfeasible) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}

func key(w []int) string {
	return fmt.Sprint(w)
}

// subsetsAlive reports whether every subset of w with one element removed
// survived the previous level.
func subsetsAlive(w []int, alive map[string]bool) bool {
	if len(w) <= 1 {
		return true
	}
	sub := make([]int, 0, len(w)-1)
	for skip := range w {
		sub = sub[:0]
		for i, v := range w {
			if i != skip {
				sub = append(sub, v)
			}
		}
		if !alive[key(sub)] {
			return false
		}
	}
	return true
}
