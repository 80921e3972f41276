// Package condense turns a finite-horizon optimal control problem over a
// PWA mode sequence into a single mpQP in the initial state.
//
// With the predicted trajectory x̄ = [x(0); …; x(N)] = Ā·x(0) + B̄·ū + c̄ the
// stage cost ½x̄'Q̄x̄ + ½ū'R̄ū and the stage constraints F̄·x̄ + Ḡ·ū <= h̄
// become
//
//	½ū'Huu ū + ū'Hux x + ½x'Hxx x + fu'ū + fx'x + ½g,   Au·ū <= b − Ax·x.
package condense

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/linalg"
	"github.com/san-kum/pwampc/internal/mpqp"
	"gonum.org/v1/gonum/mat"
)

const symmetryTol = 1e-10

type options struct {
	logger *slog.Logger
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Condense builds the mpQP of horizon len(modes). Stage t uses the dynamics
// and [x; u] domain of modes[t]; the terminal set bounds x(N).
func Condense(sys *dynamics.PieceWiseAffineSystem, q, r, p mat.Matrix, terminal *geometry.Polyhedron, modes []int, opts ...Option) (*mpqp.Program, error) {
	const op = "condense.Condense"
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if sys == nil {
		return nil, fmt.Errorf("%s: nil system", op)
	}
	n := len(modes)
	if n == 0 {
		return nil, linalg.Mismatch(op, "mode sequence", "at least 1 entry", "0 entries")
	}
	nx, nu := sys.Nx(), sys.Nu()

	if err := checkWeights(op, q, r, p, nx, nu); err != nil {
		return nil, err
	}
	if terminal == nil {
		return nil, linalg.Mismatch(op, "terminal set", fmt.Sprintf("%d columns", nx), "nil")
	}
	if terminal.Dim() != nx {
		return nil, linalg.Mismatch(op, "terminal set",
			fmt.Sprintf("%d columns", nx), fmt.Sprintf("%d columns", terminal.Dim()))
	}

	domains := make([]*geometry.Polyhedron, n)
	for t, m := range modes {
		d, err := sys.Domain(m)
		if err != nil {
			return nil, fmt.Errorf("%s: stage %d: %w", op, t, err)
		}
		if d.Dim() != nx+nu {
			return nil, linalg.Mismatch(op, fmt.Sprintf("domain of mode %d", m),
				fmt.Sprintf("%d columns", nx+nu), fmt.Sprintf("%d columns", d.Dim()))
		}
		domains[t] = d
	}

	for name, w := range map[string]mat.Matrix{"Q": q, "R": r, "P": p} {
		if !linalg.IsSymmetric(w, symmetryTol) {
			o.logger.Debug("weight matrix is not symmetric", "weight", name)
		}
	}

	aBar, bBar, cBar, err := sys.Condense(modes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	qs := make([]mat.Matrix, 0, n+1)
	rs := make([]mat.Matrix, 0, n)
	for t := 0; t < n; t++ {
		qs = append(qs, q)
		rs = append(rs, r)
	}
	qs = append(qs, p)
	qBar := linalg.BlockDiag(qs...)
	rBar := linalg.BlockDiag(rs...)

	var qa, qb mat.Dense
	qa.Mul(qBar, aBar)
	qb.Mul(qBar, bBar)
	var qc mat.VecDense
	qc.MulVec(qBar, cBar)

	var huu, hux, hxx mat.Dense
	huu.Mul(bBar.T(), &qb)
	huu.Add(&huu, rBar)
	hux.Mul(bBar.T(), &qa)
	hxx.Mul(aBar.T(), &qa)

	var fu, fx mat.VecDense
	fu.MulVec(bBar.T(), &qc)
	fx.MulVec(aBar.T(), &qc)
	g := mat.Dot(cBar, &qc)

	au, ax, b := constraints(domains, terminal, aBar, bBar, cBar, nx, nu)

	prog, err := mpqp.New(&huu, &hux, &hxx, &fu, &fx, g, au, ax, b)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("condensed optimal control problem",
		"horizon", n, "nx", nx, "nu", nu, "rows", prog.Rows())
	return prog, nil
}

// constraints assembles F̄, Ḡ, h̄ and substitutes the trajectory.
func constraints(domains []*geometry.Polyhedron, terminal *geometry.Polyhedron, aBar, bBar *mat.Dense, cBar *mat.VecDense, nx, nu int) (*mat.Dense, *mat.Dense, *mat.VecDense) {
	n := len(domains)
	fs := make([]mat.Matrix, 0, n+1)
	gs := make([]mat.Matrix, 0, n)
	hs := make([]mat.Vector, 0, n+1)
	for _, d := range domains {
		fs = append(fs, d.Columns(0, nx))
		gs = append(gs, d.Columns(nx, nx+nu))
		hs = append(hs, d.B())
	}
	fs = append(fs, terminal.A())
	hs = append(hs, terminal.B())

	fBar := linalg.BlockDiag(fs...)
	gBar := linalg.VStack(linalg.BlockDiag(gs...), mat.NewDense(terminal.Rows(), n*nu, nil))
	hBar := linalg.StackVec(hs...)

	var au, ax mat.Dense
	au.Mul(fBar, bBar)
	au.Add(&au, gBar)
	ax.Mul(fBar, aBar)

	var fc mat.VecDense
	fc.MulVec(fBar, cBar)
	b := mat.VecDenseCopyOf(hBar)
	b.SubVec(b, &fc)

	return &au, &ax, b
}

func checkWeights(op string, q, r, p mat.Matrix, nx, nu int) error {
	if err := linalg.CheckShape(op, "Q", q, nx, nx); err != nil {
		return err
	}
	if err := linalg.CheckShape(op, "R", r, nu, nu); err != nil {
		return err
	}
	return linalg.CheckShape(op, "P", p, nx, nx)
}
