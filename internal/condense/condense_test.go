package condense

import (
	"testing"

	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/linalg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type problem struct {
	sys      *dynamics.PieceWiseAffineSystem
	q, r, p  *mat.Dense
	terminal *geometry.Polyhedron
}

// switched is a two-mode system in (x1, x2, u) whose modes split on the sign
// of x1 and whose second mode has an affine offset.
func switched(t *testing.T) problem {
	t.Helper()
	m0, err := dynamics.NewAffineSystem(
		mat.NewDense(2, 2, []float64{1, 0.1, 0, 1}),
		mat.NewDense(2, 1, []float64{0, 0.1}),
		mat.NewVecDense(2, nil),
	)
	require.NoError(t, err)
	m1, err := dynamics.NewAffineSystem(
		mat.NewDense(2, 2, []float64{0.9, 0.2, -0.1, 1.1}),
		mat.NewDense(2, 1, []float64{0.05, 0.2}),
		mat.NewVecDense(2, []float64{0.3, -0.1}),
	)
	require.NoError(t, err)

	d0, err := geometry.NewPolyhedron(
		mat.NewDense(4, 3, []float64{
			1, 0, 0,
			0, 0, 1,
			0, 0, -1,
			0, 1, 0,
		}),
		mat.NewVecDense(4, []float64{0, 2, 2, 5}),
	)
	require.NoError(t, err)
	d1, err := geometry.NewPolyhedron(
		mat.NewDense(3, 3, []float64{
			-1, 0, 0,
			0, 0, 1,
			0, 0, -1,
		}),
		mat.NewVecDense(3, []float64{0, 1, 1}),
	)
	require.NoError(t, err)

	sys, err := dynamics.NewPieceWiseAffineSystem(
		[]*dynamics.AffineSystem{m0, m1},
		[]*geometry.Polyhedron{d0, d1},
	)
	require.NoError(t, err)

	terminal, err := geometry.FromBounds([]float64{-1, -1}, []float64{1, 1})
	require.NoError(t, err)

	return problem{
		sys:      sys,
		q:        mat.NewDense(2, 2, []float64{2, 0.5, 0.5, 1}),
		r:        mat.NewDense(1, 1, []float64{0.3}),
		p:        mat.NewDense(2, 2, []float64{4, 1, 1, 3}),
		terminal: terminal,
	}
}

func TestCondenseAlgebraicEquivalence(t *testing.T) {
	pr := switched(t)
	modes := []int{1, 0, 0, 1}
	prog, err := Condense(pr.sys, pr.q, pr.r, pr.p, pr.terminal, modes)
	require.NoError(t, err)

	x0 := mat.NewVecDense(2, []float64{0.4, -0.7})
	us := []float64{0.5, -1.2, 0.8, 0.1}
	u := mat.NewVecDense(len(us), us)

	// Roll the trajectory forward with the selected modes.
	xs := []*mat.VecDense{x0}
	for t, m := range modes {
		ut := mat.NewVecDense(1, []float64{us[t]})
		xs = append(xs, pr.sys.Affine[m].Next(xs[t], ut))
	}

	quad := func(w mat.Matrix, v mat.Vector) float64 {
		var t mat.VecDense
		t.MulVec(w, v)
		return mat.Dot(v, &t)
	}
	want := 0.0
	for t := range modes {
		want += 0.5 * quad(pr.q, xs[t])
		want += 0.5 * quad(pr.r, mat.NewVecDense(1, []float64{us[t]}))
	}
	want += 0.5 * quad(pr.p, xs[len(modes)])

	assert.InDelta(t, want, prog.Cost(u, x0), 1e-10)

	// Condensed slack equals the stacked stage and terminal slacks.
	var stage []float64
	for t, m := range modes {
		d := pr.sys.Domains[m]
		xu := linalg.StackVec(xs[t], mat.NewVecDense(1, []float64{us[t]}))
		var dv mat.VecDense
		dv.MulVec(d.A(), xu)
		for i := 0; i < d.Rows(); i++ {
			stage = append(stage, d.B().AtVec(i)-dv.AtVec(i))
		}
	}
	var tv mat.VecDense
	tv.MulVec(pr.terminal.A(), xs[len(modes)])
	for i := 0; i < pr.terminal.Rows(); i++ {
		stage = append(stage, pr.terminal.B().AtVec(i)-tv.AtVec(i))
	}

	var au, ax mat.VecDense
	au.MulVec(prog.Au, u)
	ax.MulVec(prog.Ax, x0)
	got := make([]float64, prog.Rows())
	for i := range got {
		got[i] = prog.B.AtVec(i) - au.AtVec(i) - ax.AtVec(i)
	}
	assert.InDeltaSlice(t, stage, got, 1e-10)
}

func TestCondenseDimensions(t *testing.T) {
	pr := switched(t)
	for _, modes := range [][]int{{0}, {1, 1}, {0, 1, 0, 1, 1}} {
		prog, err := Condense(pr.sys, pr.q, pr.r, pr.p, pr.terminal, modes)
		require.NoError(t, err)

		n := len(modes)
		rows := pr.terminal.Rows()
		for _, m := range modes {
			rows += pr.sys.Domains[m].Rows()
		}

		r, c := prog.Huu.Dims()
		assert.Equal(t, []int{n, n}, []int{r, c})
		r, c = prog.Hxx.Dims()
		assert.Equal(t, []int{2, 2}, []int{r, c})
		r, c = prog.Au.Dims()
		assert.Equal(t, []int{rows, n}, []int{r, c})
		r, c = prog.Ax.Dims()
		assert.Equal(t, []int{rows, 2}, []int{r, c})
		assert.Equal(t, rows, prog.B.Len())
	}
}

func TestCondenseSymmetry(t *testing.T) {
	pr := switched(t)
	prog, err := Condense(pr.sys, pr.q, pr.r, pr.p, pr.terminal, []int{0, 1, 1, 0, 1})
	require.NoError(t, err)
	assert.True(t, linalg.IsSymmetric(prog.Huu, 1e-12))
	assert.True(t, linalg.IsSymmetric(prog.Hxx, 1e-12))
}

func TestCondenseScalarScenario(t *testing.T) {
	lin, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	stage, err := geometry.FromBounds([]float64{-10, -1}, []float64{10, 1})
	require.NoError(t, err)
	sys, err := dynamics.NewPieceWiseAffineSystem([]*dynamics.AffineSystem{lin.Affine()}, []*geometry.Polyhedron{stage})
	require.NoError(t, err)
	terminal, err := geometry.Point([]float64{0})
	require.NoError(t, err)

	one := mat.NewDense(1, 1, []float64{1})
	prog, err := Condense(sys, one, one, one, terminal, []int{0, 0})
	require.NoError(t, err)

	// x1 = x + u0, x2 = x + u0 + u1.
	assert.Equal(t, []float64{3, 1, 1, 2}, prog.Huu.RawMatrix().Data)
	assert.Equal(t, []float64{2, 1}, prog.Hux.RawMatrix().Data)
	assert.Equal(t, []float64{3}, prog.Hxx.RawMatrix().Data)
	assert.Equal(t, 0.0, prog.G)
	assert.Equal(t, 4+4+2, prog.Rows())
}

func TestCondenseErrors(t *testing.T) {
	pr := switched(t)
	bad := mat.NewDense(3, 3, nil)
	badTerminal, err := geometry.FromBounds([]float64{-1}, []float64{1})
	require.NoError(t, err)

	tests := []struct {
		name     string
		q, r, p  mat.Matrix
		terminal *geometry.Polyhedron
		modes    []int
		what     string
	}{
		{"empty modes", pr.q, pr.r, pr.p, pr.terminal, nil, "mode sequence"},
		{"bad Q", bad, pr.r, pr.p, pr.terminal, []int{0}, "Q"},
		{"bad R", pr.q, bad, pr.p, pr.terminal, []int{0}, "R"},
		{"bad P", pr.q, pr.r, bad, pr.terminal, []int{0}, "P"},
		{"bad terminal", pr.q, pr.r, pr.p, badTerminal, []int{0}, "terminal set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Condense(pr.sys, tt.q, tt.r, tt.p, tt.terminal, tt.modes)
			require.ErrorIs(t, err, linalg.ErrDimensionMismatch)
			var de *linalg.DimensionError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.what, de.What)
		})
	}

	_, err = Condense(pr.sys, pr.q, pr.r, pr.p, pr.terminal, []int{0, 2})
	assert.ErrorIs(t, err, dynamics.ErrUnknownMode)
}
