package qp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNNLS(t *testing.T) {
	tests := []struct {
		name  string
		e     *mat.Dense
		f     []float64
		want  []float64
		rnorm float64
	}{
		{
			name:  "interior",
			e:     mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			f:     []float64{1, 2},
			want:  []float64{1, 2},
			rnorm: 0,
		},
		{
			name:  "clipped",
			e:     mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			f:     []float64{1, -2},
			want:  []float64{1, 0},
			rnorm: 2,
		},
		{
			name:  "overdetermined",
			e:     mat.NewDense(3, 1, []float64{1, 1, 1}),
			f:     []float64{1, 2, 3},
			want:  []float64{2},
			rnorm: 1.4142135623730951,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, rnorm, err := NNLS(tt.e, tt.f)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, x, 1e-10)
			assert.InDelta(t, tt.rnorm, rnorm, 1e-10)
		})
	}
}

func TestLDP(t *testing.T) {
	// min ‖x‖ s.t. x1 + x2 >= 2 gives (1, 1) with multiplier 1.
	g := mat.NewDense(1, 2, []float64{1, 1})
	x, lambda, err := LDP(g, []float64{2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, x, 1e-10)
	assert.InDeltaSlice(t, []float64{1}, lambda, 1e-10)

	// x >= 1 and -x >= 0 cannot hold together.
	g = mat.NewDense(2, 1, []float64{1, -1})
	_, _, err = LDP(g, []float64{1, 0})
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestSolveUnconstrained(t *testing.T) {
	res, err := Solve(&Problem{
		H: mat.NewDense(2, 2, []float64{2, 0, 0, 4}),
		F: mat.NewVecDense(2, []float64{-2, -4}),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X.AtVec(0), 1e-12)
	assert.InDelta(t, 1.0, res.X.AtVec(1), 1e-12)
	assert.InDelta(t, -3.0, res.Obj, 1e-12)
	assert.Empty(t, res.Active)
}

func TestSolveActiveBound(t *testing.T) {
	// min ½(u-3)² s.t. u <= 1.
	res, err := Solve(&Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		F: mat.NewVecDense(1, []float64{-3}),
		A: mat.NewDense(2, 1, []float64{1, -1}),
		B: mat.NewVecDense(2, []float64{1, 1}),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X.AtVec(0), 1e-10)
	assert.InDelta(t, -2.5, res.Obj, 1e-10)
	assert.Equal(t, []int{0}, res.Active)
	// Stationarity: H·u + f + Aᵀλ = 0.
	assert.InDelta(t, 2.0, res.Multipliers[0], 1e-9)
	assert.InDelta(t, 0.0, res.Multipliers[1], 1e-9)
}

func TestSolveCoupled(t *testing.T) {
	// min ½‖u‖² s.t. u1 + u2 = -1.5 written as two inequalities.
	res, err := Solve(&Problem{
		H: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		F: mat.NewVecDense(2, nil),
		A: mat.NewDense(2, 2, []float64{1, 1, -1, -1}),
		B: mat.NewVecDense(2, []float64{-1.5, 1.5}),
	})
	require.NoError(t, err)
	assert.InDelta(t, -0.75, res.X.AtVec(0), 1e-9)
	assert.InDelta(t, -0.75, res.X.AtVec(1), 1e-9)
}

func TestSolveInfeasible(t *testing.T) {
	_, err := Solve(&Problem{
		H: mat.NewDense(1, 1, []float64{1}),
		F: mat.NewVecDense(1, nil),
		A: mat.NewDense(2, 1, []float64{1, -1}),
		B: mat.NewVecDense(2, []float64{-1, -1}),
	})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSolveNotPositiveDefinite(t *testing.T) {
	_, err := Solve(&Problem{
		H: mat.NewDense(2, 2, []float64{1, 0, 0, -1}),
		F: mat.NewVecDense(2, nil),
	})
	assert.ErrorIs(t, err, ErrNotPositiveDefinite)
}
