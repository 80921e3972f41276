package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BlockDiag places blocks along the diagonal of a zero matrix. The row and
// column offsets of each block are the running sums of the preceding block
// shapes, so blocks of different sizes may be mixed freely.
//
// BlockDiag panics if the resulting matrix would be empty.
func BlockDiag(blocks ...mat.Matrix) *mat.Dense {
	rows, cols := 0, 0
	for _, b := range blocks {
		r, c := b.Dims()
		rows += r
		cols += c
	}
	out := mat.NewDense(rows, cols, nil)

	r0, c0 := 0, 0
	for _, b := range blocks {
		r, c := b.Dims()
		place(out, b, r0, c0)
		r0 += r
		c0 += c
	}
	return out
}

// VStack concatenates matrices with equal column counts top to bottom.
func VStack(blocks ...mat.Matrix) *mat.Dense {
	rows, cols := 0, -1
	for _, b := range blocks {
		r, c := b.Dims()
		if cols >= 0 && c != cols {
			panic(mat.ErrShape)
		}
		rows += r
		cols = c
	}
	out := mat.NewDense(rows, cols, nil)

	r0 := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		place(out, b, r0, 0)
		r0 += r
	}
	return out
}

// StackVec concatenates vectors.
func StackVec(vs ...mat.Vector) *mat.VecDense {
	n := 0
	for _, v := range vs {
		n += v.Len()
	}
	out := mat.NewVecDense(n, nil)
	off := 0
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			out.SetVec(off+i, v.AtVec(i))
		}
		off += v.Len()
	}
	return out
}

// SplitVec cuts v into consecutive pieces of the given width. Piece t holds
// rows [width·t, width·(t+1)).
func SplitVec(v mat.Vector, width int) []*mat.VecDense {
	if width <= 0 || v.Len()%width != 0 {
		panic(mat.ErrShape)
	}
	parts := make([]*mat.VecDense, v.Len()/width)
	for t := range parts {
		p := mat.NewVecDense(width, nil)
		for i := 0; i < width; i++ {
			p.SetVec(i, v.AtVec(width*t+i))
		}
		parts[t] = p
	}
	return parts
}

// Columns copies columns [from, to) of m.
func Columns(m mat.Matrix, from, to int) *mat.Dense {
	r, c := m.Dims()
	if from < 0 || to > c || from >= to {
		panic(mat.ErrColAccess)
	}
	out := mat.NewDense(r, to-from, nil)
	for i := 0; i < r; i++ {
		for j := from; j < to; j++ {
			out.Set(i, j-from, m.At(i, j))
		}
	}
	return out
}

// Rows copies the listed rows of m in order.
func Rows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, k := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(k, j))
		}
	}
	return out
}

// VecRows copies the listed entries of v in order.
func VecRows(v mat.Vector, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, k := range idx {
		out.SetVec(i, v.AtVec(k))
	}
	return out
}

// Identity returns the n×n identity.
func Identity(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// IsSymmetric reports whether m is square and equal to its transpose within
// tol, relative to the largest entry.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	scale := math.Max(1, mat.Norm(m, math.Inf(1)))
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol*scale {
				return false
			}
		}
	}
	return true
}

// Rank returns the numerical rank of m.
func Rank(m mat.Matrix, tol float64) int {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0
	}
	return svd.Rank(tol)
}

func place(dst *mat.Dense, b mat.Matrix, r0, c0 int) {
	r, c := b.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(r0+i, c0+j, b.At(i, j))
		}
	}
}
