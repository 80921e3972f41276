package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is matched by every DimensionError via errors.Is.
var ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

// DimensionError reports an operand whose shape does not fit an operation.
type DimensionError struct {
	Op   string
	What string
	Want string
	Got  string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s has shape %s, want %s", e.Op, e.What, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// Mismatch builds a DimensionError from free-form shape descriptions.
func Mismatch(op, what, want, got string) error {
	return &DimensionError{Op: op, What: what, Want: want, Got: got}
}

// CheckShape fails unless m is r×c. A negative r or c accepts any size on
// that axis.
func CheckShape(op, what string, m mat.Matrix, r, c int) error {
	if m == nil {
		return Mismatch(op, what, shape(r, c), "nil")
	}
	mr, mc := m.Dims()
	if (r >= 0 && mr != r) || (c >= 0 && mc != c) {
		return Mismatch(op, what, shape(r, c), shape(mr, mc))
	}
	return nil
}

// CheckLen fails unless v has n entries.
func CheckLen(op, what string, v mat.Vector, n int) error {
	if v == nil {
		return Mismatch(op, what, fmt.Sprintf("%d", n), "nil")
	}
	if v.Len() != n {
		return Mismatch(op, what, fmt.Sprintf("%d", n), fmt.Sprintf("%d", v.Len()))
	}
	return nil
}

func shape(r, c int) string {
	dim := func(n int) string {
		if n < 0 {
			return "*"
		}
		return fmt.Sprintf("%d", n)
	}
	return dim(r) + "x" + dim(c)
}
