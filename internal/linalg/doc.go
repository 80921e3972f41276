// Package linalg holds the small set of dense block-matrix helpers shared by
// the condensation and mpQP code, together with the dimension error type used
// throughout the module.
//
// All helpers work on gonum matrices and always return freshly allocated
// results; inputs are never modified.
//
//   - [BlockDiag]: block-diagonal assembly with explicit offset bookkeeping
//   - [VStack], [StackVec]: vertical concatenation
//   - [SplitVec]: cut a stacked vector into equally sized pieces
//   - [Columns], [Rows], [VecRows]: column and row extraction
package linalg
