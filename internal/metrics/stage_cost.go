package metrics

import (
	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// StageCost accumulates ½x'Qx + ½u'Ru over the closed loop.
type StageCost struct {
	name  string
	q, r  mat.Matrix
	total float64
}

func NewStageCost(q, r mat.Matrix) *StageCost {
	return &StageCost{
		name: "stage_cost",
		q:    q,
		r:    r,
	}
}

func (s *StageCost) Name() string { return s.name }

func (s *StageCost) Observe(x sim.State, u sim.Control, t int) {
	s.total += 0.5 * quadratic(s.q, x)
	s.total += 0.5 * quadratic(s.r, u)
}

func (s *StageCost) Value() float64 {
	return s.total
}

func (s *StageCost) Reset() {
	s.total = 0
}

func quadratic(w mat.Matrix, v []float64) float64 {
	n, _ := w.Dims()
	if len(v) != n || n == 0 {
		return 0
	}
	vec := mat.NewVecDense(n, append([]float64(nil), v...))
	var wv mat.VecDense
	wv.MulVec(w, vec)
	return mat.Dot(vec, &wv)
}
