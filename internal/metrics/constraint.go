package metrics

import (
	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// ConstraintViolation is the fraction of steps whose [x; u] leaves the
// stage domain by more than tol.
type ConstraintViolation struct {
	name       string
	domain     *geometry.Polyhedron
	tol        float64
	violations int
	samples    int
}

func NewConstraintViolation(domain *geometry.Polyhedron, tol float64) *ConstraintViolation {
	return &ConstraintViolation{
		name:   "constraint_violation",
		domain: domain,
		tol:    tol,
	}
}

func (c *ConstraintViolation) Name() string { return c.name }

func (c *ConstraintViolation) Observe(x sim.State, u sim.Control, t int) {
	c.samples++
	xu := make([]float64, 0, len(x)+len(u))
	xu = append(xu, x...)
	xu = append(xu, u...)
	if len(xu) != c.domain.Dim() || !c.domain.Contains(mat.NewVecDense(len(xu), xu), c.tol) {
		c.violations++
	}
}

func (c *ConstraintViolation) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.violations) / float64(c.samples)
}

func (c *ConstraintViolation) Reset() {
	c.violations = 0
	c.samples = 0
}
