package control

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

var _ = Describe("None", func() {
	It("returns zero inputs", func() {
		Expect(NewNone(2).Compute(sim.State{1, 2}, 0)).To(Equal(sim.Control{0, 0}))
	})
})

var _ = Describe("LQR", func() {
	It("applies u = -K(x - ref)", func() {
		ctrl := NewLQR(mat.NewDense(1, 2, []float64{1, 2}), sim.State{0, 0})
		Expect(ctrl.Compute(sim.State{0, 0}, 0)).To(Equal(sim.Control{0}))
		Expect(ctrl.Compute(sim.State{1, 2}, 0)).To(Equal(sim.Control{-5}))
	})

	It("solves the scalar Riccati equation", func() {
		sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
		Expect(err).NotTo(HaveOccurred())
		one := mat.NewDense(1, 1, []float64{1})

		ctrl, p, err := NewLQRFromSystem(sys, one, one)
		Expect(err).NotTo(HaveOccurred())

		// p² = p + 1 and K = p / (1 + p).
		phi := (1 + math.Sqrt(5)) / 2
		Expect(p.At(0, 0)).To(BeNumerically("~", phi, 1e-8))
		Expect(ctrl.K.At(0, 0)).To(BeNumerically("~", phi/(1+phi), 1e-8))

		u := ctrl.Compute(sim.State{2}, 0)
		Expect(u[0]).To(BeNumerically("~", -2*phi/(1+phi), 1e-8))
	})
})

var _ = Describe("PID", func() {
	It("accumulates the integral and differentiates the error", func() {
		ctrl := NewPID(10, 0.1, 5, 0, 1, 1)
		u := ctrl.Compute(sim.State{1}, 0)
		Expect(u).To(HaveLen(1))
		Expect(u[0]).To(Equal(-10.0))

		// err = -0.5, integral = -0.5, derivative = 0.5
		u = ctrl.Compute(sim.State{0.5}, 1)
		Expect(u[0]).To(BeNumerically("~", -5-0.05+2.5, 1e-12))
	})

	It("saturates at the limit after a reset", func() {
		ctrl := NewPID(10, 0.1, 5, 0, 1, 1)
		ctrl.Compute(sim.State{1}, 0)
		ctrl.Limit = 1
		ctrl.Reset()
		Expect(ctrl.Compute(sim.State{1}, 0)[0]).To(Equal(-1.0))
	})
})
