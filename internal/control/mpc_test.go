package control

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/linalg"
	"github.com/san-kum/pwampc/internal/mpqp"
	"github.com/san-kum/pwampc/internal/sim"
	"gonum.org/v1/gonum/mat"
)

func scalarMPC(uMax float64) *MPC {
	GinkgoHelper()
	sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
	Expect(err).NotTo(HaveOccurred())
	stage, err := geometry.FromBounds([]float64{-10, -uMax}, []float64{10, uMax})
	Expect(err).NotTo(HaveOccurred())
	terminal, err := geometry.Point([]float64{0})
	Expect(err).NotTo(HaveOccurred())

	one := mat.NewDense(1, 1, []float64{1})
	m, err := NewMPC(sys, 2, one, one, one, stage, terminal)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func doubleIntegratorMPC() *MPC {
	GinkgoHelper()
	sys, err := dynamics.NewLinearSystem(
		mat.NewDense(2, 2, []float64{1, 1, 0, 1}),
		mat.NewDense(2, 1, []float64{0.5, 1}),
	)
	Expect(err).NotTo(HaveOccurred())
	stage, err := geometry.FromBounds([]float64{-5, -5, -1}, []float64{5, 5, 1})
	Expect(err).NotTo(HaveOccurred())
	terminal, err := geometry.FromBounds([]float64{-1, -1}, []float64{1, 1})
	Expect(err).NotTo(HaveOccurred())

	_, p, err := NewLQRFromSystem(sys, linalg.Identity(2), mat.NewDense(1, 1, []float64{1}))
	Expect(err).NotTo(HaveOccurred())

	m, err := NewMPC(sys, 3, linalg.Identity(2), mat.NewDense(1, 1, []float64{1}), p, stage, terminal)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func vec(v ...float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

var _ = Describe("MPC", func() {
	Describe("construction", func() {
		It("condenses the scalar problem into a 2x2 Hessian", func() {
			m := scalarMPC(1)
			r, c := m.Program().Huu.Dims()
			Expect([]int{r, c}).To(Equal([]int{2, 2}))
			Expect(m.Horizon()).To(Equal(2))
			Expect(m.StateDim()).To(Equal(1))
			Expect(m.InputDim()).To(Equal(1))
			Expect(m.HasExplicitSolution()).To(BeFalse())
		})

		It("rejects a stage domain of the wrong width", func() {
			sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
			Expect(err).NotTo(HaveOccurred())
			stage, err := geometry.FromBounds([]float64{-1}, []float64{1})
			Expect(err).NotTo(HaveOccurred())
			terminal, err := geometry.Point([]float64{0})
			Expect(err).NotTo(HaveOccurred())

			one := mat.NewDense(1, 1, []float64{1})
			_, err = NewMPC(sys, 2, one, one, one, stage, terminal)
			Expect(err).To(MatchError(linalg.ErrDimensionMismatch))
		})

		It("rejects mismatched weights", func() {
			sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
			Expect(err).NotTo(HaveOccurred())
			stage, err := geometry.FromBounds([]float64{-1, -1}, []float64{1, 1})
			Expect(err).NotTo(HaveOccurred())
			terminal, err := geometry.Point([]float64{0})
			Expect(err).NotTo(HaveOccurred())

			one := mat.NewDense(1, 1, []float64{1})
			_, err = NewMPC(sys, 2, linalg.Identity(2), one, one, stage, terminal)
			Expect(err).To(MatchError(linalg.ErrDimensionMismatch))
		})

		It("rejects a non-positive horizon", func() {
			sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
			Expect(err).NotTo(HaveOccurred())
			_, err = NewMPC(sys, 0, nil, nil, nil, nil, nil)
			Expect(err).To(MatchError(ErrInvalidHorizon))
		})
	})

	Describe("scalar integrator with a zero terminal state", func() {
		var m *MPC

		BeforeEach(func() {
			m = scalarMPC(1)
		})

		It("reaches the origin from 1.5 in two bounded steps", func() {
			plan, err := m.Feedforward(vec(1.5))
			Expect(err).NotTo(HaveOccurred())
			Expect(plan).NotTo(BeNil())
			Expect(plan.Inputs).To(HaveLen(2))
			Expect(plan.Inputs[0].AtVec(0)).To(BeNumerically("~", -1, 1e-8))
			Expect(plan.Inputs[1].AtVec(0)).To(BeNumerically("~", -0.5, 1e-8))
			// ½(x0² + u0² + x1² + u1² + x2²)
			Expect(plan.Cost).To(BeNumerically("~", 0.5*(2.25+1+0.25+0.25), 1e-8))
		})

		DescribeTable("is infeasible when |x| > 2",
			func(x float64) {
				plan, err := m.Feedforward(vec(x))
				Expect(err).NotTo(HaveOccurred())
				Expect(plan).To(BeNil())

				u, err := m.Feedback(vec(x))
				Expect(err).NotTo(HaveOccurred())
				Expect(u).To(BeNil())
			},
			Entry("x = 5", 5.0),
			Entry("x = 100", 100.0),
			Entry("x = -3", -3.0),
		)

		It("steers 5 to the origin once the inputs may reach 3", func() {
			wide := scalarMPC(3)
			plan, err := wide.Feedforward(vec(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(plan).NotTo(BeNil())
			Expect(plan.Inputs[0].AtVec(0) + plan.Inputs[1].AtVec(0)).To(BeNumerically("~", -5, 1e-8))
			Expect(plan.Inputs[0].AtVec(0)).To(BeNumerically("~", -3, 1e-8))
			// x1 = 2: ½(25 + 9 + 4 + 4 + 0)
			Expect(plan.Cost).To(BeNumerically("~", 21, 1e-8))
		})

		It("returns the first planned input as feedback", func() {
			for _, x := range []float64{-2, -1.3, -0.2, 0, 0.7, 1.5, 2} {
				plan, err := m.Feedforward(vec(x))
				Expect(err).NotTo(HaveOccurred())
				Expect(plan).NotTo(BeNil())

				u, err := m.Feedback(vec(x))
				Expect(err).NotTo(HaveOccurred())
				Expect(u.AtVec(0)).To(BeNumerically("~", plan.Inputs[0].AtVec(0), 1e-12))
			}
		})
	})

	Describe("explicit solution", func() {
		It("refuses explicit queries before it is stored", func() {
			m := scalarMPC(1)

			plan, err := m.FeedforwardExplicit(vec(1))
			Expect(err).To(MatchError(ErrExplicitSolutionNotStored))
			Expect(plan).To(BeNil())

			u, err := m.FeedbackExplicit(vec(1))
			Expect(err).To(MatchError(ErrExplicitSolutionNotStored))
			Expect(u).To(BeNil())
		})

		It("agrees with the implicit solution on the scalar problem", func() {
			m := scalarMPC(1)
			Expect(m.StoreExplicitSolution(context.Background())).To(Succeed())
			Expect(m.HasExplicitSolution()).To(BeTrue())
			Expect(m.ExplicitSolution().Regions()).NotTo(BeEmpty())

			for _, x := range []float64{-1.9, -1.2, -0.5, 0, 0.3, 1, 1.5, 1.99} {
				imp, err := m.Feedforward(vec(x))
				Expect(err).NotTo(HaveOccurred())
				exp, err := m.FeedforwardExplicit(vec(x))
				Expect(err).NotTo(HaveOccurred())
				Expect(exp).NotTo(BeNil(), "x = %g", x)

				Expect(exp.Cost).To(BeNumerically("~", imp.Cost, 1e-6))
				Expect(exp.Inputs[0].AtVec(0)).To(BeNumerically("~", imp.Inputs[0].AtVec(0), 1e-6))

				u, err := m.FeedbackExplicit(vec(x))
				Expect(err).NotTo(HaveOccurred())
				Expect(u.AtVec(0)).To(BeNumerically("~", exp.Inputs[0].AtVec(0), 1e-12))
			}

			plan, err := m.FeedforwardExplicit(vec(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(plan).To(BeNil())
		})

		It("leaves states outside the parameter box to the implicit solve", func() {
			sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
			Expect(err).NotTo(HaveOccurred())
			stage, err := geometry.FromBounds([]float64{-10, -3}, []float64{10, 3})
			Expect(err).NotTo(HaveOccurred())
			terminal, err := geometry.Point([]float64{0})
			Expect(err).NotTo(HaveOccurred())
			one := mat.NewDense(1, 1, []float64{1})
			m, err := NewMPC(sys, 2, one, one, one, stage, terminal,
				WithExplicitOptions(mpqp.WithParameterBound(2)))
			Expect(err).NotTo(HaveOccurred())
			Expect(m.StoreExplicitSolution(context.Background())).To(Succeed())
			Expect(m.ExplicitSolution().Bound()).To(Equal(2.0))

			inside, err := m.FeedforwardExplicit(vec(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(inside).NotTo(BeNil())

			imp, err := m.Feedforward(vec(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(imp).NotTo(BeNil())

			exp, err := m.FeedforwardExplicit(vec(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(exp).To(BeNil())
		})

		It("agrees with the implicit solution on the double integrator", func() {
			m := doubleIntegratorMPC()
			Expect(m.StoreExplicitSolution(context.Background())).To(Succeed())

			for _, x := range [][]float64{{0.5, 0.2}, {-1, 0.5}, {2, -1}, {0, 0}} {
				imp, err := m.Feedforward(vec(x...))
				Expect(err).NotTo(HaveOccurred())
				Expect(imp).NotTo(BeNil())

				exp, err := m.FeedforwardExplicit(vec(x...))
				Expect(err).NotTo(HaveOccurred())
				Expect(exp).NotTo(BeNil(), "x = %v", x)
				Expect(exp.Cost).To(BeNumerically("~", imp.Cost, 1e-6))
				for t := range imp.Inputs {
					Expect(exp.Inputs[t].AtVec(0)).To(BeNumerically("~", imp.Inputs[t].AtVec(0), 1e-6))
				}
			}
		})

		It("recomputes on every store", func() {
			m := scalarMPC(1)
			Expect(m.StoreExplicitSolution(context.Background())).To(Succeed())
			first := m.ExplicitSolution()
			Expect(m.StoreExplicitSolution(context.Background())).To(Succeed())
			Expect(m.ExplicitSolution()).NotTo(BeIdenticalTo(first))
			Expect(m.ExplicitSolution().Regions()).To(HaveLen(len(first.Regions())))
		})

		It("keeps the previous solution when the store is cancelled", func() {
			m := scalarMPC(1)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(m.StoreExplicitSolution(ctx)).To(MatchError(context.Canceled))
			Expect(m.HasExplicitSolution()).To(BeFalse())
		})
	})

	Describe("closed loop", func() {
		It("drives the scalar integrator to the origin", func() {
			m := scalarMPC(1)
			sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
			Expect(err).NotTo(HaveOccurred())

			s := sim.New(dynamics.NewLinearPlant(sys), m)
			res, err := s.Run(context.Background(), sim.State{1.8}, sim.Config{Steps: 20, ValidateState: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Errors).To(BeEmpty())
			Expect(res.States[len(res.States)-1][0]).To(BeNumerically("~", 0, 1e-8))
		})

		It("stops when no input is feasible", func() {
			m := scalarMPC(1)
			Expect(m.Compute(sim.State{5}, 0)).To(BeNil())

			sys, err := dynamics.NewLinearSystem(mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}))
			Expect(err).NotTo(HaveOccurred())
			res, err := sim.New(dynamics.NewLinearPlant(sys), m).Run(context.Background(), sim.State{5}, sim.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(0))
			Expect(res.Errors).To(HaveLen(1))
		})
	})
})
