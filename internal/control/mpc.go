package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/pwampc/internal/condense"
	"github.com/san-kum/pwampc/internal/dynamics"
	"github.com/san-kum/pwampc/internal/geometry"
	"github.com/san-kum/pwampc/internal/linalg"
	"github.com/san-kum/pwampc/internal/mpqp"
	"github.com/san-kum/pwampc/internal/sim"
	"github.com/san-kum/pwampc/internal/telemetry"
	"gonum.org/v1/gonum/mat"
)

// Plan is an optimal input sequence u(0..N-1) and its cost.
type Plan struct {
	Inputs []*mat.VecDense
	Cost   float64
}

// First returns u(0).
func (p *Plan) First() *mat.VecDense {
	return p.Inputs[0]
}

// MPC is a finite-horizon controller for a linear system with per-stage
// [x; u] constraints and a terminal set. The condensed program is built once
// by NewMPC; only the explicit solution cache changes afterwards.
type MPC struct {
	sys      *dynamics.LinearSystem
	horizon  int
	q, r, p  *mat.Dense
	stage    *geometry.Polyhedron
	terminal *geometry.Polyhedron
	program  *mpqp.Program

	logger    *slog.Logger
	solveOpts []mpqp.Option

	mu       sync.RWMutex
	explicit *mpqp.ExplicitSolution
}

type Option func(*MPC)

func WithLogger(l *slog.Logger) Option {
	return func(m *MPC) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithExplicitOptions passes options to every explicit solve.
func WithExplicitOptions(opts ...mpqp.Option) Option {
	return func(m *MPC) {
		m.solveOpts = append(m.solveOpts, opts...)
	}
}

// NewMPC wraps sys as a single-mode PWA system whose domain is stage and
// condenses the problem over the horizon.
func NewMPC(sys *dynamics.LinearSystem, horizon int, q, r, p mat.Matrix, stage, terminal *geometry.Polyhedron, opts ...Option) (*MPC, error) {
	if sys == nil {
		return nil, fmt.Errorf("control: nil system")
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	if stage == nil {
		return nil, linalg.Mismatch("control.NewMPC", "stage domain",
			fmt.Sprintf("%d columns", sys.Nx()+sys.Nu()), "nil")
	}

	m := &MPC{
		sys:      sys,
		horizon:  horizon,
		stage:    stage,
		terminal: terminal,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	pwa, err := dynamics.NewPieceWiseAffineSystem(
		[]*dynamics.AffineSystem{sys.Affine()},
		[]*geometry.Polyhedron{stage},
	)
	if err != nil {
		return nil, err
	}

	modes := make([]int, horizon)
	prog, err := condense.Condense(pwa, q, r, p, terminal, modes, condense.WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	telemetry.Condensations.Inc()

	m.q = mat.DenseCopyOf(q)
	m.r = mat.DenseCopyOf(r)
	m.p = mat.DenseCopyOf(p)
	m.program = prog
	return m, nil
}

func (m *MPC) Program() *mpqp.Program { return m.program }
func (m *MPC) Horizon() int           { return m.horizon }
func (m *MPC) StateDim() int          { return m.sys.Nx() }
func (m *MPC) InputDim() int          { return m.sys.Nu() }

// Weights returns the stage, input and terminal cost weights.
func (m *MPC) Weights() (q, r, p *mat.Dense) { return m.q, m.r, m.p }

func (m *MPC) StageDomain() *geometry.Polyhedron { return m.stage }
func (m *MPC) TerminalSet() *geometry.Polyhedron { return m.terminal }

// Feedforward solves the program at x. It returns a nil plan, and no error,
// when no input sequence satisfies the constraints.
func (m *MPC) Feedforward(x mat.Vector) (*Plan, error) {
	start := time.Now()
	sol, err := m.program.ImplicitSolveFixedPoint(x)
	telemetry.SolveLatency.WithLabelValues("implicit").Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.ImplicitSolves.WithLabelValues(telemetry.OutcomeError).Inc()
		return nil, err
	}
	if sol == nil {
		telemetry.ImplicitSolves.WithLabelValues(telemetry.OutcomeInfeasible).Inc()
		m.logger.Debug("implicit solve infeasible", "state", vecString(x))
		return nil, nil
	}
	telemetry.ImplicitSolves.WithLabelValues(telemetry.OutcomeOptimal).Inc()

	return &Plan{
		Inputs: linalg.SplitVec(sol.Argmin, m.sys.Nu()),
		Cost:   sol.Min,
	}, nil
}

// Feedback returns the first input of Feedforward, or nil when infeasible.
func (m *MPC) Feedback(x mat.Vector) (*mat.VecDense, error) {
	plan, err := m.Feedforward(x)
	if plan == nil {
		return nil, err
	}
	return plan.First(), nil
}

// StoreExplicitSolution computes the explicit solution and replaces any
// stored one. Every call recomputes.
func (m *MPC) StoreExplicitSolution(ctx context.Context) error {
	start := time.Now()
	opts := append([]mpqp.Option{mpqp.WithLogger(m.logger)}, m.solveOpts...)
	sol, err := m.program.Solve(ctx, opts...)
	elapsed := time.Since(start)
	telemetry.SolveLatency.WithLabelValues("explicit").Observe(elapsed.Seconds())
	if err != nil {
		return fmt.Errorf("control: explicit solution: %w", err)
	}

	m.mu.Lock()
	m.explicit = sol
	m.mu.Unlock()

	telemetry.ExplicitRegions.Set(float64(len(sol.Regions())))
	m.logger.Info("explicit solution stored", "regions", len(sol.Regions()), "elapsed", elapsed)
	return nil
}

// UseExplicitSolution installs a previously computed solution, e.g. one
// loaded from storage. Its program dimensions must match.
func (m *MPC) UseExplicitSolution(sol *mpqp.ExplicitSolution) error {
	if sol == nil {
		return ErrExplicitSolutionNotStored
	}
	p := sol.Program()
	if p.Nx() != m.program.Nx() || p.Nu() != m.program.Nu() {
		return linalg.Mismatch("control.UseExplicitSolution", "explicit solution",
			fmt.Sprintf("nx=%d nu=%d", m.program.Nx(), m.program.Nu()),
			fmt.Sprintf("nx=%d nu=%d", p.Nx(), p.Nu()))
	}

	m.mu.Lock()
	m.explicit = sol
	m.mu.Unlock()
	telemetry.ExplicitRegions.Set(float64(len(sol.Regions())))
	return nil
}

func (m *MPC) HasExplicitSolution() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.explicit != nil
}

// ExplicitSolution returns the stored solution or nil.
func (m *MPC) ExplicitSolution() *mpqp.ExplicitSolution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.explicit
}

// FeedforwardExplicit evaluates the stored explicit solution at x. It fails
// with ErrExplicitSolutionNotStored before StoreExplicitSolution and returns
// a nil plan when no critical region contains x. Regions only cover the
// parameter box |x_i| <= Bound() of the stored solution, so outside that box
// a nil plan does not mean the problem is infeasible; Feedforward may still
// find one.
func (m *MPC) FeedforwardExplicit(x mat.Vector) (*Plan, error) {
	sol := m.ExplicitSolution()
	if sol == nil {
		return nil, ErrExplicitSolutionNotStored
	}
	if err := linalg.CheckLen("control.FeedforwardExplicit", "x", x, m.sys.Nx()); err != nil {
		return nil, err
	}

	region := sol.Locate(x)
	if region == nil {
		telemetry.ExplicitLookups.WithLabelValues(telemetry.OutcomeInfeasible).Inc()
		return nil, nil
	}
	telemetry.ExplicitLookups.WithLabelValues(telemetry.OutcomeOptimal).Inc()

	return &Plan{
		Inputs: linalg.SplitVec(region.U(x), m.sys.Nu()),
		Cost:   region.Cost(x),
	}, nil
}

// FeedbackExplicit returns the first input of FeedforwardExplicit.
func (m *MPC) FeedbackExplicit(x mat.Vector) (*mat.VecDense, error) {
	plan, err := m.FeedforwardExplicit(x)
	if plan == nil {
		return nil, err
	}
	return plan.First(), nil
}

// Compute applies the receding-horizon law, through the explicit solution
// when one is stored. It returns nil when no feasible input exists.
func (m *MPC) Compute(x sim.State, t int) sim.Control {
	xv := mat.NewVecDense(len(x), x.Clone())

	var u *mat.VecDense
	var err error
	if m.HasExplicitSolution() {
		u, err = m.FeedbackExplicit(xv)
	} else {
		u, err = m.Feedback(xv)
	}
	if err != nil {
		m.logger.Warn("mpc solve failed", "step", t, "error", err)
		return nil
	}
	if u == nil {
		m.logger.Warn("no feasible input", "step", t, "state", vecString(xv))
		return nil
	}

	out := make(sim.Control, u.Len())
	for i := range out {
		out[i] = u.AtVec(i)
	}
	return out
}

func vecString(v mat.Vector) string {
	return fmt.Sprintf("%.4g", mat.Formatted(v.T(), mat.Squeeze()))
}
