package mpqp

import "log/slog"

const (
	// DefaultParameterBound boxes the parameter space during enumeration.
	DefaultParameterBound = 1e4

	// MembershipTol is the slack allowed when locating x in a region.
	MembershipTol = 1e-8

	minRadius   = 1e-7
	licqTol     = 1e-9
	interiorGap = 1e-6
)

type options struct {
	bound  float64
	tol    float64
	logger *slog.Logger
}

// Option configures Solve.
type Option func(*options)

// WithParameterBound restricts the explicit solution to |x_i| <= r.
func WithParameterBound(r float64) Option {
	return func(o *options) {
		if r > 0 {
			o.bound = r
		}
	}
}

// WithTolerance sets the region membership tolerance.
func WithTolerance(tol float64) Option {
	return func(o *options) {
		if tol > 0 {
			o.tol = tol
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func defaultOptions() *options {
	return &options{
		bound:  DefaultParameterBound,
		tol:    MembershipTol,
		logger: slog.Default(),
	}
}
