// Package dynamics provides discrete-time linear, affine and piecewise-affine
// (PWA) systems.
//
//   - [LinearSystem]: x(t+1) = A·x(t) + B·u(t)
//   - [AffineSystem]: x(t+1) = A·x(t) + B·u(t) + c
//   - [PieceWiseAffineSystem]: one affine mode per polyhedral domain of [x; u]
//
// # Condensed prediction
//
// For a mode sequence z(0..N-1), [PieceWiseAffineSystem.Condense] returns
// the stacked prediction matrices of the trajectory
//
//	[x(0); x(1); ...; x(N)] = Ā·x(0) + B̄·[u(0); ...; u(N-1)] + c̄
//
// Block row 0 of Ā is the identity and block row 0 of B̄ and c̄ is zero, so
// the stacked vector has (N+1)·nx rows.
//
// Every system also adapts to [sim.Dynamics] through Plant for closed-loop
// simulation.
package dynamics
