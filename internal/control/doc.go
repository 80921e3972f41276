// Package control provides receding-horizon and static feedback controllers
// for discrete-time systems.
//
// Controllers implement [sim.Controller]:
//
//   - [MPC]: constrained finite-horizon optimal control, solved online
//     (implicit) or looked up from a stored explicit solution
//   - [LQR]: static state feedback from the discrete Riccati equation
//   - [PID]: discrete PID on the first state coordinate
//   - [None]: zero input
//
// # Usage
//
//	mpc, err := control.NewMPC(sys, 10, q, r, p, stage, terminal)
//	plan, err := mpc.Feedforward(x)   // nil plan: no feasible input sequence
//	u, err := mpc.Feedback(x)         // first input of the plan
//
//	err = mpc.StoreExplicitSolution(ctx)
//	u, err = mpc.FeedbackExplicit(x)  // region lookup
//
// Calling the explicit variants before StoreExplicitSolution fails with
// [ErrExplicitSolutionNotStored].
package control
