package control

import "errors"

var (
	// ErrExplicitSolutionNotStored is returned by the explicit queries until
	// StoreExplicitSolution has succeeded.
	ErrExplicitSolutionNotStored = errors.New("control: explicit solution not stored")

	ErrInvalidHorizon = errors.New("control: horizon must be positive")
)
