package dynamics

import "errors"

var (
	// ErrUnknownMode indicates a mode index outside the PWA system.
	ErrUnknownMode = errors.New("dynamics: mode index out of range")

	// ErrEmptyModeSequence indicates a zero-length horizon.
	ErrEmptyModeSequence = errors.New("dynamics: empty mode sequence")

	// ErrOutsideDomains indicates a state/input pair no mode covers.
	ErrOutsideDomains = errors.New("dynamics: [x; u] outside every domain")

	// ErrDAREDiverged indicates the Riccati iteration did not settle.
	ErrDAREDiverged = errors.New("dynamics: DARE iteration did not converge")
)
