package coordinator

import "errors"

// Pipeline failure classes. The API layer maps these onto status codes;
// everything else surfaces as an internal error.
var (
	// ErrInvalidSignal marks a signal that failed schema validation.
	ErrInvalidSignal = errors.New("invalid threat signal")

	// ErrContextUnavailable is returned when every knowledge lookup
	// failed. Individual lookup failures degrade to empty context.
	ErrContextUnavailable = errors.New("analysis context unavailable")

	// ErrPersistence is returned when the analyzed record could not be
	// saved and published. The record is withheld from the caller.
	ErrPersistence = errors.New("analysis record persistence failed")

	// ErrTimeout is returned when the total pipeline deadline expired.
	ErrTimeout = errors.New("analysis deadline exceeded")
)
