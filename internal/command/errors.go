package command

import "errors"

// Error kinds the handler wraps with fmt.Errorf("%w: ..."). Auth failures
// deliberately share one kind regardless of which check tripped.
var (
	// ErrAuth covers both a bad token and a non-increasing sequence number.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound marks lookups for screenshots that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks requests missing a required field or carrying an
	// unusable value.
	ErrValidation = errors.New("invalid request")

	// ErrUpstream marks recognizer, storage service, or index failures
	// surfaced through a command.
	ErrUpstream = errors.New("upstream failure")
)
