package schemas

import "errors"

// Sentinel errors classifying failures at the model and tracker boundaries.
// Callers match with errors.Is; the concrete message carries the detail.
var (
	// ErrParse marks model output that is not valid structured data. Fatal to
	// the call that received it, never retried internally.
	ErrParse = errors.New("llm output parse failure")

	// ErrValidation marks structured output that fails its field constraints.
	ErrValidation = errors.New("structured output validation failure")

	// ErrTransport marks a failed HTTP exchange with the model host or the
	// issue tracker. Retry policy, if any, belongs to the caller.
	ErrTransport = errors.New("transport failure")
)
