package searchclient

import "errors"

var (
	// ErrInvalidURL indicates a result URL failed parsing or scheme checks.
	ErrInvalidURL = errors.New("search client: invalid result url")
	// ErrPrivateIP indicates a result URL resolves to a private/internal address.
	ErrPrivateIP = errors.New("search client: result url resolves to private ip")
	// ErrUnavailable indicates the search endpoint could not be reached.
	ErrUnavailable = errors.New("search client unavailable")
	// ErrCircuitOpen indicates the circuit breaker is short-circuiting calls.
	ErrCircuitOpen = errors.New("search client circuit breaker open")
)
