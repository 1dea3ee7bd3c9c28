package gateway

import "errors"

// Sentinel kinds for gateway errors.
var (
	// ErrBackendUnavailable wraps every transport-level failure reaching the backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrMalformedResponse marks a backend body that is not JSON or not the shape a filter expects.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrInvalidRoute is returned by Validate for a bad route table.
	ErrInvalidRoute = errors.New("invalid route")
)
