package domain

import "errors"

// Error classes shared by every layer. Concrete errors wrap one of these so
// callers can branch with errors.Is.
var (
	// ErrUpstream means the document service or the database reported a failure
	// or could not be reached.
	ErrUpstream = errors.New("upstream failure")
	// ErrValidation means an inbound payload was malformed or inconsistent.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
