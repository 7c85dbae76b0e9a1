package service

import "errors"

// Sentinel errors shared across services. Controllers map these to HTTP
// statuses; NotFound and Forbidden both answer 404 so a caller cannot tell
// a foreign resource from a missing one.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("access denied")
	ErrUnauthorized = errors.New("invalid or expired session")
	ErrConflict     = errors.New("resource already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream model unavailable")
)
