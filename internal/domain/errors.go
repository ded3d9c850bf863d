package domain

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
)

// Identity store invariants.
var (
	ErrDuplicateEmail      = errors.New("email already belongs to another identity")
	ErrDuplicateProviderID = errors.New("provider identity already belongs to another identity")
)

// Provider and credential failures.
var (
	ErrMalformedProfile    = errors.New("malformed provider profile")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrInvalidCredential   = errors.New("invalid email or password")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
