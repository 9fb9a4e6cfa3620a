package shared

import "errors"

// Error kinds shared across modules. Domain packages wrap these so transport
// layers can map them to status codes without knowing every sentinel.
var (
	// ErrValidation indicates a malformed or missing field, rejected before
	// any lock is taken.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a business-rule conflict detected mid-transaction.
	ErrConflict = errors.New("conflict")
	// ErrSetup indicates missing configuration such as purpose-account mappings.
	ErrSetup = errors.New("setup required")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor lacks scope access.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid identity.
	ErrUnauthorized = errors.New("unauthorized")
)
