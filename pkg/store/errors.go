package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for principal store operations.
var (
	// ErrNotFound is returned when no principal matches the lookup.
	ErrNotFound = errors.New("principal not found")

	// ErrDuplicateEmail is returned when an insert would violate the
	// email uniqueness constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)

// PostgreSQL error codes the classifier maps to HTTP statuses.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeUndefinedTable      = "42P01"
)

// ConstraintError is a storage constraint violation with an identifiable
// engine code. The classifier owns the code-to-status table; stores only
// report what the engine said.
type ConstraintError struct {
	Code       string // engine error code, e.g. "23505"
	Constraint string // violated constraint name, if known
	Err        error  // underlying driver error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("storage constraint %s (%s): %v", e.Code, e.Constraint, e.Err)
	}
	return fmt.Sprintf("storage constraint %s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error { return e.Err }
