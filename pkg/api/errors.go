package api

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorKind is the stable category of a pipeline failure. Every stage
// resolves its recoverable conditions into one of these kinds; the
// terminal classifier is the only place a kind becomes a wire response.
type ErrorKind string

const (
	ErrorKindUnauthenticated    ErrorKind = "Unauthenticated"
	ErrorKindForbidden          ErrorKind = "Forbidden"
	ErrorKindInvalidCredentials ErrorKind = "InvalidCredential"
	ErrorKindAccountDisabled    ErrorKind = "AccountDisabled"
	ErrorKindDuplicate          ErrorKind = "DuplicateCredential"
	ErrorKindNotFound           ErrorKind = "NotFound"
	ErrorKindValidation         ErrorKind = "ValidationFailure"
	ErrorKindUnsafeInput        ErrorKind = "UnsafeInput"
	ErrorKindRateLimited        ErrorKind = "RateLimited"
	ErrorKindConflict           ErrorKind = "Conflict"
	ErrorKindStorage            ErrorKind = "StorageConstraint"
	ErrorKindUnknown            ErrorKind = "Unknown"
)

// Error is a structured pipeline error with a stable kind and an
// external message. Details, when present, are safe to serialize
// (e.g. collected validation failures).
type Error struct {
	Kind    ErrorKind `json:"errorKind"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorResponse is the uniform JSON error envelope. Handlers never build
// this directly; the terminal classifier does.
type ErrorResponse struct {
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Message    string    `json:"message"`
	ErrorKind  ErrorKind `json:"errorKind"`
	Details    any       `json:"details,omitempty"`
}

// HTTPStatus maps an ErrorKind to its HTTP status code.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case ErrorKindUnauthenticated, ErrorKindInvalidCredentials, ErrorKindAccountDisabled:
		return http.StatusUnauthorized
	case ErrorKindForbidden:
		return http.StatusForbidden
	case ErrorKindDuplicate, ErrorKindConflict:
		return http.StatusConflict
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindValidation, ErrorKindUnsafeInput:
		return http.StatusBadRequest
	case ErrorKindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates an Error carrying the collected per-field
// validation failures.
func NewValidationError(details any) *Error {
	return &Error{
		Kind:    ErrorKindValidation,
		Message: "invalid input data",
		Details: details,
	}
}

// NewUnsafeInputError creates the generic Error returned when threat
// screening trips. The matched signature is never echoed to the caller.
func NewUnsafeInputError() *Error {
	return &Error{
		Kind:    ErrorKindUnsafeInput,
		Message: "invalid input detected",
	}
}

// NewNotFoundError creates an Error for resources that cannot be found.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: message}
}

// NewServerError creates an Error for internal failures.
func NewServerError(message string) *Error {
	return &Error{Kind: ErrorKindUnknown, Message: message}
}
