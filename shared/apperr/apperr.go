// Package apperr carries the error vocabulary shared by every service in
// the vault: cipher, store, and auth-plane failures all collapse into one
// of these kinds before they cross a service boundary.
package apperr

import "fmt"

// Kind classifies a failure the way a caller needs to react to it, not the
// way it happened internally.
type Kind string

const (
	Unauthorized    Kind = "UNAUTHORIZED"
	Forbidden       Kind = "FORBIDDEN"
	NotFound        Kind = "NOT_FOUND"
	Conflict        Kind = "CONFLICT"
	ValidationError Kind = "VALIDATION_ERROR"
	BadRequest      Kind = "BAD_REQUEST"
	EncryptionError Kind = "ENCRYPTION_ERROR"
	DatabaseError   Kind = "DATABASE_ERROR"
	JwtError        Kind = "JWT_ERROR"
	InternalError   Kind = "INTERNAL_ERROR"
)

// Error is the typed error every service-layer function returns.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err carries the given Kind. Safe on nil and on
// errors that never went through this package.
func Is(err error, kind Kind) bool {
	ae, ok := err.(*Error)
	return ok && ae.kind == kind
}

// Exposed reports the kind a client-facing boundary should surface.
// Internal-only kinds (EncryptionError, DatabaseError, JwtError) are
// mapped to InternalError / Unauthorized per spec.md §7's exposure column.
func Exposed(kind Kind) Kind {
	switch kind {
	case EncryptionError, DatabaseError:
		return InternalError
	case JwtError:
		return Unauthorized
	default:
		return kind
	}
}

func Unauthorizedf(format string, args ...any) *Error {
	return New(Unauthorized, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) *Error {
	return New(Forbidden, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func ValidationErrorf(format string, args ...any) *Error {
	return New(ValidationError, fmt.Sprintf(format, args...))
}

func BadRequestf(format string, args ...any) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}
