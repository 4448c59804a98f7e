// Package apperrors defines the error taxonomy shared by the extension and
// search packages.
//
// Every failure surfaced by a service is an *Error whose Kind is one of the
// sentinel values below, so callers branch with errors.Is:
//
//	if errors.Is(err, apperrors.ErrNotFound) {
//	    // 404
//	}
//
// ErrConstraintViolation and ErrVersionConflict are refinements of
// ErrPersistence: errors.Is(err, ErrPersistence) is true for both.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for boot-time registration mistakes.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound is returned when a named query, extension point, extension or field is missing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized is returned when the caller may not run an operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPersistence wraps failures reported by the storage collaborator.
	ErrPersistence = errors.New("persistence error")

	// ErrConstraintViolation is a persistence error caused by a uniqueness constraint.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrVersionConflict is a persistence error caused by a stale optimistic-lock version.
	ErrVersionConflict = errors.New("version conflict")
)

// Error is a classified application error.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches the error's kind.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	if target == ErrPersistence {
		return e.Kind == ErrConstraintViolation || e.Kind == ErrVersionConflict
	}
	return false
}

func newError(kind error, op string, err error, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

// Configuration creates a configuration error
func Configuration(op, format string, args ...interface{}) error {
	return newError(ErrConfiguration, op, nil, format, args...)
}

// NotFound creates a not-found error
func NotFound(op, format string, args ...interface{}) error {
	return newError(ErrNotFound, op, nil, format, args...)
}

// InvalidArgument creates an invalid-argument error
func InvalidArgument(op, format string, args ...interface{}) error {
	return newError(ErrInvalidArgument, op, nil, format, args...)
}

// Unauthorized creates an unauthorized error
func Unauthorized(op, format string, args ...interface{}) error {
	return newError(ErrUnauthorized, op, nil, format, args...)
}

// Persistence wraps a storage failure. Errors that are already classified
// pass through unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: ErrPersistence, Op: op, Err: err}
}

// ConstraintViolation creates a uniqueness-constraint persistence error
func ConstraintViolation(op string, err error, format string, args ...interface{}) error {
	return newError(ErrConstraintViolation, op, err, format, args...)
}

// VersionConflict creates an optimistic-lock persistence error
func VersionConflict(op, format string, args ...interface{}) error {
	return newError(ErrVersionConflict, op, nil, format, args...)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraintViolation reports whether err is a uniqueness-constraint error
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// KindOf returns the sentinel kind of err, or nil if err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrConstraintViolation,
		ErrVersionConflict,
		ErrConfiguration,
		ErrNotFound,
		ErrInvalidArgument,
		ErrUnauthorized,
		ErrPersistence,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
