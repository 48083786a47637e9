package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary. The set is closed: every
// failure in the application maps to exactly one of these.
type Kind int

const (
	// KindNotFound covers unknown slugs, soft-deleted rows and missing
	// artifacts on disk.
	KindNotFound Kind = iota
	// KindSecurity covers wrong passwords, fetches of never-unlocked
	// uploads and disallowed operations such as zipping an encrypted upload.
	KindSecurity
	// KindOperational covers I/O failures, subprocess failures and
	// persistence failures.
	KindOperational
)

// Error is the single error type crossing component boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Securityf builds a KindSecurity error.
func Securityf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindSecurity, Message: fmt.Sprintf(format, args...)}
}

// Operational wraps err as a KindOperational error.
func Operational(err error, message string) *Error {
	return &Error{Kind: KindOperational, Message: message, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindOperational for
// errors raised outside the taxonomy.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindOperational
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsSecurity reports whether err carries KindSecurity.
func IsSecurity(err error) bool {
	return KindOf(err) == KindSecurity
}
