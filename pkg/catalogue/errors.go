package catalogue

import "errors"

// Error represents a domain error from catalogue operations.
//
// Backends translate their underlying failures (missing files, I/O errors,
// malformed stored data) into one of the ErrorCode categories so that the
// walker and its callers can react uniformly regardless of which backend is
// in use.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the catalogue path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a catalogue error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested object doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrNotDirectory indicates a read was issued against an object that is
	// neither a directory nor an image
	ErrNotDirectory

	// ErrBufferTooSmall indicates the caller's buffer cannot hold even one
	// entry while entries remain. This is an internal retry signal: the
	// caller grows the buffer and re-reads at the same cursor. It is never
	// surfaced through the walker's public operations.
	ErrBufferTooSmall

	// ErrOutOfMemory indicates an allocation failed or a configured buffer
	// growth limit was exceeded
	ErrOutOfMemory

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: a cursor that the backend did not issue, an empty name
	ErrInvalidArgument

	// ErrMalformedRecord indicates a stored or delivered entry record whose
	// name length disagrees with its framing
	ErrMalformedRecord

	// ErrIO indicates a failure in the backend's underlying storage or
	// transport, surfaced opaquely
	ErrIO
)

// codeIs reports whether err is a *Error with the given code.
func codeIs(err error, code ErrorCode) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == code
}

// IsBufferTooSmall reports whether err is the buffer-too-small retry signal.
func IsBufferTooSmall(err error) bool {
	return codeIs(err, ErrBufferTooSmall)
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return codeIs(err, ErrNotFound)
}

// IsOutOfMemory reports whether err indicates an allocation failure or an
// exhausted buffer growth limit.
func IsOutOfMemory(err error) bool {
	return codeIs(err, ErrOutOfMemory)
}
