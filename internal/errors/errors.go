// Package errors defines the mediacache error taxonomy used throughout
// the transform pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. The kind determines the HTTP status
// and whether the failure is attributed to the client or the server.
type Kind int

const (
	// KindValidation covers bad or missing input: absent url parameter,
	// disallowed host, unsupported format, malformed width.
	KindValidation Kind = iota
	// KindOriginFetch covers failures dereferencing the source URL:
	// timeout, oversized payload, non-2xx status. Surfaces as a 500 but
	// is attributed to the client-supplied source, so it never alerts
	// and its message is safe to return.
	KindOriginFetch
	// KindEncoding covers transcode failures. Server fault.
	KindEncoding
	// KindStorage covers backend failures: unreachable store, permission
	// denied, ambiguous existence check. Server fault. Never treated as
	// a cache miss.
	KindStorage
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindOriginFetch:
		return "origin_fetch"
	case KindEncoding:
		return "encoding"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Error is a classified pipeline error. Message is safe to show to the
// caller for client-fault kinds; for server-fault kinds the handler
// returns a generic message and the full error is logged instead.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to a response status code. Only validation
// failures are 400: an unreachable or oversized origin means the request
// was well-formed but could not be served, a 500 like encode and storage
// failures.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindValidation {
		return 400
	}
	return 500
}

// ServerFault reports whether the failure is attributed to this service
// rather than the caller. Server faults trigger the admin notifier.
func (e *Error) ServerFault() bool {
	return e.Kind == KindEncoding || e.Kind == KindStorage
}

// Validation returns a client-fault input error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// OriginFetch wraps a source fetch failure.
func OriginFetch(msg string, err error) *Error {
	return &Error{Kind: KindOriginFetch, Message: msg, Err: err}
}

// Encoding wraps a transcode failure.
func Encoding(msg string, err error) *Error {
	return &Error{Kind: KindEncoding, Message: msg, Err: err}
}

// Storage wraps a storage backend failure.
func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// AsError extracts a classified *Error from err, or nil if err carries no
// classification.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// KindOf returns the kind of err. Unclassified errors count as storage
// failures so that unexpected conditions surface as server faults.
func KindOf(err error) Kind {
	if pe := AsError(err); pe != nil {
		return pe.Kind
	}
	return KindStorage
}
