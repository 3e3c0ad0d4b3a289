// Package apperr defines the error kinds shared by the booking services.
//
// Each service declares its own sentinel errors on top of these kinds, so
// callers can match either the precise failure or its broad category:
//
//	errors.Is(err, session.ErrInvalidTransition) // precise
//	errors.Is(err, apperr.ErrInvalidStateTransition) // category
package apperr

import (
	"errors"
	"fmt"
	"maps"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindValidation             Kind = "VALIDATION"
	KindConflict               Kind = "CONFLICT"
	KindNotFound               Kind = "NOT_FOUND"
	KindAuthorization          Kind = "AUTHORIZATION"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindIntegrity              Kind = "INTEGRITY"
	KindInternal               Kind = "INTERNAL"
)

// Kind sentinels. errors.Is(err, ErrConflict) holds for every conflict error.
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrAuthorization          = &Error{Kind: KindAuthorization}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrIntegrity              = &Error{Kind: KindIntegrity}
)

// Error is a domain error with a kind, a message and optional metadata.
type Error struct {
	Kind     Kind
	Message  string
	Metadata map[string]any
	Err      error
}

// New creates a sentinel-style error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil && !isSentinel(e.Err) {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels (no message) by kind and other *Error values by
// kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// With returns a copy of e carrying an extra metadata entry. The copy still
// matches e under errors.Is.
func (e *Error) With(key string, value any) *Error {
	md := make(map[string]any, len(e.Metadata)+1)
	maps.Copy(md, e.Metadata)
	md[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Metadata: md, Err: e.Err}
}

// Wrapf returns a copy of e with cause err attached.
func (e *Error) Wrapf(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Metadata: e.Metadata, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MetadataOf returns the metadata of the first *Error in err's chain.
func MetadataOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}

func isSentinel(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Message == "" && e.Err == nil
}
