// Package common defines shared constants and the error kinds used by the
// repositories, services and transports. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transports. The set is closed: every
// error leaving the service layer carries one of these.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnauthorized
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a kinded error with a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, ErrorUnauthorized) holds for any unauthorized error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	// Kind sentinels, for errors.Is.
	ErrorInternal     = &Error{Kind: KindInternal, Message: "internal error"}
	ErrorValidation   = &Error{Kind: KindValidation, Message: "validation error"}
	ErrorConflict     = &Error{Kind: KindConflict, Message: "already exists"}
	ErrorNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrorUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrorUnavailable  = &Error{Kind: KindUnavailable, Message: "service unavailable"}

	// Token verification errors. They are not kinded: the caller decides
	// whether an expired token means "log in again" or "refresh".
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

func Validation(msg string) error   { return &Error{Kind: KindValidation, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Unavailable marks a backing-service failure that is safe to retry.
func Unavailable(msg string, cause error) error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: cause}
}

// Internal wraps an unexpected failure. The message is what clients see.
func Internal(msg string, cause error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// KindOf returns the kind of err, KindInternal for unkinded errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err. Unkinded and internal
// errors never expose their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return ErrorInternal.Message
}
