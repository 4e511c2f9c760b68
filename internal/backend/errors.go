package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for each failure kind. Implementations wrap one of these,
// usually through *Error, so callers can classify with errors.Is.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("backend unavailable")
)

// Constraint codes carried by validation errors. They follow the hosted
// backend's PostgreSQL error codes.
const (
	CodeForeignKey = "23503"
	CodeUnique     = "23505"
)

// Kind classifies a backend failure.
type Kind int

const (
	KindTransient Kind = iota
	KindUnauthenticated
	KindForbidden
	KindValidation
	KindNotFound
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinel returns the sentinel error for k.
func (k Kind) Sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindForbidden:
		return ErrForbidden
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindCanceled:
		return context.Canceled
	default:
		return ErrUnavailable
	}
}

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Code    string // constraint code, if any
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Sentinel().Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.Sentinel(), e.Err}
	}
	return []error{e.Kind.Sentinel()}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Code returns the constraint code carried by err, or "".
func Code(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// KindOf classifies err. Typed errors are matched first; untyped errors fall
// back to inspecting the message for the usual backend phrasing.
func KindOf(err error) Kind {
	if err == nil {
		return KindTransient
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnavailable):
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "unauthorized", "unauthenticated", "not authenticated", "authentication", "jwt"):
		return KindUnauthenticated
	case containsAny(msg, "forbidden", "permission"):
		return KindForbidden
	case containsAny(msg, "invalid"):
		return KindValidation
	case containsAny(msg, "not found"):
		return KindNotFound
	default:
		return KindTransient
	}
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// UserMessage returns a message suitable for showing to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindUnauthenticated:
		return "Authentication failed. Please log in again."
	case KindForbidden:
		return "You do not have permission to perform this action."
	case KindNotFound:
		return "The requested resource was not found."
	case KindCanceled:
		return "The operation was canceled."
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "deadline exceeded"):
		return "Request timed out. Please try again."
	case containsAny(msg, "network", "fetch", "connection", "unavailable", "dial"):
		return "Network error. Please check your connection and try again."
	}

	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "An unexpected error occurred. Please try again."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
