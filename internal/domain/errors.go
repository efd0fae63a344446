package domain

import (
	"errors"
	"strings"
)

// Kind classifies a failure for the user-facing layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUpstream
	KindConflict
	KindUnauthenticated
	KindNetwork
	KindBusy
	KindNotConfirmed
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindValidation:      "validation",
	KindNotFound:        "not_found",
	KindUpstream:        "upstream",
	KindConflict:        "conflict",
	KindUnauthenticated: "unauthenticated",
	KindNetwork:         "network",
	KindBusy:            "busy",
	KindNotConfirmed:    "not_confirmed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is a classified failure with a message that is safe to show to the
// user. Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrBusy) works
// regardless of the concrete message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel errors, one per kind. The messages double as the default
// user-facing text.
var (
	ErrValidation      = &Error{Kind: KindValidation, Message: "Invalid input"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "Not found"}
	ErrUpstream        = &Error{Kind: KindUpstream, Message: "Something went wrong. Please try again."}
	ErrConflict        = &Error{Kind: KindConflict, Message: "Already exists"}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "Please log in to continue"}
	ErrNetwork         = &Error{Kind: KindNetwork, Message: "Network error. Please try again."}
	ErrBusy            = &Error{Kind: KindBusy, Message: "Another update is still in progress"}
	ErrNotConfirmed    = &Error{Kind: KindNotConfirmed, Message: "Action not confirmed"}
)

// NewError builds a classified error.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError builds a classified error around a cause.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation is shorthand for NewError(KindValidation, msg).
func Validation(msg string) *Error {
	return NewError(KindValidation, msg)
}

// KindOf returns the kind of err, or KindUnknown when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the message to show for err. Classified errors with a
// non-empty message win; everything else yields fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fallback
}
