// Package apperr defines the error kinds every core operation reports.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	InvalidPayload    Kind = "InvalidPayload"
	InvalidTransition Kind = "InvalidTransition"
	Unauthorized      Kind = "Unauthorized"
	InsufficientFunds Kind = "InsufficientFunds"
	EventFull         Kind = "EventFull"
	EventNotApproved  Kind = "EventNotApproved"
	AlreadyRegistered Kind = "AlreadyRegistered"
	NotRegistered     Kind = "NotRegistered"
	AccountNotFound   Kind = "AccountNotFound"
	InvalidAmount     Kind = "InvalidAmount"
)

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

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.E(apperr.EventFull))
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// E returns a bare error of the given kind, for use as an errors.Is target.
func E(kind Kind) *Error {
	return &Error{Kind: kind, Message: string(kind)}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
