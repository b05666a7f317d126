// Package apperr is the error taxonomy shared by the settlement core and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidTx           Kind = "invalid_tx"
	KindNotFound            Kind = "not_found"
	KindWalletNotLinked     Kind = "wallet_not_linked"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal_error"
)

// Error carries a Kind for status mapping and a user facing message.
// Err is the underlying cause and is never shown to clients.
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

// Is matches any *Error with the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrInvalidTx           = &Error{Kind: KindInvalidTx}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrWalletNotLinked     = &Error{Kind: KindWalletNotLinked}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
)

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns a message safe to show to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return "internal error"
}
