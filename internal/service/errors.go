package service

import (
	"errors"
	"fmt"
)

// Kind classifies a business failure so callers can tell them apart.
type Kind string

const (
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindNotFound           Kind = "not_found"
	KindLimitExceeded      Kind = "limit_exceeded"
	KindInvalidAmount      Kind = "invalid_amount"
	KindPersistenceFailure Kind = "persistence_failure"
	KindAlreadyClaimed     Kind = "already_claimed"
	KindInsufficientItems  Kind = "insufficient_items"
	KindUnavailable        Kind = "unavailable"
	KindForbidden          Kind = "forbidden"
)

// Error is the business error returned by economy operations. No state has
// been mutated when one is returned, except PersistenceFailure which reports
// unsaved (but applied) state.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Msg when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Sentinels for errors.Is.
var (
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrLimitExceeded      = &Error{Kind: KindLimitExceeded}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount}
	ErrPersistence        = &Error{Kind: KindPersistenceFailure}
	ErrAlreadyClaimed     = &Error{Kind: KindAlreadyClaimed}
	ErrInsufficientItems  = &Error{Kind: KindInsufficientItems}
	ErrUnavailable        = &Error{Kind: KindUnavailable}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrAlreadySold        = &Error{Kind: KindNotFound, Msg: "listing no longer available"}
	ErrAlreadyFulfilled   = &Error{Kind: KindNotFound, Msg: "request no longer available"}
	ErrRequesterCannotPay = &Error{Kind: KindInsufficientFunds, Msg: "requester cannot pay"}
	ErrSelfTrade          = &Error{Kind: KindInvalidAmount, Msg: "cannot trade with yourself"}
)

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// withOp copies a sentinel and stamps the operation name on it.
func withOp(sentinel *Error, op string) *Error {
	e := *sentinel
	e.Op = op
	return &e
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
