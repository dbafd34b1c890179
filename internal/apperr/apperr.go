// Package apperr defines the error kinds shared by every service and the
// mapping of storage failures onto them.
package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidState      Kind = "invalid_state"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindValidation        Kind = "validation"
	KindUnavailable       Kind = "unavailable"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Msg: "invalid state"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Msg: "insufficient balance"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrForbidden         = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrValidation        = &Error{Kind: KindValidation, Msg: "validation"}
	ErrUnavailable       = &Error{Kind: KindUnavailable, Msg: "service unavailable"}
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message of the first *Error in the chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}

// FromStore classifies a gorm/driver error. Errors that already carry a kind
// are returned unchanged; anything the store could not answer, whether a
// closed pool, a refused connection or a timed out statement, is Unavailable.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(KindNotFound, "not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(KindConflict, "duplicate record", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return Wrap(KindConflict, "referenced record missing or in use", err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return Wrap(KindInvalidState, "constraint violated", err)
	}
	return Wrap(KindUnavailable, "store unavailable", err)
}
