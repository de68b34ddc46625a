// Package faults holds the error taxonomy shared by the registry, the remote
// client and the fetchers.
package faults

import (
	"errors"
	"fmt"
)

// Kinds. Match with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrTransport   = errors.New("transport error")
	ErrEntitlement = errors.New("entitlement denied")
	ErrNotFound    = errors.New("not found")
)

// Error wraps an operation, its kind, the remote status when there was one,
// and the underlying error.
type Error struct {
	Op     string
	Kind   error
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the kind, so errors.Is(err, ErrTransport) works on any wrapped Error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewKind builds an Error of kind with a message and no cause.
func NewKind(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapKind classifies err under kind. A nil err stays nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Transport builds a transport error for a non-2xx remote response.
// 404 is classified as ErrNotFound.
func Transport(op string, status int, detail string) error {
	kind := ErrTransport
	if status == 404 {
		kind = ErrNotFound
	}
	return &Error{Op: op, Kind: kind, Status: status, Msg: detail}
}

// Validation builds a validation error.
func Validation(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// StatusOf returns the remote status carried by err, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}
