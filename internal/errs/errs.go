// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Package errs defines the error taxonomy shared by the key lifecycle,
// admission and component packages.
//
// Every failure surfaced to a caller is an *Error carrying a Kind. Callers
// match on the kind with errors.Is against the package sentinels:
//
//	if errors.Is(err, errs.ErrAlreadyExists) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAlreadyExists
	KindCredentialNotFound
	KindNotAuthorized
	KindMissingCredential
	KindConstruction
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAlreadyExists:
		return "AlreadyExistsError"
	case KindCredentialNotFound:
		return "CredentialNotFoundError"
	case KindNotAuthorized:
		return "NotAuthorizedError"
	case KindMissingCredential:
		return "MissingCredentialError"
	case KindConstruction:
		return "ConstructionError"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

// Sentinels for errors.Is. They carry no message of their own.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrCredentialNotFound = &Error{Kind: KindCredentialNotFound}
	ErrNotAuthorized      = &Error{Kind: KindNotAuthorized}
	ErrMissingCredential  = &Error{Kind: KindMissingCredential}
	ErrConstruction       = &Error{Kind: KindConstruction}
	ErrPersistence        = &Error{Kind: KindPersistence}
)

// Error is a classified failure. Op names the operation that failed
// (e.g. "keys.Create"), Msg is the human readable detail and Err the
// optional underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a classified error with a formatted message.
func E(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. A nil cause yields nil.
func Wrap(kind Kind, op string, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
