package compiler

import (
	"errors"
	"fmt"
)

// Kind classifies compilation failures.
type Kind string

const (
	KindValidation Kind = "validation"
	KindSyntax     Kind = "syntax"
	KindLowering   Kind = "lowering"
	KindNetwork    Kind = "network"
)

// Error is returned by every Service method.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compile %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a compiler error, or "" for other errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
