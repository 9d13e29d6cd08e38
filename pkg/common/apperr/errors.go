// Package apperr classifies failures into the kinds clients see and renders
// them as stable reply strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the client-visible class of a failure.
type Kind uint8

const (
	Internal Kind = iota
	InvalidParameter
	KeyAlreadyExists
	WrongValueType
	CorruptOrIncompatibleFormat
	AllocationFailure
	WrongArity
	UnknownCommand
)

var kindNames = [...]string{
	Internal:                    "Internal",
	InvalidParameter:            "InvalidParameter",
	KeyAlreadyExists:            "KeyAlreadyExists",
	WrongValueType:              "WrongValueType",
	CorruptOrIncompatibleFormat: "CorruptOrIncompatibleFormat",
	AllocationFailure:           "AllocationFailure",
	WrongArity:                  "WrongArity",
	UnknownCommand:              "UnknownCommand",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// AppError carries a Kind, the reply message, and the underlying cause.
type AppError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// New creates an AppError without a cause.
func New(kind Kind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

// Wrap attaches kind and msg to err. A nil err yields nil.
func Wrap(err error, kind Kind, msg string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: msg, cause: err}
}

// KindOf returns the kind of the first AppError in err's chain, or Internal.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
