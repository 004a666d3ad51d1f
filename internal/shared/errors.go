package shared

import (
	"errors"
	"fmt"
)

// Kind classifies domain errors for transport mapping.
type Kind string

const (
	// KindValidation marks malformed input (non-positive amounts, missing references).
	KindValidation Kind = "validation"
	// KindNotFound marks an absent sale, product, account or credit note.
	KindNotFound Kind = "not_found"
	// KindInvalidState marks an operation attempted outside its allowed source states.
	KindInvalidState Kind = "invalid_state"
	// KindInsufficientResource marks stock or credit below what the operation requires.
	KindInsufficientResource Kind = "insufficient_resource"
	// KindInfrastructure marks persistence or transport failures.
	KindInfrastructure Kind = "infrastructure"
)

// Error is the typed result every core operation returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches domain errors by kind so errors.Is works with kind sentinels.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return de.Kind == e.Kind
	}
	return false
}

// E builds a domain error of the given kind.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Infra converts a persistence failure into an infrastructure error.
func Infra(err error, op string) *Error {
	return &Error{Kind: KindInfrastructure, Message: op, Err: err}
}

// KindOf extracts the kind from err; unknown errors count as infrastructure.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
