package domain

import "errors"

// Kind classifies an expected, recoverable failure. Anything that is not a
// *Error is treated as unexpected and masked at the transport boundary.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
)

// Error carries a failure kind plus the user-facing message already rendered
// from the message catalog.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Message: msg} }
func Validation(msg string) *Error   { return &Error{Kind: KindValidation, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }

// Expected unwraps err as a *Error when it represents an expected failure.
func Expected(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
