// Package calcerr defines the request-level error taxonomy shared by the
// parser, range engine, evaluator and protocol layers.
//
// Every error that ends a single request (but not its connection) is a
// *Error carrying a Kind. The Kind's String form is what clients see inside
// the parentheses of an ERR reply.
package calcerr

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure.
type Kind int

const (
	// InvalidRequest means the request line itself is malformed.
	InvalidRequest Kind = iota
	// InvalidVariableRange means a name:start:step:end spec is malformed
	// or produces an unusable sequence.
	InvalidVariableRange
	// ExpressionParsingError means an expression does not match the grammar.
	ExpressionParsingError
	// UnboundVariable means an expression references an undeclared variable.
	UnboundVariable
	// DivisionByZero means x/0 with x != 0.
	DivisionByZero
	// ZeroOverZero means 0/0.
	ZeroOverZero
	// MergeLengthMismatch means a LIST merge saw sequences of different lengths.
	MergeLengthMismatch
)

var kindNames = [...]string{
	InvalidRequest:         "InvalidRequest",
	InvalidVariableRange:   "InvalidVariableRange",
	ExpressionParsingError: "ExpressionParsingError",
	UnboundVariable:        "UnboundVariable",
	DivisionByZero:         "DivisionByZero",
	ZeroOverZero:           "ZeroOverZero",
	MergeLengthMismatch:    "MergeLengthMismatch",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is a request-scoped failure.
type Error struct {
	Kind    Kind
	Message string
}

// Error renders the error as "(Kind) message", the form used on the wire
// after the "ERR; " prefix.
func (e *Error) Error() string {
	return fmt.Sprintf("(%s) %s", e.Kind, e.Message)
}

// New returns an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is like New but formats the message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
