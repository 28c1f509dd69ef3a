// Package errors contains the error kinds that cross the engine boundary, and sinks that
// receive them.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

type err struct {
	msg  string
	args []interface{}
}

func (err err) Error() string {
	return fmt.Sprintf(err.msg, err.args...)
}

func (err err) Unwrap() error {
	for _, arg := range err.args {
		if wrapped, ok := arg.(error); ok {
			return wrapped
		}
	}
	return nil
}

// New returns a formatted error. If any of args is an error, it's returned by Unwrap.
func New(msg string, args ...interface{}) error {
	return err{msg, args}
}

// Type is the closed set of engine error kinds.
type Type int

const (
	UndefinedPredicate Type = iota + 1
	UnresolvedPredicate
	StackEmpty
	ExpectedTermOfTypeAt
	CannotRetractStaticPredicate
	InstantiationError
	EvaluationError
	InvalidClause
	UserException
	IterationLimit
	CannotAssertStaticPredicate
)

var typeNames = map[Type]string{
	UndefinedPredicate:           "undefined_predicate",
	UnresolvedPredicate:          "unresolved_predicate",
	StackEmpty:                   "stack_empty",
	ExpectedTermOfTypeAt:         "expected_term_of_type_at",
	CannotRetractStaticPredicate: "cannot_retract_static_predicate",
	InstantiationError:           "instantiation_error",
	EvaluationError:              "evaluation_error",
	InvalidClause:                "invalid_clause",
	UserException:                "user_exception",
	IterationLimit:               "iteration_limit",
	CannotAssertStaticPredicate:  "cannot_assert_static_predicate",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Error is an engine error of a given kind, with arguments giving context, usually the
// offending terms.
type Error struct {
	Type Type
	Args []interface{}
}

// Errorf returns an error of type t with args as context.
func Errorf(t Type, args ...interface{}) *Error {
	return &Error{Type: t, Args: args}
}

func (e *Error) Error() string {
	if len(e.Args) == 0 {
		return e.Type.String()
	}
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		args[i] = fmt.Sprint(arg)
	}
	return fmt.Sprintf("%v: %s", e.Type, strings.Join(args, ", "))
}

// Is matches any *Error with the same type, so callers can use errors.Is(err, &Error{Type: t}).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Type == e.Type
}

// Unwrap returns the first argument that is an error, if any.
func (e *Error) Unwrap() error {
	for _, arg := range e.Args {
		if wrapped, ok := arg.(error); ok {
			return wrapped
		}
	}
	return nil
}

// As returns the engine error within err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType returns whether err's chain contains an engine error of type t.
func IsType(err error, t Type) bool {
	e, ok := As(err)
	return ok && e.Type == t
}
