package querysql

import (
	"errors"
	"fmt"

	"github.com/nakajima/serverdata/internal/predicate"
)

// CompileError reports a predicate or statement the compiler refuses.
//
// Compile errors are raised while the statement is being built, never when
// it runs. The compiler never substitutes an always-true or always-false
// condition for a shape it cannot translate.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Expr is the offending sub-expression, nil for statement-level errors.
	Expr predicate.Expr
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedExpression is an expression shape with no SQL form,
	// such as Negate over a column or a value used where a condition belongs.
	ErrCodeUnsupportedExpression ErrorCode = "UNSUPPORTED_EXPRESSION"

	// ErrCodeUnsupportedOperator is a comparison operator outside the
	// supported set, or an ordering comparison against NULL.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeInvalidLiteral is a constant that cannot be bound.
	ErrCodeInvalidLiteral ErrorCode = "INVALID_LITERAL"

	// ErrCodeEmptyMembership is an empty IN list, under either binding convention.
	ErrCodeEmptyMembership ErrorCode = "EMPTY_MEMBERSHIP"

	// ErrCodeUnknownField is a field the registry does not know, reported
	// by Validate instead of the panic Compile raises.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeInvalidLimit is a negative row limit.
	ErrCodeInvalidLimit ErrorCode = "INVALID_LIMIT"
)

func (e *CompileError) Error() string {
	if e.Expr != nil {
		return fmt.Sprintf("%s: %s (in %s)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorf(code ErrorCode, expr predicate.Expr, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Message: fmt.Sprintf(format, args...), Expr: expr}
}

// IsUnsupported reports whether err is an unsupported expression or operator.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnsupportedExpression || ce.Code == ErrCodeUnsupportedOperator
	}
	return false
}

// CodeOf returns the code of a wrapped *CompileError, or "" if err is not one.
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
