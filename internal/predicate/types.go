package predicate

import (
	"fmt"
	"strings"

	"github.com/nakajima/serverdata/internal/schema"
)

// Expr is a node of a predicate expression tree.
//
// This is a sealed interface - only types in this package implement it, so
// compilers can switch over every variant exhaustively.
//
// Nodes fall into two kinds. Value nodes (Column, Literal, Coalesce, Negate)
// produce a scalar. Boolean nodes (Compare, And, Or, In) produce a truth value.
// Trees are immutable once constructed.
type Expr interface {
	fmt.Stringer
	exprNode()
}

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
)

// Valid reports whether op is one of the supported comparison operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Column references a record field. It compiles to the field's quoted column
// name.
type Column struct {
	Field schema.FieldID
}

func (Column) exprNode() {}

func (c Column) String() string {
	return fmt.Sprintf("Column(%s)", c.Field)
}

// Literal is a constant scalar. It compiles to one bound placeholder.
// A nil Value is SQL NULL.
type Literal struct {
	Value any
}

func (Literal) exprNode() {}

func (l Literal) String() string {
	return fmt.Sprintf("Literal(%s)", formatValue(l.Value))
}

// Coalesce yields LHS unless it is NULL, otherwise RHS.
// It gives comparisons on optional fields a non-null fallback.
type Coalesce struct {
	LHS Expr
	RHS Expr
}

func (Coalesce) exprNode() {}

func (c Coalesce) String() string {
	return fmt.Sprintf("Coalesce(%s, %s)", c.LHS, c.RHS)
}

// Negate is the arithmetic negation of a constant numeric literal.
// It is folded away during compilation and never reaches SQL.
type Negate struct {
	Inner Expr
}

func (Negate) exprNode() {}

func (n Negate) String() string {
	return fmt.Sprintf("Negate(%s)", n.Inner)
}

// Compare applies a comparison operator to two value nodes.
type Compare struct {
	Op  Op
	LHS Expr
	RHS Expr
}

func (Compare) exprNode() {}

func (c Compare) String() string {
	return fmt.Sprintf("Compare(%s, %s, %s)", c.Op, c.LHS, c.RHS)
}

// And is the conjunction of two boolean nodes.
type And struct {
	LHS Expr
	RHS Expr
}

func (And) exprNode() {}

func (a And) String() string {
	return fmt.Sprintf("And(%s, %s)", a.LHS, a.RHS)
}

// Or is the disjunction of two boolean nodes.
type Or struct {
	LHS Expr
	RHS Expr
}

func (Or) exprNode() {}

func (o Or) String() string {
	return fmt.Sprintf("Or(%s, %s)", o.LHS, o.RHS)
}

// In tests Subject for membership in a homogeneous list of constants.
type In struct {
	Subject Expr
	Values  []any
}

func (In) exprNode() {}

func (in In) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = formatValue(v)
	}
	return fmt.Sprintf("In(%s, [%s])", in.Subject, strings.Join(parts, ", "))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("0x%x", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
