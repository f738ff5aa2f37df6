package predicate

import "github.com/nakajima/serverdata/internal/schema"

// Field references a record field by identifier.
func Field(id schema.FieldID) Column {
	return Column{Field: id}
}

// Value wraps a constant. Value(nil) is SQL NULL.
func Value(v any) Literal {
	return Literal{Value: v}
}

// IfNull is the "unwrap or default" form: lhs when it is not NULL, else rhs.
func IfNull(lhs, rhs Expr) Coalesce {
	return Coalesce{LHS: lhs, RHS: rhs}
}

// Neg negates a constant numeric expression.
func Neg(inner Expr) Negate {
	return Negate{Inner: inner}
}

func Equal(lhs, rhs Expr) Compare        { return Compare{Op: OpEq, LHS: lhs, RHS: rhs} }
func NotEqual(lhs, rhs Expr) Compare     { return Compare{Op: OpNe, LHS: lhs, RHS: rhs} }
func Less(lhs, rhs Expr) Compare         { return Compare{Op: OpLt, LHS: lhs, RHS: rhs} }
func LessEqual(lhs, rhs Expr) Compare    { return Compare{Op: OpLte, LHS: lhs, RHS: rhs} }
func Greater(lhs, rhs Expr) Compare      { return Compare{Op: OpGt, LHS: lhs, RHS: rhs} }
func GreaterEqual(lhs, rhs Expr) Compare { return Compare{Op: OpGte, LHS: lhs, RHS: rhs} }

// AllOf folds its operands left to right with And:
// AllOf(a, b, c) == And(And(a, b), c). It returns nil for no operands.
func AllOf(exprs ...Expr) Expr {
	return fold(exprs, func(l, r Expr) Expr { return And{LHS: l, RHS: r} })
}

// AnyOf folds its operands left to right with Or.
func AnyOf(exprs ...Expr) Expr {
	return fold(exprs, func(l, r Expr) Expr { return Or{LHS: l, RHS: r} })
}

func fold(exprs []Expr, join func(l, r Expr) Expr) Expr {
	if len(exprs) == 0 {
		return nil
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = join(acc, e)
	}
	return acc
}

// Member tests subject for membership in values. The slice is copied.
func Member[V any](subject Expr, values []V) In {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return In{Subject: subject, Values: list}
}

// Walk visits e and its children depth first, left before right, calling fn
// on each node before its children. Returning false from fn skips the
// node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case Coalesce:
		Walk(n.LHS, fn)
		Walk(n.RHS, fn)
	case Negate:
		Walk(n.Inner, fn)
	case Compare:
		Walk(n.LHS, fn)
		Walk(n.RHS, fn)
	case And:
		Walk(n.LHS, fn)
		Walk(n.RHS, fn)
	case Or:
		Walk(n.LHS, fn)
		Walk(n.RHS, fn)
	case In:
		Walk(n.Subject, fn)
	}
}

// Fields returns every field referenced by e in first-seen order.
func Fields(e Expr) []schema.FieldID {
	var out []schema.FieldID
	seen := map[schema.FieldID]bool{}
	Walk(e, func(n Expr) bool {
		if c, ok := n.(Column); ok && !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
		return true
	})
	return out
}

// Kind distinguishes scalar-valued nodes from boolean ones.
type Kind int

const (
	KindUnknown Kind = iota
	KindValue
	KindBool
)

// KindOf reports whether e yields a scalar or a truth value.
func KindOf(e Expr) Kind {
	switch e.(type) {
	case Column, Literal, Coalesce, Negate:
		return KindValue
	case Compare, And, Or, In:
		return KindBool
	default:
		return KindUnknown
	}
}
