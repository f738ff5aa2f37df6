package querysql

import (
	"strings"

	"github.com/nakajima/serverdata/internal/dialect"
	"github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/value"
)

// CompiledExpression is a SQL boolean fragment with its bound values.
//
// Fragment carries dialect-neutral "?" markers. The n-th marker, reading left
// to right, is bound to Bindings[n-1].
type CompiledExpression struct {
	Fragment string
	Bindings []any
}

// Compiler translates predicate trees for one record type.
//
// A Compiler holds no mutable state; one value may be shared by any number
// of goroutines.
type Compiler struct {
	registry *schema.Registry
	dialect  dialect.Dialect
}

// NewCompiler returns a compiler resolving fields through reg and quoting
// through d. A nil dialect means dialect.Generic().
func NewCompiler(reg *schema.Registry, d dialect.Dialect) *Compiler {
	if d == nil {
		d = dialect.Generic()
	}
	return &Compiler{registry: reg, dialect: d}
}

// Registry returns the registry fields are resolved through.
func (c *Compiler) Registry() *schema.Registry { return c.registry }

// Dialect returns the dialect fragments are written for.
func (c *Compiler) Dialect() dialect.Dialect { return c.dialect }

// Compile turns a boolean predicate into a fragment and its bindings.
//
// Operands are compiled before the operator that joins them and left before
// right, so bindings always follow the textual order of their markers.
// A field the registry does not know panics with *schema.LookupError; run
// Validate first when the tree comes from untrusted input.
func (c *Compiler) Compile(e predicate.Expr) (CompiledExpression, error) {
	if e == nil {
		return CompiledExpression{}, errorf(ErrCodeUnsupportedExpression, nil, "nil predicate")
	}
	if predicate.KindOf(e) != predicate.KindBool {
		return CompiledExpression{}, errorf(ErrCodeUnsupportedExpression, e, "predicate must be a condition")
	}

	var w writer
	if err := c.condition(&w, e, nil); err != nil {
		return CompiledExpression{}, err
	}
	return CompiledExpression{Fragment: w.sb.String(), Bindings: w.bindings}, nil
}

type writer struct {
	sb       strings.Builder
	bindings []any
}

func (w *writer) bind(v any) {
	w.sb.WriteString(dialect.Marker)
	w.bindings = append(w.bindings, v)
}

// condition writes a boolean node. parent is the enclosing connective, used
// to decide where grouping is structurally required.
func (c *Compiler) condition(w *writer, e predicate.Expr, parent predicate.Expr) error {
	switch n := e.(type) {
	case predicate.Compare:
		return c.compare(w, n)
	case predicate.In:
		return c.membership(w, n)
	case predicate.And:
		return c.connective(w, n, n.LHS, n.RHS, " AND ")
	case predicate.Or:
		// AND binds tighter than OR in SQL, so an Or under an And is the only
		// place the tree shape needs parentheses to survive.
		if _, underAnd := parent.(predicate.And); underAnd {
			w.sb.WriteByte('(')
			if err := c.connective(w, n, n.LHS, n.RHS, " OR "); err != nil {
				return err
			}
			w.sb.WriteByte(')')
			return nil
		}
		return c.connective(w, n, n.LHS, n.RHS, " OR ")
	case nil:
		return errorf(ErrCodeUnsupportedExpression, parent, "missing operand")
	default:
		return errorf(ErrCodeUnsupportedExpression, e, "%T is not a condition", e)
	}
}

func (c *Compiler) connective(w *writer, self, lhs, rhs predicate.Expr, op string) error {
	if err := c.condition(w, lhs, self); err != nil {
		return err
	}
	w.sb.WriteString(op)
	return c.condition(w, rhs, self)
}

var sqlOps = map[predicate.Op]string{
	predicate.OpEq:  "=",
	predicate.OpNe:  "<>",
	predicate.OpLt:  "<",
	predicate.OpLte: "<=",
	predicate.OpGt:  ">",
	predicate.OpGte: ">=",
}

func (c *Compiler) compare(w *writer, n predicate.Compare) error {
	op, ok := sqlOps[n.Op]
	if !ok {
		return errorf(ErrCodeUnsupportedOperator, n, "unknown comparison operator %q", n.Op)
	}

	// Comparing with NULL through = or <> is never true; use IS [NOT] NULL.
	if operand, null := nullSide(n); null {
		switch n.Op {
		case predicate.OpEq:
			op = "IS NULL"
		case predicate.OpNe:
			op = "IS NOT NULL"
		default:
			return errorf(ErrCodeUnsupportedOperator, n, "%s has no meaning against nil", n.Op)
		}
		if err := c.operand(w, operand); err != nil {
			return err
		}
		w.sb.WriteByte(' ')
		w.sb.WriteString(op)
		return nil
	}

	if err := c.operand(w, n.LHS); err != nil {
		return err
	}
	w.sb.WriteByte(' ')
	w.sb.WriteString(op)
	w.sb.WriteByte(' ')
	return c.operand(w, n.RHS)
}

// nullSide reports whether one side of a comparison is a nil literal, and
// returns the other side.
func nullSide(n predicate.Compare) (predicate.Expr, bool) {
	if isNull(n.RHS) {
		return n.LHS, true
	}
	if isNull(n.LHS) {
		return n.RHS, true
	}
	return nil, false
}

func isNull(e predicate.Expr) bool {
	l, ok := e.(predicate.Literal)
	if !ok {
		return false
	}
	v, err := value.Normalize(l.Value)
	return err == nil && v == nil
}

func (c *Compiler) membership(w *writer, n predicate.In) error {
	list, err := value.NormalizeList(n.Values)
	if err != nil {
		return errorf(ErrCodeInvalidLiteral, n, "%v", err)
	}
	if !value.Homogeneous(list) {
		return errorf(ErrCodeInvalidLiteral, n, "list elements must share one type")
	}
	if len(list) == 0 {
		return errorf(ErrCodeEmptyMembership, n, "IN list is empty")
	}

	var subject writer
	if err := c.operand(&subject, n.Subject); err != nil {
		return err
	}

	if c.dialect.InBinding() == dialect.ArrayBind {
		bound, err := c.dialect.BindArray(list)
		if err != nil {
			return errorf(ErrCodeInvalidLiteral, n, "%v", err)
		}
		w.sb.WriteString(c.dialect.ArrayMembership(subject.sb.String(), dialect.Marker))
		w.bindings = append(w.bindings, subject.bindings...)
		w.bindings = append(w.bindings, bound)
		return nil
	}

	w.sb.WriteString(subject.sb.String())
	w.bindings = append(w.bindings, subject.bindings...)
	w.sb.WriteString(" IN (")
	for i, v := range list {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.bind(v)
	}
	w.sb.WriteByte(')')
	return nil
}

// operand writes a value node.
func (c *Compiler) operand(w *writer, e predicate.Expr) error {
	switch n := e.(type) {
	case predicate.Column:
		w.sb.WriteString(c.dialect.Quote(c.registry.Lookup(n.Field).Name))
		return nil
	case predicate.Literal:
		v, err := value.Normalize(n.Value)
		if err != nil {
			return errorf(ErrCodeInvalidLiteral, n, "%v", err)
		}
		w.bind(v)
		return nil
	case predicate.Negate:
		v, err := fold(n)
		if err != nil {
			return err
		}
		w.bind(v)
		return nil
	case predicate.Coalesce:
		w.sb.WriteString("COALESCE(")
		if err := c.operand(w, n.LHS); err != nil {
			return err
		}
		w.sb.WriteString(", ")
		if err := c.operand(w, n.RHS); err != nil {
			return err
		}
		w.sb.WriteByte(')')
		return nil
	case nil:
		return errorf(ErrCodeUnsupportedExpression, nil, "missing operand")
	default:
		return errorf(ErrCodeUnsupportedExpression, e, "a condition cannot be used as a value")
	}
}

// fold evaluates a negation of a constant numeric literal.
func fold(n predicate.Negate) (any, error) {
	var inner any
	switch x := n.Inner.(type) {
	case predicate.Literal:
		inner = x.Value
	case predicate.Negate:
		v, err := fold(x)
		if err != nil {
			return nil, err
		}
		inner = v
	default:
		return nil, errorf(ErrCodeUnsupportedExpression, n, "only constant numeric literals can be negated")
	}

	v, err := value.Negate(inner)
	if err != nil {
		return nil, errorf(ErrCodeUnsupportedExpression, n, "%v", err)
	}
	return v, nil
}

// Validate checks that every field referenced by e is registered, without
// compiling. Use it on trees built from untrusted input before Compile.
func Validate(e predicate.Expr, reg *schema.Registry) error {
	var err error
	predicate.Walk(e, func(n predicate.Expr) bool {
		if err != nil {
			return false
		}
		if col, ok := n.(predicate.Column); ok {
			if _, found := reg.Find(col.Field); !found {
				err = errorf(ErrCodeUnknownField, n, "field %q is not registered on %s", col.Field, reg.Model())
			}
		}
		return true
	})
	return err
}
