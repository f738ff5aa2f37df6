package predicate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/nakajima/serverdata/internal/schema"
	"github.com/nakajima/serverdata/internal/value"
)

// Textual predicate language.
//
//	name == "Pat" && (age > 30 || nickname ?? "" != "")
//	[1, 2, 3].contains(id ?? -1)
//	:ids.contains(id)
//	age! >= 18
//
// Precedence from lowest to highest: ||, &&, comparisons (non-associative),
// ?? (right-associative), unary -, postfix !, primaries. The postfix ! unwraps
// an optional and leaves its operand unchanged. Parentheses only shape the
// tree; the compiled SQL follows the tree.

var predicateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Param", Pattern: `:[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Operator", Pattern: `\?\?|==|!=|<=|>=|&&|\|\||[<>\-()\[\],.!]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type orNode struct {
	Pos   lexer.Position
	Left  *andNode   `@@`
	Right []*andNode `( "||" @@ )*`
}

type andNode struct {
	Pos   lexer.Position
	Left  *cmpNode   `@@`
	Right []*cmpNode `( "&&" @@ )*`
}

type cmpNode struct {
	Pos   lexer.Position
	Left  *coalesceNode `@@`
	Op    string        `( @( "==" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *coalesceNode `  @@ )?`
}

type coalesceNode struct {
	Pos      lexer.Position
	Operands []*unaryNode `@@ ( "??" @@ )*`
}

type unaryNode struct {
	Pos     lexer.Position
	Minus   bool         `(  @"-"`
	Operand *unaryNode   `   @@ )`
	Primary *primaryNode `| @@`
	Unwrap  bool         `  @"!"?`
}

type primaryNode struct {
	Pos    lexer.Position
	Float  *float64   `  @Float`
	Int    *int64     `| @Int`
	String *string    `| @String`
	True   bool       `| @"true"`
	False  bool       `| @"false"`
	Nil    bool       `| @"nil"`
	List   *listNode  `| @@`
	Param  *paramNode `| @@`
	Ident  *string    `| @Ident`
	Group  *orNode    `| "(" @@ ")"`
}

type listNode struct {
	Pos      lexer.Position
	Items    []*literalNode `"[" ( @@ ( "," @@ )* )? "]"`
	Contains *orNode        `"." "contains" "(" @@ ")"`
}

type paramNode struct {
	Pos      lexer.Position
	Name     string  `@Param`
	Contains *orNode `( "." "contains" "(" @@ ")" )?`
}

type literalNode struct {
	Pos    lexer.Position
	Minus  bool     `@"-"?`
	Float  *float64 `( @Float`
	Int    *int64   `| @Int`
	String *string  `| @String`
	True   bool     `| @"true"`
	False  bool     `| @"false"`
	Nil    bool     `| @"nil" )`
}

var predicateParser = participle.MustBuild[orNode](
	participle.Lexer(predicateLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// ParseError reports a malformed predicate source.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse predicate %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse predicate: %s", e.Message)
}

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ParseOptions configures Parse.
type ParseOptions struct {
	// Params supplies values for :name references.
	Params map[string]any

	// Resolve maps identifiers to field identifiers. When nil identifiers
	// are used verbatim as field identifiers.
	Resolve func(name string) (schema.FieldID, bool)
}

// ForRegistry returns options resolving identifiers through reg, accepting
// either field identifiers or column names.
func ForRegistry(reg *schema.Registry, params map[string]any) ParseOptions {
	return ParseOptions{
		Params: params,
		Resolve: func(name string) (schema.FieldID, bool) {
			col, ok := reg.Resolve(name)
			return col.Field, ok
		},
	}
}

// Parse turns predicate source into an expression tree. The result is
// always a boolean node.
func Parse(src string, opts ParseOptions) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseError{Message: "empty predicate"}
	}

	raw, err := predicateParser.ParseString("", src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			pos := perr.Position()
			return nil, &ParseError{Line: pos.Line, Column: pos.Column, Message: perr.Message()}
		}
		return nil, &ParseError{Message: err.Error()}
	}

	b := builder{opts: opts}
	expr, err := b.or(raw)
	if err != nil {
		return nil, err
	}
	if KindOf(expr) != KindBool {
		return nil, errorAt(raw.Pos, "expected a condition, got %s", expr)
	}
	return expr, nil
}

// MustParse is like Parse but panics on error.
func MustParse(src string, opts ParseOptions) Expr {
	e, err := Parse(src, opts)
	if err != nil {
		panic(err)
	}
	return e
}

type builder struct {
	opts ParseOptions
}

func errorAt(pos lexer.Position, format string, args ...any) *ParseError {
	return &ParseError{Line: pos.Line, Column: pos.Column, Message: fmt.Sprintf(format, args...)}
}

func (b builder) or(n *orNode) (Expr, error) {
	acc, err := b.and(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Right {
		rhs, err := b.and(r)
		if err != nil {
			return nil, err
		}
		if err := b.requireBool(n.Pos, acc, rhs); err != nil {
			return nil, err
		}
		acc = Or{LHS: acc, RHS: rhs}
	}
	return acc, nil
}

func (b builder) and(n *andNode) (Expr, error) {
	acc, err := b.cmp(n.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range n.Right {
		rhs, err := b.cmp(r)
		if err != nil {
			return nil, err
		}
		if err := b.requireBool(n.Pos, acc, rhs); err != nil {
			return nil, err
		}
		acc = And{LHS: acc, RHS: rhs}
	}
	return acc, nil
}

func (b builder) requireBool(pos lexer.Position, operands ...Expr) error {
	for _, e := range operands {
		if KindOf(e) != KindBool {
			return errorAt(pos, "operand %s of && or || is not a condition", e)
		}
	}
	return nil
}

var comparisonOps = map[string]Op{
	"==": OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLte,
	">":  OpGt,
	">=": OpGte,
}

func (b builder) cmp(n *cmpNode) (Expr, error) {
	lhs, err := b.coalesce(n.Left)
	if err != nil {
		return nil, err
	}
	if n.Right == nil {
		return lhs, nil
	}
	rhs, err := b.coalesce(n.Right)
	if err != nil {
		return nil, err
	}
	if KindOf(lhs) != KindValue || KindOf(rhs) != KindValue {
		return nil, errorAt(n.Pos, "%s compares conditions, not values", n.Op)
	}
	return Compare{Op: comparisonOps[n.Op], LHS: lhs, RHS: rhs}, nil
}

func (b builder) coalesce(n *coalesceNode) (Expr, error) {
	operands := make([]Expr, len(n.Operands))
	for i, u := range n.Operands {
		e, err := b.unary(u)
		if err != nil {
			return nil, err
		}
		if len(n.Operands) > 1 && KindOf(e) != KindValue {
			return nil, errorAt(u.Pos, "?? operand %s is not a value", e)
		}
		operands[i] = e
	}

	acc := operands[len(operands)-1]
	for i := len(operands) - 2; i >= 0; i-- {
		acc = Coalesce{LHS: operands[i], RHS: acc}
	}
	return acc, nil
}

func (b builder) unary(n *unaryNode) (Expr, error) {
	if n.Primary != nil {
		return b.primary(n.Primary)
	}
	inner, err := b.unary(n.Operand)
	if err != nil {
		return nil, err
	}
	return Negate{Inner: inner}, nil
}

func (b builder) primary(n *primaryNode) (Expr, error) {
	switch {
	case n.Float != nil:
		return Literal{Value: *n.Float}, nil
	case n.Int != nil:
		return Literal{Value: *n.Int}, nil
	case n.String != nil:
		return Literal{Value: *n.String}, nil
	case n.True:
		return Literal{Value: true}, nil
	case n.False:
		return Literal{Value: false}, nil
	case n.Nil:
		return Literal{Value: nil}, nil
	case n.List != nil:
		return b.list(n.List)
	case n.Param != nil:
		return b.param(n.Param)
	case n.Ident != nil:
		return b.ident(n.Pos, *n.Ident)
	case n.Group != nil:
		return b.or(n.Group)
	}
	return nil, errorAt(n.Pos, "empty expression")
}

func (b builder) ident(pos lexer.Position, name string) (Expr, error) {
	if b.opts.Resolve == nil {
		return Column{Field: schema.FieldID(name)}, nil
	}
	id, ok := b.opts.Resolve(name)
	if !ok {
		return nil, errorAt(pos, "unknown field %q", name)
	}
	return Column{Field: id}, nil
}

func (b builder) param(n *paramNode) (Expr, error) {
	name := strings.TrimPrefix(n.Name, ":")
	v, ok := b.opts.Params[name]
	if !ok {
		return nil, errorAt(n.Pos, "no value for parameter %q", name)
	}
	if n.Contains == nil {
		return Literal{Value: v}, nil
	}

	list, err := value.NormalizeList(v)
	if err != nil {
		return nil, errorAt(n.Pos, "parameter %q: %v", name, err)
	}
	return b.member(n.Pos, list, n.Contains)
}

func (b builder) list(n *listNode) (Expr, error) {
	items := make([]any, len(n.Items))
	for i, item := range n.Items {
		v, err := item.value()
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return b.member(n.Pos, items, n.Contains)
}

func (b builder) member(pos lexer.Position, values []any, subject *orNode) (Expr, error) {
	if !value.Homogeneous(values) {
		return nil, errorAt(pos, "list elements must share one type")
	}
	s, err := b.or(subject)
	if err != nil {
		return nil, err
	}
	if KindOf(s) != KindValue {
		return nil, errorAt(subject.Pos, "contains() takes a value, got %s", s)
	}
	return In{Subject: s, Values: values}, nil
}

func (n *literalNode) value() (any, error) {
	var v any
	switch {
	case n.Float != nil:
		v = *n.Float
	case n.Int != nil:
		v = *n.Int
	case n.String != nil:
		v = *n.String
	case n.True:
		v = true
	case n.False:
		v = false
	case n.Nil:
		v = nil
	}
	if !n.Minus {
		return v, nil
	}
	neg, err := value.Negate(v)
	if err != nil {
		return nil, errorAt(n.Pos, "%v", err)
	}
	return neg, nil
}
