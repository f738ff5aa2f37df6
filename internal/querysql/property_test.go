package querysql

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakajima/serverdata/internal/dialect"
	p "github.com/nakajima/serverdata/internal/predicate"
	"github.com/nakajima/serverdata/internal/schema"
)

// treeGen builds random well-formed predicate trees. Every literal carries a
// distinct value so a binding can be traced back to the literal it came from.
type treeGen struct {
	rng  *rand.Rand
	next int64
}

var numericFields = []schema.FieldID{"ID", "Age", "Score"}

var allOps = []p.Op{p.OpEq, p.OpNe, p.OpLt, p.OpLte, p.OpGt, p.OpGte}

func (g *treeGen) literal() int64 {
	g.next++
	return g.next
}

func (g *treeGen) value(depth int) p.Expr {
	choice := g.rng.Intn(4)
	if depth <= 0 {
		choice = g.rng.Intn(2)
	}
	switch choice {
	case 0:
		return p.Field(numericFields[g.rng.Intn(len(numericFields))])
	case 1:
		return p.Value(g.literal())
	case 2:
		return p.Neg(p.Value(g.literal()))
	default:
		return p.IfNull(g.value(depth-1), g.value(depth-1))
	}
}

func (g *treeGen) condition(depth int) p.Expr {
	choice := g.rng.Intn(4)
	if depth <= 0 {
		choice = g.rng.Intn(2)
	}
	switch choice {
	case 0:
		return p.Compare{Op: allOps[g.rng.Intn(len(allOps))], LHS: g.value(2), RHS: g.value(2)}
	case 1:
		subject := g.value(1)
		values := make([]int64, 1+g.rng.Intn(3))
		for i := range values {
			values[i] = g.literal()
		}
		return p.Member(subject, values)
	case 2:
		return p.And{LHS: g.condition(depth - 1), RHS: g.condition(depth - 1)}
	default:
		return p.Or{LHS: g.condition(depth - 1), RHS: g.condition(depth - 1)}
	}
}

// inline renders the tree with every constant written in place, as the
// compiled fragment should read once its bindings are substituted in order.
// Under array binding a membership list is one binding printed whole.
func inline(e p.Expr, parent p.Expr, in dialect.InBinding) string {
	switch n := e.(type) {
	case p.Column:
		return "`" + people.Lookup(n.Field).Name + "`"
	case p.Literal:
		return fmt.Sprint(n.Value)
	case p.Negate:
		return fmt.Sprint(-n.Inner.(p.Literal).Value.(int64))
	case p.Coalesce:
		return "COALESCE(" + inline(n.LHS, n, in) + ", " + inline(n.RHS, n, in) + ")"
	case p.Compare:
		return inline(n.LHS, n, in) + " " + sqlOps[n.Op] + " " + inline(n.RHS, n, in)
	case p.In:
		if in == dialect.ArrayBind {
			return inline(n.Subject, n, in) + " IN " + fmt.Sprint(n.Values)
		}
		parts := make([]string, len(n.Values))
		for i, v := range n.Values {
			parts[i] = fmt.Sprint(v)
		}
		return inline(n.Subject, n, in) + " IN (" + strings.Join(parts, ", ") + ")"
	case p.And:
		return inline(n.LHS, n, in) + " AND " + inline(n.RHS, n, in)
	case p.Or:
		s := inline(n.LHS, n, in) + " OR " + inline(n.RHS, n, in)
		if _, ok := parent.(p.And); ok {
			return "(" + s + ")"
		}
		return s
	}
	panic(fmt.Sprintf("unexpected node %T", e))
}

// substitute replaces the n-th marker with the n-th binding.
func substitute(fragment string, bindings []any) (string, error) {
	var sb strings.Builder
	i := 0
	for _, r := range fragment {
		if r != '?' {
			sb.WriteRune(r)
			continue
		}
		if i >= len(bindings) {
			return "", fmt.Errorf("marker %d has no binding", i+1)
		}
		sb.WriteString(fmt.Sprint(bindings[i]))
		i++
	}
	if i != len(bindings) {
		return "", fmt.Errorf("%d markers for %d bindings", i, len(bindings))
	}
	return sb.String(), nil
}

func TestCompile_BindingOrderProperty(t *testing.T) {
	testCases := []struct {
		name    string
		dialect dialect.Dialect
	}{
		{"scalar", dialect.Generic(dialect.WithScalarIn())},
		{"array", dialect.Generic()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCompiler(people, tc.dialect)

			for seed := int64(1); seed <= 500; seed++ {
				g := &treeGen{rng: rand.New(rand.NewSource(seed))}
				tree := g.condition(4)

				compiled, err := c.Compile(tree)
				require.NoError(t, err, "seed %d: %s", seed, tree)

				got, err := substitute(compiled.Fragment, compiled.Bindings)
				require.NoError(t, err, "seed %d", seed)
				assert.Equal(t, inline(tree, nil, tc.dialect.InBinding()), got, "seed %d: %s", seed, tree)

				// Literals are numbered in source order, so bindings must be too.
				order := literalOrder(compiled.Bindings)
				for i := 1; i < len(order); i++ {
					require.Less(t, order[i-1], order[i], "seed %d: bindings out of order %v", seed, compiled.Bindings)
				}
			}
		})
	}
}

// literalOrder flattens bindings, list bindings included, to the absolute
// literal numbers they carry.
func literalOrder(bindings []any) []int64 {
	var order []int64
	for _, b := range bindings {
		if list, ok := b.([]any); ok {
			order = append(order, literalOrder(list)...)
			continue
		}
		v := b.(int64)
		if v < 0 {
			v = -v
		}
		order = append(order, v)
	}
	return order
}
