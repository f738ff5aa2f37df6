package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakajima/serverdata/internal/schema"
)

func TestExpr_String(t *testing.T) {
	e := AllOf(
		Equal(Field("name"), Value("Pat")),
		Greater(IfNull(Field("id"), Neg(Value(1))), Value(0)),
		Member(Field("id"), []int{1, 2}),
	)

	assert.Equal(t,
		`And(And(Compare(eq, Column(name), Literal("Pat")), Compare(gt, Coalesce(Column(id), Negate(Literal(1))), Literal(0))), In(Column(id), [1, 2]))`,
		e.String())
}

func TestAllOfAnyOf_FoldLeft(t *testing.T) {
	a := Equal(Field("a"), Value(1))
	b := Equal(Field("b"), Value(2))
	c := Equal(Field("c"), Value(3))

	assert.Equal(t, And{LHS: And{LHS: a, RHS: b}, RHS: c}, AllOf(a, b, c))
	assert.Equal(t, Or{LHS: Or{LHS: a, RHS: b}, RHS: c}, AnyOf(a, b, c))
	assert.Equal(t, a, AllOf(a))
	assert.Nil(t, AnyOf())
}

func TestMember_CopiesValues(t *testing.T) {
	ids := []int64{1, 2, 3}
	in := Member(Field("id"), ids)
	ids[0] = 99

	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, in.Values)
}

func TestOp_Valid(t *testing.T) {
	for _, op := range []Op{OpEq, OpNe, OpLt, OpLte, OpGt, OpGte} {
		assert.True(t, op.Valid(), op)
	}
	assert.False(t, Op("like").Valid())
}

func TestWalk_VisitsLeftToRight(t *testing.T) {
	e := Or{
		LHS: Equal(Field("a"), Value(1)),
		RHS: And{
			LHS: Less(IfNull(Field("b"), Value(2)), Value(3)),
			RHS: Member(Field("c"), []string{"x"}),
		},
	}

	var literals []any
	Walk(e, func(n Expr) bool {
		if l, ok := n.(Literal); ok {
			literals = append(literals, l.Value)
		}
		return true
	})

	assert.Equal(t, []any{1, 2, 3}, literals)
	assert.Equal(t, []schema.FieldID{"a", "b", "c"}, Fields(e))
}

func TestWalk_SkipChildren(t *testing.T) {
	e := And{LHS: Equal(Field("a"), Value(1)), RHS: Equal(Field("b"), Value(2))}

	visited := 0
	Walk(e, func(n Expr) bool {
		visited++
		_, isAnd := n.(And)
		return isAnd
	})
	assert.Equal(t, 3, visited)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValue, KindOf(Field("a")))
	assert.Equal(t, KindValue, KindOf(Neg(Value(1))))
	assert.Equal(t, KindBool, KindOf(Member(Field("a"), []int{1})))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want Expr
	}{
		{
			name: "equality",
			src:  `name == "Pat"`,
			want: Equal(Field("name"), Value("Pat")),
		},
		{
			name: "and binds tighter than or",
			src:  `age > 30 && name == "Pat" || name == "Taylor"`,
			want: Or{
				LHS: And{LHS: Greater(Field("age"), Value(int64(30))), RHS: Equal(Field("name"), Value("Pat"))},
				RHS: Equal(Field("name"), Value("Taylor")),
			},
		},
		{
			name: "parentheses shape the tree",
			src:  `age > 30 && (name == "Pat" || name == "Taylor")`,
			want: And{
				LHS: Greater(Field("age"), Value(int64(30))),
				RHS: Or{LHS: Equal(Field("name"), Value("Pat")), RHS: Equal(Field("name"), Value("Taylor"))},
			},
		},
		{
			name: "coalesce with negative default",
			src:  `id ?? -1 > 0`,
			want: Greater(IfNull(Field("id"), Neg(Value(int64(1)))), Value(int64(0))),
		},
		{
			name: "force unwrap passes the operand through",
			src:  `age! > 30 && nickname! != "x"`,
			want: And{LHS: Greater(Field("age"), Value(int64(30))), RHS: NotEqual(Field("nickname"), Value("x"))},
		},
		{
			name: "force unwrap under negation and coalesce",
			src:  `-(score!) < b ?? 2!`,
			want: Less(Neg(Field("score")), IfNull(Field("b"), Value(int64(2)))),
		},
		{
			name: "coalesce is right associative",
			src:  `a ?? b ?? 3 != 4`,
			want: NotEqual(IfNull(Field("a"), IfNull(Field("b"), Value(int64(3)))), Value(int64(4))),
		},
		{
			name: "all comparison operators",
			src:  `a < 1 && b <= 2.5 && c >= 3 && d != nil`,
			want: AllOf(
				Less(Field("a"), Value(int64(1))),
				LessEqual(Field("b"), Value(2.5)),
				GreaterEqual(Field("c"), Value(int64(3))),
				NotEqual(Field("d"), Value(nil)),
			),
		},
		{
			name: "booleans",
			src:  `active == true || archived == false`,
			want: Or{LHS: Equal(Field("active"), Value(true)), RHS: Equal(Field("archived"), Value(false))},
		},
		{
			name: "list membership",
			src:  `[1, 2, -3].contains(id)`,
			want: In{Subject: Field("id"), Values: []any{int64(1), int64(2), int64(-3)}},
		},
		{
			name: "membership of a coalesced subject",
			src:  `["a", "b"].contains(nick ?? "")`,
			want: In{Subject: IfNull(Field("nick"), Value("")), Values: []any{"a", "b"}},
		},
		{
			name: "escaped string",
			src:  `name == "say \"hi\""`,
			want: Equal(Field("name"), Value(`say "hi"`)),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.src, ParseOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Params(t *testing.T) {
	params := map[string]any{
		"name": "Pat",
		"ids":  []int{4, 5},
	}

	got, err := Parse(`name == :name && :ids.contains(id)`, ParseOptions{Params: params})
	require.NoError(t, err)

	assert.Equal(t, And{
		LHS: Equal(Field("name"), Value("Pat")),
		RHS: In{Subject: Field("id"), Values: []any{int64(4), int64(5)}},
	}, got)
}

func TestParse_Resolve(t *testing.T) {
	opts := ParseOptions{Resolve: func(name string) (schema.FieldID, bool) {
		if name == "favoriteColor" {
			return "FavoriteColor", true
		}
		return "", false
	}}

	got, err := Parse(`favoriteColor == "red"`, opts)
	require.NoError(t, err)
	assert.Equal(t, Equal(Field("FavoriteColor"), Value("red")), got)

	_, err = Parse(`shoeSize == 9`, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "shoeSize"`)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		msg  string
	}{
		{"empty", "   ", "empty predicate"},
		{"bare value", `name`, "expected a condition"},
		{"dangling operator", `name ==`, ""},
		{"chained comparison", `a < b < c`, ""},
		{"value in conjunction", `name == "x" && age`, "is not a condition"},
		{"comparing conditions", `(a == 1) == (b == 2)`, "compares conditions"},
		{"missing param", `name == :who`, `no value for parameter "who"`},
		{"mixed list", `[1, "two"].contains(id)`, "share one type"},
		{"list without contains", `[1, 2]`, ""},
		{"negative string", `[-"x"].contains(id)`, "cannot negate"},
		{"scalar param as list", `:n.contains(id)`, "expected a list"},
		{"prefix unwrap", `!age > 3`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src, ParseOptions{Params: map[string]any{"n": 3}})
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %T", err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("&&", ParseOptions{}) })
	assert.NotPanics(t, func() { MustParse("a == 1", ParseOptions{}) })
}
