// Package predicate provides the expression tree for row filters over the
// fields of one record type, and a textual language that parses into it.
//
// # Sealed tree
//
// Expr is a sealed interface using the marker method pattern. Only the node
// types in this package implement it:
//
//	Column    field reference, resolved to a column by the registry
//	Literal   bound constant
//	Coalesce  COALESCE(lhs, rhs)
//	Negate    sign negation of a numeric literal, folded before binding
//	Compare   ==, !=, <, <=, >, >=
//	And, Or   boolean connectives
//	In        membership in a homogeneous list
//
// Backends switch over these types exhaustively (see internal/querysql).
// Trees are immutable values. Nothing inserts grouping for the caller: the
// shape of the tree is the shape of the compiled SQL.
//
// # Construction
//
// Build trees with the constructors (Field, Value, Equal, AllOf, Member, ...)
// or parse them from source:
//
//	Parse(`age >= :min && nickname ?? "" != ""`, ForRegistry(reg, params))
//
// KindOf tells values (columns, literals, coalesces) from conditions, and
// the parser rejects a value where a condition belongs and the reverse.
package predicate
