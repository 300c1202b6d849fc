package shaderc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// parseExprString is a small test helper wrapping NewLexer/NewParser for
// standalone expression parsing.
func parseExprString(t *testing.T, src string) Node {
	t.Helper()
	p := NewParser(NewLexer(src))
	n, err := p.ParseExpr()
	require.Nil(t, err, "%v", err)
	return n
}

// TestParserPrecedence exercises the two-stack precedence parser's core
// property (spec.md §8): "-a + b * c" must bind as
// Add(Negate(a), Mul(b, c)), i.e. unary negate binds tighter than either
// binary operator and multiplication binds tighter than addition.
func TestParserPrecedence(t *testing.T) {
	n := parseExprString(t, "-a + b * c")

	add, ok := n.(*BinaryExpr)
	require.True(t, ok, "expected top-level BinaryExpr, got %T", n)
	require.Equal(t, BinAdd, add.Op)

	neg, ok := add.LHS.(*UnaryExpr)
	require.True(t, ok, "expected LHS to be UnaryExpr, got %T", add.LHS)
	require.Equal(t, UnaryNegate, neg.Op)
	sym, ok := neg.Expr.(*Symbol)
	require.True(t, ok)
	require.Equal(t, "a", sym.Name)

	mul, ok := add.RHS.(*BinaryExpr)
	require.True(t, ok, "expected RHS to be BinaryExpr, got %T", add.RHS)
	require.Equal(t, BinMul, mul.Op)
	lhsSym, ok := mul.LHS.(*Symbol)
	require.True(t, ok)
	require.Equal(t, "b", lhsSym.Name)
	rhsSym, ok := mul.RHS.(*Symbol)
	require.True(t, ok)
	require.Equal(t, "c", rhsSym.Name)
}

// TestParserAssignRightAssociative checks that a chain of assignments
// binds right-to-left, per isRightAssociative/hasHigherPrecedence.
func TestParserAssignRightAssociative(t *testing.T) {
	n := parseExprString(t, "a = b = c")

	outer, ok := n.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, BinAssign, outer.Op)
	require.Equal(t, "a", outer.LHS.(*Symbol).Name)

	inner, ok := outer.RHS.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, BinAssign, inner.Op)
	require.Equal(t, "b", inner.LHS.(*Symbol).Name)
	require.Equal(t, "c", inner.RHS.(*Symbol).Name)
}

// TestParserConstructExprVsCall checks the name-resolution-at-parse-time
// split between a builtin-type construct and an ordinary call (spec.md
// §4.4: "name a builtin type -> ConstructExpr, else -> CallExpr").
func TestParserConstructExprVsCall(t *testing.T) {
	n := parseExprString(t, "vec3(x, y, z)")
	agg, ok := n.(*Aggregate)
	require.True(t, ok, "expected Aggregate, got %T", n)
	require.Equal(t, AggregateConstructExpr, agg.AggKind)
	require.Equal(t, MakeVector(ScalarFloat, 3), agg.Typ)
	require.Len(t, agg.Nodes, 3)

	n2 := parseExprString(t, "normalize(x)")
	call, ok := n2.(*CallExpr)
	require.True(t, ok, "expected CallExpr, got %T", n2)
	require.Equal(t, "normalize", call.Name)
	require.Len(t, call.Arguments, 1)
}

// TestParserFunctionDecl exercises the full top-level grammar for a
// vertex entry point, the shape spec.md §8 scenario 6 requires.
func TestParserFunctionDecl(t *testing.T) {
	src := "fn vertex_main(let pos: vec3) { vec4(pos, 1.0) }"
	root, err := NewParser(NewLexer(src)).Parse()
	require.Nil(t, err, "%v", err)
	require.Len(t, root.TopLevel, 1)

	fn, ok := root.TopLevel[0].(*FunctionDecl)
	require.True(t, ok)
	require.Equal(t, "vertex_main", fn.Name)
	require.Len(t, fn.Parameters, 1)
	require.Equal(t, "pos", fn.Parameters[0].Name)
	require.Equal(t, MakeVector(ScalarFloat, 3), fn.Parameters[0].Type)
	require.Equal(t, MakeScalar(ScalarVoid), fn.ReturnType)
	require.Len(t, fn.Block.Nodes, 1)

	_, ok = fn.Block.Nodes[0].(*ReturnStmt)
	require.True(t, ok, "expected implicit ReturnStmt, got %T", fn.Block.Nodes[0])
}
