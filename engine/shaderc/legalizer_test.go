package shaderc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func legalizeSource(t *testing.T, src string) *HIRRoot {
	t.Helper()
	root, parseErr := NewParser(NewLexer(src)).Parse()
	require.Nil(t, parseErr, "%v", parseErr)
	hirRoot, legalErr := Legalize(root)
	require.Nil(t, legalErr, "%v", legalErr)
	return hirRoot
}

// TestLegalizerSpecializesMatrixTimesVector is spec.md §8 scenario 5:
// `y * x` with y: mat3, x: vec3 must specialize to MatrixTimesVector with
// result type vec3.
func TestLegalizerSpecializesMatrixTimesVector(t *testing.T) {
	src := "fn transform(let y: mat3, let x: vec3) : vec3 { y * x }"
	hirRoot := legalizeSource(t, src)
	require.Len(t, hirRoot.TopLevel, 1)

	fn, ok := hirRoot.TopLevel[0].(*HIRFunctionDecl)
	require.True(t, ok)
	require.Len(t, fn.Body.Nodes, 1)

	ret, ok := fn.Body.Nodes[0].(*HIRReturnStmt)
	require.True(t, ok, "expected HIRReturnStmt, got %T", fn.Body.Nodes[0])

	mul, ok := ret.Expr.(*HIRBinaryExpr)
	require.True(t, ok)
	require.Equal(t, HIRMatrixTimesVector, mul.Op)
	require.Equal(t, MakeVector(ScalarFloat, 3), mul.Type())
}

// TestLegalizerVertexEntryImplicitReturn exercises spec.md §8 scenario 6:
// a vertex entry point whose body is a single implicit-return
// ConstructExpr must legalise with an auto-bound gl_Position output.
func TestLegalizerVertexEntryImplicitReturn(t *testing.T) {
	src := "fn vertex_main(let pos: vec3) { vec4(pos, 1.0) }"
	hirRoot := legalizeSource(t, src)
	fn := hirRoot.TopLevel[0].(*HIRFunctionDecl)

	require.True(t, fn.IsSpecial(SpecialFunctionVertexEntry))
	require.Len(t, fn.ParameterTypes, 1)
	require.Equal(t, MakeVector(ScalarFloat, 3), fn.ParameterTypes[0])

	position, ok := fn.OutputVariable.(*HIRPipelineVariable)
	require.True(t, ok, "expected vertex entry to bind an OutputVariable")
	require.Equal(t, SpecialPipelineVariablePosition, position.Special)
	require.True(t, position.IsOutput)

	ret := fn.Body.Nodes[0].(*HIRReturnStmt)
	construct, ok := ret.Expr.(*HIRConstructExpr)
	require.True(t, ok, "expected HIRConstructExpr, got %T", ret.Expr)
	require.Equal(t, MakeVector(ScalarFloat, 4), construct.Type())
}

func TestLegalizerRejectsRedefinition(t *testing.T) {
	src := "fn f() { let x = 1.0; let x = 2.0; }"
	root, parseErr := NewParser(NewLexer(src)).Parse()
	require.Nil(t, parseErr, "%v", parseErr)
	_, err := Legalize(root)
	require.NotNil(t, err)
	require.True(t, err.HasErrors())
}

func TestLegalizerRejectsUndeclaredIdentifier(t *testing.T) {
	src := "fn f() { y }"
	root, parseErr := NewParser(NewLexer(src)).Parse()
	require.Nil(t, parseErr, "%v", parseErr)
	_, err := Legalize(root)
	require.NotNil(t, err)
	require.True(t, err.HasErrors())
}
