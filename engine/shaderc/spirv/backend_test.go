package spirv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima/engine/shaderc"
)

// compile runs src through the full lexer/parser/legaliser/backend
// pipeline and returns the resulting Builder, for assembly-level
// assertions against spec.md §8's SPIR-V testable properties.
func compile(t *testing.T, src string) *Builder {
	t.Helper()
	root, parseErr := shaderc.NewParser(shaderc.NewLexer(src)).Parse()
	require.Nil(t, parseErr, "%v", parseErr)
	hirRoot, legalErr := shaderc.Legalize(root)
	require.Nil(t, legalErr, "%v", legalErr)

	builder := NewBuilder()
	Build(builder, hirRoot)
	return builder
}

// TestVertexEntryPoint is spec.md §8 scenario 6: vertex_main must emit a
// Vertex OpEntryPoint, a Location-0 vec3 input, a BuiltIn Position vec4
// output, and a store into it followed by a terminating OpReturn.
func TestVertexEntryPoint(t *testing.T) {
	src := "fn vertex_main(let pos: vec3) { vec4(pos, 1.0) }"
	b := compile(t, src)

	require.Len(t, b.entryPoints, 1)
	ep := b.entryPoints[0]
	require.Equal(t, ExecutionModelVertex, ep.Model)
	require.Equal(t, "vertex_main", ep.Name)

	var inputID, positionID Id
	for _, v := range ep.Variables {
		require.Equal(t, OpVariable, v.Op)
		class := StorageClass(v.Operands[0])
		switch class {
		case StorageClassInput:
			inputID = v.ID()
		case StorageClassOutput:
			positionID = v.ID()
		}
	}
	require.NotZero(t, inputID, "expected an Input-class pipeline variable")
	require.NotZero(t, positionID, "expected an Output-class pipeline variable")

	var sawLocation, sawBuiltIn bool
	for _, d := range b.decorations {
		require.Equal(t, OpDecorate, d.Op)
		target := d.Operands[0]
		switch Decoration(d.Operands[1]) {
		case DecorationLocation:
			require.Equal(t, inputID, target)
			require.Equal(t, Word(0), d.Operands[2])
			sawLocation = true
		case DecorationBuiltIn:
			require.Equal(t, positionID, target)
			require.Equal(t, Word(BuiltInPosition), d.Operands[2])
			sawBuiltIn = true
		}
	}
	require.True(t, sawLocation, "expected a Location decoration on the input")
	require.True(t, sawBuiltIn, "expected a BuiltIn decoration on gl_Position")

	require.Len(t, ep.Function.Blocks, 1)
	block := ep.Function.Blocks[0]
	require.True(t, block.IsTerminated())

	last := block.Instructions[len(block.Instructions)-1]
	require.Equal(t, OpReturn, last.Op)

	var sawStore bool
	for _, inst := range block.Instructions {
		if inst.Op == OpStore && inst.Operands[0] == positionID {
			sawStore = true
		}
	}
	require.True(t, sawStore, "expected a store into gl_Position before the return")
}

// TestModuleHeaderAndSingleMemoryModel checks the module-level invariants
// from spec.md §8: the magic header, a single OpMemoryModel, and one
// OpEntryPoint per special function.
func TestModuleHeaderAndSingleMemoryModel(t *testing.T) {
	src := "fn vertex_main(let pos: vec3) { vec4(pos, 1.0) }"
	b := compile(t, src)
	words := b.Assemble()

	require.Equal(t, MagicNumber, words[0])
	require.Equal(t, Version, words[1])

	memoryModelCount := 0
	entryPointCount := 0
	for i := 5; i < len(words); {
		op := Op(words[i] & 0xFFFF)
		length := int(words[i] >> 16)
		switch op {
		case OpMemoryModel:
			memoryModelCount++
		case OpEntryPoint:
			entryPointCount++
		}
		i += length
	}
	require.Equal(t, 1, memoryModelCount)
	require.Equal(t, 1, entryPointCount)
}

// TestMatrixTimesVectorLowersToTypedOpcode is spec.md §8 scenario 5 at
// the SPIR-V level: y * x with y: mat3, x: vec3 must lower to
// OpMatrixTimesVector with a vec3 result type.
func TestMatrixTimesVectorLowersToTypedOpcode(t *testing.T) {
	src := "fn transform(let y: mat3, let x: vec3) : vec3 { y * x }"
	b := compile(t, src)

	require.Len(t, b.functions, 1)
	fn := b.functions[0]
	require.Len(t, fn.Blocks, 1)

	var found bool
	for _, inst := range fn.Blocks[0].Instructions {
		if inst.Op == OpMatrixTimesVector {
			found = true
			vecType := b.typeDefs[inst.TypeID]
			require.Equal(t, OpTypeVector, vecType.Op)
			require.Equal(t, Word(3), vecType.Operands[1])
		}
	}
	require.True(t, found, "expected an OpMatrixTimesVector instruction")
}
