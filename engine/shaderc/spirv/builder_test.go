package spirv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderDedupsTypes(t *testing.T) {
	b := NewBuilder()
	f1 := b.FloatType(32)
	f2 := b.FloatType(32)
	require.Equal(t, f1, f2)

	v1 := b.VectorType(f1, 3)
	v2 := b.VectorType(f1, 3)
	require.Equal(t, v1, v2)

	v4 := b.VectorType(f1, 4)
	require.NotEqual(t, v1, v4)
}

func TestBuilderDedupsScalarConstants(t *testing.T) {
	b := NewBuilder()
	floatType := b.FloatType(32)
	c1 := b.ScalarConstant(floatType, 0x3F800000)
	c2 := b.ScalarConstant(floatType, 0x3F800000)
	require.Equal(t, c1, c2)

	c3 := b.ScalarConstant(floatType, 0x40000000)
	require.NotEqual(t, c1, c3)
}

func TestBuilderDedupsCompositeConstants(t *testing.T) {
	b := NewBuilder()
	floatType := b.FloatType(32)
	vecType := b.VectorType(floatType, 2)
	x := b.ScalarConstant(floatType, 0)
	y := b.ScalarConstant(floatType, 1)

	c1 := b.CompositeConstant(vecType, []Id{x, y})
	c2 := b.CompositeConstant(vecType, []Id{x, y})
	require.Equal(t, c1, c2)

	c3 := b.CompositeConstant(vecType, []Id{y, x})
	require.NotEqual(t, c1, c3)
}

func TestAssembleHeader(t *testing.T) {
	b := NewBuilder()
	b.SetMemoryModel(AddressingLogical, MemoryModelGLSL450)
	words := b.Assemble()

	require.GreaterOrEqual(t, len(words), 5)
	require.Equal(t, MagicNumber, words[0])
	require.Equal(t, Version, words[1])
	require.Equal(t, GeneratorMagic, words[2])
	require.Equal(t, b.nextID, words[3])
}

func TestFunctionBlocksGetUniqueLabels(t *testing.T) {
	b := NewBuilder()
	voidType := b.VoidType()
	fnType := b.FunctionType(voidType, nil)

	fn1 := b.AppendFunction(voidType, fnType)
	block1 := fn1.AppendBlock(b)
	fn2 := b.AppendFunction(voidType, fnType)
	block2 := fn2.AppendBlock(b)

	require.NotEqual(t, Id(0), block1.Label)
	require.NotEqual(t, Id(0), block2.Label)
	require.NotEqual(t, block1.Label, block2.Label)
}
