package spirv

import (
	"fmt"
	"math"

	"github.com/spaghettifunk/anima/engine/shaderc"
)

// Value wraps an already-emitted instruction's (id, type, creator op,
// operands), so downstream lowering can inspect how a value was produced
// without re-walking the instruction list — matches Backend::Value in
// spv_backend.cc.
type Value struct {
	id        Id
	typeID    Id
	creatorOp Op
	operands  []Word
}

func valueFromInstruction(inst *Instruction) Value {
	return Value{id: inst.ID(), typeID: inst.TypeIDOf(), creatorOp: inst.Op, operands: inst.Operands}
}

func (v Value) IsNull() bool       { return v.id == 0 }
func (v Value) ID() Id             { return v.id }
func (v Value) TypeID() Id         { return v.typeID }
func (v Value) CreatorOp() Op      { return v.creatorOp }
func (v Value) Operands() []Word   { return v.operands }

// accessChain is either an lvalue (a pointer Value awaiting OpLoad/
// OpStore) or an rvalue (already the value itself), per spec.md §9's
// "access chain" design note. This backend never needs true multi-index
// chains (no arrays/structs yet), so it degenerates to a single base
// pointer/value, matching the HIR's current expressiveness.
type accessChain struct {
	base    Value
	isRvalue bool
}

func fromLvalue(v Value) accessChain { return accessChain{base: v} }
func fromRvalue(v Value) accessChain { return accessChain{base: v, isRvalue: true} }

// Backend lowers one shaderc.HIRRoot into a Builder's module, per
// spec.md §4.4. Ported from Backend in spv_backend.cc, generalized from
// its single-expression Value/AccessChain split.
type Backend struct {
	builder *Builder
	std450  Id

	function   *Function
	block      *Block
	entryPoint *EntryPoint

	functionMap map[*shaderc.HIRFunctionDecl]*Function
	variableMap map[shaderc.HIRExpr]Value

	// entryOutputChain is the access chain an entry point's (explicit or
	// implicit) return statement stores into: gl_Position for a vertex
	// entry, the synthesized location-0 Output variable for a fragment
	// entry. Nil outside an entry point, where a return instead emits
	// OpReturnValue.
	entryOutputChain *accessChain
}

// NewBackend constructs a Backend over builder, setting up the module's
// memory model and importing GLSL.std.450 exactly once per spec.md §4.4.
func NewBackend(builder *Builder) *Backend {
	builder.SetMemoryModel(AddressingPhysicalStorageBuffer64, MemoryModelVulkan)
	return &Backend{
		builder:     builder,
		std450:      builder.ImportExtension("GLSL.std.450"),
		functionMap: make(map[*shaderc.HIRFunctionDecl]*Function),
		variableMap: make(map[shaderc.HIRExpr]Value),
	}
}

// Build lowers every top-level node of root into b's Builder.
func Build(builder *Builder, root *shaderc.HIRRoot) {
	backend := NewBackend(builder)
	for _, n := range root.TopLevel {
		backend.lowerTopLevel(n)
	}
}

func (be *Backend) lowerScalarType(scalar shaderc.ScalarType) Id {
	switch scalar {
	case shaderc.ScalarVoid:
		return be.builder.VoidType()
	case shaderc.ScalarFloat:
		return be.builder.FloatType(32)
	case shaderc.ScalarInt:
		return be.builder.IntType(32, true)
	case shaderc.ScalarUint:
		return be.builder.IntType(32, false)
	default:
		panic(fmt.Sprintf("spirv: unsupported scalar type %v", scalar))
	}
}

func (be *Backend) lowerType(t shaderc.Type) Id {
	scalar := be.lowerScalarType(t.Scalar)
	if t.IsScalar() {
		return scalar
	}
	vector := be.builder.VectorType(scalar, t.VectorSize)
	if t.IsVector() {
		return vector
	}
	return be.builder.MatrixType(vector, t.MatrixCols)
}

// loadAccessChain realises an rvalue from chain, emitting OpLoad only if
// chain is an lvalue (spec.md §4.4: "load_access_chain materializes an
// OpLoad only on demand").
func (be *Backend) loadAccessChain(chain accessChain) Value {
	if chain.isRvalue {
		return chain.base
	}
	// An lvalue's base is a variable of pointer type; the loaded value has
	// the pointer's pointee type (its second operand).
	typeID := chain.base.TypeID()
	if ptr := be.builder.LookupType(typeID); ptr != nil && ptr.Op == OpTypePointer {
		typeID = ptr.Operands[1]
	}
	inst := be.block.append(be.builder, OpLoad, typeID)
	inst.AppendOperand(chain.base.ID())
	return valueFromInstruction(inst)
}

// storeAccessChain emits an OpStore into chain's base pointer; panics if
// chain is an rvalue (a backend invariant violation, mirroring the
// teacher's VULL_ASSERT).
func (be *Backend) storeAccessChain(chain accessChain, rvalue Value) {
	if chain.isRvalue {
		panic("spirv: cannot store into an rvalue access chain")
	}
	inst := be.block.appendVoid(OpStore)
	inst.AppendOperand(chain.base.ID())
	inst.AppendOperand(rvalue.ID())
}

func lowerBinaryOp(op shaderc.HIRBinaryOp) Op {
	switch op {
	case shaderc.HIRAdd:
		return OpFAdd
	case shaderc.HIRSub:
		return OpFSub
	case shaderc.HIRDiv:
		return OpFDiv
	case shaderc.HIRMod:
		return OpFMod
	case shaderc.HIRScalarTimesScalar, shaderc.HIRVectorTimesVector:
		return OpFMul
	case shaderc.HIRVectorTimesScalar:
		return OpVectorTimesScalar
	case shaderc.HIRMatrixTimesScalar:
		return OpMatrixTimesScalar
	case shaderc.HIRVectorTimesMatrix:
		return OpVectorTimesMatrix
	case shaderc.HIRMatrixTimesVector:
		return OpMatrixTimesVector
	case shaderc.HIRMatrixTimesMatrix:
		return OpMatrixTimesMatrix
	default:
		panic(fmt.Sprintf("spirv: binary op %v has no SPIR-V opcode", op))
	}
}

func (be *Backend) lowerBinaryExpr(expr *shaderc.HIRBinaryExpr) accessChain {
	lhsChain := be.lowerExpr(expr.LHS)
	rhsChain := be.lowerExpr(expr.RHS)

	var lhs Value
	if expr.Op != shaderc.HIRAssign {
		lhs = be.loadAccessChain(lhsChain)
	}
	rhs := be.loadAccessChain(rhsChain)

	if expr.Op != shaderc.HIRAssign {
		inst := be.block.append(be.builder, lowerBinaryOp(expr.Op), be.lowerType(expr.Type()))
		inst.AppendOperand(lhs.ID())
		inst.AppendOperand(rhs.ID())
		rhs = valueFromInstruction(inst)
	}

	if expr.IsAssign {
		be.storeAccessChain(lhsChain, rhs)
		return lhsChain
	}
	return fromRvalue(rhs)
}

func (be *Backend) lowerCallExpr(expr *shaderc.HIRCallExpr) accessChain {
	var arguments []Id
	for _, arg := range expr.Arguments {
		arguments = append(arguments, be.loadAccessChain(be.lowerExpr(arg)).ID())
	}
	resultType := be.lowerType(expr.Type())
	if expr.Callee.ExtInst != nil {
		inst := be.block.append(be.builder, OpExtInst, resultType)
		inst.AppendOperand(be.std450)
		inst.AppendOperand(*expr.Callee.ExtInst)
		inst.ExtendOperands(arguments)
		return fromRvalue(valueFromInstruction(inst))
	}
	callee := be.functionMap[expr.Callee.Function]
	inst := be.block.append(be.builder, OpFunctionCall, resultType)
	inst.AppendOperand(callee.DefInstID())
	inst.ExtendOperands(arguments)
	return fromRvalue(valueFromInstruction(inst))
}

func (be *Backend) lowerConstant(c *shaderc.HIRConstant) accessChain {
	typeID := be.lowerScalarType(c.Type().Scalar)
	var bits Word
	if c.Type().Scalar == shaderc.ScalarFloat {
		bits = float32Bits(c.Decimal)
	} else {
		bits = Word(c.Integer)
	}
	id := be.builder.ScalarConstant(typeID, bits)
	return fromRvalue(valueFromInstruction(be.builder.LookupConstant(id)))
}

func (be *Backend) lowerConstructExpr(expr *shaderc.HIRConstructExpr) accessChain {
	var values []Value
	for _, v := range expr.Values {
		values = append(values, be.loadAccessChain(be.lowerExpr(v)))
	}

	var constituents []Id
	isConstant := true
	for _, value := range values {
		switch value.CreatorOp() {
		case OpConstant:
			constituents = append(constituents, value.ID())
		case OpConstantComposite, OpCompositeConstruct:
			isConstant = isConstant && value.CreatorOp() == OpConstantComposite
			constituents = append(constituents, value.Operands()...)
		default:
			isConstant = false
			typeInfo := be.builder.LookupType(value.TypeID())
			if typeInfo == nil || typeInfo.Op != OpTypeVector {
				// A scalar non-constant operand (e.g. a loaded float
				// local) contributes itself directly; there is nothing
				// to decompose.
				constituents = append(constituents, value.ID())
				continue
			}
			vectorSize := typeInfo.Operands[1]
			scalarType := be.builder.InnerType(value.TypeID())
			for i := Word(0); i < vectorSize; i++ {
				inst := be.block.append(be.builder, OpCompositeExtract, scalarType)
				inst.AppendOperand(value.ID())
				inst.AppendOperand(i)
				constituents = append(constituents, inst.ID())
			}
		}
	}

	if len(constituents) == 1 {
		for i := 1; i < int(expr.Type().VectorSize); i++ {
			constituents = append(constituents, constituents[0])
		}
	}

	compositeType := be.lowerType(expr.Type())
	if isConstant {
		id := be.builder.CompositeConstant(compositeType, constituents)
		return fromRvalue(valueFromInstruction(be.builder.LookupConstant(id)))
	}

	inst := be.block.append(be.builder, OpCompositeConstruct, compositeType)
	inst.ExtendOperands(constituents)
	return fromRvalue(valueFromInstruction(inst))
}

func (be *Backend) lowerUnaryExpr(expr *shaderc.HIRUnaryExpr) accessChain {
	value := be.loadAccessChain(be.lowerExpr(expr.Expr))
	inst := be.block.append(be.builder, OpFNegate, be.lowerType(expr.Type()))
	inst.AppendOperand(value.ID())
	return fromRvalue(valueFromInstruction(inst))
}

func (be *Backend) materialisePipelineVariable(pv *shaderc.HIRPipelineVariable) Value {
	class := StorageClassInput
	if pv.IsOutput {
		class = StorageClassOutput
	}
	inst := be.entryPoint.AppendVariable(be.builder, be.lowerType(pv.Type()), class)
	if pv.Special == shaderc.SpecialPipelineVariablePosition {
		be.builder.Decorate(inst.ID(), DecorationBuiltIn, Word(BuiltInPosition))
	} else {
		be.builder.Decorate(inst.ID(), DecorationLocation, pv.Location)
	}
	return valueFromInstruction(inst)
}

func (be *Backend) materialiseVariable(expr shaderc.HIRExpr) Value {
	switch v := expr.(type) {
	case *shaderc.HIRLocalVariable:
		inst := be.function.AppendVariable(be.builder, be.lowerType(v.Type()))
		return valueFromInstruction(&inst)
	case *shaderc.HIRArgument:
		// Non-vertex-entry parameters lower to plain Arguments (see
		// Legalizer.lowerFunctionDecl). The backend emits no
		// OpFunctionParameter instructions, so an Argument is
		// materialised as an ordinary function-local variable; it does
		// not receive the caller's argument value.
		inst := be.function.AppendVariable(be.builder, be.lowerType(v.Type()))
		return valueFromInstruction(&inst)
	case *shaderc.HIRPipelineVariable:
		return be.materialisePipelineVariable(v)
	case *shaderc.HIRPushConstant:
		inst := be.entryPoint.AppendVariable(be.builder, be.lowerType(v.Type()), StorageClassPushConstant)
		return valueFromInstruction(inst)
	default:
		panic(fmt.Sprintf("spirv: %T cannot be materialised as a variable", expr))
	}
}

func (be *Backend) lowerVariable(expr shaderc.HIRExpr) accessChain {
	if v, ok := be.variableMap[expr]; ok {
		return fromLvalue(v)
	}
	v := be.materialiseVariable(expr)
	be.variableMap[expr] = v
	return fromLvalue(v)
}

func (be *Backend) lowerExpr(expr shaderc.HIRExpr) accessChain {
	switch e := expr.(type) {
	case *shaderc.HIRBinaryExpr:
		return be.lowerBinaryExpr(e)
	case *shaderc.HIRCallExpr:
		return be.lowerCallExpr(e)
	case *shaderc.HIRConstant:
		return be.lowerConstant(e)
	case *shaderc.HIRConstructExpr:
		return be.lowerConstructExpr(e)
	case *shaderc.HIRUnaryExpr:
		return be.lowerUnaryExpr(e)
	default:
		return be.lowerVariable(expr)
	}
}

func (be *Backend) lowerReturnStmt(stmt *shaderc.HIRReturnStmt) {
	rvalue := be.loadAccessChain(be.lowerExpr(stmt.Expr))
	if be.entryOutputChain != nil {
		be.storeAccessChain(*be.entryOutputChain, rvalue)
		return
	}
	inst := be.block.appendVoid(OpReturnValue)
	inst.AppendOperand(rvalue.ID())
}

func (be *Backend) lowerStmt(n shaderc.HIRNode) {
	switch stmt := n.(type) {
	case *shaderc.HIRExprStmt:
		be.lowerExpr(stmt.Expr)
	case *shaderc.HIRReturnStmt:
		be.lowerReturnStmt(stmt)
	default:
		panic(fmt.Sprintf("spirv: %T is not a statement", n))
	}
}

func (be *Backend) lowerBlock(block *shaderc.HIRAggregate) {
	be.block = be.function.AppendBlock(be.builder)
	for _, stmt := range block.Nodes {
		be.lowerStmt(stmt)
	}
}

func (be *Backend) lowerFunctionDecl(decl *shaderc.HIRFunctionDecl) {
	if !decl.HasBody() {
		return
	}

	isVertexEntry := decl.IsSpecial(shaderc.SpecialFunctionVertexEntry)
	isFragmentEntry := decl.IsSpecial(shaderc.SpecialFunctionFragmentEntry)

	var parameterTypes []Id
	for _, t := range decl.ParameterTypes {
		parameterTypes = append(parameterTypes, be.lowerType(t))
	}

	if isVertexEntry || isFragmentEntry {
		returnType := be.builder.VoidType()
		be.function = be.builder.AppendFunction(returnType, be.builder.FunctionType(returnType, nil))
	} else {
		returnType := be.lowerType(decl.ReturnType)
		be.function = be.builder.AppendFunction(returnType, be.builder.FunctionType(returnType, parameterTypes))
	}
	be.functionMap[decl] = be.function

	be.entryOutputChain = nil
	if isVertexEntry {
		be.entryPoint = be.builder.AppendEntryPoint("vertex_main", be.function, ExecutionModelVertex)
		if decl.OutputVariable != nil {
			chain := be.lowerVariable(decl.OutputVariable)
			be.entryOutputChain = &chain
		}
	} else if isFragmentEntry {
		be.entryPoint = be.builder.AppendEntryPoint("fragment_main", be.function, ExecutionModelFragment)
		outputType := be.lowerType(decl.ReturnType)
		output := be.entryPoint.AppendVariable(be.builder, outputType, StorageClassOutput)
		be.builder.Decorate(output.ID(), DecorationLocation, 0)
		chain := fromLvalue(valueFromInstruction(output))
		be.entryOutputChain = &chain
	}

	be.lowerBlock(decl.Body)
	be.entryPoint = nil

	if !be.block.IsTerminated() {
		be.block.appendVoid(OpReturn)
	}
}

func (be *Backend) lowerTopLevel(n shaderc.HIRNode) {
	switch decl := n.(type) {
	case *shaderc.HIRFunctionDecl:
		be.lowerFunctionDecl(decl)
	default:
		panic(fmt.Sprintf("spirv: %T is not a top level declaration", n))
	}
}

// float32Bits reinterprets f's IEEE-754 bit pattern as a Word, the
// encoding SPIR-V requires for OpConstant <float-type> literals.
func float32Bits(f float32) Word {
	return math.Float32bits(f)
}
