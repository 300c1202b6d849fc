package spirv

import "fmt"

// Instruction is one assembled SPIR-V instruction: an opcode, an optional
// result type id, an optional result id, and a variable operand list.
// Matches the teacher's Instruction (spv/Builder.hh) closely enough that
// Value::make can wrap one directly.
type Instruction struct {
	Op        Op
	TypeID    Id
	ResultID  Id
	Operands  []Word
	hasResult bool
}

func (i *Instruction) AppendOperand(w Word) { i.Operands = append(i.Operands, w) }
func (i *Instruction) ExtendOperands(ws []Word) { i.Operands = append(i.Operands, ws...) }
func (i *Instruction) ID() Id               { return i.ResultID }
func (i *Instruction) TypeIDOf() Id         { return i.TypeID }

// wordCount returns how many 32-bit words this instruction occupies in
// the final module, including its own opcode/length header word.
func (i *Instruction) wordCount() int {
	n := 1 + len(i.Operands)
	if i.TypeID != 0 {
		n++
	}
	if i.hasResult {
		n++
	}
	return n
}

// Block is one basic block of a Function: a flat instruction list ending
// (once IsTerminated) in a branch/return.
type Block struct {
	Label        Id
	Instructions []Instruction
}

// IsTerminated reports whether the block's last instruction is OpReturn,
// OpReturnValue or OpBranch.
func (b *Block) IsTerminated() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	switch b.Instructions[len(b.Instructions)-1].Op {
	case OpReturn, OpReturnValue, OpBranch:
		return true
	default:
		return false
	}
}

// Function is one SPIR-V function: its OpFunction/OpFunctionEnd pair plus
// a flat list of Blocks (this backend never branches, so there is always
// exactly one).
type Function struct {
	DefID      Id
	TypeID     Id
	ReturnType Id
	Variables  []Instruction // OpVariable Function-storage locals, emitted right after OpFunction/OpLabel
	Blocks     []Block
}

func (f *Function) DefInstID() Id { return f.DefID }

func (f *Function) AppendBlock(b *Builder) *Block {
	f.Blocks = append(f.Blocks, Block{Label: b.allocID()})
	return &f.Blocks[len(f.Blocks)-1]
}

// EntryPoint tracks the Input/Output/UniformConstant/PushConstant
// OpVariable instructions an entry-point function references, collected
// so the module's OpEntryPoint interface list (SPIR-V 1.4+) can name
// them all.
type EntryPoint struct {
	Name      string
	Function  *Function
	Model     ExecutionModel
	Variables []Instruction
}

func (e *EntryPoint) AppendVariable(b *Builder, typeID Id, class StorageClass) *Instruction {
	ptrType := b.pointerType(typeID, class)
	inst := b.newInstruction(OpVariable, ptrType)
	inst.AppendOperand(Word(class))
	e.Variables = append(e.Variables, inst)
	return &e.Variables[len(e.Variables)-1]
}

// typeKey uniquely identifies a structural type for deduplication, per
// spec.md §9: "Maintain a HashMap<TypeKey, Id>".
type typeKey struct {
	op      Op
	a, b, c Word
}

type constantKey struct {
	typeID Id
	bits   Word
}

type compositeKey struct {
	typeID Id
	elems  string
}

// Builder assembles a single SPIR-V module, deduplicating types and
// constants by structural equality as they're requested (spec.md §9).
// Mirrors Builder in original_source/tools/vslc/spv/Builder.cc, extended
// with the additional scalar/vector/matrix/pointer/function type helpers
// the in-engine backend (spv_backend.cc) relies on.
type Builder struct {
	nextID Id

	addressingModel AddressingModel
	memoryModel     MemoryModel
	capabilities    map[Capability]bool
	extInstImports  map[string]Id

	types      map[typeKey]Id
	typeDefs   map[Id]Instruction
	constants  map[constantKey]Id
	composites map[compositeKey]Id
	constDefs  map[Id]Instruction

	functions   []*Function
	entryPoints []*EntryPoint

	decorations []Instruction
}

// NewBuilder constructs an empty Builder. Id 0 is reserved (SPIR-V has no
// <id> 0), so allocation starts at 1.
func NewBuilder() *Builder {
	return &Builder{
		nextID:         1,
		capabilities:   map[Capability]bool{CapabilityShader: true},
		extInstImports: make(map[string]Id),
		types:          make(map[typeKey]Id),
		typeDefs:       make(map[Id]Instruction),
		constants:      make(map[constantKey]Id),
		composites:     make(map[compositeKey]Id),
		constDefs:      make(map[Id]Instruction),
	}
}

func (b *Builder) allocID() Id {
	id := b.nextID
	b.nextID++
	return id
}

func (b *Builder) newInstruction(op Op, typeID Id) Instruction {
	inst := Instruction{Op: op, TypeID: typeID}
	if typeID != 0 {
		inst.ResultID = b.allocID()
		inst.hasResult = true
	}
	return inst
}

// SetMemoryModel records the module's addressing/memory model, per
// spec.md §4.4 ("addressing model PhysicalStorageBuffer64, memory model
// Vulkan"). Also requires the matching capabilities.
func (b *Builder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	b.addressingModel = addressing
	b.memoryModel = memory
	if addressing == AddressingPhysicalStorageBuffer64 {
		b.capabilities[CapabilityPhysicalStorageBufferAddresses] = true
	}
	if memory == MemoryModelVulkan {
		b.capabilities[CapabilityVulkanMemoryModel] = true
	}
}

// ImportExtension returns the <id> of an imported extended-instruction
// set (e.g. "GLSL.std.450"), creating and deduplicating it on first use.
func (b *Builder) ImportExtension(name string) Id {
	if id, ok := b.extInstImports[name]; ok {
		return id
	}
	id := b.allocID()
	b.extInstImports[name] = id
	return id
}

func (b *Builder) internType(key typeKey, build func(id Id) Instruction) Id {
	if id, ok := b.types[key]; ok {
		return id
	}
	id := b.allocID()
	inst := build(id)
	b.types[key] = id
	b.typeDefs[id] = inst
	return id
}

func (b *Builder) VoidType() Id {
	return b.internType(typeKey{op: OpTypeVoid}, func(id Id) Instruction {
		return Instruction{Op: OpTypeVoid, ResultID: id}
	})
}

func (b *Builder) BoolType() Id {
	return b.internType(typeKey{op: OpTypeBool}, func(id Id) Instruction {
		return Instruction{Op: OpTypeBool, ResultID: id}
	})
}

// FloatType returns a floating point type of the given bit width.
func (b *Builder) FloatType(width uint32) Id {
	return b.internType(typeKey{op: OpTypeFloat, a: width}, func(id Id) Instruction {
		return Instruction{Op: OpTypeFloat, ResultID: id, Operands: []Word{width}}
	})
}

// IntType returns an integer type of the given width and signedness.
func (b *Builder) IntType(width uint32, signed bool) Id {
	sign := Word(0)
	if signed {
		sign = 1
	}
	return b.internType(typeKey{op: OpTypeInt, a: width, b: sign}, func(id Id) Instruction {
		return Instruction{Op: OpTypeInt, ResultID: id, Operands: []Word{width, sign}}
	})
}

func (b *Builder) VectorType(component Id, size uint8) Id {
	return b.internType(typeKey{op: OpTypeVector, a: component, b: Word(size)}, func(id Id) Instruction {
		return Instruction{Op: OpTypeVector, ResultID: id, Operands: []Word{component, Word(size)}}
	})
}

func (b *Builder) MatrixType(columnType Id, cols uint8) Id {
	return b.internType(typeKey{op: OpTypeMatrix, a: columnType, b: Word(cols)}, func(id Id) Instruction {
		return Instruction{Op: OpTypeMatrix, ResultID: id, Operands: []Word{columnType, Word(cols)}}
	})
}

func (b *Builder) pointerType(pointee Id, class StorageClass) Id {
	return b.internType(typeKey{op: OpTypePointer, a: Word(class), b: pointee}, func(id Id) Instruction {
		return Instruction{Op: OpTypePointer, ResultID: id, Operands: []Word{Word(class), pointee}}
	})
}

// FunctionType interns (and dedups) an OpTypeFunction for the given
// return type and parameter type list.
func (b *Builder) FunctionType(returnType Id, params []Id) Id {
	// The key holds the return type, the parameter count and the first
	// parameter type; a hit is reused only if the full parameter list
	// matches, otherwise a new type is interned under the same key.
	key := typeKey{op: OpTypeFunction, a: returnType, b: Word(len(params))}
	if len(params) > 0 {
		key.c = params[0]
	}
	if id, ok := b.types[key]; ok {
		if sameOperands(b.typeDefs[id].Operands[1:], params) {
			return id
		}
	}
	id := b.allocID()
	inst := Instruction{Op: OpTypeFunction, ResultID: id, Operands: append([]Word{returnType}, params...)}
	b.types[key] = id
	b.typeDefs[id] = inst
	return id
}

func sameOperands(a []Word, b []Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// LookupType returns the Instruction that defines typeID, for callers
// that need to inspect a type's structure (e.g. the backend's
// construct-expr vector-size lookup).
func (b *Builder) LookupType(typeID Id) *Instruction {
	if inst, ok := b.typeDefs[typeID]; ok {
		return &inst
	}
	return nil
}

// InnerType returns the element type of a vector type (or, for a scalar
// type id passed by mistake, the id itself) — used when a pointer to a
// vector must be loaded/accessed one component at a time.
func (b *Builder) InnerType(typeID Id) Id {
	if inst, ok := b.typeDefs[typeID]; ok && inst.Op == OpTypeVector {
		return inst.Operands[0]
	}
	return typeID
}

// ScalarConstant interns a scalar OpConstant of the given type, memoized
// by (type, bit pattern) per spec.md §9.
func (b *Builder) ScalarConstant(typeID Id, bits Word) Id {
	key := constantKey{typeID: typeID, bits: bits}
	if id, ok := b.constants[key]; ok {
		return id
	}
	id := b.allocID()
	b.constants[key] = id
	b.constDefs[id] = Instruction{Op: OpConstant, TypeID: typeID, ResultID: id, Operands: []Word{bits}}
	return id
}

// CompositeConstant interns an OpConstantComposite, memoized by
// (type, element id list) per spec.md §9.
func (b *Builder) CompositeConstant(typeID Id, elems []Id) Id {
	key := compositeKey{typeID: typeID, elems: joinWords(elems)}
	if id, ok := b.composites[key]; ok {
		return id
	}
	id := b.allocID()
	b.composites[key] = id
	b.constDefs[id] = Instruction{Op: OpConstantComposite, TypeID: typeID, ResultID: id, Operands: append([]Word{}, elems...)}
	return id
}

func joinWords(ws []Word) string {
	s := ""
	for _, w := range ws {
		s += fmt.Sprintf("%d,", w)
	}
	return s
}

// LookupConstant returns the Instruction that defines a constant/
// constant-composite id, so the backend can wrap it in a Value without
// re-deriving its creator op.
func (b *Builder) LookupConstant(id Id) *Instruction {
	if inst, ok := b.constDefs[id]; ok {
		return &inst
	}
	return nil
}

// AppendFunction starts a new function definition.
func (b *Builder) AppendFunction(returnType, functionType Id) *Function {
	fn := &Function{
		DefID:      b.allocID(),
		TypeID:     functionType,
		ReturnType: returnType,
	}
	b.functions = append(b.functions, fn)
	return fn
}

// AppendEntryPoint registers fn as an entry point under the given
// execution model.
func (b *Builder) AppendEntryPoint(name string, fn *Function, model ExecutionModel) *EntryPoint {
	ep := &EntryPoint{Name: name, Function: fn, Model: model}
	b.entryPoints = append(b.entryPoints, ep)
	return ep
}

// Decorate records an OpDecorate with a single literal operand.
func (b *Builder) Decorate(target Id, decoration Decoration, literal Word) {
	b.decorations = append(b.decorations, Instruction{
		Op:       OpDecorate,
		Operands: []Word{target, Word(decoration), literal},
	})
}

// AppendVariable creates a Function-storage local variable inside fn.
func (f *Function) AppendVariable(b *Builder, typeID Id) Instruction {
	ptrType := b.pointerType(typeID, StorageClassFunction)
	inst := b.newInstruction(OpVariable, ptrType)
	inst.AppendOperand(Word(StorageClassFunction))
	f.Variables = append(f.Variables, inst)
	return f.Variables[len(f.Variables)-1]
}

// append creates a new value-producing instruction in block.
func (blk *Block) append(b *Builder, op Op, typeID Id) *Instruction {
	inst := b.newInstruction(op, typeID)
	blk.Instructions = append(blk.Instructions, inst)
	return &blk.Instructions[len(blk.Instructions)-1]
}

// appendVoid creates a new instruction in block with no result (e.g.
// OpStore, OpReturn).
func (blk *Block) appendVoid(op Op) *Instruction {
	blk.Instructions = append(blk.Instructions, Instruction{Op: op})
	return &blk.Instructions[len(blk.Instructions)-1]
}

// EntryPoints exposes the registered entry points, e.g. for a caller
// verifying "one OpEntryPoint per special function" (spec.md §8).
func (b *Builder) EntryPoints() []*EntryPoint { return b.entryPoints }

func encodeInstruction(words *[]Word, inst *Instruction) {
	length := inst.wordCount()
	*words = append(*words, Word(length)<<16|Word(inst.Op))
	if inst.TypeID != 0 {
		*words = append(*words, inst.TypeID)
	}
	if inst.hasResult {
		*words = append(*words, inst.ResultID)
	}
	*words = append(*words, inst.Operands...)
}

// Assemble serialises the whole module to a flat SPIR-V word stream: the
// five-word header, capabilities, extension imports, memory model, entry
// points, decorations, type/constant declarations, then every function
// body — the standard SPIR-V module section order.
func (b *Builder) Assemble() []Word {
	var words []Word
	words = append(words, MagicNumber, Version, GeneratorMagic, b.nextID, 0)

	for cap := range b.capabilities {
		encodeInstruction(&words, &Instruction{Op: OpCapability, Operands: []Word{Word(cap)}})
	}
	for name, id := range b.extInstImports {
		encodeInstruction(&words, &Instruction{Op: OpExtInstImport, ResultID: id, hasResult: true, Operands: encodeString(name)})
	}
	encodeInstruction(&words, &Instruction{Op: OpMemoryModel, Operands: []Word{Word(b.addressingModel), Word(b.memoryModel)}})

	for _, ep := range b.entryPoints {
		interfaceIDs := make([]Word, 0, len(ep.Variables))
		for _, v := range ep.Variables {
			interfaceIDs = append(interfaceIDs, v.ID())
		}
		operands := append([]Word{Word(ep.Model), ep.Function.DefID}, encodeString(ep.Name)...)
		operands = append(operands, interfaceIDs...)
		encodeInstruction(&words, &Instruction{Op: OpEntryPoint, Operands: operands})
		if ep.Model == ExecutionModelFragment {
			encodeInstruction(&words, &Instruction{Op: OpExecutionMode, Operands: []Word{ep.Function.DefID, Word(ExecutionModeOriginUpperLeft)}})
		}
	}

	for i := range b.decorations {
		encodeInstruction(&words, &b.decorations[i])
	}

	for id, inst := range b.typeDefs {
		inst := inst
		inst.ResultID = id
		inst.hasResult = true
		encodeInstruction(&words, &inst)
	}
	for id, inst := range b.constDefs {
		inst := inst
		inst.ResultID = id
		inst.hasResult = true
		encodeInstruction(&words, &inst)
	}
	for _, ep := range b.entryPoints {
		for i := range ep.Variables {
			encodeInstruction(&words, &ep.Variables[i])
		}
	}

	for _, fn := range b.functions {
		encodeInstruction(&words, &Instruction{Op: OpFunction, TypeID: fn.ReturnType, ResultID: fn.DefID, hasResult: true, Operands: []Word{0, fn.TypeID}})
		for bi := range fn.Blocks {
			blk := &fn.Blocks[bi]
			encodeInstruction(&words, &Instruction{Op: OpLabel, ResultID: blk.Label, hasResult: true})
			if bi == 0 {
				for i := range fn.Variables {
					encodeInstruction(&words, &fn.Variables[i])
				}
			}
			for ii := range blk.Instructions {
				encodeInstruction(&words, &blk.Instructions[ii])
			}
		}
		encodeInstruction(&words, &Instruction{Op: OpFunctionEnd})
	}

	return words
}

// encodeString packs a UTF-8 name into SPIR-V's NUL-terminated,
// 4-byte-aligned literal string operand encoding.
func encodeString(s string) []Word {
	b := []byte(s)
	b = append(b, 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	words := make([]Word, len(b)/4)
	for i := range words {
		words[i] = Word(b[i*4]) | Word(b[i*4+1])<<8 | Word(b[i*4+2])<<16 | Word(b[i*4+3])<<24
	}
	return words
}
