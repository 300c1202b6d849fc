package shaderc

import "fmt"

// scopeEntry is one binding in a Legalizer scope: the HIR expression the
// name resolves to, plus the source position of its declaration (for
// "previous definition was here" redefinition notes).
type scopeEntry struct {
	expr HIRExpr
	pos  Position
}

// scope is a stack frame of name->HIR bindings, matching Legaliser::Scope
// (original_source/engine/sources/shaderc/legaliser.cc). Scopes are erased
// from the HIR itself; they only exist transiently during legalisation.
type scope struct {
	parent  *scope
	symbols map[string]scopeEntry
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, symbols: make(map[string]scopeEntry)}
}

func (s *scope) lookup(name string) (scopeEntry, bool) {
	if e, ok := s.symbols[name]; ok {
		return e, true
	}
	if s.parent != nil {
		return s.parent.lookup(name)
	}
	return scopeEntry{}, false
}

func (s *scope) put(name string, expr HIRExpr, pos Position) *CompileError {
	if prev, ok := s.lookup(name); ok {
		e := &CompileError{}
		e.AddError(pos, fmt.Sprintf("attempted redefinition of '%s'", name))
		e.AddNote(prev.pos, "previous definition was here")
		return e
	}
	s.symbols[name] = scopeEntry{expr: expr, pos: pos}
	return nil
}

// Legalizer lowers a parsed AST Root into an HIRRoot, per spec.md §4.4:
// scopes are erased, every expression is typed, generic Mul is
// specialized, and pipeline and local variables become explicit HIR
// variable nodes. Uniform blocks are accepted and skipped: no HIR node is
// produced for them or their members. Ported from Legaliser in
// legaliser.cc.
type Legalizer struct {
	root           HIRRoot
	cur            *scope
	pipelineDecls  []*PipelineDecl
}

// NewLegalizer constructs a Legalizer ready to consume a parsed Root.
func NewLegalizer() *Legalizer {
	l := &Legalizer{}
	l.cur = newScope(nil)
	return l
}

// Legalize lowers every top-level AST node from astRoot, accumulating
// errors across all of them rather than stopping at the first (spec.md
// §7: "the compiler never aborts").
func Legalize(astRoot *Root) (*HIRRoot, *CompileError) {
	l := NewLegalizer()
	combined := &CompileError{}
	for _, n := range astRoot.TopLevel {
		if err := l.lowerTopLevel(n); err != nil {
			combined.Messages = append(combined.Messages, err.Messages...)
		}
	}
	if combined.HasErrors() {
		return nil, combined
	}
	return &l.root, nil
}

func (l *Legalizer) lowerTopLevel(n Node) *CompileError {
	switch decl := n.(type) {
	case *FunctionDecl:
		fn, err := l.lowerFunctionDecl(decl)
		if err != nil {
			return err
		}
		l.root.Append(fn)
		return nil
	case *PipelineDecl:
		l.pipelineDecls = append(l.pipelineDecls, decl)
		return nil
	case *Aggregate:
		if decl.AggKind == AggregateUniformBlock {
			// TODO: uniform-block lowering (push constants) is not yet
			// implemented; the legaliser's original also stops here
			// ("Handle uniforms").
			return nil
		}
		fallthrough
	default:
		e := &CompileError{}
		e.AddError(n.Position(), "unexpected top level declaration")
		return e
	}
}

func (l *Legalizer) lowerFunctionDecl(decl *FunctionDecl) (*HIRFunctionDecl, *CompileError) {
	fn := &HIRFunctionDecl{hirNode: hirNode{kind: HIRFunctionDecl}, ReturnType: decl.ReturnType}
	switch decl.Name {
	case "vertex_main":
		fn.Special = SpecialFunctionVertexEntry
	case "fragment_main":
		fn.Special = SpecialFunctionFragmentEntry
	}

	saved := l.cur
	l.cur = newScope(saved)
	defer func() { l.cur = saved }()

	for _, param := range decl.Parameters {
		var argument HIRExpr
		if fn.IsSpecial(SpecialFunctionVertexEntry) {
			argument = &HIRPipelineVariable{
				hirExpr:  hirExpr{hirNode: hirNode{kind: HIRPipelineVariable}, typ: param.Type},
				Location: uint32(len(fn.ParameterTypes)),
				IsOutput: false,
			}
		} else {
			argument = &HIRArgument{hirExpr: hirExpr{hirNode: hirNode{kind: HIRArgument}, typ: param.Type}}
		}
		fn.ParameterTypes = append(fn.ParameterTypes, param.Type)
		if err := l.cur.put(param.Name, argument, param.Pos); err != nil {
			return nil, err
		}
	}

	isOutput := fn.IsSpecial(SpecialFunctionVertexEntry)
	for i, pd := range l.pipelineDecls {
		variable := &HIRPipelineVariable{
			hirExpr:  hirExpr{hirNode: hirNode{kind: HIRPipelineVariable}, typ: pd.Type},
			Location: uint32(i),
			IsOutput: isOutput,
		}
		if err := l.cur.put(pd.Name, variable, pd.Position()); err != nil {
			return nil, err
		}
	}

	if fn.IsSpecial(SpecialFunctionVertexEntry) {
		position := &HIRPipelineVariable{
			hirExpr:  hirExpr{hirNode: hirNode{kind: HIRPipelineVariable}, typ: MakeVector(ScalarFloat, 4)},
			Special:  SpecialPipelineVariablePosition,
			IsOutput: true,
		}
		if err := l.cur.put("gl_Position", position, Position{}); err != nil {
			return nil, err
		}
		fn.OutputVariable = position
	}

	body, err := l.lowerBlock(decl.Block)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (l *Legalizer) lowerBlock(block *Aggregate) (*HIRAggregate, *CompileError) {
	out := &HIRAggregate{hirNode: hirNode{kind: HIRBlock}}
	for _, stmt := range block.Nodes {
		n, err := l.lowerStmt(stmt)
		if err != nil {
			return nil, err
		}
		out.Append(n)
	}
	return out, nil
}

func (l *Legalizer) lowerStmt(n Node) (HIRNode, *CompileError) {
	switch stmt := n.(type) {
	case *DeclStmt:
		return l.lowerDeclStmt(stmt)
	case *ReturnStmt:
		return l.lowerReturnStmt(stmt)
	default:
		expr, err := l.lowerExpr(n)
		if err != nil {
			return nil, err
		}
		return &HIRExprStmt{hirNode: hirNode{kind: HIRExprStmt}, Expr: expr}, nil
	}
}

func (l *Legalizer) lowerDeclStmt(stmt *DeclStmt) (HIRNode, *CompileError) {
	initialiser, err := l.lowerExpr(stmt.Value)
	if err != nil {
		return nil, err
	}
	variable := &HIRLocalVariable{hirExpr: hirExpr{hirNode: hirNode{kind: HIRLocalVariable}, typ: initialiser.Type()}}

	assign := &HIRBinaryExpr{
		hirExpr:  hirExpr{hirNode: hirNode{kind: HIRBinaryExpr}, typ: variable.Type()},
		Op:       HIRAssign,
		LHS:      variable,
		RHS:      initialiser,
		IsAssign: true,
	}

	if err := l.cur.put(stmt.Name, variable, stmt.Position()); err != nil {
		return nil, err
	}
	return &HIRExprStmt{hirNode: hirNode{kind: HIRExprStmt}, Expr: assign}, nil
}

// lowerReturnStmt lowers an (always implicit, per the source grammar's
// "bare expression followed by '}'" rule) return. The upstream legaliser
// stubs this out (VULL_ENSURE_NOT_REACHED); this completes it per
// spec.md §4.4/§8 scenario 6, which requires a working vertex entry point
// whose body is a single implicit-return ConstructExpr.
func (l *Legalizer) lowerReturnStmt(stmt *ReturnStmt) (HIRNode, *CompileError) {
	expr, err := l.lowerExpr(stmt.Expr)
	if err != nil {
		return nil, err
	}
	return &HIRReturnStmt{hirNode: hirNode{kind: HIRReturnStmt}, Expr: expr}, nil
}

func (l *Legalizer) lowerExpr(n Node) (HIRExpr, *CompileError) {
	switch expr := n.(type) {
	case *Aggregate:
		return l.lowerConstructExpr(expr)
	case *BinaryExpr:
		return l.lowerBinaryExpr(expr)
	case *UnaryExpr:
		return l.lowerUnaryExpr(expr)
	case *CallExpr:
		return l.lowerCallExpr(expr)
	case *Constant:
		return l.lowerConstant(expr)
	case *Symbol:
		return l.lowerSymbol(expr)
	default:
		e := &CompileError{}
		e.AddError(n.Position(), "expression not supported here")
		return nil, e
	}
}

func (l *Legalizer) lowerConstant(c *Constant) (HIRExpr, *CompileError) {
	return &HIRConstant{
		hirExpr: hirExpr{hirNode: hirNode{kind: HIRConstant}, typ: MakeScalar(c.ScalarType)},
		Integer: c.Integer,
		Decimal: c.Decimal,
	}, nil
}

func (l *Legalizer) lowerSymbol(s *Symbol) (HIRExpr, *CompileError) {
	entry, ok := l.cur.lookup(s.Name)
	if !ok {
		e := &CompileError{}
		e.AddError(s.Position(), fmt.Sprintf("use of undeclared identifier '%s'", s.Name))
		return nil, e
	}
	return entry.expr, nil
}

func (l *Legalizer) lowerConstructExpr(agg *Aggregate) (HIRExpr, *CompileError) {
	if agg.AggKind != AggregateConstructExpr {
		e := &CompileError{}
		e.AddError(agg.Position(), "aggregate is not a construct expression here")
		return nil, e
	}
	out := &HIRConstructExpr{hirExpr: hirExpr{hirNode: hirNode{kind: HIRConstructExpr}, typ: agg.Typ}}
	for _, v := range agg.Nodes {
		value, err := l.lowerExpr(v)
		if err != nil {
			return nil, err
		}
		out.AppendValue(value)
	}
	return out, nil
}

func (l *Legalizer) lowerUnaryExpr(u *UnaryExpr) (HIRExpr, *CompileError) {
	expr, err := l.lowerExpr(u.Expr)
	if err != nil {
		return nil, err
	}
	return &HIRUnaryExpr{hirExpr: hirExpr{hirNode: hirNode{kind: HIRUnaryExpr}, typ: expr.Type()}, Op: u.Op, Expr: expr}, nil
}

func (l *Legalizer) lowerCallExpr(c *CallExpr) (HIRExpr, *CompileError) {
	var arguments []HIRExpr
	for _, a := range c.Arguments {
		arg, err := l.lowerExpr(a)
		if err != nil {
			return nil, err
		}
		arguments = append(arguments, arg)
	}
	if ext, ok := extInstTable[c.Name]; ok {
		extCopy := ext
		resultType := MakeScalar(ScalarFloat)
		if len(arguments) > 0 {
			resultType = arguments[0].Type()
		}
		return &HIRCallExpr{
			hirExpr:   hirExpr{hirNode: hirNode{kind: HIRCallExpr}, typ: resultType},
			Callee:    Callee{ExtInst: &extCopy},
			Arguments: arguments,
		}, nil
	}
	e := &CompileError{}
	e.AddError(c.Position(), fmt.Sprintf("call to unknown function '%s'", c.Name))
	e.AddNoteNoLine(c.Position(), "user-defined function calls are not yet supported; only built-ins are")
	return nil, e
}

// extInstTable maps source-level built-in function names to GLSL.std.450
// extended-instruction opcodes, grounded on spec.md §4.4's ExtInst
// handling in the SPIR-V backend (CallExpr::callee().ext_inst()).
var extInstTable = map[string]uint32{
	"normalize": 69,
	"cross":     68,
	"dot":       67,
	"length":    66,
	"min":       37,
	"max":       40,
	"clamp":     43,
	"mix":       46,
	"pow":       26,
	"sqrt":      31,
	"abs":       4,
	"floor":     8,
	"fract":     10,
}

func (l *Legalizer) lowerBinaryExpr(b *BinaryExpr) (HIRExpr, *CompileError) {
	lhs, err := l.lowerExpr(b.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := l.lowerExpr(b.RHS)
	if err != nil {
		return nil, err
	}

	if b.Op == BinAssign {
		return &HIRBinaryExpr{
			hirExpr:  hirExpr{hirNode: hirNode{kind: HIRBinaryExpr}, typ: lhs.Type()},
			Op:       HIRAssign,
			LHS:      lhs,
			RHS:      rhs,
			IsAssign: true,
		}, nil
	}

	lhsType := lhs.Type()
	rhsType := rhs.Type()

	// A compound assignment lowers to its underlying operator with
	// IsAssign set; the backend stores the result back into the LHS.
	astOp, isAssign := b.Op, b.Op.IsAssign()
	if base, ok := map[BinaryOp]BinaryOp{BinAddAssign: BinAdd, BinSubAssign: BinSub, BinMulAssign: BinMul, BinDivAssign: BinDiv}[b.Op]; ok {
		astOp = base
	}

	if astOp == BinMul {
		op, typ, err := specializeMul(lhsType, rhsType)
		if err != nil {
			e := &CompileError{}
			e.AddError(b.Position(), err.Error())
			return nil, e
		}
		return &HIRBinaryExpr{hirExpr: hirExpr{hirNode: hirNode{kind: HIRBinaryExpr}, typ: typ}, Op: op, LHS: lhs, RHS: rhs, IsAssign: isAssign}, nil
	}

	var op HIRBinaryOp
	switch astOp {
	case BinAdd:
		op = HIRAdd
	case BinSub:
		op = HIRSub
	case BinDiv:
		op = HIRDiv
	case BinMod:
		op = HIRMod
	default:
		e := &CompileError{}
		e.AddError(b.Position(), "unsupported binary operator")
		return nil, e
	}
	return &HIRBinaryExpr{hirExpr: hirExpr{hirNode: hirNode{kind: HIRBinaryExpr}, typ: lhsType}, Op: op, LHS: lhs, RHS: rhs, IsAssign: isAssign}, nil
}

// specializeMul implements the Mul-specialization table from spec.md
// §4.4/§3, identical to Legaliser::lower_binary_expr's multiplication
// branch in legaliser.cc.
func specializeMul(lhsType, rhsType Type) (HIRBinaryOp, Type, error) {
	switch {
	case lhsType.IsVector() && rhsType.IsScalar():
		return HIRVectorTimesScalar, lhsType, nil
	case lhsType.IsScalar() && rhsType.IsVector():
		return HIRVectorTimesScalar, rhsType, nil
	case lhsType.IsMatrix() && rhsType.IsScalar():
		return HIRMatrixTimesScalar, lhsType, nil
	case lhsType.IsScalar() && rhsType.IsMatrix():
		return HIRMatrixTimesScalar, rhsType, nil
	case lhsType.IsVector() && rhsType.IsMatrix():
		return HIRVectorTimesMatrix, MakeVector(lhsType.Scalar, rhsType.MatrixCols), nil
	case lhsType.IsMatrix() && rhsType.IsVector():
		return HIRMatrixTimesVector, MakeVector(lhsType.Scalar, lhsType.MatrixRows()), nil
	case lhsType.IsMatrix() && rhsType.IsMatrix():
		return HIRMatrixTimesMatrix, MakeMatrix(lhsType.Scalar, lhsType.MatrixRows(), rhsType.MatrixCols), nil
	case lhsType.IsScalar() && rhsType.IsScalar():
		return HIRScalarTimesScalar, lhsType, nil
	case lhsType.IsVector() && rhsType.IsVector():
		return HIRVectorTimesVector, lhsType, nil
	default:
		return 0, Type{}, fmt.Errorf("no multiplication rule for operand types")
	}
}
