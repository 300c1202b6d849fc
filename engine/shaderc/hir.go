package shaderc

// hir mirrors the AST but with scopes erased (every identifier becomes a
// direct reference to the hir.Expr it resolved to) and every expression
// carrying a resolved Type, per spec.md §3's HIR description and
// original_source/engine/sources/shaderc/legaliser.cc.

// HIRNodeKind tags an HIR node, matching vull::shaderc::hir::NodeKind.
type HIRNodeKind int

const (
	HIRBlock HIRNodeKind = iota
	HIRExprStmt
	HIRReturnStmt
	HIRFunctionDecl

	HIRArgument
	HIRBinaryExpr
	HIRCallExpr
	HIRConstant
	HIRConstructExpr
	HIRLocalVariable
	HIRPipelineVariable
	HIRPushConstant
	HIRUnaryExpr
)

// HIRBinaryOp is the specialized binary operator set: generic Mul is
// replaced by one of the seven typed variants during legalisation
// (spec.md §4.4).
type HIRBinaryOp int

const (
	HIRAdd HIRBinaryOp = iota
	HIRSub
	HIRDiv
	HIRMod
	HIRAssign

	HIRScalarTimesScalar
	HIRVectorTimesVector
	HIRVectorTimesScalar
	HIRMatrixTimesScalar
	HIRVectorTimesMatrix
	HIRMatrixTimesVector
	HIRMatrixTimesMatrix
)

// SpecialFunction marks a FunctionDecl as a pipeline entry point.
type SpecialFunction int

const (
	SpecialFunctionNone SpecialFunction = iota
	SpecialFunctionVertexEntry
	SpecialFunctionFragmentEntry
)

// SpecialPipelineVariable names a pipeline variable whose location isn't
// a plain integer but a well-known built-in, e.g. gl_Position.
type SpecialPipelineVariable int

const (
	SpecialPipelineVariableNone SpecialPipelineVariable = iota
	SpecialPipelineVariablePosition
)

// HIRNode is any node in the HIR tree.
type HIRNode interface {
	HIRKind() HIRNodeKind
}

type hirNode struct {
	kind HIRNodeKind
}

func (n hirNode) HIRKind() HIRNodeKind { return n.kind }

// HIRExpr is any HIR node usable as a value; every HIRExpr carries a
// resolved Type, erasing the AST/HIR distinction the teacher keeps
// between TypedNode and Node.
type HIRExpr interface {
	HIRNode
	Type() Type
}

type hirExpr struct {
	hirNode
	typ Type
}

func (e hirExpr) Type() Type { return e.typ }

// HIRAggregate is a statement block.
type HIRAggregate struct {
	hirNode
	Nodes []HIRNode
}

func (a *HIRAggregate) Append(n HIRNode) { a.Nodes = append(a.Nodes, n) }

// HIRExprStmt wraps an expression used as a statement (its value discarded).
type HIRExprStmt struct {
	hirNode
	Expr HIRExpr
}

// HIRReturnStmt is an explicit or implicit return of expr, lowered from
// ast.ReturnStmt. The backend routes its value either through
// OpReturnValue (plain functions) or a store into the fragment output
// variable (fragment entry points), per spec.md §4.4.
type HIRReturnStmt struct {
	hirNode
	Expr HIRExpr
}

// HIRBinaryExpr is a fully-specialized binary expression.
type HIRBinaryExpr struct {
	hirExpr
	Op       HIRBinaryOp
	LHS, RHS HIRExpr
	IsAssign bool
}

// HIRUnaryExpr is a unary expression (negate only).
type HIRUnaryExpr struct {
	hirExpr
	Op   UnaryOp
	Expr HIRExpr
}

// HIRConstant is a literal value. Its Type's scalar_type picks between
// the decimal/integer interpretation, matching Constant's tagged union.
type HIRConstant struct {
	hirExpr
	Integer uint64
	Decimal float32
}

// HIRConstructExpr builds a vector/matrix value from scalar or smaller
// composite operands (vecN(...), matNxM(...)).
type HIRConstructExpr struct {
	hirExpr
	Values []HIRExpr
}

func (c *HIRConstructExpr) AppendValue(v HIRExpr) { c.Values = append(c.Values, v) }

// Callee is either a user function or a GLSL.std.450 extended
// instruction, matching the teacher's CallExpr::callee() ext_inst()
// special case in spv_backend.cc.
type Callee struct {
	Function *HIRFunctionDecl
	ExtInst  *uint32 // non-nil selects an ExtInst opcode instead of an OpFunctionCall
}

// HIRCallExpr is a resolved call to either a user function or a built-in.
type HIRCallExpr struct {
	hirExpr
	Callee    Callee
	Arguments []HIRExpr
}

// HIRPipelineVariable is a vertex input, vertex output / fragment input,
// or the implicit gl_Position output, per spec.md §3/§4.4.
type HIRPipelineVariable struct {
	hirExpr
	Location        uint32
	Special         SpecialPipelineVariable
	IsOutput        bool
}

// HIRPushConstant is reserved for future uniform-block lowering (push
// constants); not yet produced by the legaliser but modeled so the
// backend's materialise_variable switch has a real case to dispatch on,
// per original_source's materialise_push_constant.
type HIRPushConstant struct {
	hirExpr
}

// newLocalVariable / newArgument are plain typed placeholders for local
// bindings and function parameters that aren't pipeline variables.
type HIRLocalVariable struct {
	hirExpr
}

type HIRArgument struct {
	hirExpr
}

// HIRParameter mirrors ast.Parameter at the HIR level (type only; the
// name was already consumed by scope resolution).
type HIRParameter struct {
	Type Type
}

// HIRFunctionDecl is a lowered function: scopes are gone, the body is a
// flat HIRAggregate, and special_function marks an entry point.
type HIRFunctionDecl struct {
	hirNode
	ReturnType      Type
	ParameterTypes  []Type
	Body            *HIRAggregate
	Special         SpecialFunction
	// OutputVariable is the pipeline variable a vertex entry's implicit
	// return statement stores into (gl_Position); nil for every other
	// function, including fragment entries, whose output variable is
	// synthesized by the backend instead of bound by the legaliser.
	OutputVariable HIRExpr
}

func (f *HIRFunctionDecl) IsSpecial(s SpecialFunction) bool { return f.Special == s }
func (f *HIRFunctionDecl) HasBody() bool                    { return f.Body != nil }

// HIRRoot is the top-level HIR container, the output of legalisation.
type HIRRoot struct {
	TopLevel []HIRNode
}

func (r *HIRRoot) Append(n HIRNode) { r.TopLevel = append(r.TopLevel, n) }
