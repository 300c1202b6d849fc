package shaderc

// NodeKind tags an AST Node variant, per spec.md §3 and
// original_source/engine/include/vull/shaderc/ast.hh's NodeKind.
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeFunctionDecl
	NodePipelineDecl
	NodeDeclStmt
	NodeReturnStmt
	NodeAggregate
	NodeBinaryExpr
	NodeCallExpr
	NodeConstant
	NodeSymbol
	NodeUnaryExpr
)

// AggregateKind distinguishes the three uses of the Aggregate node
// variant: a statement block, a type-construction expression, or a
// uniform-block declaration's member list (spec.md §3).
type AggregateKind int

const (
	AggregateBlock AggregateKind = iota
	AggregateConstructExpr
	AggregateUniformBlock
)

// BinaryOp is the AST-level binary operator, before the legaliser
// specializes Mul into one of the typed Mul variants (spec.md §4.4).
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAssign
	BinAddAssign
	BinSubAssign
	BinMulAssign
	BinDivAssign
)

// IsAssign reports whether op is one of the five assignment operators,
// matching ast::is_assign_op.
func (op BinaryOp) IsAssign() bool {
	switch op {
	case BinAssign, BinAddAssign, BinSubAssign, BinMulAssign, BinDivAssign:
		return true
	default:
		return false
	}
}

// UnaryOp is the single AST-level unary operator the language exposes.
type UnaryOp int

const (
	UnaryNegate UnaryOp = iota
)

// Node is an AST node. Every variant below embeds node for the common
// kind/position fields and satisfies this interface; type resolution
// happens later in legalisation (AST nodes other than Constant carry no
// Type).
type Node interface {
	Kind() NodeKind
	Position() Position
}

type node struct {
	kind NodeKind
	pos  Position
}

func (n node) Kind() NodeKind     { return n.kind }
func (n node) Position() Position { return n.pos }

// Root is the top-level AST container; a compilation unit is a flat list
// of top-level declarations (functions, pipeline decls, uniform blocks).
type Root struct {
	node
	TopLevel []Node
}

// FunctionDecl is a `fn name(params) : type { block }` declaration.
type FunctionDecl struct {
	node
	Name       string
	Block      *Aggregate
	ReturnType Type
	Parameters []Parameter
}

// Parameter is one `let name: type` entry of a function's parameter list.
type Parameter struct {
	Name string
	Type Type
	Pos  Position
}

// PipelineDecl is a `pipeline type name;` declaration: a pipeline-stage
// input/output variable whose direction (input vs output) is only known
// once the legaliser sees which entry function follows it.
type PipelineDecl struct {
	node
	Name string
	Type Type
}

// Aggregate groups a list of child nodes under one of AggregateKind's
// three uses.
type Aggregate struct {
	node
	AggKind AggregateKind
	Nodes   []Node
	// Typ is set for AggregateConstructExpr, the target construction type.
	Typ Type
}

func (a *Aggregate) Append(n Node) { a.Nodes = append(a.Nodes, n) }

// DeclStmt is a `let`/`var` statement introducing a new local binding.
type DeclStmt struct {
	node
	Name  string
	Value Node
}

// ReturnStmt is an explicit or implicit (no trailing ';') return.
type ReturnStmt struct {
	node
	Expr Node
}

// BinaryExpr is a two-operand expression at the AST level (before Mul
// specialization).
type BinaryExpr struct {
	node
	Op       BinaryOp
	LHS, RHS Node
}

// UnaryExpr is a one-operand expression (only negation today).
type UnaryExpr struct {
	node
	Op   UnaryOp
	Expr Node
}

// CallExpr is a function call `name(args...)` that did not resolve to a
// builtin type constructor.
type CallExpr struct {
	node
	Name      string
	Arguments []Node
}

// Constant is an integer or float literal.
type Constant struct {
	node
	ScalarType ScalarType
	Integer    uint64
	Decimal    float32
}

func (c *Constant) Type() Type { return MakeScalar(c.ScalarType) }

// Symbol is an unresolved identifier reference; legalisation replaces it
// with whatever HIR expression its name was bound to. Typ is only set
// when the parser already knows the type without legalisation help (a
// uniform block member declaration's `name : type` pair); it is the zero
// Type for every other Symbol use.
type Symbol struct {
	node
	Name string
	Typ  Type
}
