package shaderc

import "fmt"

// operator is the parser's internal operator-stack element, distinct from
// ast.BinaryOp because it must also represent unary negate and the three
// bracketing pseudo-operators (ArgumentSeparator, CallOrConstruct,
// OpenParen) that never appear in the finished AST. Mirrors
// Parser::Operator in original_source/engine/sources/shaderc/parser.cc.
type operator int

const (
	opAdd operator = iota
	opSub
	opMul
	opDiv
	opMod

	opAssign
	opAddAssign
	opSubAssign
	opMulAssign
	opDivAssign

	opNegate

	opArgumentSeparator
	opCallOrConstruct
	opOpenParen
)

// precedenceTable mirrors s_precedence_table: low to high is
// assigns(0) < ArgumentSeparator(1) < add/sub(2) < mul/div/mod(3) < unary
// negate(4). The two bracketing pseudo-operators are never compared for
// precedence (reduce_top_operator handles them specially) but need an
// entry to keep the table total.
var precedenceTable = map[operator]int{
	opAdd: 2, opSub: 2,
	opMul: 3, opDiv: 3, opMod: 3,
	opAssign: 0, opAddAssign: 0, opSubAssign: 0, opMulAssign: 0, opDivAssign: 0,
	opNegate:            4,
	opArgumentSeparator: 1,
	opCallOrConstruct:   0,
	opOpenParen:         0,
}

func isRightAssociative(op operator) bool {
	switch op {
	case opAssign, opAddAssign, opSubAssign, opMulAssign, opDivAssign:
		return true
	default:
		return false
	}
}

// hasHigherPrecedence implements reduce_by_precedence's comparison:
// right-associative operators compare with '>' so a chain of assigns
// binds right-to-left; everything else compares with '>=' (left
// associative).
func hasHigherPrecedence(lhs, rhs operator) bool {
	if isRightAssociative(rhs) {
		return precedenceTable[lhs] > precedenceTable[rhs]
	}
	return precedenceTable[lhs] >= precedenceTable[rhs]
}

type parseState int

const (
	stateUnary parseState = iota
	stateBinary
)

func toOperator(kind TokenKind, state parseState) (operator, bool) {
	if state == stateUnary {
		if kind == TokenKind('-') {
			return opNegate, true
		}
		return 0, false
	}
	switch kind {
	case TokenKind('+'):
		return opAdd, true
	case TokenKind('-'):
		return opSub, true
	case TokenKind('*'):
		return opMul, true
	case TokenKind('/'):
		return opDiv, true
	case TokenKind('%'):
		return opMod, true
	case TokenKind('='):
		return opAssign, true
	case TokenPlusEqual:
		return opAddAssign, true
	case TokenMinusEqual:
		return opSubAssign, true
	case TokenAsteriskEqual:
		return opMulAssign, true
	case TokenSlashEqual:
		return opDivAssign, true
	default:
		return 0, false
	}
}

func toBinaryOp(op operator) BinaryOp {
	switch op {
	case opAdd:
		return BinAdd
	case opSub:
		return BinSub
	case opMul:
		return BinMul
	case opDiv:
		return BinDiv
	case opMod:
		return BinMod
	case opAssign:
		return BinAssign
	case opAddAssign:
		return BinAddAssign
	case opSubAssign:
		return BinSubAssign
	case opMulAssign:
		return BinMulAssign
	case opDivAssign:
		return BinDivAssign
	default:
		panic(fmt.Sprintf("shaderc: operator %d has no BinaryOp mapping", op))
	}
}

// operand is the parser's operand-stack element: either a bare identifier
// awaiting resolution into a Symbol/call-or-construct name, a finished
// AST subtree, or (mid-call-parse) the argument list collected so far.
// This is Parser::Operand's Variant<StringView, NodeHandle, Vector> in Go
// form.
type operand struct {
	name      string
	isName    bool
	node      Node
	arguments []Node
	isArgs    bool
}

func nameOperand(name string) operand { return operand{name: name, isName: true} }
func nodeOperand(n Node) operand      { return operand{node: n} }
func argsOperand(args []Node) operand { return operand{arguments: args, isArgs: true} }

// Parser implements the two-stack operator-precedence expression parser
// described in spec.md §4.4/§9 ("Double-E" method), plus the surrounding
// statement/declaration grammar. One Parser consumes one Lexer's worth of
// tokens and produces a Root.
type Parser struct {
	lexer *Lexer
	root  Root
}

// NewParser constructs a Parser reading from lexer.
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

func (p *Parser) consume(kind TokenKind) (Token, bool) {
	if p.lexer.Peek().Kind == kind {
		return p.lexer.Next(), true
	}
	return Token{}, false
}

func (p *Parser) expect(kind TokenKind) (Token, *CompileError) {
	tok := p.lexer.Next()
	if tok.Kind != kind {
		e := &CompileError{}
		e.AddError(tok.Pos, fmt.Sprintf("expected %s but got %s", kindString(kind), tok.String()))
		return Token{}, e
	}
	return tok, nil
}

func (p *Parser) expectReason(kind TokenKind, reason string) (Token, *CompileError) {
	tok := p.lexer.Next()
	if tok.Kind != kind {
		e := &CompileError{}
		e.AddError(tok.Pos, fmt.Sprintf("expected %s %s", kindString(kind), reason))
		e.AddNote(tok.Pos, fmt.Sprintf("got %s instead", tok.String()))
		return Token{}, e
	}
	return tok, nil
}

func (p *Parser) parseType() (Type, *CompileError) {
	tok := p.lexer.Next()
	if tok.Kind != TokenIdent {
		e := &CompileError{}
		e.AddError(tok.Pos, "expected type name but got "+tok.String())
		return Type{}, e
	}
	t, ok := builtinTypes[tok.Ident]
	if !ok {
		e := &CompileError{}
		e.AddError(tok.Pos, fmt.Sprintf("unknown type name '%s'", tok.Ident))
		return Type{}, e
	}
	return t, nil
}

// buildCallOrConstruct implements Parser::build_call_or_construct: pop the
// collected argument list and the name operand beneath it, then decide
// between a builtin-type ConstructExpr and a plain CallExpr.
func (p *Parser) buildCallOrConstruct(operands *[]operand) (Node, *CompileError) {
	n := len(*operands)
	argList := (*operands)[n-1]
	*operands = (*operands)[:n-1]

	var arguments []Node
	if argList.isArgs {
		arguments = argList.arguments
	} else {
		arguments = []Node{p.buildNode(argList)}
	}

	n = len(*operands)
	nameOp := (*operands)[n-1]
	*operands = (*operands)[:n-1]
	if !nameOp.isName {
		e := &CompileError{}
		e.AddError(p.lexer.Peek().Pos, "expression cannot be used as a function call")
		return nil, e
	}
	name := nameOp.name

	if t, ok := builtinTypes[name]; ok {
		return &Aggregate{node: node{kind: NodeAggregate}, AggKind: AggregateConstructExpr, Nodes: arguments, Typ: t}, nil
	}
	return &CallExpr{node: node{kind: NodeCallExpr}, Name: name, Arguments: arguments}, nil
}

func (p *Parser) buildNode(op operand) Node {
	if op.node != nil {
		return op.node
	}
	return &Symbol{node: node{kind: NodeSymbol}, Name: op.name}
}

// buildExpr implements Parser::build_expr: given a just-reduced operator
// and the live operand stack, pop operand(s), build the corresponding AST
// node, and push the result back.
func (p *Parser) buildExpr(op operator, operands *[]operand) *CompileError {
	pop := func() operand {
		n := len(*operands)
		last := (*operands)[n-1]
		*operands = (*operands)[:n-1]
		return last
	}
	push := func(o operand) { *operands = append(*operands, o) }

	rhs := p.buildNode(pop())
	if op == opNegate {
		push(nodeOperand(&UnaryExpr{node: node{kind: NodeUnaryExpr}, Op: UnaryNegate, Expr: rhs}))
		return nil
	}

	if op == opArgumentSeparator {
		n := len(*operands)
		if n > 0 && (*operands)[n-1].isArgs {
			(*operands)[n-1].arguments = append((*operands)[n-1].arguments, rhs)
			return nil
		}
		lhs := p.buildNode(pop())
		push(argsOperand([]Node{lhs, rhs}))
		return nil
	}

	lhs := p.buildNode(pop())
	push(nodeOperand(&BinaryExpr{node: node{kind: NodeBinaryExpr}, Op: toBinaryOp(op), LHS: lhs, RHS: rhs}))
	return nil
}

func (p *Parser) parseOperand() (operand, bool) {
	if tok, ok := p.consume(TokenFloatLit); ok {
		return nodeOperand(&Constant{node: node{kind: NodeConstant, pos: tok.Pos}, ScalarType: ScalarFloat, Decimal: tok.Float}), true
	}
	if tok, ok := p.consume(TokenIntLit); ok {
		return nodeOperand(&Constant{node: node{kind: NodeConstant, pos: tok.Pos}, ScalarType: ScalarUint, Integer: tok.Int}), true
	}
	if tok, ok := p.consume(TokenIdent); ok {
		return nameOperand(tok.Ident), true
	}
	return operand{}, false
}

// ParseExpr parses one expression using the two-stack precedence method
// documented in spec.md §4.4/§9 and testable property §8 ("shader
// precedence"). Ported directly from Parser::parse_expr.
func (p *Parser) ParseExpr() (Node, *CompileError) {
	var operands []operand
	var operators []operator

	reduceTop := func() *CompileError {
		n := len(operators)
		op := operators[n-1]
		operators = operators[:n-1]
		if op == opCallOrConstruct || op == opOpenParen {
			e := &CompileError{}
			e.AddError(p.lexer.Peek().Pos, "unmatched '('")
			return e
		}
		return p.buildExpr(op, &operands)
	}

	reduceByPrecedence := func(op operator) *CompileError {
		for len(operators) > 0 && hasHigherPrecedence(operators[len(operators)-1], op) {
			if err := reduceTop(); err != nil {
				return err
			}
		}
		return nil
	}

	state := stateUnary
	for {
		peeked := p.lexer.Peek()
		if op, ok := toOperator(peeked.Kind, state); ok {
			p.lexer.Next()
			if state == stateUnary {
				operators = append(operators, op)
				continue
			}
			if err := reduceByPrecedence(op); err != nil {
				return nil, err
			}
			operators = append(operators, op)
			state = stateUnary
			continue
		}

		if o, ok := p.parseOperand(); ok {
			if state == stateBinary {
				e := &CompileError{}
				e.AddError(peeked.Pos, "unexpected expression part")
				e.AddNoteNoLine(peeked.Pos, "expected operator or end of expression")
				return nil, e
			}
			operands = append(operands, o)
			state = stateBinary
			continue
		}

		if state == stateBinary {
			if _, ok := p.consume(TokenKind(',')); ok {
				if err := reduceByPrecedence(opArgumentSeparator); err != nil {
					return nil, err
				}
				if len(operators) == 0 || operators[len(operators)-1] != opCallOrConstruct {
					return nil, unexpectedToken(peeked, "not in a function call context")
				}
				operators = append(operators, opArgumentSeparator)
				state = stateUnary
				continue
			}
		}

		if _, ok := p.consume(TokenKind('(')); ok {
			if state == stateUnary {
				operators = append(operators, opOpenParen)
				continue
			}
			operators = append(operators, opCallOrConstruct)
			state = stateUnary
			continue
		}

		if closing, ok := p.consume(TokenKind(')')); ok {
			if state == stateUnary {
				if len(operators) == 0 || operators[len(operators)-1] != opCallOrConstruct {
					return nil, unexpectedToken(closing, "expected expression part")
				}
				operators = operators[:len(operators)-1]
				operands = append(operands, argsOperand(nil))
				built, err := p.buildCallOrConstruct(&operands)
				if err != nil {
					return nil, err
				}
				operands = append(operands, nodeOperand(built))
				state = stateBinary
				continue
			}

			for {
				if len(operators) == 0 {
					return nil, unexpectedToken(closing, "expected operator or end of expression")
				}
				top := operators[len(operators)-1]
				if top == opCallOrConstruct {
					operators = operators[:len(operators)-1]
					built, err := p.buildCallOrConstruct(&operands)
					if err != nil {
						return nil, err
					}
					operands = append(operands, nodeOperand(built))
					break
				}
				if top == opOpenParen {
					operators = operators[:len(operators)-1]
					break
				}
				if err := reduceTop(); err != nil {
					return nil, err
				}
			}
			continue
		}

		if state == stateUnary {
			next := p.lexer.Next()
			e := &CompileError{}
			e.AddError(next.Pos, "reached unexpected end of expression")
			e.AddNote(next.Pos, "expected expression part before "+next.String())
			return nil, e
		}
		break
	}

	for len(operators) > 0 {
		if err := reduceTop(); err != nil {
			return nil, err
		}
	}
	return p.buildNode(operands[len(operands)-1]), nil
}

// ParseStmt parses one statement: a `let`/`var` declaration, or a
// freestanding expression which becomes either an expression statement
// (trailing ';') or an implicit return (trailing '}').
func (p *Parser) ParseStmt() (Node, *CompileError) {
	if _, ok := p.consume(TokenKwLet); ok {
		return p.finishDeclStmt()
	}
	if _, ok := p.consume(TokenKwVar); ok {
		return p.finishDeclStmt()
	}

	expr, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.consume(TokenKind(';')); ok {
		return expr, nil
	}
	return &ReturnStmt{node: node{kind: NodeReturnStmt}, Expr: expr}, nil
}

func (p *Parser) finishDeclStmt() (Node, *CompileError) {
	name, err := p.expect(TokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenKind('=')); err != nil {
		return nil, err
	}
	value, err2 := p.ParseExpr()
	if err2 != nil {
		return nil, err2
	}
	if _, err := p.expect(TokenKind(';')); err != nil {
		return nil, err
	}
	return &DeclStmt{node: node{kind: NodeDeclStmt, pos: name.Pos}, Name: name.Ident, Value: value}, nil
}

// ParseBlock parses a `{ stmt* }` block.
func (p *Parser) ParseBlock() (*Aggregate, *CompileError) {
	if _, err := p.expectReason(TokenKind('{'), "to open a block"); err != nil {
		return nil, err
	}
	block := &Aggregate{node: node{kind: NodeAggregate}, AggKind: AggregateBlock}
	for {
		if _, ok := p.consume(TokenKind('}')); ok {
			break
		}
		stmt, err := p.ParseStmt()
		if err != nil {
			return nil, err
		}
		block.Append(stmt)
	}
	return block, nil
}

func (p *Parser) parseFunctionDecl() (*FunctionDecl, *CompileError) {
	name, err := p.expectReason(TokenIdent, "for function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectReason(TokenKind('('), "to open the parameter list"); err != nil {
		return nil, err
	}

	var params []Parameter
	for {
		if _, ok := p.consume(TokenKind(')')); ok {
			break
		}
		if _, ok := p.consume(TokenKwLet); !ok {
			return nil, unexpectedToken(p.lexer.Next(), "expected a parameter (let) or ')'")
		}
		paramName, err := p.expectReason(TokenIdent, "for parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenKind(':')); err != nil {
			return nil, err
		}
		paramType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, Parameter{Name: paramName.Ident, Type: paramType, Pos: paramName.Pos})
		p.consume(TokenKind(','))
	}

	returnType := MakeScalar(ScalarVoid)
	if _, ok := p.consume(TokenKind(':')); ok {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		returnType = t
	}

	block, err := p.ParseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{node: node{kind: NodeFunctionDecl, pos: name.Pos}, Name: name.Ident, Block: block, ReturnType: returnType, Parameters: params}, nil
}

func (p *Parser) parsePipelineDecl() (*PipelineDecl, *CompileError) {
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err2 := p.expect(TokenIdent)
	if err2 != nil {
		return nil, err2
	}
	if _, err := p.expectSemi("pipeline declaration"); err != nil {
		return nil, err
	}
	return &PipelineDecl{node: node{kind: NodePipelineDecl, pos: name.Pos}, Name: name.Ident, Type: t}, nil
}

func (p *Parser) expectSemi(entityName string) (Token, *CompileError) {
	tok := p.lexer.Next()
	if tok.Kind != TokenKind(';') {
		e := &CompileError{}
		e.AddError(tok.Pos, "missing ';' after "+entityName)
		e.AddNote(tok.Pos, "expected ';' before "+tok.String())
		return Token{}, e
	}
	return tok, nil
}

func (p *Parser) parseUniformBlock() (*Aggregate, *CompileError) {
	if _, err := p.expectReason(TokenKind('{'), "to open the uniform block"); err != nil {
		return nil, err
	}
	block := &Aggregate{node: node{kind: NodeAggregate}, AggKind: AggregateUniformBlock}
	for {
		if _, ok := p.consume(TokenKind('}')); ok {
			break
		}
		name, err := p.expect(TokenIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenKind(':')); err != nil {
			return nil, err
		}
		t, err2 := p.parseType()
		if err2 != nil {
			return nil, err2
		}
		block.Append(&Symbol{node: node{kind: NodeSymbol, pos: name.Pos}, Name: name.Ident, Typ: t})
		if _, err := p.expect(TokenKind(',')); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectSemi("uniform block declaration"); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseTopLevel() (Node, *CompileError) {
	if _, ok := p.consume(TokenKwFn); ok {
		return p.parseFunctionDecl()
	}
	if _, ok := p.consume(TokenKwPipeline); ok {
		return p.parsePipelineDecl()
	}
	if _, ok := p.consume(TokenKwUniform); ok {
		return p.parseUniformBlock()
	}
	return nil, unexpectedToken(p.lexer.Next(), "expected top level declaration or <eof>")
}

// Parse consumes the whole token stream and returns a Root, or the first
// CompileError encountered (the teacher's parser also stops at the first
// hard parse error; only the legaliser keeps accumulating across multiple
// top-level declarations).
func (p *Parser) Parse() (*Root, *CompileError) {
	for {
		if _, ok := p.consume(TokenEof); ok {
			break
		}
		n, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		p.root.TopLevel = append(p.root.TopLevel, n)
	}
	return &p.root, nil
}
