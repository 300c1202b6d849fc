package shaderc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexerTokenSequence(t *testing.T) {
	src := "fn id(x: vec3, y: float) : vec4 { vec4(x, y) }"
	lexer := NewLexer(src)

	var kinds []TokenKind
	var idents []string
	for {
		tok := lexer.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == TokenIdent {
			idents = append(idents, tok.Ident)
		}
		if tok.Kind == TokenEof {
			break
		}
	}

	require.Equal(t, []TokenKind{
		TokenKwFn,
		TokenIdent, TokenKind('('),
		TokenIdent, TokenKind(':'), TokenIdent, TokenKind(','),
		TokenIdent, TokenKind(':'), TokenIdent, TokenKind(')'),
		TokenKind(':'), TokenIdent,
		TokenKind('{'),
		TokenIdent, TokenKind('('), TokenIdent, TokenKind(','), TokenIdent, TokenKind(')'),
		TokenKind('}'),
		TokenEof,
	}, kinds)

	require.Equal(t, []string{"id", "x", "vec3", "y", "float", "vec4", "vec4", "x", "y"}, idents)
}

func TestLexerNumberLiterals(t *testing.T) {
	lexer := NewLexer("1 2.5 3.0f")

	intTok := lexer.Next()
	require.Equal(t, TokenIntLit, intTok.Kind)
	require.Equal(t, uint64(1), intTok.Int)

	floatTok := lexer.Next()
	require.Equal(t, TokenFloatLit, floatTok.Kind)
	require.InDelta(t, 2.5, floatTok.Float, 0.0001)

	suffixed := lexer.Next()
	require.Equal(t, TokenFloatLit, suffixed.Kind)
	require.InDelta(t, 3.0, suffixed.Float, 0.0001)

	require.Equal(t, TokenEof, lexer.Next().Kind)
}

func TestLexerCompoundAssignAndComment(t *testing.T) {
	lexer := NewLexer("x += 1 // trailing comment\ny -= 2")

	require.Equal(t, TokenIdent, lexer.Next().Kind)
	require.Equal(t, TokenPlusEqual, lexer.Next().Kind)
	require.Equal(t, TokenIntLit, lexer.Next().Kind)
	require.Equal(t, TokenIdent, lexer.Next().Kind)
	require.Equal(t, TokenMinusEqual, lexer.Next().Kind)
	require.Equal(t, TokenIntLit, lexer.Next().Kind)
	require.Equal(t, TokenEof, lexer.Next().Kind)
}

func TestLexerPeekDoesNotConsume(t *testing.T) {
	lexer := NewLexer("fn")
	require.Equal(t, TokenKwFn, lexer.Peek().Kind)
	require.Equal(t, TokenKwFn, lexer.Peek().Kind)
	require.Equal(t, TokenKwFn, lexer.Next().Kind)
	require.Equal(t, TokenEof, lexer.Next().Kind)
}
