package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the blowhai lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals and names
	TokenNumber     // 42, -7
	TokenIdentifier // x, total_1

	// Keywords
	TokenVar // var

	// Operators
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenAssign // =

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenNumber:     "NUMBER",
	TokenIdentifier: "IDENTIFIER",
	TokenVar:        "var",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenAssign:     "=",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenSemicolon:  ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token. Number tokens carry their value and
// identifier tokens carry the slot index resolved from the symbol table.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Value   int32    // TokenNumber only
	Index   int      // TokenIdentifier only
	Pos     Position // start position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return fmt.Sprintf("NUMBER(%d)", t.Value)
	case TokenIdentifier:
		return fmt.Sprintf("IDENTIFIER(%s#%d)", t.Literal, t.Index)
	}
	return fmt.Sprintf("%q", t.Literal)
}

// Operator returns the binary operator for +, -, * and /.
func (t Token) Operator() (Operator, bool) {
	switch t.Type {
	case TokenPlus:
		return OpAdd, true
	case TokenMinus:
		return OpSub, true
	case TokenStar:
		return OpMul, true
	case TokenSlash:
		return OpDiv, true
	}
	return 0, false
}

// endsOperand reports whether a token of this type can end an operand, in
// which case a following '-' is subtraction rather than a sign.
func (t TokenType) endsOperand() bool {
	return t == TokenNumber || t == TokenIdentifier || t == TokenRParen
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"var": TokenVar,
}

// punctuation maps single-character lexemes to their token types.
var punctuation = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'=': TokenAssign,
	';': TokenSemicolon,
}
