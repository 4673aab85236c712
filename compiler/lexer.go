package compiler

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for blowhai source
// ---------------------------------------------------------------------------

// Lexer tokenizes source text, resolving identifiers against a symbol table
// built beforehand. It never declares symbols itself.
type Lexer struct {
	input   string
	symbols *SymbolTable
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
	prev    TokenType
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string, symbols *SymbolTable) *Lexer {
	if symbols == nil {
		symbols = NewSymbolTable()
	}
	l := &Lexer{
		input:   input,
		symbols: symbols,
		line:    1,
		prev:    TokenSemicolon,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.col++
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token. At the end of input it returns an EOF
// token on every call.
func (l *Lexer) NextToken() (Token, error) {
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	l.prev = tok.Type
	return tok, nil
}

func (l *Lexer) scan() (Token, error) {
	l.skipWhitespace()

	pos := l.position()

	switch {
	case l.atEOF():
		return Token{Type: TokenEOF, Pos: pos}, nil

	case isDigit(l.ch):
		return l.readNumber(pos)

	case l.ch == '-' && isDigit(l.peekChar()) && !l.prev.endsOperand():
		return l.readNumber(pos)
	}

	if typ, ok := punctuation[l.ch]; ok {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: typ, Literal: lit, Pos: pos}, nil
	}

	if isLetter(l.ch) {
		return l.readWord(pos)
	}

	return Token{}, &LexError{Kind: UnrecognizedToken, Text: l.readLexeme(pos.Offset), Pos: pos}
}

// skipWhitespace skips whitespace.
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

// readNumber reads an integer literal with an optional leading '-'.
func (l *Lexer) readNumber(pos Position) (Token, error) {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if !l.atDelimiter() {
		return Token{}, &LexError{Kind: UnrecognizedToken, Text: l.readLexeme(start), Pos: pos}
	}

	lit := l.input[start:l.pos]
	v, err := strconv.ParseInt(lit, 10, 32)
	if err != nil {
		return Token{}, &LexError{Kind: InvalidNumber, Text: lit, Pos: pos}
	}
	return Token{Type: TokenNumber, Literal: lit, Value: int32(v), Pos: pos}, nil
}

// readWord reads a keyword or an identifier.
func (l *Lexer) readWord(pos Position) (Token, error) {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	if !l.atDelimiter() {
		return Token{}, &LexError{Kind: UnrecognizedToken, Text: l.readLexeme(start), Pos: pos}
	}

	lit := l.input[start:l.pos]
	if typ, ok := reservedWords[lit]; ok {
		return Token{Type: typ, Literal: lit, Pos: pos}, nil
	}
	idx, ok := l.symbols.Lookup(lit)
	if !ok {
		return Token{}, &LexError{Kind: UnknownSymbol, Text: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Index: idx, Pos: pos}, nil
}

// readLexeme consumes up to the next delimiter and returns the text from
// start, which is always at least one character.
func (l *Lexer) readLexeme(start int) string {
	if l.pos == start {
		l.readChar()
	}
	for !l.atDelimiter() {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// atDelimiter reports whether the current character ends a lexeme.
func (l *Lexer) atDelimiter() bool {
	if l.atEOF() || unicode.IsSpace(l.ch) {
		return true
	}
	_, ok := punctuation[l.ch]
	return ok
}

// Tokenize splits source into tokens, resolving identifiers against
// symbols. The result always ends with a single EOF token.
func Tokenize(source string, symbols *SymbolTable) ([]Token, error) {
	l := NewLexer(source, symbols)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}
