package compiler

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for blowhai
// ---------------------------------------------------------------------------

// MaxDepth bounds expression nesting so that hostile input cannot exhaust
// the goroutine stack.
const MaxDepth = 1000

// Parser parses a token stream into a Program. Variable indices are already
// resolved in the tokens; the parser never consults a symbol table.
type Parser struct {
	stream *TokenStream
	depth  int
}

// NewParser creates a parser over tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{stream: NewTokenStream(tokens)}
}

// Parse parses a complete program.
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).ParseProgram()
}

// curTokenIs checks if the next token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.stream.Peek().Type == t
}

// unexpected builds the error for the next token.
func (p *Parser) unexpected(expected string) error {
	found := p.stream.Peek()
	kind := UnexpectedToken
	if found.Type == TokenEOF {
		kind = UnexpectedEndOfInput
	}
	return &ParseError{Kind: kind, Found: found, Expected: expected}
}

// expect consumes a token of type t or fails.
func (p *Parser) expect(t TokenType, expected string) (Token, error) {
	if !p.curTokenIs(t) {
		return Token{}, p.unexpected(expected)
	}
	return p.stream.Next(), nil
}

// ParseProgram parses statement* EOF.
func (p *Parser) ParseProgram() (*Program, error) {
	prog := &Program{}
	for !p.curTokenIs(TokenEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	if p.curTokenIs(TokenVar) {
		return p.parseDeclaration()
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseDeclaration parses 'var' Identifier ('=' expr)? ';'.
func (p *Parser) parseDeclaration() (Stmt, error) {
	p.stream.Next() // consume var

	name, err := p.expect(TokenIdentifier, "variable name")
	if err != nil {
		return nil, err
	}

	decl := &DeclareVariable{PosVal: name.Pos, Index: name.Index, Name: name.Literal}
	expected := "'=' or ';'"
	if p.curTokenIs(TokenAssign) {
		p.stream.Next()
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		decl.Init = init
		expected = "operator or ';'"
	}

	if _, err := p.expect(TokenSemicolon, expected); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseExpr parses term (('+'|'-') term)*, folding to the left.
func (p *Parser) parseExpr() (Expr, error) {
	return p.parseBinary(p.parseTerm, TokenPlus, TokenMinus)
}

// parseTerm parses factor (('*'|'/') factor)*, folding to the left.
func (p *Parser) parseTerm() (Expr, error) {
	return p.parseBinary(p.parseFactor, TokenStar, TokenSlash)
}

func (p *Parser) parseBinary(operand func() (Expr, error), ops ...TokenType) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.curTokenIsAny(ops...) {
		opTok := p.stream.Next()
		op, _ := opTok.Operator()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{PosVal: opTok.Pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) curTokenIsAny(types ...TokenType) bool {
	cur := p.stream.Peek().Type
	for _, t := range types {
		if cur == t {
			return true
		}
	}
	return false
}

// parseFactor parses Number | Identifier | '(' expr ')'.
func (p *Parser) parseFactor() (Expr, error) {
	tok := p.stream.Peek()
	switch tok.Type {
	case TokenNumber:
		p.stream.Next()
		return &NumberLiteral{PosVal: tok.Pos, Value: tok.Value}, nil

	case TokenIdentifier:
		p.stream.Next()
		return &VariableRef{PosVal: tok.Pos, Index: tok.Index, Name: tok.Literal}, nil

	case TokenLParen:
		if p.depth >= MaxDepth {
			return nil, p.unexpected("shallower nesting")
		}
		p.stream.Next()
		p.depth++
		inner, err := p.parseExpr()
		p.depth--
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	return nil, p.unexpected("expression")
}
