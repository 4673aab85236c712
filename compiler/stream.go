package compiler

// TokenStream is a token sequence with a cursor. The cursor never moves
// backwards and never passes the end; once the stream is exhausted Peek and
// Next keep returning the final EOF token.
type TokenStream struct {
	tokens []Token
	cursor int
}

// NewTokenStream wraps tokens. A missing trailing EOF token is added.
func NewTokenStream(tokens []Token) *TokenStream {
	if n := len(tokens); n == 0 || tokens[n-1].Type != TokenEOF {
		var pos Position
		if n > 0 {
			last := tokens[n-1]
			pos = last.Pos
			pos.Offset += len(last.Literal)
			pos.Column += len([]rune(last.Literal))
		}
		tokens = append(tokens[:n:n], Token{Type: TokenEOF, Pos: pos})
	}
	return &TokenStream{tokens: tokens}
}

// Peek returns the next token without consuming it.
func (s *TokenStream) Peek() Token {
	return s.tokens[s.cursor]
}

// Next consumes and returns the next token.
func (s *TokenStream) Next() Token {
	tok := s.tokens[s.cursor]
	if s.cursor < len(s.tokens)-1 {
		s.cursor++
	}
	return tok
}

// Cursor returns the index of the next token.
func (s *TokenStream) Cursor() int {
	return s.cursor
}

// Len returns the number of tokens including the final EOF.
func (s *TokenStream) Len() int {
	return len(s.tokens)
}
