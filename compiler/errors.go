package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Errors: one typed failure per pipeline stage
// ---------------------------------------------------------------------------

// Stage names a pipeline stage.
type Stage int

const (
	StageSymbols Stage = iota
	StageLex
	StageParse
	StageCodegen
)

var stageNames = [...]string{
	StageSymbols: "symbols",
	StageLex:     "lex",
	StageParse:   "parse",
	StageCodegen: "codegen",
}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// CompileError wraps the first failure of a compilation with its stage.
type CompileError struct {
	Stage Stage
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Positioned is implemented by errors that know where in the source they
// happened.
type Positioned interface {
	error
	Position() Position
}

// DuplicateDeclarationError reports a second `var` for the same name.
type DuplicateDeclarationError struct {
	Name     string
	Pos      Position // the redeclaration
	Previous Position // the first declaration
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("%s: duplicate declaration of %q (first declared at %s)", e.Pos, e.Name, e.Previous)
}

func (e *DuplicateDeclarationError) Position() Position { return e.Pos }

// LexErrorKind classifies lexer failures.
type LexErrorKind int

const (
	UnrecognizedToken LexErrorKind = iota
	UnknownSymbol
	InvalidNumber
)

func (k LexErrorKind) String() string {
	switch k {
	case UnrecognizedToken:
		return "unrecognized token"
	case UnknownSymbol:
		return "unknown symbol"
	case InvalidNumber:
		return "invalid number"
	}
	return fmt.Sprintf("LexErrorKind(%d)", int(k))
}

// LexError reports a lexeme the lexer cannot classify.
type LexError struct {
	Kind LexErrorKind
	Text string
	Pos  Position
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Pos, e.Kind, e.Text)
}

func (e *LexError) Position() Position { return e.Pos }

// ParseErrorKind classifies parser failures.
type ParseErrorKind int

const (
	UnexpectedToken ParseErrorKind = iota
	UnexpectedEndOfInput
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "unexpected token"
	case UnexpectedEndOfInput:
		return "unexpected end of input"
	}
	return fmt.Sprintf("ParseErrorKind(%d)", int(k))
}

// ParseError reports a token that does not fit the grammar.
type ParseError struct {
	Kind     ParseErrorKind
	Found    Token
	Expected string
}

func (e *ParseError) Error() string {
	if e.Kind == UnexpectedEndOfInput {
		return fmt.Sprintf("%s: unexpected end of input, expected %s", e.Found.Pos, e.Expected)
	}
	return fmt.Sprintf("%s: unexpected %s, expected %s", e.Found.Pos, e.Found, e.Expected)
}

func (e *ParseError) Position() Position { return e.Found.Pos }

// CodeGenErrorKind classifies code generation failures. Both kinds are
// internal consistency faults: a program produced by Parse never triggers
// them.
type CodeGenErrorKind int

const (
	UndefinedVariable CodeGenErrorKind = iota
	UnsupportedConstruct
)

func (k CodeGenErrorKind) String() string {
	switch k {
	case UndefinedVariable:
		return "undefined variable"
	case UnsupportedConstruct:
		return "unsupported construct"
	}
	return fmt.Sprintf("CodeGenErrorKind(%d)", int(k))
}

// CodeGenError reports an AST the generator cannot lower.
type CodeGenError struct {
	Kind   CodeGenErrorKind
	Detail string
	Pos    Position
}

func (e *CodeGenError) Error() string {
	return fmt.Sprintf("%s: internal error: %s: %s", e.Pos, e.Kind, e.Detail)
}

func (e *CodeGenError) Position() Position { return e.Pos }
