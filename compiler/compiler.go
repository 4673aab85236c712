package compiler

import (
	"errors"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("blowhai.compiler")

// DefaultExportName is the name the entry function is exported under.
const DefaultExportName = "_start"

// Options configures one compilation.
type Options struct {
	// ExportName is the export the compiled function is visible under.
	ExportName string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{ExportName: DefaultExportName}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.ExportName == "" {
		return errors.New("compiler: export name must not be empty")
	}
	return nil
}

// Unit is the result of the front end: everything except the binary.
type Unit struct {
	Symbols *SymbolTable
	Tokens  []Token
	Program *Program
}

// Analyze runs the symbol pre-pass, lexer and parser over source. The
// returned Unit holds whatever stages completed; the error, if any, is a
// *CompileError naming the failed stage.
func Analyze(source string) (*Unit, error) {
	unit := &Unit{}

	symbols, err := BuildSymbolTable(source)
	if err != nil {
		return unit, &CompileError{Stage: StageSymbols, Err: err}
	}
	unit.Symbols = symbols
	log.Debugf("symbols: %d declared", symbols.Len())

	tokens, err := Tokenize(source, symbols)
	if err != nil {
		return unit, &CompileError{Stage: StageLex, Err: err}
	}
	unit.Tokens = tokens
	log.Debugf("lex: %d tokens", len(tokens))

	program, err := Parse(tokens)
	if err != nil {
		return unit, &CompileError{Stage: StageParse, Err: err}
	}
	unit.Program = program
	log.Debugf("parse: %d statements", len(program.Statements))

	return unit, nil
}

// Compile translates source into a binary WebAssembly module exporting one
// function that returns the program's value. It stops at the first failure.
func Compile(source string, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	unit, err := Analyze(source)
	if err != nil {
		return nil, err
	}

	module, err := Generate(unit.Program, opts)
	if err != nil {
		return nil, &CompileError{Stage: StageCodegen, Err: err}
	}
	log.Debugf("codegen: %d bytes, export %q", len(module), opts.ExportName)
	return module, nil
}

// ErrorPosition returns the source position carried by err, if any.
func ErrorPosition(err error) (Position, bool) {
	var p Positioned
	if errors.As(err, &p) {
		return p.Position(), true
	}
	return Position{}, false
}
