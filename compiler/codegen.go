package compiler

import (
	"fmt"

	"github.com/chazu/blowhai/wasm"
)

// ---------------------------------------------------------------------------
// Code generator: AST to WebAssembly binary module
// ---------------------------------------------------------------------------

// entrySignature is the only function type a program compiles to.
var entrySignature = wasm.FuncType{Results: []wasm.ValueType{wasm.I32}}

// Generator lowers one Program into a single exported function.
type Generator struct {
	opts   Options
	code   *wasm.CodeWriter
	locals int
}

// NewGenerator creates a generator with the given options.
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Generate compiles program into a complete binary module.
func Generate(program *Program, opts Options) ([]byte, error) {
	return NewGenerator(opts).Generate(program)
}

// Generate compiles program into a complete binary module. A generator can
// be reused; every call starts from a fresh function body.
func (g *Generator) Generate(program *Program) ([]byte, error) {
	if err := g.opts.Validate(); err != nil {
		return nil, err
	}
	if program == nil {
		return nil, &CodeGenError{Kind: UnsupportedConstruct, Detail: "nil program"}
	}

	locals, err := g.checkDeclarations(program)
	if err != nil {
		return nil, err
	}
	g.locals = locals
	g.code = wasm.NewCodeWriter()

	if err := g.emitBody(program); err != nil {
		return nil, err
	}

	body := wasm.Body{Code: g.code.Bytes()}
	if locals > 0 {
		body.Locals = []wasm.LocalGroup{{Count: uint32(locals), Type: wasm.I32}}
	}

	var m wasm.Module
	m.AddSection(wasm.SectionType, wasm.TypeSection([]wasm.FuncType{entrySignature}))
	m.AddSection(wasm.SectionFunction, wasm.FunctionSection([]uint32{0}))
	m.AddSection(wasm.SectionExport, wasm.ExportSection([]wasm.Export{
		{Name: g.opts.ExportName, Kind: wasm.ExportFunc, Index: 0},
	}))
	m.AddSection(wasm.SectionCode, wasm.CodeSection([]wasm.Body{body}))
	return m.Encode()
}

// checkDeclarations verifies that declaration indices are unique and dense
// from zero and returns the number of locals they need.
func (g *Generator) checkDeclarations(program *Program) (int, error) {
	decls := program.Declarations()
	seen := make([]bool, len(decls))
	for _, d := range decls {
		if d.Index < 0 || d.Index >= len(decls) {
			return 0, &CodeGenError{
				Kind:   UndefinedVariable,
				Detail: fmt.Sprintf("declaration of %s has slot %d outside 0..%d", d.Name, d.Index, len(decls)-1),
				Pos:    d.Pos(),
			}
		}
		if seen[d.Index] {
			return 0, &CodeGenError{
				Kind:   UndefinedVariable,
				Detail: fmt.Sprintf("slot %d declared twice (%s)", d.Index, d.Name),
				Pos:    d.Pos(),
			}
		}
		seen[d.Index] = true
	}
	return len(decls), nil
}

// emitBody walks the statements. Only the last expression statement leaves
// its value on the stack.
func (g *Generator) emitBody(program *Program) error {
	last := -1
	for i, s := range program.Statements {
		if _, ok := s.(*ExprStmt); ok {
			last = i
		}
	}

	for i, s := range program.Statements {
		switch s := s.(type) {
		case *DeclareVariable:
			// Locals start at zero and each slot is declared once.
			if s.Init == nil || isZero(s.Init) {
				continue
			}
			if err := g.emitExpr(s.Init); err != nil {
				return err
			}
			if err := g.code.LocalSet(uint32(s.Index)); err != nil {
				return g.internal(err, s.Pos())
			}

		case *ExprStmt:
			if err := g.emitExpr(s.Expr); err != nil {
				return err
			}
			if i != last {
				if err := g.code.Op(wasm.OpDrop); err != nil {
					return g.internal(err, s.Pos())
				}
			}

		default:
			return g.unsupported(s, fmt.Sprintf("statement %T", s))
		}
	}

	if last < 0 {
		if err := g.code.I32Const(0); err != nil {
			return g.internal(err, Position{})
		}
	}
	return g.finish()
}

// finish closes the body. The function result is the single value left on
// the stack.
func (g *Generator) finish() error {
	if d := g.code.Depth(); d != 1 {
		return &CodeGenError{
			Kind:   UnsupportedConstruct,
			Detail: fmt.Sprintf("body leaves %d values on the stack, want 1", d),
		}
	}
	if err := g.code.Op(wasm.OpEnd); err != nil {
		return g.internal(err, Position{})
	}
	return nil
}

// emitExpr emits e in post-order.
func (g *Generator) emitExpr(e Expr) error {
	switch e := e.(type) {
	case *NumberLiteral:
		if err := g.code.I32Const(e.Value); err != nil {
			return g.internal(err, e.Pos())
		}

	case *VariableRef:
		if e.Index < 0 || e.Index >= g.locals {
			return &CodeGenError{
				Kind:   UndefinedVariable,
				Detail: fmt.Sprintf("%s refers to slot %d, only %d declared", e.Name, e.Index, g.locals),
				Pos:    e.Pos(),
			}
		}
		if err := g.code.LocalGet(uint32(e.Index)); err != nil {
			return g.internal(err, e.Pos())
		}

	case *BinaryOp:
		op, ok := binaryOpcodes[e.Op]
		if !ok {
			return g.unsupported(e, fmt.Sprintf("operator %s", e.Op))
		}
		if err := g.emitExpr(e.Left); err != nil {
			return err
		}
		if err := g.emitExpr(e.Right); err != nil {
			return err
		}
		if err := g.code.Op(op); err != nil {
			return g.internal(err, e.Pos())
		}

	case nil:
		return &CodeGenError{Kind: UnsupportedConstruct, Detail: "missing expression"}

	default:
		return g.unsupported(e, fmt.Sprintf("expression %T", e))
	}
	return nil
}

func isZero(e Expr) bool {
	n, ok := e.(*NumberLiteral)
	return ok && n.Value == 0
}

var binaryOpcodes = map[Operator]wasm.Opcode{
	OpAdd: wasm.OpI32Add,
	OpSub: wasm.OpI32Sub,
	OpMul: wasm.OpI32Mul,
	OpDiv: wasm.OpI32DivS,
}

func (g *Generator) unsupported(n Node, detail string) error {
	var pos Position
	if n != nil {
		pos = n.Pos()
	}
	return &CodeGenError{Kind: UnsupportedConstruct, Detail: detail, Pos: pos}
}

// internal reports a stack bookkeeping failure from the code writer.
func (g *Generator) internal(err error, pos Position) error {
	return &CodeGenError{Kind: UnsupportedConstruct, Detail: err.Error(), Pos: pos}
}
