package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for blowhai
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// Operator is an arithmetic operator.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
)

var operatorSymbols = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/"}

func (o Operator) String() string {
	if int(o) >= 0 && int(o) < len(operatorSymbols) {
		return operatorSymbols[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents an i32 literal.
type NumberLiteral struct {
	PosVal Position
	Value  int32
}

func (n *NumberLiteral) Pos() Position { return n.PosVal }
func (n *NumberLiteral) node()         {}
func (n *NumberLiteral) expr()         {}

// VariableRef reads a declared variable's local slot.
type VariableRef struct {
	PosVal Position
	Index  int
	Name   string
}

func (n *VariableRef) Pos() Position { return n.PosVal }
func (n *VariableRef) node()         {}
func (n *VariableRef) expr()         {}

// BinaryOp applies Op to Left and Right. Each node owns its children.
type BinaryOp struct {
	PosVal Position // position of the operator
	Op     Operator
	Left   Expr
	Right  Expr
}

func (n *BinaryOp) Pos() Position { return n.PosVal }
func (n *BinaryOp) node()         {}
func (n *BinaryOp) expr()         {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// DeclareVariable is `var name (= init)?;`. A nil Init means the default
// initial value 0.
type DeclareVariable struct {
	PosVal Position
	Index  int
	Name   string
	Init   Expr
}

func (n *DeclareVariable) Pos() Position { return n.PosVal }
func (n *DeclareVariable) node()         {}
func (n *DeclareVariable) stmt()         {}

// ExprStmt is an expression followed by ';'.
type ExprStmt struct {
	Expr Expr
}

func (n *ExprStmt) Pos() Position { return n.Expr.Pos() }
func (n *ExprStmt) node()         {}
func (n *ExprStmt) stmt()         {}

// Program is an ordered sequence of statements.
type Program struct {
	Statements []Stmt
}

// Declarations returns the variable declarations in source order.
func (p *Program) Declarations() []*DeclareVariable {
	var decls []*DeclareVariable
	for _, s := range p.Statements {
		if d, ok := s.(*DeclareVariable); ok {
			decls = append(decls, d)
		}
	}
	return decls
}

// ---------------------------------------------------------------------------
// S-expression printing
// ---------------------------------------------------------------------------

// String renders the program as one S-expression per statement.
func (p *Program) String() string {
	var sb strings.Builder
	for i, s := range p.Statements {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(FormatNode(s))
	}
	return sb.String()
}

// FormatNode renders a node as an S-expression.
func FormatNode(n Node) string {
	switch n := n.(type) {
	case *NumberLiteral:
		return fmt.Sprintf("%d", n.Value)
	case *VariableRef:
		return fmt.Sprintf("%s#%d", n.Name, n.Index)
	case *BinaryOp:
		return fmt.Sprintf("(%s %s %s)", n.Op, FormatNode(n.Left), FormatNode(n.Right))
	case *DeclareVariable:
		if n.Init == nil {
			return fmt.Sprintf("(var %s#%d)", n.Name, n.Index)
		}
		return fmt.Sprintf("(var %s#%d %s)", n.Name, n.Index, FormatNode(n.Init))
	case *ExprStmt:
		return FormatNode(n.Expr)
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", n)
}
