package hash

import (
	"fmt"

	"github.com/chazu/blowhai/compiler"
)

// NormalizeProgram converts a parsed program into its hashing AST.
func NormalizeProgram(p *compiler.Program) (*HProgram, error) {
	hp := &HProgram{Statements: make([]HNode, 0, len(p.Statements))}
	for _, s := range p.Statements {
		n, err := normalizeStmt(s)
		if err != nil {
			return nil, err
		}
		hp.Statements = append(hp.Statements, n)
	}
	return hp, nil
}

func normalizeStmt(s compiler.Stmt) (HNode, error) {
	switch s := s.(type) {
	case *compiler.DeclareVariable:
		d := &HDeclare{Slot: uint32(s.Index)}
		if s.Init != nil {
			init, err := normalizeExpr(s.Init)
			if err != nil {
				return nil, err
			}
			d.Init = init
		}
		return d, nil
	case *compiler.ExprStmt:
		e, err := normalizeExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		return &HExprStmt{Expr: e}, nil
	}
	return nil, fmt.Errorf("hash: unsupported statement %T", s)
}

func normalizeExpr(e compiler.Expr) (HNode, error) {
	switch e := e.(type) {
	case *compiler.NumberLiteral:
		return &HNumber{Value: e.Value}, nil
	case *compiler.VariableRef:
		return &HLocalRef{Slot: uint32(e.Index)}, nil
	case *compiler.BinaryOp:
		op, ok := operatorBytes[e.Op]
		if !ok {
			return nil, fmt.Errorf("hash: unsupported operator %s", e.Op)
		}
		l, err := normalizeExpr(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := normalizeExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return &HBinary{Op: op, Left: l, Right: r}, nil
	}
	return nil, fmt.Errorf("hash: unsupported expression %T", e)
}

var operatorBytes = map[compiler.Operator]byte{
	compiler.OpAdd: OpAdd,
	compiler.OpSub: OpSub,
	compiler.OpMul: OpMul,
	compiler.OpDiv: OpDiv,
}
