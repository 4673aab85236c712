package compiler

import (
	"errors"
	"fmt"
	"math"
)

// Runtime failures of the reference evaluator. The compiled module traps
// for the same inputs.
var (
	ErrDivisionByZero  = errors.New("integer divide by zero")
	ErrIntegerOverflow = errors.New("integer overflow")
)

// Evaluate interprets program directly with the same semantics as the
// generated code: 32-bit wrapping arithmetic, truncating signed division,
// locals that start at zero, and the last expression statement as result.
func Evaluate(program *Program) (int32, error) {
	locals := make([]int32, len(program.Declarations()))
	var result int32
	for _, s := range program.Statements {
		switch s := s.(type) {
		case *DeclareVariable:
			if s.Index < 0 || s.Index >= len(locals) {
				return 0, fmt.Errorf("%s: slot %d out of range", s.Pos(), s.Index)
			}
			if s.Init == nil {
				continue
			}
			v, err := evalExpr(s.Init, locals)
			if err != nil {
				return 0, err
			}
			locals[s.Index] = v
		case *ExprStmt:
			v, err := evalExpr(s.Expr, locals)
			if err != nil {
				return 0, err
			}
			result = v
		default:
			return 0, fmt.Errorf("unsupported statement %T", s)
		}
	}
	return result, nil
}

func evalExpr(e Expr, locals []int32) (int32, error) {
	switch e := e.(type) {
	case *NumberLiteral:
		return e.Value, nil
	case *VariableRef:
		if e.Index < 0 || e.Index >= len(locals) {
			return 0, fmt.Errorf("%s: slot %d out of range", e.Pos(), e.Index)
		}
		return locals[e.Index], nil
	case *BinaryOp:
		l, err := evalExpr(e.Left, locals)
		if err != nil {
			return 0, err
		}
		r, err := evalExpr(e.Right, locals)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case OpAdd:
			return l + r, nil
		case OpSub:
			return l - r, nil
		case OpMul:
			return l * r, nil
		case OpDiv:
			if r == 0 {
				return 0, fmt.Errorf("%s: %w", e.Pos(), ErrDivisionByZero)
			}
			if l == math.MinInt32 && r == -1 {
				return 0, fmt.Errorf("%s: %w", e.Pos(), ErrIntegerOverflow)
			}
			return l / r, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", e.Op)
	}
	return 0, fmt.Errorf("unsupported expression %T", e)
}
