package wasm

import "fmt"

// CodeWriter accumulates the instruction bytes of one function body and
// tracks the static depth of the operand stack.
type CodeWriter struct {
	buf      []byte
	depth    int
	maxDepth int
}

// NewCodeWriter creates an empty code writer.
func NewCodeWriter() *CodeWriter {
	return &CodeWriter{}
}

// Bytes returns the instructions written so far.
func (w *CodeWriter) Bytes() []byte {
	return w.buf
}

// Depth returns the current operand stack depth.
func (w *CodeWriter) Depth() int {
	return w.depth
}

// MaxDepth returns the highest stack depth reached.
func (w *CodeWriter) MaxDepth() int {
	return w.maxDepth
}

func (w *CodeWriter) effect(op Opcode) error {
	info, ok := GetOpcodeInfo(op)
	if !ok {
		return fmt.Errorf("wasm: unknown opcode 0x%02x", byte(op))
	}
	if w.depth < info.StackPop {
		return fmt.Errorf("wasm: %s needs %d operands, stack has %d", info.Name, info.StackPop, w.depth)
	}
	w.depth += info.StackPush - info.StackPop
	if w.depth > w.maxDepth {
		w.maxDepth = w.depth
	}
	return nil
}

// Op emits an instruction without immediates.
func (w *CodeWriter) Op(op Opcode) error {
	if info, _ := GetOpcodeInfo(op); info.Immediate != ImmNone {
		return fmt.Errorf("wasm: %s requires an immediate", info.Name)
	}
	if err := w.effect(op); err != nil {
		return err
	}
	w.buf = append(w.buf, byte(op))
	return nil
}

// I32Const pushes a constant.
func (w *CodeWriter) I32Const(v int32) error {
	if err := w.effect(OpI32Const); err != nil {
		return err
	}
	w.buf = append(w.buf, byte(OpI32Const))
	w.buf = AppendSLEB128(w.buf, int64(v))
	return nil
}

// LocalGet pushes the value of a local.
func (w *CodeWriter) LocalGet(idx uint32) error {
	return w.indexed(OpLocalGet, idx)
}

// LocalSet pops a value into a local.
func (w *CodeWriter) LocalSet(idx uint32) error {
	return w.indexed(OpLocalSet, idx)
}

func (w *CodeWriter) indexed(op Opcode, idx uint32) error {
	if err := w.effect(op); err != nil {
		return err
	}
	w.buf = append(w.buf, byte(op))
	w.buf = AppendULEB128(w.buf, uint64(idx))
	return nil
}
