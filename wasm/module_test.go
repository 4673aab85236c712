package wasm

import (
	"bytes"
	"strings"
	"testing"
)

func buildAnswerModule(t *testing.T) []byte {
	t.Helper()
	w := NewCodeWriter()
	if err := w.I32Const(42); err != nil {
		t.Fatal(err)
	}
	if err := w.Op(OpEnd); err != nil {
		t.Fatal(err)
	}

	m := &Module{}
	m.AddSection(SectionType, TypeSection([]FuncType{{Results: []ValueType{I32}}}))
	m.AddSection(SectionFunction, FunctionSection([]uint32{0}))
	m.AddSection(SectionExport, ExportSection([]Export{{Name: "_start", Kind: ExportFunc, Index: 0}}))
	m.AddSection(SectionCode, CodeSection([]Body{{Code: w.Bytes()}}))
	out, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return out
}

func TestEncodeMatchesHandAssembledModule(t *testing.T) {
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
		0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b,
	}
	got := buildAnswerModule(t)
	if !bytes.Equal(got, want) {
		t.Errorf("module =\n% x\nwant\n% x", got, want)
	}
}

func TestAddSectionOmitsEmptyPayload(t *testing.T) {
	m := &Module{}
	m.AddSection(SectionType, TypeSection(nil))
	m.AddSection(SectionExport, ExportSection(nil))
	if len(m.Sections) != 0 {
		t.Fatalf("sections = %d, want 0", len(m.Sections))
	}
	out, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 8 {
		t.Errorf("empty module length = %d, want 8", len(out))
	}
}

func TestValidateRejectsOutOfOrderSections(t *testing.T) {
	m := &Module{Sections: []Section{
		{ID: SectionExport, Payload: []byte{0x00}},
		{ID: SectionType, Payload: []byte{0x00}},
	}}
	if _, err := m.Encode(); err == nil {
		t.Fatal("expected ordering error")
	}

	dup := &Module{Sections: []Section{
		{ID: SectionType, Payload: []byte{0x00}},
		{ID: SectionType, Payload: []byte{0x00}},
	}}
	if err := dup.Validate(); err == nil {
		t.Fatal("expected duplicate section error")
	}
}

func TestLargeSectionSizeUsesLEB128(t *testing.T) {
	w := NewCodeWriter()
	// 200 constants dropped one by one keep the body well past 127 bytes
	for i := 0; i < 200; i++ {
		if err := w.I32Const(int32(i)); err != nil {
			t.Fatal(err)
		}
		if err := w.Op(OpDrop); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.I32Const(7); err != nil {
		t.Fatal(err)
	}
	if err := w.Op(OpEnd); err != nil {
		t.Fatal(err)
	}

	locals := make([]ValueType, 300)
	for i := range locals {
		locals[i] = I32
	}
	m := &Module{}
	m.AddSection(SectionType, TypeSection([]FuncType{{Results: []ValueType{I32}}}))
	m.AddSection(SectionFunction, FunctionSection([]uint32{0}))
	m.AddSection(SectionCode, CodeSection([]Body{{Locals: CompactLocals(locals), Code: w.Bytes()}}))
	out, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	code, ok := decoded.Section(SectionCode)
	if !ok {
		t.Fatal("missing code section")
	}
	if len(code.Payload) <= 127 {
		t.Fatalf("code payload = %d bytes, want > 127", len(code.Payload))
	}
	bodies, err := DecodeCode(code.Payload)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	if len(bodies) != 1 || len(bodies[0].Locals) != 1 || bodies[0].Locals[0].Count != 300 {
		t.Fatalf("locals = %+v, want one group of 300", bodies)
	}
	instrs, err := DecodeInstructions(bodies[0].Code)
	if err != nil {
		t.Fatal(err)
	}
	if len(instrs) != 402 {
		t.Errorf("instructions = %d, want 402", len(instrs))
	}
}

func TestDecodeRejectsBadPreamble(t *testing.T) {
	if _, err := Decode([]byte("\x00asx\x01\x00\x00\x00")); err == nil {
		t.Error("expected bad magic error")
	}
	if _, err := Decode([]byte("\x00asm\x02\x00\x00\x00")); err == nil {
		t.Error("expected version error")
	}
	if _, err := Decode([]byte("\x00asm\x01\x00\x00\x00\x01\x09\x01")); err == nil {
		t.Error("expected section size error")
	}
}

func TestCodeWriterStackTracking(t *testing.T) {
	w := NewCodeWriter()
	if err := w.Op(OpI32Add); err == nil {
		t.Fatal("expected underflow error for add on empty stack")
	}
	_ = w.I32Const(1)
	_ = w.I32Const(2)
	if err := w.Op(OpI32Add); err != nil {
		t.Fatal(err)
	}
	if w.Depth() != 1 || w.MaxDepth() != 2 {
		t.Errorf("depth = %d, max = %d, want 1, 2", w.Depth(), w.MaxDepth())
	}
	if err := w.Op(OpLocalGet); err == nil {
		t.Error("expected error for local.get without immediate")
	}
}

func TestCompactLocals(t *testing.T) {
	groups := CompactLocals([]ValueType{I32, I32, I64, I32})
	want := []LocalGroup{{2, I32}, {1, I64}, {1, I32}}
	if len(groups) != len(want) {
		t.Fatalf("groups = %v, want %v", groups, want)
	}
	for i := range want {
		if groups[i] != want[i] {
			t.Errorf("group[%d] = %v, want %v", i, groups[i], want[i])
		}
	}
	if CompactLocals(nil) != nil {
		t.Error("CompactLocals(nil) should be nil")
	}
}

func TestDisassemble(t *testing.T) {
	m, err := Decode(buildAnswerModule(t))
	if err != nil {
		t.Fatal(err)
	}
	listing, err := Disassemble(m)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"(type 0 (func (result i32)))",
		`(export "_start" (func 0))`,
		"i32.const 42",
		"end",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}
