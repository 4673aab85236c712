package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/blowhai/wasm"
)

// decoded is a generated module split into its parts.
type decoded struct {
	sections []wasm.SectionID
	types    []wasm.FuncType
	funcs    []uint32
	exports  []wasm.Export
	body     wasm.Body
	instrs   []string
}

func generate(t *testing.T, input string, opts Options) decoded {
	t.Helper()
	out, err := Generate(parse(t, input), opts)
	if err != nil {
		t.Fatalf("generate %q: %v", input, err)
	}
	return decodeModule(t, out)
}

func decodeModule(t *testing.T, out []byte) decoded {
	t.Helper()
	m, err := wasm.Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var d decoded
	for _, s := range m.Sections {
		d.sections = append(d.sections, s.ID)
	}
	sec := func(id wasm.SectionID) []byte {
		s, ok := m.Section(id)
		if !ok {
			t.Fatalf("missing %s section", id)
		}
		return s.Payload
	}
	if d.types, err = wasm.DecodeTypes(sec(wasm.SectionType)); err != nil {
		t.Fatal(err)
	}
	if d.funcs, err = wasm.DecodeFunctions(sec(wasm.SectionFunction)); err != nil {
		t.Fatal(err)
	}
	if d.exports, err = wasm.DecodeExports(sec(wasm.SectionExport)); err != nil {
		t.Fatal(err)
	}
	bodies, err := wasm.DecodeCode(sec(wasm.SectionCode))
	if err != nil {
		t.Fatal(err)
	}
	if len(bodies) != 1 {
		t.Fatalf("expected 1 body, got %d", len(bodies))
	}
	d.body = bodies[0]
	instrs, err := wasm.DecodeInstructions(d.body.Code)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range instrs {
		d.instrs = append(d.instrs, in.String())
	}
	return d
}

func TestGenerateExactBytes(t *testing.T) {
	out, err := Generate(parse(t, "42;"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
		0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b,
	}
	if !bytes.Equal(out, want) {
		t.Errorf("module bytes:\n got % x\nwant % x", out, want)
	}
}

func TestGenerateStructure(t *testing.T) {
	d := generate(t, "(3 + 4);", DefaultOptions())

	wantSections := []wasm.SectionID{wasm.SectionType, wasm.SectionFunction, wasm.SectionExport, wasm.SectionCode}
	if fmt.Sprint(d.sections) != fmt.Sprint(wantSections) {
		t.Errorf("sections: got %v, want %v", d.sections, wantSections)
	}
	if len(d.types) != 1 || len(d.types[0].Params) != 0 || len(d.types[0].Results) != 1 || d.types[0].Results[0] != wasm.I32 {
		t.Errorf("types: got %+v", d.types)
	}
	if len(d.funcs) != 1 || d.funcs[0] != 0 {
		t.Errorf("functions: got %v", d.funcs)
	}
	if len(d.exports) != 1 || d.exports[0] != (wasm.Export{Name: "_start", Kind: wasm.ExportFunc, Index: 0}) {
		t.Errorf("exports: got %+v", d.exports)
	}
	if len(d.body.Locals) != 0 {
		t.Errorf("locals: got %+v, want none", d.body.Locals)
	}
}

func TestGenerateInstructions(t *testing.T) {
	tests := []struct {
		input  string
		locals []wasm.LocalGroup
		instrs []string
	}{
		{
			input:  "(3 + 4);",
			instrs: []string{"i32.const 3", "i32.const 4", "i32.add", "end"},
		},
		{
			input:  "(3 * (4 - 1));",
			instrs: []string{"i32.const 3", "i32.const 4", "i32.const 1", "i32.sub", "i32.mul", "end"},
		},
		{
			input:  "10 / -3;",
			instrs: []string{"i32.const 10", "i32.const -3", "i32.div_s", "end"},
		},
		{
			input:  "var x = 5; var y; (x + y);",
			locals: []wasm.LocalGroup{{Count: 2, Type: wasm.I32}},
			instrs: []string{"i32.const 5", "local.set 0", "local.get 0", "local.get 1", "i32.add", "end"},
		},
		{
			input:  "1; 2;",
			instrs: []string{"i32.const 1", "drop", "i32.const 2", "end"},
		},
		{
			input:  "1; var x = 2;",
			locals: []wasm.LocalGroup{{Count: 1, Type: wasm.I32}},
			instrs: []string{"i32.const 1", "i32.const 2", "local.set 0", "end"},
		},
		{
			input:  "",
			instrs: []string{"i32.const 0", "end"},
		},
		{
			input:  "var x;",
			locals: []wasm.LocalGroup{{Count: 1, Type: wasm.I32}},
			instrs: []string{"i32.const 0", "end"},
		},
		{
			input:  "var x = 0; var y = 0 * 1; x + y;",
			locals: []wasm.LocalGroup{{Count: 2, Type: wasm.I32}},
			instrs: []string{"i32.const 0", "i32.const 1", "i32.mul", "local.set 1", "local.get 0", "local.get 1", "i32.add", "end"},
		},
	}

	for _, tc := range tests {
		d := generate(t, tc.input, DefaultOptions())
		if fmt.Sprint(d.body.Locals) != fmt.Sprint(tc.locals) {
			t.Errorf("%q: locals %v, want %v", tc.input, d.body.Locals, tc.locals)
		}
		if strings.Join(d.instrs, "; ") != strings.Join(tc.instrs, "; ") {
			t.Errorf("%q:\n got %v\nwant %v", tc.input, d.instrs, tc.instrs)
		}
	}
}

func TestGenerateExportName(t *testing.T) {
	d := generate(t, "1;", Options{ExportName: "main"})
	if d.exports[0].Name != "main" {
		t.Errorf("export name: got %q, want main", d.exports[0].Name)
	}

	if _, err := Generate(parse(t, "1;"), Options{}); err == nil {
		t.Error("expected error for empty export name")
	}
}

func TestGenerateManyLocals(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "var v%d = %d;\n", i, i*1000)
	}
	sb.WriteString("(v199 + v1);")

	d := generate(t, sb.String(), DefaultOptions())
	if len(d.body.Locals) != 1 || d.body.Locals[0].Count != 200 {
		t.Errorf("locals: got %+v", d.body.Locals)
	}
	// 200 x (const, set) + get, get, add, end
	if len(d.instrs) != 404 {
		t.Errorf("instructions: got %d, want 404", len(d.instrs))
	}
	if len(d.body.Code) <= 127 {
		t.Errorf("body should exceed 127 bytes, got %d", len(d.body.Code))
	}
}

func TestGenerateInternalErrors(t *testing.T) {
	tests := []struct {
		name string
		prog *Program
		kind CodeGenErrorKind
	}{
		{
			"reference without declaration",
			&Program{Statements: []Stmt{&ExprStmt{Expr: &VariableRef{Index: 0, Name: "x"}}}},
			UndefinedVariable,
		},
		{
			"reference past declared slots",
			&Program{Statements: []Stmt{
				&DeclareVariable{Index: 0, Name: "x"},
				&ExprStmt{Expr: &VariableRef{Index: 3, Name: "w"}},
			}},
			UndefinedVariable,
		},
		{
			"sparse declaration index",
			&Program{Statements: []Stmt{&DeclareVariable{Index: 5, Name: "x"}}},
			UndefinedVariable,
		},
		{
			"repeated declaration index",
			&Program{Statements: []Stmt{
				&DeclareVariable{Index: 0, Name: "x"},
				&DeclareVariable{Index: 0, Name: "y"},
			}},
			UndefinedVariable,
		},
		{
			"unknown operator",
			&Program{Statements: []Stmt{&ExprStmt{Expr: &BinaryOp{
				Op: Operator(99), Left: &NumberLiteral{Value: 1}, Right: &NumberLiteral{Value: 2},
			}}}},
			UnsupportedConstruct,
		},
	}

	for _, tc := range tests {
		_, err := Generate(tc.prog, DefaultOptions())
		var cge *CodeGenError
		if !errors.As(err, &cge) {
			t.Errorf("%s: expected CodeGenError, got %v", tc.name, err)
			continue
		}
		if cge.Kind != tc.kind {
			t.Errorf("%s: kind %s, want %s", tc.name, cge.Kind, tc.kind)
		}
	}
}

func TestGenerateStackBalance(t *testing.T) {
	tests := []struct {
		name   string
		values int
		ok     bool
	}{
		{"empty stack", 0, false},
		{"one value", 1, true},
		{"two values", 2, false},
	}

	for _, tc := range tests {
		g := NewGenerator(DefaultOptions())
		g.code = wasm.NewCodeWriter()
		for i := 0; i < tc.values; i++ {
			if err := g.code.I32Const(int32(i)); err != nil {
				t.Fatal(err)
			}
		}

		err := g.finish()
		if tc.ok {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			if code := g.code.Bytes(); code[len(code)-1] != byte(wasm.OpEnd) {
				t.Errorf("%s: body does not end with end", tc.name)
			}
			continue
		}
		var ce *CodeGenError
		if !errors.As(err, &ce) || ce.Kind != UnsupportedConstruct {
			t.Errorf("%s: expected UnsupportedConstruct, got %v", tc.name, err)
		}
	}
}
