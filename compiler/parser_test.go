package compiler

import (
	"errors"
	"strings"
	"testing"
)

func parse(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(lex(t, input))
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return prog
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42;", "42"},
		{"-5;", "-5"},
		{"1 + 2 * 3;", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3;", "(* (+ 1 2) 3)"},
		{"1 - 2 - 3;", "(- (- 1 2) 3)"},
		{"8 / 4 / 2;", "(/ (/ 8 4) 2)"},
		{"2 * 3 + 4 * 5;", "(+ (* 2 3) (* 4 5))"},
		{"(((7)));", "7"},
		{"3 - -1;", "(- 3 -1)"},
	}

	for _, tc := range tests {
		prog := parse(t, tc.input)
		if got := prog.String(); got != tc.expected {
			t.Errorf("%q: expected %s, got %s", tc.input, tc.expected, got)
		}
	}
}

func TestParserDeclarations(t *testing.T) {
	prog := parse(t, "var x; var y = x + 1; (y * x);")
	want := "(var x#0)\n(var y#1 (+ x#0 1))\n(* y#1 x#0)"
	if got := prog.String(); got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}

	decls := prog.Declarations()
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
	if decls[0].Init != nil {
		t.Error("x should have no initializer")
	}
	if decls[1].Name != "y" || decls[1].Index != 1 {
		t.Errorf("second declaration: got %s#%d", decls[1].Name, decls[1].Index)
	}
}

func TestParserEmptyProgram(t *testing.T) {
	for _, input := range []string{"", "   \n\t"} {
		prog := parse(t, input)
		if len(prog.Statements) != 0 {
			t.Errorf("%q: expected no statements, got %d", input, len(prog.Statements))
		}
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input    string
		kind     ParseErrorKind
		found    TokenType
		expected string
	}{
		{"(3 + ;)", UnexpectedToken, TokenSemicolon, "expression"},
		{"(3 + 4", UnexpectedEndOfInput, TokenEOF, "')'"},
		{"3 + 4", UnexpectedEndOfInput, TokenEOF, "';'"},
		{"3 4;", UnexpectedToken, TokenNumber, "';'"},
		{"var x 5;", UnexpectedToken, TokenNumber, "'=' or ';'"},
		{"var x = 1 2;", UnexpectedToken, TokenNumber, "operator or ';'"},
		{"var x = (1 + 2)", UnexpectedEndOfInput, TokenEOF, "operator or ';'"},
		{"var ;", UnexpectedToken, TokenSemicolon, "variable name"},
		{"var x =;", UnexpectedToken, TokenSemicolon, "expression"},
		{");", UnexpectedToken, TokenRParen, "expression"},
		{"var x = 1; x = 2;", UnexpectedToken, TokenAssign, "';'"},
		{"1 +", UnexpectedEndOfInput, TokenEOF, "expression"},
	}

	for _, tc := range tests {
		_, err := Parse(lex(t, tc.input))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: expected ParseError, got %v", tc.input, err)
			continue
		}
		if pe.Kind != tc.kind {
			t.Errorf("%q: kind %s, want %s", tc.input, pe.Kind, tc.kind)
		}
		if pe.Found.Type != tc.found {
			t.Errorf("%q: found %v, want %v", tc.input, pe.Found.Type, tc.found)
		}
		if pe.Expected != tc.expected {
			t.Errorf("%q: expected %q, want %q", tc.input, pe.Expected, tc.expected)
		}
	}
}

func TestParserErrorPosition(t *testing.T) {
	_, err := Parse(lex(t, "(3 + ;)"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Position().Column != 6 {
		t.Errorf("column: got %d, want 6", pe.Position().Column)
	}
	if !strings.HasPrefix(pe.Error(), "1:6: ") {
		t.Errorf("message: %q", pe.Error())
	}
}

func TestParserNestingLimit(t *testing.T) {
	nested := func(n int) string {
		return strings.Repeat("(", n) + "1" + strings.Repeat(")", n) + ";"
	}

	if _, err := Parse(lex(t, nested(MaxDepth))); err != nil {
		t.Errorf("depth %d should parse: %v", MaxDepth, err)
	}

	_, err := Parse(lex(t, nested(MaxDepth+1)))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Expected != "shallower nesting" {
		t.Errorf("depth %d: expected nesting error, got %v", MaxDepth+1, err)
	}
}
