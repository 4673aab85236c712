package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/blowhai/compiler"
)

// ---------------------------------------------------------------------------
// blowhai fmt: canonical source code formatter
// ---------------------------------------------------------------------------

// Format parses a blowhai source string and returns canonically formatted
// output: one statement per line, single spaces around operators and only
// the parentheses that precedence requires. It does not touch the filesystem.
func Format(source string) (string, error) {
	unit, err := compiler.Analyze(source)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, s := range unit.Program.Statements {
		sb.WriteString(stmtToString(s))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func stmtToString(stmt compiler.Stmt) string {
	switch s := stmt.(type) {
	case *compiler.DeclareVariable:
		if s.Init == nil {
			return "var " + s.Name + ";"
		}
		return "var " + s.Name + " = " + exprToString(s.Init, 0) + ";"
	case *compiler.ExprStmt:
		return exprToString(s.Expr, 0) + ";"
	}
	return ""
}

// exprPrecedence returns the binding strength of expr; operands bind
// tighter than any operator.
func exprPrecedence(expr compiler.Expr) int {
	if b, ok := expr.(*compiler.BinaryOp); ok {
		if b.Op == compiler.OpMul || b.Op == compiler.OpDiv {
			return 2
		}
		return 1
	}
	return 3
}

// exprToString renders expr, parenthesized when it binds looser than
// minPrec.
func exprToString(expr compiler.Expr, minPrec int) string {
	var s string
	switch e := expr.(type) {
	case *compiler.NumberLiteral:
		return fmt.Sprintf("%d", e.Value)
	case *compiler.VariableRef:
		return e.Name
	case *compiler.BinaryOp:
		prec := exprPrecedence(e)
		// Operators associate to the left, so a right operand of equal
		// precedence keeps its parentheses.
		s = exprToString(e.Left, prec) + " " + e.Op.String() + " " + exprToString(e.Right, prec+1)
		if prec < minPrec {
			s = "(" + s + ")"
		}
	}
	return s
}

// runFmt processes the `blowhai fmt` subcommand.
func runFmt(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blowhai fmt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	check := fs.Bool("check", false, "Report files that need formatting without modifying them; exit 1 if any do")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: blowhai fmt [-check] <files or directories...>\n\n")
		fmt.Fprintf(stderr, "Format blowhai source files to canonical style.\n")
		fmt.Fprintf(stderr, "If no files are given, formats all .bh files in the current directory.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := expandPaths(paths)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	anyChanged := false
	for _, path := range files {
		changed, err := formatFile(path, *check)
		if err != nil {
			fmt.Fprintf(stderr, "Error formatting %s: %v\n", path, err)
			return 1
		}
		if changed {
			anyChanged = true
			fmt.Fprintln(stdout, path)
		}
	}

	if *check && anyChanged {
		return 1
	}
	return 0
}

// formatFile formats path in place and reports whether its content changed.
// In check mode the file is left untouched.
func formatFile(path string, checkMode bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	formatted, err := Format(string(content))
	if err != nil {
		return false, err
	}
	if bytes.Equal(content, []byte(formatted)) {
		return false, nil
	}
	if checkMode {
		return true, nil
	}
	return true, os.WriteFile(path, []byte(formatted), 0o644)
}
