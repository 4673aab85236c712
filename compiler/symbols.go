package compiler

import (
	"regexp"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Symbol table: declaration pre-pass
// ---------------------------------------------------------------------------

// declarationPattern matches a declaration site: the whole word `var`,
// whitespace, then the declared identifier. The whitespace class is the
// set unicode.IsSpace accepts, which is what the lexer splits on; RE2's \s
// alone is ASCII only.
var declarationPattern = regexp.MustCompile(`\bvar[\s\v\p{Z}\x{85}]+([A-Za-z_][A-Za-z0-9_]*)`)

// Symbol is one declared variable.
type Symbol struct {
	Name  string
	Index int
	Pos   Position // position of the identifier in its declaration
}

// SymbolTable maps declared names to dense slot indices assigned in
// declaration order. It is read-only once built.
type SymbolTable struct {
	symbols []Symbol
	byName  map[string]int
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]int)}
}

// declare adds name with the next free index.
func (st *SymbolTable) declare(name string, pos Position) error {
	if idx, exists := st.byName[name]; exists {
		return &DuplicateDeclarationError{Name: name, Pos: pos, Previous: st.symbols[idx].Pos}
	}
	idx := len(st.symbols)
	st.symbols = append(st.symbols, Symbol{Name: name, Index: idx, Pos: pos})
	st.byName[name] = idx
	return nil
}

// Lookup returns the slot index of name.
func (st *SymbolTable) Lookup(name string) (int, bool) {
	idx, ok := st.byName[name]
	return idx, ok
}

// Symbol returns the symbol for a slot index.
func (st *SymbolTable) Symbol(idx int) (Symbol, bool) {
	if idx < 0 || idx >= len(st.symbols) {
		return Symbol{}, false
	}
	return st.symbols[idx], true
}

// Len returns the number of declared symbols.
func (st *SymbolTable) Len() int {
	return len(st.symbols)
}

// Names returns the declared names ordered by index.
func (st *SymbolTable) Names() []string {
	names := make([]string, len(st.symbols))
	for i, s := range st.symbols {
		names[i] = s.Name
	}
	return names
}

// Symbols returns a copy of all symbols ordered by index.
func (st *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(st.symbols))
	copy(out, st.symbols)
	return out
}

// BuildSymbolTable scans source for declaration sites and assigns each
// declared name the next index, starting at 0. It does not validate the rest
// of the grammar, so declarations inside malformed code are indexed too.
func BuildSymbolTable(source string) (*SymbolTable, error) {
	st := NewSymbolTable()
	loc := newPositionTracker(source)
	for _, m := range declarationPattern.FindAllStringSubmatchIndex(source, -1) {
		start, end := m[2], m[3]
		name := source[start:end]
		if _, reserved := reservedWords[name]; reserved {
			continue
		}
		if err := st.declare(name, loc.position(start)); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// positionTracker converts byte offsets to line/column positions. Offsets
// must be requested in ascending order; each call only scans the text since
// the previous one.
type positionTracker struct {
	source string
	offset int
	line   int
	col    int
}

func newPositionTracker(source string) *positionTracker {
	return &positionTracker{source: source, line: 1, col: 1}
}

func (pt *positionTracker) position(offset int) Position {
	for pt.offset < offset {
		r, size := utf8.DecodeRuneInString(pt.source[pt.offset:])
		if r == '\n' {
			pt.line++
			pt.col = 1
		} else {
			pt.col++
		}
		pt.offset += size
	}
	return Position{Offset: offset, Line: pt.line, Column: pt.col}
}
