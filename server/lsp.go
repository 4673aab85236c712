package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/blowhai/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "blowhai-lsp"

var lspLog = commonlog.GetLogger("blowhai.lsp")

// LspServer provides diagnostics, hover, navigation and completion for
// blowhai documents. Every request re-analyzes the document text; the front
// end is fast enough that nothing is cached between requests.
type LspServer struct {
	opts compiler.Options

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. opts only affects code generation
// diagnostics.
func NewLSP(opts compiler.Options) *LspServer {
	s := &LspServer{
		opts:    opts,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("blowhai LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(text, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	loc := definition(uri, text, word)
	if loc == nil {
		return nil, nil
	}
	return *loc, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(uri, text, word, params.Context.IncludeDeclaration), nil
}

// --- Analysis-backed logic ---

var varKeyword = "var"

func complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if strings.HasPrefix(varKeyword, prefix) {
		kind := protocol.CompletionItemKindKeyword
		detail := "declaration"
		items = append(items, protocol.CompletionItem{
			Label:      varKeyword,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &varKeyword,
		})
	}

	// Declarations are found by the symbol pre-pass even when the rest of
	// the document does not parse.
	symbols, err := compiler.BuildSymbolTable(text)
	if err != nil {
		return items
	}
	for _, sym := range symbols.Symbols() {
		if sym.Name == prefix || !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindVariable
		detail := fmt.Sprintf("local %d", sym.Index)
		name := sym.Name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func hover(text, word string) *protocol.Hover {
	symbols, err := compiler.BuildSymbolTable(text)
	if err != nil {
		return nil
	}
	idx, ok := symbols.Lookup(word)
	if !ok {
		return nil
	}
	sym, _ := symbols.Symbol(idx)

	var b strings.Builder
	fmt.Fprintf(&b, "**var %s**\n\n", sym.Name)
	fmt.Fprintf(&b, "i32 local %d, declared at line %d", sym.Index, sym.Pos.Line)

	if unit, err := compiler.Analyze(text); err == nil {
		for _, d := range unit.Program.Declarations() {
			if d.Index != idx {
				continue
			}
			if d.Init == nil {
				b.WriteString("\n\nInitial value `0`")
			} else {
				fmt.Fprintf(&b, "\n\nInitializer `%s`", compiler.FormatNode(d.Init))
			}
		}
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func definition(uri protocol.DocumentUri, text, word string) *protocol.Location {
	symbols, err := compiler.BuildSymbolTable(text)
	if err != nil {
		return nil
	}
	idx, ok := symbols.Lookup(word)
	if !ok {
		return nil
	}
	sym, _ := symbols.Symbol(idx)
	return &protocol.Location{URI: uri, Range: spanRange(text, sym.Pos, len(sym.Name))}
}

func references(uri protocol.DocumentUri, text, word string, includeDecl bool) []protocol.Location {
	symbols, err := compiler.BuildSymbolTable(text)
	if err != nil {
		return nil
	}
	idx, ok := symbols.Lookup(word)
	if !ok {
		return nil
	}
	tokens, err := compiler.Tokenize(text, symbols)
	if err != nil {
		return nil
	}

	var locations []protocol.Location
	for i, tok := range tokens {
		if tok.Type != compiler.TokenIdentifier || tok.Index != idx {
			continue
		}
		isDecl := i > 0 && tokens[i-1].Type == compiler.TokenVar
		if isDecl && !includeDecl {
			continue
		}
		locations = append(locations, protocol.Location{URI: uri, Range: spanRange(text, tok.Pos, len(tok.Literal))})
	}
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text, s.opts)
	lspLog.Debugf("%s: %d diagnostics", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose reports the first compile error of text, or warnings for a
// program that compiles.
func diagnose(text string, opts compiler.Options) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	unit, err := compiler.Analyze(text)
	if err == nil {
		_, err = compiler.Generate(unit.Program, opts)
	}
	if err != nil {
		var inner error = err
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			inner = ce.Err
		}
		pos, _ := compiler.ErrorPosition(err)
		diagnostics = append(diagnostics, newDiagnostic(
			spanRange(text, pos, errorLength(err)), protocol.DiagnosticSeverityError, inner.Error()))
		return diagnostics
	}

	return append(diagnostics, warnings(text, unit.Program)...)
}

// warnings flags reads of a variable before its declaration statement, which
// always see 0, and division by a literal zero, which always traps.
func warnings(text string, p *compiler.Program) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	declared := make(map[int]bool)

	var walk func(e compiler.Expr)
	walk = func(e compiler.Expr) {
		switch e := e.(type) {
		case *compiler.VariableRef:
			if !declared[e.Index] {
				out = append(out, newDiagnostic(spanRange(text, e.Pos(), len(e.Name)), protocol.DiagnosticSeverityWarning,
					fmt.Sprintf("%s is read before its declaration and evaluates to 0", e.Name)))
			}
		case *compiler.BinaryOp:
			walk(e.Left)
			walk(e.Right)
			if lit, ok := e.Right.(*compiler.NumberLiteral); ok && e.Op == compiler.OpDiv && lit.Value == 0 {
				out = append(out, newDiagnostic(spanRange(text, e.Pos(), 1), protocol.DiagnosticSeverityWarning,
					"division by zero traps at run time"))
			}
		}
	}

	for _, stmt := range p.Statements {
		switch stmt := stmt.(type) {
		case *compiler.DeclareVariable:
			if stmt.Init != nil {
				walk(stmt.Init)
			}
			declared[stmt.Index] = true
		case *compiler.ExprStmt:
			walk(stmt.Expr)
		}
	}
	return out
}

func newDiagnostic(r protocol.Range, severity protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range:    r,
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// errorLength returns how many bytes of source an error covers.
func errorLength(err error) int {
	var (
		lexErr   *compiler.LexError
		parseErr *compiler.ParseError
		dupErr   *compiler.DuplicateDeclarationError
	)
	switch {
	case errors.As(err, &lexErr):
		return len(lexErr.Text)
	case errors.As(err, &parseErr):
		return len(parseErr.Found.Literal)
	case errors.As(err, &dupErr):
		return len(dupErr.Name)
	}
	return 0
}

// spanRange converts the n source bytes starting at pos into an LSP range.
// LSP characters are UTF-16 code units, so columns are recounted from the
// start of the line rather than taken from pos.Column.
func spanRange(text string, pos compiler.Position, n int) protocol.Range {
	if pos.Line == 0 {
		return protocol.Range{}
	}
	start := min(max(pos.Offset, 0), len(text))
	end := min(start+n, len(text))
	lineStart := strings.LastIndexByte(text[:start], '\n') + 1

	line := protocol.UInteger(pos.Line - 1)
	char := protocol.UInteger(utf16Len(text[lineStart:start]))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: char},
		End:   protocol.Position{Line: line, Character: char + protocol.UInteger(utf16Len(text[start:end]))},
	}
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// byteColumn converts a UTF-16 column on line into a byte index.
func byteColumn(line string, units int) int {
	n := 0
	for i, r := range line {
		if n >= units {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(line)
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteColumn(line, int(pos.Character))

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteColumn(line, int(pos.Character))

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

// isWordChar matches identifier bytes; identifiers are ASCII.
func isWordChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
