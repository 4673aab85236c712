package wasm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Module: sections and their payload encoders
// ---------------------------------------------------------------------------

// Section is one length-prefixed block of a module.
type Section struct {
	ID      SectionID
	Payload []byte
}

// Module is an ordered sequence of sections.
type Module struct {
	Sections []Section
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// Export names a definition visible to the host.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// LocalGroup declares Count consecutive locals of one type.
type LocalGroup struct {
	Count uint32
	Type  ValueType
}

// Body is a function body: local declarations plus the instruction bytes,
// which must already end with OpEnd.
type Body struct {
	Locals []LocalGroup
	Code   []byte
}

// AddSection appends a section. Sections with an empty payload are dropped,
// never stored as empty placeholders.
func (m *Module) AddSection(id SectionID, payload []byte) {
	if len(payload) == 0 {
		return
	}
	m.Sections = append(m.Sections, Section{ID: id, Payload: payload})
}

// Section returns the first section with the given id.
func (m *Module) Section(id SectionID) (Section, bool) {
	for _, s := range m.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Validate checks the structural ordering rule: non-custom sections appear
// at most once and in strictly ascending id order.
func (m *Module) Validate() error {
	var last SectionID
	seen := false
	for i, s := range m.Sections {
		if s.ID == SectionCustom {
			continue
		}
		if s.ID > SectionData {
			return fmt.Errorf("wasm: section %d has unknown id 0x%02x", i, byte(s.ID))
		}
		if seen && s.ID <= last {
			return fmt.Errorf("wasm: section %s out of order after %s", s.ID, last)
		}
		if len(s.Payload) == 0 {
			return fmt.Errorf("wasm: section %s is empty", s.ID)
		}
		last, seen = s.ID, true
	}
	return nil
}

// Encode produces the binary module.
func (m *Module) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	size := len(Magic) + len(Version)
	for _, s := range m.Sections {
		size += 1 + 10 + len(s.Payload)
	}
	out := make([]byte, 0, size)
	out = append(out, Magic...)
	out = append(out, Version...)
	for _, s := range m.Sections {
		out = append(out, byte(s.ID))
		out = AppendULEB128(out, uint64(len(s.Payload)))
		out = append(out, s.Payload...)
	}
	return out, nil
}

// encodeVector prefixes contents with the element count. An empty vector
// encodes to nil so the enclosing section is omitted.
func encodeVector(count int, contents []byte) []byte {
	if count == 0 {
		return nil
	}
	out := AppendULEB128(make([]byte, 0, len(contents)+5), uint64(count))
	return append(out, contents...)
}

// AppendName appends a length-prefixed UTF-8 name.
func AppendName(dst []byte, name string) []byte {
	dst = AppendULEB128(dst, uint64(len(name)))
	return append(dst, name...)
}

// TypeSection builds the payload of the type section.
func TypeSection(types []FuncType) []byte {
	var contents []byte
	for _, sig := range types {
		contents = append(contents, FuncTypeTag)
		contents = AppendULEB128(contents, uint64(len(sig.Params)))
		for _, p := range sig.Params {
			contents = append(contents, byte(p))
		}
		contents = AppendULEB128(contents, uint64(len(sig.Results)))
		for _, r := range sig.Results {
			contents = append(contents, byte(r))
		}
	}
	return encodeVector(len(types), contents)
}

// FunctionSection builds the payload of the function section from the type
// index of each defined function.
func FunctionSection(typeIndices []uint32) []byte {
	var contents []byte
	for _, idx := range typeIndices {
		contents = AppendULEB128(contents, uint64(idx))
	}
	return encodeVector(len(typeIndices), contents)
}

// ExportSection builds the payload of the export section.
func ExportSection(exports []Export) []byte {
	var contents []byte
	for _, e := range exports {
		contents = AppendName(contents, e.Name)
		contents = append(contents, byte(e.Kind))
		contents = AppendULEB128(contents, uint64(e.Index))
	}
	return encodeVector(len(exports), contents)
}

// CodeSection builds the payload of the code section. Each body is prefixed
// with its own byte size.
func CodeSection(bodies []Body) []byte {
	var contents []byte
	for _, b := range bodies {
		enc := b.Encode()
		contents = AppendULEB128(contents, uint64(len(enc)))
		contents = append(contents, enc...)
	}
	return encodeVector(len(bodies), contents)
}

// Encode returns the body bytes without the size prefix.
func (b Body) Encode() []byte {
	out := AppendULEB128(nil, uint64(len(b.Locals)))
	for _, g := range b.Locals {
		out = AppendULEB128(out, uint64(g.Count))
		out = append(out, byte(g.Type))
	}
	return append(out, b.Code...)
}

// CompactLocals groups consecutive locals of the same type.
func CompactLocals(types []ValueType) []LocalGroup {
	if len(types) == 0 {
		return nil
	}
	var groups []LocalGroup
	current := LocalGroup{Count: 1, Type: types[0]}
	for _, t := range types[1:] {
		if t == current.Type {
			current.Count++
			continue
		}
		groups = append(groups, current)
		current = LocalGroup{Count: 1, Type: t}
	}
	return append(groups, current)
}
