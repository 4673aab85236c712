package wasm

import (
	"bytes"
	"fmt"
)

// ---------------------------------------------------------------------------
// Decoder: binary module -> sections -> payload structures
// ---------------------------------------------------------------------------

// reader walks a byte slice with bounds checking.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("wasm: unexpected end of data at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("wasm: need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uleb() (uint64, error) {
	v, n, err := ReadULEB128(r.data[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d", err, r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *reader) sleb() (int64, error) {
	v, n, err := ReadSLEB128(r.data[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("%w at offset %d", err, r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *reader) count() (int, error) {
	v, err := r.uleb()
	if err != nil {
		return 0, err
	}
	// every element takes at least one byte
	if v > uint64(r.remaining()) {
		return 0, fmt.Errorf("wasm: vector count %d exceeds remaining %d bytes", v, r.remaining())
	}
	return int(v), nil
}

func (r *reader) name() (string, error) {
	n, err := r.count()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses the preamble and splits the module into sections. Section
// payloads are not interpreted.
func Decode(data []byte) (*Module, error) {
	r := &reader{data: data}
	magic, err := r.bytes(len(Magic))
	if err != nil || !bytes.Equal(magic, Magic) {
		return nil, fmt.Errorf("wasm: bad magic")
	}
	version, err := r.bytes(len(Version))
	if err != nil || !bytes.Equal(version, Version) {
		return nil, fmt.Errorf("wasm: unsupported version")
	}

	m := &Module{}
	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.uleb()
		if err != nil {
			return nil, fmt.Errorf("wasm: section %s size: %w", SectionID(id), err)
		}
		if size > uint64(r.remaining()) {
			return nil, fmt.Errorf("wasm: section %s size %d exceeds remaining %d bytes", SectionID(id), size, r.remaining())
		}
		payload, _ := r.bytes(int(size))
		m.Sections = append(m.Sections, Section{ID: SectionID(id), Payload: payload})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeTypes parses a type section payload.
func DecodeTypes(payload []byte) ([]FuncType, error) {
	r := &reader{data: payload}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	types := make([]FuncType, 0, n)
	for i := 0; i < n; i++ {
		tag, err := r.byte()
		if err != nil {
			return nil, err
		}
		if tag != FuncTypeTag {
			return nil, fmt.Errorf("wasm: type %d: expected func tag 0x60, got 0x%02x", i, tag)
		}
		params, err := r.valueTypes()
		if err != nil {
			return nil, err
		}
		results, err := r.valueTypes()
		if err != nil {
			return nil, err
		}
		types = append(types, FuncType{Params: params, Results: results})
	}
	return types, r.done()
}

func (r *reader) valueTypes() ([]ValueType, error) {
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	raw, err := r.bytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]ValueType, n)
	for i, b := range raw {
		out[i] = ValueType(b)
	}
	return out, nil
}

func (r *reader) done() error {
	if r.remaining() != 0 {
		return fmt.Errorf("wasm: %d trailing bytes in payload", r.remaining())
	}
	return nil
}

// DecodeFunctions parses a function section payload into type indices.
func DecodeFunctions(payload []byte) ([]uint32, error) {
	r := &reader{data: payload}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.uleb()
		if err != nil {
			return nil, err
		}
		out = append(out, uint32(v))
	}
	return out, r.done()
}

// DecodeExports parses an export section payload.
func DecodeExports(payload []byte) ([]Export, error) {
	r := &reader{data: payload}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	out := make([]Export, 0, n)
	for i := 0; i < n; i++ {
		name, err := r.name()
		if err != nil {
			return nil, err
		}
		kind, err := r.byte()
		if err != nil {
			return nil, err
		}
		idx, err := r.uleb()
		if err != nil {
			return nil, err
		}
		out = append(out, Export{Name: name, Kind: ExportKind(kind), Index: uint32(idx)})
	}
	return out, r.done()
}

// DecodeCode parses a code section payload into function bodies.
func DecodeCode(payload []byte) ([]Body, error) {
	r := &reader{data: payload}
	n, err := r.count()
	if err != nil {
		return nil, err
	}
	out := make([]Body, 0, n)
	for i := 0; i < n; i++ {
		size, err := r.count()
		if err != nil {
			return nil, err
		}
		raw, err := r.bytes(size)
		if err != nil {
			return nil, err
		}
		body, err := decodeBody(raw)
		if err != nil {
			return nil, fmt.Errorf("wasm: body %d: %w", i, err)
		}
		out = append(out, body)
	}
	return out, r.done()
}

func decodeBody(raw []byte) (Body, error) {
	r := &reader{data: raw}
	n, err := r.count()
	if err != nil {
		return Body{}, err
	}
	var body Body
	for i := 0; i < n; i++ {
		count, err := r.uleb()
		if err != nil {
			return Body{}, err
		}
		t, err := r.byte()
		if err != nil {
			return Body{}, err
		}
		body.Locals = append(body.Locals, LocalGroup{Count: uint32(count), Type: ValueType(t)})
	}
	body.Code = raw[r.pos:]
	return body, nil
}

// Instruction is one decoded instruction.
type Instruction struct {
	Offset    int
	Op        Opcode
	Immediate int64
}

func (in Instruction) String() string {
	info, _ := GetOpcodeInfo(in.Op)
	if info.Immediate == ImmNone {
		return info.Name
	}
	return fmt.Sprintf("%s %d", info.Name, in.Immediate)
}

// DecodeInstructions decodes the instruction bytes of a body. Only the
// opcodes listed in the opcode table are understood.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := &reader{data: code}
	var out []Instruction
	for r.remaining() > 0 {
		offset := r.pos
		b, _ := r.byte()
		op := Opcode(b)
		info, ok := GetOpcodeInfo(op)
		if !ok {
			return nil, fmt.Errorf("wasm: unknown opcode 0x%02x at offset %d", b, offset)
		}
		in := Instruction{Offset: offset, Op: op}
		switch info.Immediate {
		case ImmIndex:
			v, err := r.uleb()
			if err != nil {
				return nil, err
			}
			in.Immediate = int64(v)
		case ImmI32:
			v, err := r.sleb()
			if err != nil {
				return nil, err
			}
			in.Immediate = v
		}
		out = append(out, in)
	}
	return out, nil
}
