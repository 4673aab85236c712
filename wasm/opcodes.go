package wasm

import "fmt"

// Preamble.
var (
	Magic   = []byte{0x00, 0x61, 0x73, 0x6d} // "\0asm"
	Version = []byte{0x01, 0x00, 0x00, 0x00}
)

// SectionID identifies a module section.
type SectionID byte

const (
	SectionCustom   SectionID = 0x00
	SectionType     SectionID = 0x01
	SectionImport   SectionID = 0x02
	SectionFunction SectionID = 0x03
	SectionTable    SectionID = 0x04
	SectionMemory   SectionID = 0x05
	SectionGlobal   SectionID = 0x06
	SectionExport   SectionID = 0x07
	SectionStart    SectionID = 0x08
	SectionElement  SectionID = 0x09
	SectionCode     SectionID = 0x0a
	SectionData     SectionID = 0x0b
)

var sectionNames = map[SectionID]string{
	SectionCustom:   "custom",
	SectionType:     "type",
	SectionImport:   "import",
	SectionFunction: "function",
	SectionTable:    "table",
	SectionMemory:   "memory",
	SectionGlobal:   "global",
	SectionExport:   "export",
	SectionStart:    "start",
	SectionElement:  "element",
	SectionCode:     "code",
	SectionData:     "data",
}

func (id SectionID) String() string {
	if name, ok := sectionNames[id]; ok {
		return name
	}
	return fmt.Sprintf("section(0x%02x)", byte(id))
}

// ValueType is a WebAssembly value type.
type ValueType byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
	F32 ValueType = 0x7d
	F64 ValueType = 0x7c
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("type(0x%02x)", byte(t))
}

// FuncTypeTag introduces a function signature in the type section.
const FuncTypeTag = 0x60

// ExportKind is the kind of an exported definition.
type ExportKind byte

const (
	ExportFunc   ExportKind = 0x00
	ExportTable  ExportKind = 0x01
	ExportMemory ExportKind = 0x02
	ExportGlobal ExportKind = 0x03
)

// Opcode is a single-byte WebAssembly instruction.
type Opcode byte

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpEnd         Opcode = 0x0b
	OpReturn      Opcode = 0x0f
	OpDrop        Opcode = 0x1a

	OpLocalGet Opcode = 0x20
	OpLocalSet Opcode = 0x21
	OpLocalTee Opcode = 0x22

	OpI32Const Opcode = 0x41

	OpI32Add  Opcode = 0x6a
	OpI32Sub  Opcode = 0x6b
	OpI32Mul  Opcode = 0x6c
	OpI32DivS Opcode = 0x6d
	OpI32DivU Opcode = 0x6e
	OpI32RemS Opcode = 0x6f
)

// ImmediateKind describes the operand that follows an opcode.
type ImmediateKind int

const (
	ImmNone  ImmediateKind = iota
	ImmIndex               // uleb128 index (locals)
	ImmI32                 // sleb128 constant
)

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	Name      string
	StackPop  int
	StackPush int
	Immediate ImmediateKind
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpUnreachable: {"unreachable", 0, 0, ImmNone},
	OpNop:         {"nop", 0, 0, ImmNone},
	OpEnd:         {"end", 0, 0, ImmNone},
	OpReturn:      {"return", 1, 0, ImmNone},
	OpDrop:        {"drop", 1, 0, ImmNone},

	OpLocalGet: {"local.get", 0, 1, ImmIndex},
	OpLocalSet: {"local.set", 1, 0, ImmIndex},
	OpLocalTee: {"local.tee", 1, 1, ImmIndex},

	OpI32Const: {"i32.const", 0, 1, ImmI32},

	OpI32Add:  {"i32.add", 2, 1, ImmNone},
	OpI32Sub:  {"i32.sub", 2, 1, ImmNone},
	OpI32Mul:  {"i32.mul", 2, 1, ImmNone},
	OpI32DivS: {"i32.div_s", 2, 1, ImmNone},
	OpI32DivU: {"i32.div_u", 2, 1, ImmNone},
	OpI32RemS: {"i32.rem_s", 2, 1, ImmNone},
}

// GetOpcodeInfo returns metadata for an opcode.
// Unknown opcodes get a name of the form "unknown(0xNN)".
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	if info, ok := opcodeInfoTable[op]; ok {
		return info, true
	}
	return OpcodeInfo{Name: fmt.Sprintf("unknown(0x%02x)", byte(op))}, false
}

func (op Opcode) String() string {
	info, _ := GetOpcodeInfo(op)
	return info.Name
}
