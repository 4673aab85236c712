package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int32/uint32 = 4B)
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HNumber:
		s.writeByte(TagNumber)
		s.writeUint32(uint32(n.Value))

	case *HLocalRef:
		s.writeByte(TagLocalRef)
		s.writeUint32(n.Slot)

	case *HBinary:
		s.writeByte(TagBinary)
		s.writeByte(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HDeclare:
		if n.Init == nil {
			s.writeByte(TagDeclare)
			s.writeUint32(n.Slot)
			return
		}
		s.writeByte(TagDeclareInit)
		s.writeUint32(n.Slot)
		s.serializeNode(n.Init)

	case *HExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeNode(n.Expr)

	case *HProgram:
		s.writeByte(TagProgram)
		s.writeUint32(uint32(len(n.Statements)))
		for _, stmt := range n.Statements {
			s.serializeNode(stmt)
		}
	}
}
