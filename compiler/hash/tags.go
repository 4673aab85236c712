package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program hashing serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes and every cache entry keyed on
// them.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Expressions
	TagNumber   byte = 0x01
	TagLocalRef byte = 0x02
	TagBinary   byte = 0x03

	// Statements / structure
	TagDeclare     byte = 0x10
	TagDeclareInit byte = 0x11
	TagExprStmt    byte = 0x12
	TagProgram     byte = 0x13

	// Reserved 0xFE-0xFF
)

// Operator bytes following TagBinary.
const (
	OpAdd byte = '+'
	OpSub byte = '-'
	OpMul byte = '*'
	OpDiv byte = '/'
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNumber, TagLocalRef, TagBinary,
	TagDeclare, TagDeclareInit, TagExprStmt, TagProgram,
}
