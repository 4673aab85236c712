package hash

// ---------------------------------------------------------------------------
// Frozen hashing AST types.
//
// These are stripped-down parallels of compiler/ast.go with no position data
// and slot indices instead of variable names. Two programs that differ only
// in layout or in the names they choose get identical hashing ASTs.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing AST nodes.
type HNode interface {
	hnode() // marker method
}

// HNumber is an i32 literal.
type HNumber struct{ Value int32 }

// HLocalRef reads a local slot.
type HLocalRef struct{ Slot uint32 }

// HBinary applies Op to Left and Right.
type HBinary struct {
	Op    byte
	Left  HNode
	Right HNode
}

// HDeclare declares a slot, with an optional initializer.
type HDeclare struct {
	Slot uint32
	Init HNode // nil when absent
}

// HExprStmt is an expression statement.
type HExprStmt struct{ Expr HNode }

// HProgram is the root.
type HProgram struct {
	Statements []HNode
}

func (*HNumber) hnode()   {}
func (*HLocalRef) hnode() {}
func (*HBinary) hnode()   {}
func (*HDeclare) hnode()  {}
func (*HExprStmt) hnode() {}
func (*HProgram) hnode()  {}
