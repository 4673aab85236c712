package hash

import (
	"crypto/sha256"

	"github.com/chazu/blowhai/compiler"
)

// HashProgram computes the SHA-256 content hash of a parsed program.
//
// The hash is computed over a deterministic serialization of the program's
// normalized AST. Variables are identified by slot, so two programs that
// differ only in whitespace or variable names produce the same hash, and
// compile to the same module.
func HashProgram(p *compiler.Program) ([32]byte, error) {
	hp, err := NormalizeProgram(p)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(Serialize(hp)), nil
}
