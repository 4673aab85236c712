package cache

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is stored in every key and entry. Bumping it orphans all
// existing entries.
const FormatVersion = 1

// cborEncMode encodes in canonical mode so keys are deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Key identifies a cache entry.
type Key [32]byte

// String returns the lowercase hex form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// keyMaterial is what a key is hashed from.
type keyMaterial struct {
	Version     int      `cbor:"1,keyasint"`
	ProgramHash [32]byte `cbor:"2,keyasint"`
	Export      string   `cbor:"3,keyasint"`
}

// Entry is one cached compilation.
type Entry struct {
	Version int    `cbor:"1,keyasint"`
	Key     Key    `cbor:"2,keyasint"`
	Export  string `cbor:"3,keyasint"`
	Locals  int    `cbor:"4,keyasint"`
	Module  []byte `cbor:"5,keyasint"`
}

// MarshalEntry serializes an Entry to CBOR bytes.
func MarshalEntry(e *Entry) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEntry deserializes an Entry from CBOR bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cache: unmarshal entry: %w", err)
	}
	if e.Version != FormatVersion {
		return nil, fmt.Errorf("cache: entry version %d, want %d", e.Version, FormatVersion)
	}
	return &e, nil
}
