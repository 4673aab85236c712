// Package cache stores compiled modules on disk, addressed by the content
// hash of the parsed program and the export name.
package cache

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/blowhai/compiler"
	"github.com/chazu/blowhai/compiler/hash"
)

var log = commonlog.GetLogger("blowhai.cache")

// Cache is a directory of CBOR entries laid out as <dir>/<hex[0:2]>/<hex>.cbor.
// It is safe for concurrent use; concurrent writers of the same key race
// harmlessly because every write is a rename of identical content.
type Cache struct {
	dir    string
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats counts lookups since Open.
type Stats struct {
	Hits   int64
	Misses int64
}

// Open creates dir if needed and returns a cache rooted there.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// KeyFor derives the key for a program hash compiled under export.
func KeyFor(programHash [32]byte, export string) (Key, error) {
	data, err := cborEncMode.Marshal(keyMaterial{
		Version:     FormatVersion,
		ProgramHash: programHash,
		Export:      export,
	})
	if err != nil {
		return Key{}, fmt.Errorf("cache: encode key: %w", err)
	}
	return sha256.Sum256(data), nil
}

func (c *Cache) path(k Key) string {
	s := k.String()
	return filepath.Join(c.dir, s[:2], s+".cbor")
}

// Get returns the entry for k. A missing, unreadable or corrupt entry is a
// miss, reported as (nil, false).
func (c *Cache) Get(k Key) (*Entry, bool) {
	data, err := os.ReadFile(c.path(k))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Errorf("read %s: %s", k, err)
		}
		c.misses.Add(1)
		return nil, false
	}
	e, err := UnmarshalEntry(data)
	if err != nil || e.Key != k {
		log.Errorf("ignoring corrupt entry %s: %v", k, err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e, true
}

// Put stores e under e.Key.
func (c *Cache) Put(e *Entry) error {
	e.Version = FormatVersion
	data, err := MarshalEntry(e)
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}

	path := c.path(e.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %s: %w", e.Key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %s: %w", e.Key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: %w", err)
	}
	log.Debugf("stored %s (%d bytes)", e.Key, len(e.Module))
	return nil
}

// Compile returns the module for source, compiling it only when no entry
// exists. The second result reports a cache hit. Failures are the same
// *compiler.CompileError values compiler.Compile returns; a failed store
// is logged and does not fail the compilation.
func (c *Cache) Compile(source string, opts compiler.Options) ([]byte, bool, error) {
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}
	unit, err := compiler.Analyze(source)
	if err != nil {
		return nil, false, err
	}

	ph, err := hash.HashProgram(unit.Program)
	if err != nil {
		return nil, false, err
	}
	key, err := KeyFor(ph, opts.ExportName)
	if err != nil {
		return nil, false, err
	}

	if e, ok := c.Get(key); ok {
		log.Debugf("hit %s", key)
		return e.Module, true, nil
	}

	module, err := compiler.Generate(unit.Program, opts)
	if err != nil {
		return nil, false, &compiler.CompileError{Stage: compiler.StageCodegen, Err: err}
	}
	entry := &Entry{Key: key, Export: opts.ExportName, Locals: unit.Symbols.Len(), Module: module}
	if err := c.Put(entry); err != nil {
		log.Errorf("%s", err)
	}
	return module, false, nil
}
