// Package manifest handles blowhai.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/blowhai/compiler"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "blowhai.toml"

// SourceExt is the extension of blowhai source files.
const SourceExt = ".bh"

// Manifest represents a blowhai.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Build   Build       `toml:"build"`
	Cache   CacheConfig `toml:"cache"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the blowhai.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures compilation.
type Build struct {
	Sources   []string `toml:"sources"` // files or glob patterns
	OutputDir string   `toml:"output-dir"`
	Export    string   `toml:"export"`
	Jobs      int      `toml:"jobs"` // 0 means GOMAXPROCS
}

// CacheConfig configures the compilation cache.
type CacheConfig struct {
	Dir     string `toml:"dir"`
	Enabled bool   `toml:"enabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a blowhai.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes manifest text and applies defaults. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if m.Build.Jobs < 0 {
		return nil, fmt.Errorf("build.jobs must not be negative, got %d", m.Build.Jobs)
	}

	// Defaults
	if m.Build.Export == "" {
		m.Build.Export = compiler.DefaultExportName
	}
	if m.Build.OutputDir == "" {
		m.Build.OutputDir = "."
	}
	if m.Cache.Dir == "" {
		m.Cache.Dir = filepath.Join(".blowhai", "cache")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a blowhai.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CompilerOptions returns the compiler options the manifest selects.
func (m *Manifest) CompilerOptions() compiler.Options {
	return compiler.Options{ExportName: m.Build.Export}
}

// SourcePaths expands the configured sources into absolute file paths,
// sorted and without duplicates. Patterns that match nothing are an error.
func (m *Manifest) SourcePaths() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, src := range m.Build.Sources {
		pattern := m.resolve(src)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", src, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source %q matches no files", src)
		}
		for _, p := range matches {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// OutputPath returns where the module compiled from src is written: the
// output directory plus the source base name with a .wasm extension.
func (m *Manifest) OutputPath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + ".wasm"
	return filepath.Join(m.resolve(m.Build.OutputDir), base)
}

// CacheDir returns the cache directory, or "" when caching is disabled.
func (m *Manifest) CacheDir() string {
	if !m.Cache.Enabled {
		return ""
	}
	return m.resolve(m.Cache.Dir)
}

// LogFile returns the log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
