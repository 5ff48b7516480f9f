// Package cache implements the project cache: the orchestrator that runs
// the compilation pipeline per file, keeps the symbol table and
// dependency graph consistent with what's on disk, and drives incremental
// recompilation when a single file changes. It is the sole mutator of
// the symbol table and dependency graph; callers must not invoke
// Diff/Recompile/RecompileNonPersistent concurrently with one another.
package cache

import (
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/btouchard/rs2c/internal/compiler/ast"
	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/depgraph"
	"github.com/btouchard/rs2c/internal/compiler/pipeline"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// CachedError is a diagnostic attached to a CachedFile: a source range
// and message.
type CachedError struct {
	Range   token.Range
	Message string
}

// CachedFile is one source file's cached compilation state: its relative
// path, the CRC32 of the bytes last successfully compiled, the scripts it
// currently declares and the diagnostics from that compile.
type CachedFile struct {
	RelPath  string
	Filename string
	CRC      uint32
	Scripts  []*symtable.ScriptInfo
	Errors   []CachedError
}

// Cache is the project cache: per-file state, the process-wide symbol
// table, and the dependency graph driving fan-out recompilation. The zero
// value is not ready for use; construct with New.
type Cache struct {
	mu sync.Mutex

	sourceRoot   string
	table        *symtable.Table
	graph        *depgraph.Graph
	instrMap     bytecode.InstructionMap
	triggerTypes map[string]types.Primitive

	filesByPath        map[string]*CachedFile
	filesByDeclaration map[string]*CachedFile

	dirty bool

	// RecompileHook, if set, is called once per file about to be
	// compiled, in compile order: by Recompile for the edited file and
	// every fan-out recompile, and by Diff for each file of its batch.
	// Tests use it to spy on fan-out behavior.
	RecompileHook func(relPath string)
}

// New returns an empty project cache rooted at sourceRoot, sharing table
// and compiling through instrMap. triggerTypes resolves `dynamic`'s type
// per trigger during analysis.
func New(sourceRoot string, table *symtable.Table, instrMap bytecode.InstructionMap, triggerTypes map[string]types.Primitive) *Cache {
	return &Cache{
		sourceRoot:         sourceRoot,
		table:              table,
		graph:              depgraph.New(),
		instrMap:           instrMap,
		triggerTypes:       triggerTypes,
		filesByPath:        make(map[string]*CachedFile),
		filesByDeclaration: make(map[string]*CachedFile),
	}
}

// Table returns the cache's shared symbol table.
func (c *Cache) Table() *symtable.Table { return c.table }

// Graph returns the cache's dependency graph.
func (c *Cache) Graph() *depgraph.Graph { return c.graph }

// Dirty reports whether the cache has unsaved changes.
func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// File returns the cached state for relPath, if known.
func (c *Cache) File(relPath string) (*CachedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.filesByPath[relPath]
	return f, ok
}

// Files returns every currently tracked file, sorted by relative path.
func (c *Cache) Files() []*CachedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CachedFile, 0, len(c.filesByPath))
	for _, f := range c.filesByPath {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// normalizeRel converts an OS path relative to root into the POSIX-style
// forward-slash key every cache map uses.
func normalizeRel(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Diff performs a full directory diff against disk: every changed or new
// .rs2 file is recompiled as one batch, every file no longer on disk is
// removed and its symbols undeclared.
func (c *Cache) Diff() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	visited := make(map[string]bool)
	type pending struct {
		relPath string
		bytes   []byte
		crc     uint32
	}
	var toCompile []pending
	changed := false

	err := filepath.WalkDir(c.sourceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".rs2") {
			return nil
		}
		relPath, err := normalizeRel(c.sourceRoot, path)
		if err != nil {
			return err
		}
		visited[relPath] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", relPath, err)
		}
		crc := crc32.ChecksumIEEE(data)

		cf, exists := c.filesByPath[relPath]
		if exists && cf.CRC == crc {
			return nil
		}
		if !exists {
			cf = &CachedFile{RelPath: relPath, Filename: d.Name()}
			c.filesByPath[relPath] = cf
		}
		c.undeclareFile(cf)
		toCompile = append(toCompile, pending{relPath: relPath, bytes: data, crc: crc})
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if len(toCompile) > 0 {
		inputs := make([]pipeline.Input, len(toCompile))
		for i, p := range toCompile {
			inputs[i] = pipeline.Input{Handle: p.relPath, Bytes: p.bytes}
			if c.RecompileHook != nil {
				c.RecompileHook(p.relPath)
			}
		}
		result := pipeline.Compile(inputs, pipeline.Options{
			Table:        c.table,
			InstrMap:     c.instrMap,
			TriggerTypes: c.triggerTypes,
			Visitors:     []ast.Visitor{depgraph.NewDependencyTreeBuilder(c.graph)},
		})
		c.applyResult(result)
		for _, p := range toCompile {
			c.filesByPath[p.relPath].CRC = p.crc
		}
	}

	for relPath, cf := range c.filesByPath {
		if !visited[relPath] {
			c.undeclareFile(cf)
			delete(c.filesByPath, relPath)
			changed = true
		}
	}

	if changed {
		c.dirty = true
	}
	return nil
}

// undeclareFile removes every script cf currently declares from the
// symbol table, the declaration index and the dependency graph, then
// clears cf's scripts and errors. Must be called with c.mu held.
func (c *Cache) undeclareFile(cf *CachedFile) {
	for _, s := range cf.Scripts {
		c.table.UndefineScript(s.Trigger, s.Name)
		delete(c.filesByDeclaration, s.FullName())
		c.graph.Remove(s.FullName())
	}
	cf.Scripts = nil
	cf.Errors = nil
}

// applyResult appends a pipeline.Result's scripts and errors onto their
// owning CachedFiles. Must be called with c.mu held.
func (c *Cache) applyResult(result *pipeline.Result) {
	for _, s := range result.Scripts {
		cf, ok := c.filesByPath[s.Handle]
		if !ok {
			continue
		}
		cf.Scripts = append(cf.Scripts, s.Info)
		c.filesByDeclaration[s.Info.FullName()] = cf
	}
	for _, e := range result.Errors {
		cf, ok := c.filesByPath[e.Handle]
		if !ok {
			continue
		}
		cf.Errors = append(cf.Errors, CachedError{Range: e.Range, Message: e.Message})
	}
}

// Recompile incrementally recompiles one edited file and fans out to
// every dependent of a declaration whose caller-visible signature
// changed. It returns the edited file's resulting diagnostics.
func (c *Cache) Recompile(relPath string, src []byte) []CachedError {
	c.mu.Lock()
	defer c.mu.Unlock()

	visited := map[string]bool{relPath: true}
	c.recompileOne(relPath, src, visited)

	if cf, ok := c.filesByPath[relPath]; ok {
		return append([]CachedError(nil), cf.Errors...)
	}
	return nil
}

// recompileOne recompiles a single file, diffs its declarations against
// the previous compile, then recurses depth-first into the files owning
// dependents of any signature-changed or deleted declaration. visited
// guards against revisiting a file in a cyclic dependency graph.
func (c *Cache) recompileOne(relPath string, src []byte, visited map[string]bool) {
	if c.RecompileHook != nil {
		c.RecompileHook(relPath)
	}

	cf, exists := c.filesByPath[relPath]
	if !exists {
		cf = &CachedFile{RelPath: relPath, Filename: filepath.Base(relPath)}
		c.filesByPath[relPath] = cf
	}

	previousDecls := make(map[string]*symtable.ScriptInfo, len(cf.Scripts))
	previousUsedBy := make(map[string]map[string]bool, len(cf.Scripts))
	for _, s := range cf.Scripts {
		fn := s.FullName()
		previousDecls[fn] = s
		if n, ok := c.graph.Find(fn); ok {
			set := make(map[string]bool, len(n.UsedBy()))
			for dep := range n.UsedBy() {
				set[dep] = true
			}
			previousUsedBy[fn] = set
		}
	}

	c.undeclareFile(cf)

	result := pipeline.Compile([]pipeline.Input{{Handle: relPath, Bytes: src}}, pipeline.Options{
		Table:        c.table,
		InstrMap:     c.instrMap,
		TriggerTypes: c.triggerTypes,
		Visitors:     []ast.Visitor{depgraph.NewDependencyTreeBuilder(c.graph)},
	})
	c.applyResult(result)

	for _, s := range result.Scripts {
		fn := s.Info.FullName()
		if prev, ok := previousDecls[fn]; ok && symtable.EqualSignature(prev, s.Info) {
			delete(previousDecls, fn)
			// Unchanged from dependents' viewpoint, so dependents are not
			// recompiled and nothing would re-record their edges onto the
			// node undeclareFile just rebuilt; restore the snapshot so a
			// later signature change to this declaration still fans out.
			for dep := range previousUsedBy[fn] {
				if _, alive := c.filesByDeclaration[dep]; alive {
					c.graph.AddDependency(dep, fn)
				}
			}
		}
	}

	affected := make(map[string]bool)
	for fn := range previousDecls {
		for dep := range previousUsedBy[fn] {
			affected[dep] = true
		}
	}

	cf.CRC = crc32.ChecksumIEEE(src)
	c.dirty = true

	var affectedList []string
	for fn := range affected {
		affectedList = append(affectedList, fn)
	}
	sort.Strings(affectedList)

	for _, fn := range affectedList {
		depFile, ok := c.filesByDeclaration[fn]
		if !ok {
			continue
		}
		if visited[depFile.RelPath] {
			continue
		}
		visited[depFile.RelPath] = true

		data, err := os.ReadFile(filepath.Join(c.sourceRoot, filepath.FromSlash(depFile.RelPath)))
		if err != nil {
			continue // I/O failure: skip this round, user can retry
		}
		c.recompileOne(depFile.RelPath, data, visited)
	}
}

// RecompileNonPersistent compiles a candidate buffer without mutating the
// cache, symbol table (beyond the compile's own lifetime) or dependency
// graph: the file's current declarations are undefined, the buffer is
// compiled, and the original declarations are restored before returning,
// on every exit path.
func (c *Cache) RecompileNonPersistent(relPath string, src []byte) *pipeline.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	var original []*symtable.ScriptInfo
	if cf, ok := c.filesByPath[relPath]; ok {
		original = cf.Scripts
		for _, s := range original {
			c.table.UndefineScript(s.Trigger, s.Name)
		}
	}

	result := pipeline.Compile([]pipeline.Input{{Handle: relPath, Bytes: src}}, pipeline.Options{
		Table:        c.table,
		InstrMap:     c.instrMap,
		TriggerTypes: c.triggerTypes,
	})

	// Pre-registration inside pipeline.Compile defined the candidate's
	// scripts on c.table; undo that before restoring the original state.
	for _, s := range result.Scripts {
		c.table.UndefineScript(s.Info.Trigger, s.Info.Name)
	}
	for _, s := range original {
		_ = c.table.DefineScript(s)
	}

	return result
}
