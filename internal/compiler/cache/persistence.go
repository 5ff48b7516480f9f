package cache

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/btouchard/rs2c/internal/compiler/depgraph"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// Save serializes the cache to path in a big-endian, length-prefixed
// format: every cached file (path, CRC, declared scripts, errors)
// followed by every dependency graph node and its dependsOn edges.
// usedBy is not written; Load reconstructs it by re-adding each edge,
// which rebuilds the transpose as a side effect.
func (c *Cache) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := c.writeTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Cache) writeTo(w io.Writer) error {
	files := make([]*CachedFile, 0, len(c.filesByPath))
	for _, f := range c.filesByPath {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	if err := binary.Write(w, binary.BigEndian, uint32(len(files))); err != nil {
		return err
	}
	for _, f := range files {
		if err := writeFile(w, f); err != nil {
			return err
		}
	}

	nodes := c.graph.ValueSet()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
	if err := binary.Write(w, binary.BigEndian, uint32(len(nodes))); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := writeUTF(w, n.Key); err != nil {
			return err
		}
		deps := make([]string, 0, len(n.DependsOn()))
		for k := range n.DependsOn() {
			deps = append(deps, k)
		}
		sort.Strings(deps)
		if err := binary.Write(w, binary.BigEndian, uint16(len(deps))); err != nil {
			return err
		}
		for _, d := range deps {
			if err := writeUTF(w, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(w io.Writer, f *CachedFile) error {
	if err := writeUTF(w, f.RelPath); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, f.CRC); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(f.Scripts))); err != nil {
		return err
	}
	for _, s := range f.Scripts {
		if err := writeUTF(w, s.Trigger); err != nil {
			return err
		}
		if err := writeUTF(w, s.Name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint8(len(s.Params))); err != nil {
			return err
		}
		for _, p := range s.Params {
			if err := binary.Write(w, binary.BigEndian, uint8(p)); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.BigEndian, uint8(len(s.ReturnType.Elems))); err != nil {
			return err
		}
		for _, p := range s.ReturnType.Elems {
			if err := binary.Write(w, binary.BigEndian, uint8(p)); err != nil {
				return err
			}
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(f.Errors))); err != nil {
		return err
	}
	for _, e := range f.Errors {
		if err := binary.Write(w, binary.BigEndian, int32(e.Range.Start.Line)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(e.Range.Start.Column)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(e.Range.End.Line)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(e.Range.End.Column)); err != nil {
			return err
		}
		if err := writeUTF(w, e.Message); err != nil {
			return err
		}
	}
	return nil
}

func writeUTF(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("string too long to serialize: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Load replaces the cache's contents with what's serialized at path,
// re-declaring every script onto the symbol table and rebuilding the
// dependency graph edge by edge.
func (c *Cache) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.readFrom(bufio.NewReader(f))
}

func (c *Cache) readFrom(r io.Reader) error {
	for _, cf := range c.filesByPath {
		c.undeclareFileLocked(cf)
	}
	c.filesByPath = make(map[string]*CachedFile)
	c.filesByDeclaration = make(map[string]*CachedFile)
	c.graph = depgraph.New()

	var fileCount uint32
	if err := binary.Read(r, binary.BigEndian, &fileCount); err != nil {
		return err
	}
	for i := uint32(0); i < fileCount; i++ {
		cf, err := readFile(r)
		if err != nil {
			return err
		}
		c.filesByPath[cf.RelPath] = cf
		for _, s := range cf.Scripts {
			if err := c.table.DefineScript(s); err != nil {
				return fmt.Errorf("loading cache: %w", err)
			}
			c.filesByDeclaration[s.FullName()] = cf
		}
	}

	var nodeCount uint32
	if err := binary.Read(r, binary.BigEndian, &nodeCount); err != nil {
		return err
	}
	for i := uint32(0); i < nodeCount; i++ {
		key, err := readUTF(r)
		if err != nil {
			return err
		}
		var depCount uint16
		if err := binary.Read(r, binary.BigEndian, &depCount); err != nil {
			return err
		}
		c.graph.FindOrCreate(key)
		for j := uint16(0); j < depCount; j++ {
			depKey, err := readUTF(r)
			if err != nil {
				return err
			}
			c.graph.AddDependency(key, depKey)
		}
	}

	c.dirty = false
	return nil
}

// undeclareFileLocked is undeclareFile without re-touching a graph that's
// about to be discarded wholesale by readFrom.
func (c *Cache) undeclareFileLocked(cf *CachedFile) {
	for _, s := range cf.Scripts {
		c.table.UndefineScript(s.Trigger, s.Name)
	}
}

func readFile(r io.Reader) (*CachedFile, error) {
	relPath, err := readUTF(r)
	if err != nil {
		return nil, err
	}
	cf := &CachedFile{RelPath: relPath, Filename: baseName(relPath)}

	if err := binary.Read(r, binary.BigEndian, &cf.CRC); err != nil {
		return nil, err
	}

	var scriptCount uint16
	if err := binary.Read(r, binary.BigEndian, &scriptCount); err != nil {
		return nil, err
	}
	for i := uint16(0); i < scriptCount; i++ {
		info, err := readScriptInfo(r)
		if err != nil {
			return nil, err
		}
		cf.Scripts = append(cf.Scripts, info)
	}

	var errCount uint16
	if err := binary.Read(r, binary.BigEndian, &errCount); err != nil {
		return nil, err
	}
	for i := uint16(0); i < errCount; i++ {
		ce, err := readCachedError(r)
		if err != nil {
			return nil, err
		}
		cf.Errors = append(cf.Errors, ce)
	}

	return cf, nil
}

func readScriptInfo(r io.Reader) (*symtable.ScriptInfo, error) {
	trigger, err := readUTF(r)
	if err != nil {
		return nil, err
	}
	name, err := readUTF(r)
	if err != nil {
		return nil, err
	}

	var paramCount uint8
	if err := binary.Read(r, binary.BigEndian, &paramCount); err != nil {
		return nil, err
	}
	params := make([]types.Primitive, paramCount)
	for i := range params {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, err
		}
		params[i] = types.Primitive(tag)
	}

	var returnArity uint8
	if err := binary.Read(r, binary.BigEndian, &returnArity); err != nil {
		return nil, err
	}
	returns := make([]types.Primitive, returnArity)
	for i := range returns {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, err
		}
		returns[i] = types.Primitive(tag)
	}

	return &symtable.ScriptInfo{
		Trigger:    trigger,
		Name:       name,
		Params:     params,
		ReturnType: types.Tuple(returns...),
	}, nil
}

func readCachedError(r io.Reader) (CachedError, error) {
	var startLine, startCol, endLine, endCol int32
	for _, p := range []*int32{&startLine, &startCol, &endLine, &endCol} {
		if err := binary.Read(r, binary.BigEndian, p); err != nil {
			return CachedError{}, err
		}
	}
	msg, err := readUTF(r)
	if err != nil {
		return CachedError{}, err
	}
	return CachedError{
		Range: token.Range{
			Start: token.Position{Line: int(startLine), Column: int(startCol)},
			End:   token.Position{Line: int(endLine), Column: int(endCol)},
		},
		Message: msg,
	}, nil
}

func readUTF(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func baseName(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		if relPath[i] == '/' {
			return relPath[i+1:]
		}
	}
	return relPath
}
