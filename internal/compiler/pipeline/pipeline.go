// Package pipeline wires the lexer, parser, semantic analyzer and
// bytecode generator into a single "compile a batch of files" operation.
// It is the shared core both the project cache and the WASM playground
// drive.
package pipeline

import (
	"github.com/btouchard/rs2c/internal/compiler/ast"
	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/codegen"
	"github.com/btouchard/rs2c/internal/compiler/errors"
	"github.com/btouchard/rs2c/internal/compiler/lexer"
	"github.com/btouchard/rs2c/internal/compiler/parser"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"

	"github.com/btouchard/rs2c/internal/compiler/analyzer"
)

// Input is one (fileHandle, bytes) pair to compile. Handle is typically a
// project-relative path but is otherwise an opaque key the caller uses to
// attribute results back to their source.
type Input struct {
	Handle string
	Bytes  []byte
}

// EmittedScript is one successfully generated script, attributed to the
// file handle it came from.
type EmittedScript struct {
	Handle string
	Info   *symtable.ScriptInfo
	Script *bytecode.Script
}

// EmittedError is one diagnostic, attributed to the file handle it came
// from.
type EmittedError struct {
	Handle  string
	Range   token.Range
	Message string
}

// Result is a compile batch's output: every script it emitted plus every
// diagnostic raised across every phase.
type Result struct {
	Scripts []EmittedScript
	Errors  []EmittedError
}

// Options configures one Compile call: the shared symbol table scripts
// are declared into, the instruction map codegen remaps through, the
// dynamic-expression type per trigger, and any extra post-parse visitors
// (e.g. a depgraph.DependencyTreeBuilder) to run once analysis has
// resolved each file's AST.
type Options struct {
	Table        *symtable.Table
	InstrMap     bytecode.InstructionMap
	TriggerTypes map[string]types.Primitive
	Visitors     []ast.Visitor
}

// Compile lexes, parses, pre-registers, analyzes, visits and generates
// bytecode for every input. Pre-registration (defining every input's
// scripts in Table before any file is analyzed) lets a script reference a
// sibling declared later in the same file or another file in the same
// batch, so declaration order never matters within a batch.
//
// Duplicate symbol registration aborts generation for that one script (it
// is recorded as a semantic error) but does not stop the rest of the
// batch — the remaining scripts in the file and the other files still
// compile, so a single bad declaration doesn't hide every other
// diagnostic in the batch.
func Compile(inputs []Input, opts Options) *Result {
	result := &Result{}

	type parsedFile struct {
		handle string
		file   *ast.File
		errs   *errors.List
	}
	parsed := make([]parsedFile, 0, len(inputs))

	for _, in := range inputs {
		errs := errors.NewList()
		l := lexer.New(string(in.Bytes))
		p := parser.New(l, errs)
		f := p.ParseFile()
		parsed = append(parsed, parsedFile{handle: in.Handle, file: f, errs: errs})
	}

	// Pre-register every script across the whole batch before any
	// analysis runs.
	registered := make(map[*ast.Script]bool)
	for _, pf := range parsed {
		for _, s := range pf.file.Scripts {
			info := &symtable.ScriptInfo{
				Trigger:    s.Trigger,
				Name:       s.Name,
				Params:     paramTypes(s.Params),
				ReturnType: s.ReturnType(),
			}
			if err := opts.Table.DefineScript(info); err != nil {
				pf.errs.Add(s.Rng, "semantic", err.Error())
				continue
			}
			registered[s] = true
		}
	}

	for _, pf := range parsed {
		az := analyzer.New(opts.Table, pf.errs, opts.TriggerTypes)
		az.AnalyzeFile(pf.file)

		for _, v := range opts.Visitors {
			pf.file.Accept(v)
		}

		for _, s := range pf.file.Scripts {
			if !registered[s] {
				continue
			}
			bc := codegen.Generate(s, opts.Table, opts.InstrMap, pf.errs)
			result.Scripts = append(result.Scripts, EmittedScript{Handle: pf.handle, Info: bc.Info, Script: bc})
		}

		for _, e := range pf.errs.Errors {
			result.Errors = append(result.Errors, EmittedError{Handle: pf.handle, Range: e.Range, Message: e.Phase + ": " + e.Message})
		}
	}

	return result
}

func paramTypes(params []*ast.Param) []types.Primitive {
	out := make([]types.Primitive, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}
