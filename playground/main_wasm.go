//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/pipeline"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// table and instrMap are process-global for the playground's lifetime: one
// WASM instance serves one editor tab, so there is no concurrent-project
// concern that would need the full cache.
var (
	table    = symtable.New()
	instrMap = bytecode.IdentityInstructionMap{}

	// triggerTypes mirrors cmd/rs2c's defaults; the playground has no
	// config file to load them from.
	triggerTypes = map[string]types.Primitive{
		"clientscript": types.Int,
		"opheld":       types.Int,
		"opnpc":        types.Int,
		"oploc":        types.Int,
		"opobj":        types.Int,
		"label":        types.Int,
	}
)

func main() {
	js.Global().Set("compileRS2", js.FuncOf(compileRS2Wrapper))

	select {}
}

// compileRS2Wrapper wraps compileRS2Preview with panic recovery so a
// compiler bug surfaces as an error entry instead of killing the WASM
// instance.
func compileRS2Wrapper(this js.Value, args []js.Value) (ret interface{}) {
	var result map[string]interface{}

	defer func() {
		if r := recover(); r != nil {
			result = make(map[string]interface{})
			result["bytecode"] = ""
			result["errors"] = []interface{}{fmt.Sprintf("panic: %v", r)}
			ret = js.ValueOf(result)
		}
	}()

	if len(args) != 1 {
		result = make(map[string]interface{})
		result["bytecode"] = ""
		result["errors"] = []interface{}{"expected 1 argument (source code)"}
		return js.ValueOf(result)
	}

	source := args[0].String()
	dump, errs := compileRS2Preview(source)

	result = make(map[string]interface{})
	result["bytecode"] = dump

	jsErrors := make([]interface{}, len(errs))
	for i, e := range errs {
		jsErrors[i] = e
	}
	result["errors"] = jsErrors

	return js.ValueOf(result)
}

// compileRS2Preview compiles a single buffer of RuneScript source against
// the playground's shared symbol table without persisting anything: the
// same non-persistent compile as cache.RecompileNonPersistent, here
// against pipeline.Compile directly since the playground has no project
// to diff against and every keystroke is its own throwaway file named
// "playground.rs2".
func compileRS2Preview(source string) (string, []string) {
	const handle = "playground.rs2"

	var previous []*symtable.ScriptInfo
	// Scripts declared by an earlier keystroke are still defined on the
	// table and must be undone before recompiling, or pre-registration
	// would report every script of this buffer as already declared.
	for _, s := range table.Scripts() {
		previous = append(previous, s)
	}
	for _, s := range previous {
		table.UndefineScript(s.Trigger, s.Name)
	}

	result := pipeline.Compile([]pipeline.Input{{Handle: handle, Bytes: []byte(source)}}, pipeline.Options{
		Table:        table,
		InstrMap:     instrMap,
		TriggerTypes: triggerTypes,
	})

	var errs []string
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%d:%d: %s", e.Range.Start.Line, e.Range.Start.Column, e.Message))
	}

	var dump string
	for _, s := range result.Scripts {
		dump += s.Script.Dump()
	}

	return dump, errs
}
