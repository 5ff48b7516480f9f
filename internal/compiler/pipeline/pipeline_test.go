package pipeline

import (
	"strings"
	"testing"

	"github.com/btouchard/rs2c/internal/compiler/ast"
	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/depgraph"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
)

func TestBatchCrossFileReference(t *testing.T) {
	tbl := symtable.New()
	inputs := []Input{
		// b.rs2 calls foo declared in a.rs2; both are in the same batch
		// and pre-registration makes the order irrelevant.
		{Handle: "scripts/b.rs2", Bytes: []byte(`[proc,bar]()() ~foo(1);`)},
		{Handle: "scripts/a.rs2", Bytes: []byte(`[proc,foo](int $x)(int) return($x);`)},
	}
	result := Compile(inputs, Options{Table: tbl, InstrMap: bytecode.IdentityInstructionMap{}})

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Scripts) != 2 {
		t.Fatalf("expected 2 scripts, got %d", len(result.Scripts))
	}

	byName := map[string]EmittedScript{}
	for _, s := range result.Scripts {
		byName[s.Info.FullName()] = s
	}
	if byName["[proc,foo]"].Handle != "scripts/a.rs2" {
		t.Errorf("foo attributed to %s", byName["[proc,foo]"].Handle)
	}
	if byName["[proc,bar]"].Handle != "scripts/b.rs2" {
		t.Errorf("bar attributed to %s", byName["[proc,bar]"].Handle)
	}
}

func TestDuplicateDeclarationAcrossFiles(t *testing.T) {
	tbl := symtable.New()
	inputs := []Input{
		{Handle: "scripts/a.rs2", Bytes: []byte(`[proc,foo]()() return;`)},
		{Handle: "scripts/b.rs2", Bytes: []byte(`[proc,foo]()() return;`)},
	}
	result := Compile(inputs, Options{Table: tbl, InstrMap: bytecode.IdentityInstructionMap{}})

	// The second define raises a semantic error attributed to the second
	// file; the first file still compiles.
	var dupErrors []EmittedError
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "already declared") {
			dupErrors = append(dupErrors, e)
		}
	}
	if len(dupErrors) != 1 {
		t.Fatalf("expected 1 duplicate error, got %v", result.Errors)
	}
	if dupErrors[0].Handle != "scripts/b.rs2" {
		t.Errorf("duplicate error attributed to %s, want scripts/b.rs2", dupErrors[0].Handle)
	}
	if len(result.Scripts) != 1 {
		t.Errorf("expected 1 emitted script, got %d", len(result.Scripts))
	}
	if result.Scripts[0].Handle != "scripts/a.rs2" {
		t.Errorf("surviving script from %s, want scripts/a.rs2", result.Scripts[0].Handle)
	}
}

func TestVisitorsRunOverAnalyzedAST(t *testing.T) {
	tbl := symtable.New()
	graph := depgraph.New()
	inputs := []Input{
		{Handle: "scripts/a.rs2", Bytes: []byte(`[proc,foo]()() return;`)},
		{Handle: "scripts/b.rs2", Bytes: []byte(`[proc,bar]()() ~foo();`)},
	}
	Compile(inputs, Options{
		Table:    tbl,
		InstrMap: bytecode.IdentityInstructionMap{},
		Visitors: []ast.Visitor{depgraph.NewDependencyTreeBuilder(graph)},
	})

	bar, ok := graph.Find("[proc,bar]")
	if !ok {
		t.Fatal("no node for [proc,bar]")
	}
	if _, ok := bar.DependsOn()["[proc,foo]"]; !ok {
		t.Error("missing dependency edge [proc,bar] -> [proc,foo]")
	}
}

func TestErrorsAttributedToTheirFile(t *testing.T) {
	tbl := symtable.New()
	inputs := []Input{
		{Handle: "scripts/good.rs2", Bytes: []byte(`[proc,ok]()() return;`)},
		{Handle: "scripts/bad.rs2", Bytes: []byte(`[proc,broken]()() ~missing();`)},
	}
	result := Compile(inputs, Options{Table: tbl, InstrMap: bytecode.IdentityInstructionMap{}})

	for _, e := range result.Errors {
		if e.Handle != "scripts/bad.rs2" {
			t.Errorf("error attributed to %s: %s", e.Handle, e.Message)
		}
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected an undeclared-symbol error")
	}
}
