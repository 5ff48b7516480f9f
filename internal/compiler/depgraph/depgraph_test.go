package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/btouchard/rs2c/internal/compiler/analyzer"
	"github.com/btouchard/rs2c/internal/compiler/errors"
	"github.com/btouchard/rs2c/internal/compiler/lexer"
	"github.com/btouchard/rs2c/internal/compiler/parser"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

func TestAddDependencyIsBidirectional(t *testing.T) {
	g := New()
	g.AddDependency("[proc,bar]", "[proc,foo]")

	bar, ok := g.Find("[proc,bar]")
	assert.True(t, ok)
	assert.Contains(t, bar.DependsOn(), "[proc,foo]")

	foo, ok := g.Find("[proc,foo]")
	assert.True(t, ok)
	assert.Contains(t, foo.UsedBy(), "[proc,bar]")
}

func TestAddDependencyIsIdempotent(t *testing.T) {
	g := New()
	g.AddDependency("[proc,bar]", "[proc,foo]")
	g.AddDependency("[proc,bar]", "[proc,foo]")

	bar, _ := g.Find("[proc,bar]")
	assert.Len(t, bar.DependsOn(), 1)
	assert.Equal(t, 2, g.Size())
}

func TestRemoveDropsBothEdgeDirections(t *testing.T) {
	g := New()
	g.AddDependency("[proc,bar]", "[proc,foo]")
	g.AddDependency("[proc,foo]", "[proc,baz]")

	g.Remove("[proc,foo]")

	assert.Equal(t, 2, g.Size())
	bar, _ := g.Find("[proc,bar]")
	assert.NotContains(t, bar.DependsOn(), "[proc,foo]")
	baz, _ := g.Find("[proc,baz]")
	assert.NotContains(t, baz.UsedBy(), "[proc,foo]")
}

func TestRemoveMissingKeyIsNoOp(t *testing.T) {
	g := New()
	g.AddDependency("[proc,bar]", "[proc,foo]")
	g.Remove("[proc,missing]")
	assert.Equal(t, 2, g.Size())
}

func TestUsedByClosureTransitive(t *testing.T) {
	// c -> b -> a: a change to a affects b and c.
	g := New()
	g.AddDependency("[proc,b]", "[proc,a]")
	g.AddDependency("[proc,c]", "[proc,b]")

	affected := g.UsedByClosure([]string{"[proc,a]"})
	assert.True(t, affected["[proc,b]"])
	assert.True(t, affected["[proc,c]"])
	assert.False(t, affected["[proc,a]"])
}

func TestUsedByClosureTerminatesOnCycle(t *testing.T) {
	g := New()
	g.AddDependency("[proc,a]", "[proc,b]")
	g.AddDependency("[proc,b]", "[proc,a]")

	affected := g.UsedByClosure([]string{"[proc,a]"})
	assert.True(t, affected["[proc,b]"])
}

func analyze(t *testing.T, tbl *symtable.Table, src string) *DependencyTreeBuilder {
	t.Helper()
	errs := errors.NewList()
	file := parser.New(lexer.New(src), errs).ParseFile()
	for _, s := range file.Scripts {
		info := &symtable.ScriptInfo{Trigger: s.Trigger, Name: s.Name, ReturnType: s.ReturnType()}
		for _, p := range s.Params {
			info.Params = append(info.Params, p.Type)
		}
		if err := tbl.DefineScript(info); err != nil {
			t.Fatal(err)
		}
	}
	analyzer.New(tbl, errs, nil).AnalyzeFile(file)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}

	b := NewDependencyTreeBuilder(New())
	file.Accept(b)
	return b
}

func TestBuilderRecordsGosubEdges(t *testing.T) {
	tbl := symtable.New()
	src := `
[proc,foo](int $x)(int) return($x);
[proc,bar]()() ~foo(1);
`
	b := analyze(t, tbl, src)

	bar, ok := b.Graph.Find("[proc,bar]")
	assert.True(t, ok)
	assert.Contains(t, bar.DependsOn(), "[proc,foo]")

	foo, ok := b.Graph.Find("[proc,foo]")
	assert.True(t, ok)
	assert.Contains(t, foo.UsedBy(), "[proc,bar]")
}

func TestBuilderRecordsCommandEdges(t *testing.T) {
	tbl := symtable.New()
	if err := tbl.DefineCommand(&symtable.CommandInfo{Name: "mes", Opcode: 3100, Params: []types.Primitive{types.StringType}}); err != nil {
		t.Fatal(err)
	}
	b := analyze(t, tbl, `[proc,p]()() ~mes("hi");`)

	p, ok := b.Graph.Find("[proc,p]")
	assert.True(t, ok)
	assert.Contains(t, p.DependsOn(), "mes")
}
