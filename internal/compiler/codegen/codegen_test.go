package codegen

import (
	"strings"
	"testing"

	"github.com/btouchard/rs2c/internal/compiler/analyzer"
	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/errors"
	"github.com/btouchard/rs2c/internal/compiler/lexer"
	"github.com/btouchard/rs2c/internal/compiler/parser"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// compile parses, pre-registers, analyzes and generates every script in
// src against tbl, returning the generated bytecode in declaration order.
func compile(t *testing.T, tbl *symtable.Table, src string) []*bytecode.Script {
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
		t.Fatalf("pre-codegen errors: %v", errs.Errors)
	}

	var out []*bytecode.Script
	for _, s := range file.Scripts {
		out = append(out, Generate(s, tbl, bytecode.IdentityInstructionMap{}, errs))
	}
	if errs.HasErrors() {
		t.Fatalf("codegen errors: %v", errs.Errors)
	}
	return out
}

func op(core bytecode.CoreOpcode) bytecode.Opcode {
	return bytecode.Opcode(core)
}

func opcodes(b *bytecode.Block) []bytecode.Opcode {
	out := make([]bytecode.Opcode, len(b.Instructions))
	for i, ins := range b.Instructions {
		out[i] = ins.Opcode
	}
	return out
}

func assertOpcodes(t *testing.T, b *bytecode.Block, want ...bytecode.CoreOpcode) {
	t.Helper()
	got := opcodes(b)
	if len(got) != len(want) {
		t.Fatalf("block %s: got %d instructions %v, want %d", b.Label, len(got), got, len(want))
	}
	for i := range want {
		if got[i] != op(want[i]) {
			t.Errorf("block %s instruction %d: got op%d, want %s", b.Label, i, got[i], want[i])
		}
	}
}

func TestSingleProcEntryBlock(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,foo](int $x)(int) return($x);`)
	s := scripts[0]

	if s.Info.FullName() != "[proc,foo]" {
		t.Errorf("script full name = %s", s.Info.FullName())
	}
	if len(s.Blocks) != 1 || s.Blocks[0].Label != "entry" {
		t.Fatalf("expected single entry block, got %d blocks", len(s.Blocks))
	}
	assertOpcodes(t, s.Blocks[0], bytecode.PUSH_INT_LOCAL, bytecode.RETURN)
	if slot := s.Blocks[0].Instructions[0].Operand; slot != 0 {
		t.Errorf("$x slot operand = %v, want 0", slot)
	}
}

func TestIfElseLowering(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,p]()() if (1 < 2) { return; } else { return; }`)
	s := scripts[0]

	if len(s.Blocks) != 4 {
		t.Fatalf("expected 4 blocks (entry, if_true, if_else, if_end), got %d", len(s.Blocks))
	}
	entry, ifTrue, ifElse, ifEnd := s.Blocks[0], s.Blocks[1], s.Blocks[2], s.Blocks[3]

	if entry.Label != "entry" {
		t.Errorf("block 0 label = %s, want entry", entry.Label)
	}
	for i, prefix := range []string{"if_true", "if_else", "if_end"} {
		if !strings.HasPrefix(string(s.Blocks[i+1].Label), prefix) {
			t.Errorf("block %d label = %s, want %s prefix", i+1, s.Blocks[i+1].Label, prefix)
		}
	}

	// entry: push both operands, branch on the comparison directly, then
	// fall to the else block explicitly.
	assertOpcodes(t, entry,
		bytecode.PUSH_INT_CONSTANT, bytecode.PUSH_INT_CONSTANT,
		bytecode.BRANCH_LESS_THAN, bytecode.BRANCH)
	if target := entry.Instructions[2].Operand; target != ifTrue.Label {
		t.Errorf("comparison branches to %v, want %s", target, ifTrue.Label)
	}
	if target := entry.Instructions[3].Operand; target != ifElse.Label {
		t.Errorf("fallthrough branches to %v, want %s", target, ifElse.Label)
	}

	// Both arms terminate with an explicit branch to if_end.
	for _, arm := range []*bytecode.Block{ifTrue, ifElse} {
		last := arm.Instructions[len(arm.Instructions)-1]
		if last.Opcode != op(bytecode.BRANCH) || last.Operand != ifEnd.Label {
			t.Errorf("block %s last instruction = %v %v, want BRANCH %s", arm.Label, last.Opcode, last.Operand, ifEnd.Label)
		}
	}

	// if_end is the terminal block: nothing but the implicit return.
	assertOpcodes(t, ifEnd, bytecode.RETURN)
}

func TestIfWithoutElseBranchesToEnd(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,p]()() if (1 < 2) { return; }`)
	s := scripts[0]

	if len(s.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(s.Blocks))
	}
	entry, ifEnd := s.Blocks[0], s.Blocks[2]
	if target := entry.Instructions[3].Operand; target != ifEnd.Label {
		t.Errorf("no-else fallthrough branches to %v, want %s", target, ifEnd.Label)
	}
}

func TestNonComparisonConditionUsesBranchIfTrue(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,p](bool $flag)() if ($flag) { return; }`)
	entry := scripts[0].Blocks[0]
	assertOpcodes(t, entry, bytecode.PUSH_INT_LOCAL, bytecode.BRANCH_IF_TRUE, bytecode.BRANCH)
}

func TestWhileBlocksAndBackEdge(t *testing.T) {
	tbl := symtable.New()
	if err := tbl.DefineCommand(&symtable.CommandInfo{Name: "noop", Opcode: 4000, ReturnType: types.Tuple()}); err != nil {
		t.Fatal(err)
	}
	scripts := compile(t, tbl, `[proc,p](int $n)() while ($n < 10) { ~noop(); }`)
	s := scripts[0]

	if len(s.Blocks) != 4 {
		t.Fatalf("expected 4 blocks (entry, cond, body, end), got %d", len(s.Blocks))
	}
	entry, cond, body, end := s.Blocks[0], s.Blocks[1], s.Blocks[2], s.Blocks[3]

	assertOpcodes(t, entry, bytecode.BRANCH)
	if entry.Instructions[0].Operand != cond.Label {
		t.Errorf("entry branches to %v, want %s", entry.Instructions[0].Operand, cond.Label)
	}

	assertOpcodes(t, cond,
		bytecode.PUSH_INT_LOCAL, bytecode.PUSH_INT_CONSTANT,
		bytecode.BRANCH_LESS_THAN, bytecode.BRANCH)
	if cond.Instructions[2].Operand != body.Label {
		t.Errorf("cond true-branch to %v, want %s", cond.Instructions[2].Operand, body.Label)
	}
	if cond.Instructions[3].Operand != end.Label {
		t.Errorf("cond exit-branch to %v, want %s", cond.Instructions[3].Operand, end.Label)
	}

	last := body.Instructions[len(body.Instructions)-1]
	if last.Opcode != op(bytecode.BRANCH) || last.Operand != cond.Label {
		t.Errorf("body back-edge = %v %v, want BRANCH %s", last.Opcode, last.Operand, cond.Label)
	}
}

func TestExpressionStatementDiscards(t *testing.T) {
	tbl := symtable.New()
	if err := tbl.DefineCommand(&symtable.CommandInfo{
		Name:       "stat_lookup",
		Opcode:     5000,
		ReturnType: types.Tuple(types.Int, types.StringType),
	}); err != nil {
		t.Fatal(err)
	}
	scripts := compile(t, tbl, `[proc,p]()() ~stat_lookup();`)
	entry := scripts[0].Blocks[0]

	got := opcodes(entry)
	if len(got) != 4 {
		t.Fatalf("expected 4 instructions, got %v", got)
	}
	if got[0] != bytecode.Opcode(5000) {
		t.Errorf("command opcode = %d, want 5000", got[0])
	}
	if got[1] != op(bytecode.POP_INT_DISCARD) {
		t.Errorf("instruction 1 = op%d, want POP_INT_DISCARD", got[1])
	}
	if got[2] != op(bytecode.POP_STRING_DISCARD) {
		t.Errorf("instruction 2 = op%d, want POP_STRING_DISCARD", got[2])
	}
	if got[3] != op(bytecode.RETURN) {
		t.Errorf("instruction 3 = op%d, want RETURN", got[3])
	}
}

func TestGosubArgsThenCall(t *testing.T) {
	src := `
[proc,foo](int $a, string $b)() return;
[proc,bar]()() ~foo(1, "x");
`
	scripts := compile(t, symtable.New(), src)
	entry := scripts[1].Blocks[0]

	assertOpcodes(t, entry,
		bytecode.PUSH_INT_CONSTANT, bytecode.PUSH_STRING_CONSTANT,
		bytecode.GOSUB_WITH_PARAMS, bytecode.RETURN)
	info, ok := entry.Instructions[2].Operand.(*symtable.ScriptInfo)
	if !ok || info.FullName() != "[proc,foo]" {
		t.Errorf("gosub operand = %v, want [proc,foo] ScriptInfo", entry.Instructions[2].Operand)
	}
}

func TestCommandAlternativeFlagOperand(t *testing.T) {
	tbl := symtable.New()
	if err := tbl.DefineCommand(&symtable.CommandInfo{Name: "plain", Opcode: 6000, ReturnType: types.Tuple()}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.DefineCommand(&symtable.CommandInfo{Name: "alt", Opcode: 6001, ReturnType: types.Tuple(), Alternative: true}); err != nil {
		t.Fatal(err)
	}
	scripts := compile(t, tbl, `[proc,p]()() ~plain(); ~alt();`)
	entry := scripts[0].Blocks[0]

	if entry.Instructions[0].Operand != int32(0) {
		t.Errorf("plain command operand = %v, want 0", entry.Instructions[0].Operand)
	}
	if entry.Instructions[1].Operand != int32(1) {
		t.Errorf("alternative command operand = %v, want 1", entry.Instructions[1].Operand)
	}
}

func TestStringConcatJoins(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,p](int $n)(string) return("count {$n}!");`)
	entry := scripts[0].Blocks[0]

	assertOpcodes(t, entry,
		bytecode.PUSH_STRING_CONSTANT, bytecode.PUSH_INT_LOCAL,
		bytecode.PUSH_STRING_CONSTANT, bytecode.JOIN_STRING, bytecode.RETURN)
	if n := entry.Instructions[3].Operand; n != int32(3) {
		t.Errorf("JOIN_STRING operand = %v, want 3", n)
	}
}

func TestVariableOpcodeSelection(t *testing.T) {
	tbl := symtable.New()
	vars := []*symtable.VariableInfo{
		{Domain: symtable.PLAYER, Name: "energy", Type: types.Int},
		{Domain: symtable.PLAYER_BIT, Name: "unlocked", Type: types.Int},
		{Domain: symtable.CLIENT_INT, Name: "zoom", Type: types.Int},
		{Domain: symtable.CLIENT_STRING, Name: "title", Type: types.StringType},
	}
	for _, v := range vars {
		if err := tbl.DefineVariable(v); err != nil {
			t.Fatal(err)
		}
	}
	scripts := compile(t, tbl, `[proc,p]()(int, int, int, string) return(%energy, %unlocked, %zoom, %title);`)
	entry := scripts[0].Blocks[0]

	assertOpcodes(t, entry,
		bytecode.PUSH_VARP, bytecode.PUSH_VARP_BIT,
		bytecode.PUSH_VARC_INT, bytecode.PUSH_VARC_STRING, bytecode.RETURN)
	for i, v := range vars {
		got, ok := entry.Instructions[i].Operand.(*symtable.VariableInfo)
		if !ok || got.Name != v.Name {
			t.Errorf("instruction %d operand = %v, want %s", i, entry.Instructions[i].Operand, v.Name)
		}
	}
}

func TestLocalSlotsPartitionedByDomain(t *testing.T) {
	scripts := compile(t, symtable.New(),
		`[proc,p](int $a, string $s, long $l)() def_int $b = $a; def_string $t = $s;`)
	locals := scripts[0].Locals

	if slot, _ := locals.Lookup(types.INT, "a"); slot != 0 {
		t.Errorf("$a slot = %d, want 0", slot)
	}
	if slot, _ := locals.Lookup(types.INT, "b"); slot != 1 {
		t.Errorf("$b slot = %d, want 1", slot)
	}
	if slot, _ := locals.Lookup(types.STRING, "s"); slot != 0 {
		t.Errorf("$s slot = %d, want 0", slot)
	}
	if slot, _ := locals.Lookup(types.STRING, "t"); slot != 1 {
		t.Errorf("$t slot = %d, want 1", slot)
	}
	if slot, _ := locals.Lookup(types.LONG, "l"); slot != 0 {
		t.Errorf("$l slot = %d, want 0", slot)
	}
}

func TestVarInitPopsIntoSlot(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,p]()() def_int $x = 5;`)
	entry := scripts[0].Blocks[0]
	assertOpcodes(t, entry, bytecode.PUSH_INT_CONSTANT, bytecode.POP_INT_LOCAL, bytecode.RETURN)
	if entry.Instructions[1].Operand != 0 {
		t.Errorf("POP_INT_LOCAL operand = %v, want slot 0", entry.Instructions[1].Operand)
	}
}

func TestSwitchLowersCasesToOwnBlocks(t *testing.T) {
	src := `[proc,p](int $n)(int)
switch ($n) {
case 1: return(10);
case 2, 3: return(20);
default: return(0);
}`
	scripts := compile(t, symtable.New(), src)
	s := scripts[0]

	var caseBlocks, defaultBlocks, endBlocks int
	for _, b := range s.Blocks {
		switch {
		case strings.HasPrefix(string(b.Label), "switch_case"):
			caseBlocks++
		case strings.HasPrefix(string(b.Label), "switch_default"):
			defaultBlocks++
		case strings.HasPrefix(string(b.Label), "switch_end"):
			endBlocks++
		}
	}
	if caseBlocks != 2 || defaultBlocks != 1 || endBlocks != 1 {
		t.Errorf("blocks = %d cases, %d default, %d end; want 2/1/1", caseBlocks, defaultBlocks, endBlocks)
	}

	// Dispatch compares the stashed subject against each case value; the
	// two-value case contributes two comparisons.
	entry := s.Blocks[0]
	var branchIfTrue int
	for _, ins := range entry.Instructions {
		if ins.Opcode == op(bytecode.BRANCH_IF_TRUE) {
			branchIfTrue++
		}
	}
	if branchIfTrue != 3 {
		t.Errorf("dispatch BRANCH_IF_TRUE count = %d, want 3", branchIfTrue)
	}
}

func TestBareReturn(t *testing.T) {
	scripts := compile(t, symtable.New(), `[proc,p]()() return;`)
	assertOpcodes(t, scripts[0].Blocks[0], bytecode.RETURN)
}

func TestConstantInlined(t *testing.T) {
	tbl := symtable.New()
	if err := tbl.DefineConstant(&symtable.ConstantInfo{Name: "greeting", Type: types.StringType, Value: "hello"}); err != nil {
		t.Fatal(err)
	}
	scripts := compile(t, tbl, `[proc,p]()(string) return(^greeting);`)
	entry := scripts[0].Blocks[0]
	assertOpcodes(t, entry, bytecode.PUSH_STRING_CONSTANT, bytecode.RETURN)
	if entry.Instructions[0].Operand != "hello" {
		t.Errorf("inlined constant operand = %v, want %q", entry.Instructions[0].Operand, "hello")
	}
}
