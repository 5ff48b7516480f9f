package bytecode

import (
	"strings"
	"testing"

	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

func TestLocalMapDomainsArePartitioned(t *testing.T) {
	m := NewLocalMap()

	if slot := m.Define(types.INT, "x"); slot != 0 {
		t.Errorf("first int slot = %d, want 0", slot)
	}
	if slot := m.Define(types.INT, "y"); slot != 1 {
		t.Errorf("second int slot = %d, want 1", slot)
	}
	// A string local starts its own index space at 0.
	if slot := m.Define(types.STRING, "s"); slot != 0 {
		t.Errorf("first string slot = %d, want 0", slot)
	}
	if slot := m.Define(types.LONG, "l"); slot != 0 {
		t.Errorf("first long slot = %d, want 0", slot)
	}

	if m.Count(types.INT) != 2 || m.Count(types.STRING) != 1 || m.Count(types.LONG) != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1",
			m.Count(types.INT), m.Count(types.STRING), m.Count(types.LONG))
	}
}

func TestLocalMapRedefineReturnsExistingSlot(t *testing.T) {
	m := NewLocalMap()
	first := m.Define(types.INT, "x")
	again := m.Define(types.INT, "x")
	if first != again {
		t.Errorf("redefine gave slot %d, want %d", again, first)
	}
	if m.Count(types.INT) != 1 {
		t.Errorf("count = %d, want 1", m.Count(types.INT))
	}
}

func TestLocalMapLookup(t *testing.T) {
	m := NewLocalMap()
	m.Define(types.STRING, "s")
	if slot, ok := m.Lookup(types.STRING, "s"); !ok || slot != 0 {
		t.Errorf("Lookup = %d, %v", slot, ok)
	}
	if _, ok := m.Lookup(types.INT, "s"); ok {
		t.Error("string local should not be visible in the int domain")
	}
}

func TestIdentityInstructionMap(t *testing.T) {
	m := IdentityInstructionMap{}
	if got := m.Remap(RETURN, 0); got != Opcode(RETURN) {
		t.Errorf("Remap(RETURN) = %d, want %d", got, Opcode(RETURN))
	}
	if got := m.Remap(COMMAND, 3100); got != Opcode(3100) {
		t.Errorf("Remap(COMMAND, 3100) = %d, want 3100", got)
	}
}

func TestDumpRendersMnemonics(t *testing.T) {
	entry := &Block{Label: "entry"}
	entry.Emit(Opcode(PUSH_INT_CONSTANT), int32(123))
	entry.Emit(Opcode(5000), int32(0)) // a command's own opcode
	entry.Emit(Opcode(RETURN), nil)
	s := &Script{
		Info:   &symtable.ScriptInfo{Trigger: "proc", Name: "p"},
		Blocks: []*Block{entry},
		Locals: NewLocalMap(),
	}

	dump := s.Dump()
	if !strings.Contains(dump, "PUSH_INT_CONSTANT") {
		t.Errorf("dump missing PUSH_INT_CONSTANT mnemonic:\n%s", dump)
	}
	if !strings.Contains(dump, "RETURN") {
		t.Errorf("dump missing RETURN mnemonic:\n%s", dump)
	}
	if !strings.Contains(dump, "op5000") {
		t.Errorf("dump should fall back to op5000 for a command opcode:\n%s", dump)
	}
	if !strings.Contains(dump, "[proc,p]") {
		t.Errorf("dump missing script header:\n%s", dump)
	}
}

func TestFindBlock(t *testing.T) {
	s := &Script{Blocks: []*Block{{Label: "entry"}, {Label: "if_end_1"}}}
	if b, ok := s.FindBlock("if_end_1"); !ok || b.Label != "if_end_1" {
		t.Errorf("FindBlock = %+v, %v", b, ok)
	}
	if _, ok := s.FindBlock("missing"); ok {
		t.Error("unexpected hit for missing label")
	}
}
