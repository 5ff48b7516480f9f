package symtable

import (
	"testing"

	"github.com/btouchard/rs2c/internal/compiler/types"
)

func TestDefineScriptRejectsDuplicate(t *testing.T) {
	tbl := New()
	info := &ScriptInfo{Trigger: "proc", Name: "foo"}
	if err := tbl.DefineScript(info); err != nil {
		t.Fatalf("first define failed: %v", err)
	}
	if err := tbl.DefineScript(&ScriptInfo{Trigger: "proc", Name: "foo"}); err == nil {
		t.Fatal("expected duplicate define to fail")
	}
	// Same name under a different trigger is a distinct key.
	if err := tbl.DefineScript(&ScriptInfo{Trigger: "clientscript", Name: "foo"}); err != nil {
		t.Fatalf("define under another trigger failed: %v", err)
	}
}

func TestUndefineScriptIsIdempotent(t *testing.T) {
	tbl := New()
	if err := tbl.DefineScript(&ScriptInfo{Trigger: "proc", Name: "foo"}); err != nil {
		t.Fatal(err)
	}
	tbl.UndefineScript("proc", "foo")
	tbl.UndefineScript("proc", "foo")
	if _, ok := tbl.LookupScript("proc", "foo"); ok {
		t.Error("script still present after undefine")
	}
	// Key is free again.
	if err := tbl.DefineScript(&ScriptInfo{Trigger: "proc", Name: "foo"}); err != nil {
		t.Errorf("redefine after undefine failed: %v", err)
	}
}

func TestEqualSignature(t *testing.T) {
	base := func() *ScriptInfo {
		return &ScriptInfo{
			Trigger:    "proc",
			Name:       "foo",
			Params:     []types.Primitive{types.Int},
			ReturnType: types.Scalar(types.Int),
		}
	}

	a, b := base(), base()
	if !EqualSignature(a, b) {
		t.Fatal("identical declarations should have equal signatures")
	}

	b = base()
	b.Params = []types.Primitive{types.Int, types.Int}
	if EqualSignature(a, b) {
		t.Error("arity change should break signature equality")
	}

	b = base()
	b.Params = []types.Primitive{types.StringType}
	if EqualSignature(a, b) {
		t.Error("param type change should break signature equality")
	}

	b = base()
	b.ReturnType = types.Tuple(types.Int, types.Int)
	if EqualSignature(a, b) {
		t.Error("return type change should break signature equality")
	}

	b = base()
	b.Name = "bar"
	if EqualSignature(a, b) {
		t.Error("name change should break signature equality")
	}
}

func TestFullName(t *testing.T) {
	info := &ScriptInfo{Trigger: "proc", Name: "foo"}
	if got := info.FullName(); got != "[proc,foo]" {
		t.Errorf("FullName() = %q, want %q", got, "[proc,foo]")
	}
}

func TestCommandAndConstantRegistries(t *testing.T) {
	tbl := New()
	if err := tbl.DefineCommand(&CommandInfo{Name: "mes", Opcode: 3100}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.DefineCommand(&CommandInfo{Name: "mes", Opcode: 3100}); err == nil {
		t.Error("expected duplicate command to fail")
	}
	if _, ok := tbl.LookupCommand("mes"); !ok {
		t.Error("command not found after define")
	}

	if err := tbl.DefineConstant(&ConstantInfo{Name: "max_int", Type: types.Int, Value: "2147483647"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.DefineConstant(&ConstantInfo{Name: "max_int", Type: types.Int, Value: "0"}); err == nil {
		t.Error("expected duplicate constant to fail")
	}

	if err := tbl.DefineRuntimeConstant(&RuntimeConstantInfo{Name: "server_cycle", Type: types.Int}); err != nil {
		t.Fatal(err)
	}
	if _, ok := tbl.LookupRuntimeConstant("server_cycle"); !ok {
		t.Error("runtime constant not found after define")
	}
}

func TestVariableLookupAnyDomain(t *testing.T) {
	tbl := New()
	if err := tbl.DefineVariable(&VariableInfo{Domain: CLIENT_STRING, Name: "chat_prefix", Type: types.StringType}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.DefineVariable(&VariableInfo{Domain: PLAYER, Name: "energy", Type: types.Int}); err != nil {
		t.Fatal(err)
	}
	// Same name in two domains is allowed; keyed lookup stays distinct.
	if err := tbl.DefineVariable(&VariableInfo{Domain: PLAYER_BIT, Name: "energy", Type: types.Int}); err != nil {
		t.Fatal(err)
	}

	v, ok := tbl.LookupVariableAnyDomain("chat_prefix")
	if !ok || v.Domain != CLIENT_STRING {
		t.Errorf("LookupVariableAnyDomain(chat_prefix) = %+v, %v", v, ok)
	}

	// PLAYER wins over PLAYER_BIT in the any-domain search order.
	v, ok = tbl.LookupVariableAnyDomain("energy")
	if !ok || v.Domain != PLAYER {
		t.Errorf("LookupVariableAnyDomain(energy) = %+v, %v", v, ok)
	}

	if _, ok := tbl.LookupVariableAnyDomain("missing"); ok {
		t.Error("unexpected hit for missing variable")
	}
}
