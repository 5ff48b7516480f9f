// Package symtable implements the process-wide symbol table: five flat
// keyed registries (scripts, commands, constants, runtime constants,
// variables) shared by
// every file's analysis pass. There is no scoping stack here — locals
// live in the analyzer/codegen's LocalMap.
package symtable

import (
	"fmt"

	"github.com/btouchard/rs2c/internal/compiler/types"
)

// VarDomain is the storage domain of an externally registered variable.
type VarDomain int

const (
	LOCAL VarDomain = iota
	PLAYER
	PLAYER_BIT
	CLIENT_INT
	CLIENT_STRING
)

func (d VarDomain) String() string {
	switch d {
	case LOCAL:
		return "local"
	case PLAYER:
		return "player"
	case PLAYER_BIT:
		return "player_bit"
	case CLIENT_INT:
		return "client_int"
	case CLIENT_STRING:
		return "client_string"
	default:
		return "unknown"
	}
}

// ScriptInfo is a script declaration: its trigger+name key, parameter
// types and (possibly tuple) return type.
type ScriptInfo struct {
	Trigger    string
	Name       string
	Params     []types.Primitive
	ReturnType types.Type
}

// FullName returns the symbol table key "[trigger,name]".
func (s *ScriptInfo) FullName() string {
	return "[" + s.Trigger + "," + s.Name + "]"
}

// EqualSignature reports whether a and b have matching trigger, name,
// parameter types and return type.
func EqualSignature(a, b *ScriptInfo) bool {
	if a.Trigger != b.Trigger || a.Name != b.Name {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return a.ReturnType.Equal(b.ReturnType)
}

// CommandInfo is an engine command: its concrete opcode, signature and
// whether it has an "alternative" form (operand 1 vs 0 at call sites).
type CommandInfo struct {
	Name        string
	Opcode      int
	Params      []types.Primitive
	ReturnType  types.Type
	Alternative bool
}

// ConstantInfo is a compile-time constant with an inlineable literal value.
type ConstantInfo struct {
	Name  string
	Type  types.Primitive
	Value string
}

// RuntimeConstantInfo is a named constant whose value is resolved by the
// runtime rather than inlined by the compiler.
type RuntimeConstantInfo struct {
	Name string
	Type types.Primitive
}

// VariableInfo is an externally registered variable (PLAYER, PLAYER_BIT,
// CLIENT_INT or CLIENT_STRING) referenced via `%name`.
type VariableInfo struct {
	Domain VarDomain
	Name   string
	Type   types.Primitive
}

type scriptKey struct{ trigger, name string }
type varKey struct {
	domain VarDomain
	name   string
}

// Table is the process-wide registry. Zero value is not ready for use;
// construct with New.
type Table struct {
	scripts          map[scriptKey]*ScriptInfo
	commands         map[string]*CommandInfo
	constants        map[string]*ConstantInfo
	runtimeConstants map[string]*RuntimeConstantInfo
	variables        map[varKey]*VariableInfo
}

// New returns an empty symbol table.
func New() *Table {
	return &Table{
		scripts:          make(map[scriptKey]*ScriptInfo),
		commands:         make(map[string]*CommandInfo),
		constants:        make(map[string]*ConstantInfo),
		runtimeConstants: make(map[string]*RuntimeConstantInfo),
		variables:        make(map[varKey]*VariableInfo),
	}
}

// DefineScript registers info under (trigger, name). It is an error to
// define an already-declared key.
func (t *Table) DefineScript(info *ScriptInfo) error {
	key := scriptKey{info.Trigger, info.Name}
	if _, exists := t.scripts[key]; exists {
		return fmt.Errorf("script %s already declared", info.FullName())
	}
	t.scripts[key] = info
	return nil
}

// UndefineScript removes the (trigger, name) declaration. Idempotent.
func (t *Table) UndefineScript(trigger, name string) {
	delete(t.scripts, scriptKey{trigger, name})
}

// LookupScript returns the script declared under (trigger, name), if any.
func (t *Table) LookupScript(trigger, name string) (*ScriptInfo, bool) {
	s, ok := t.scripts[scriptKey{trigger, name}]
	return s, ok
}

// DefineCommand registers a command. It is an error to redefine a name.
func (t *Table) DefineCommand(info *CommandInfo) error {
	if _, exists := t.commands[info.Name]; exists {
		return fmt.Errorf("command %q already declared", info.Name)
	}
	t.commands[info.Name] = info
	return nil
}

// LookupCommand returns the command registered under name, if any.
func (t *Table) LookupCommand(name string) (*CommandInfo, bool) {
	c, ok := t.commands[name]
	return c, ok
}

// DefineConstant registers a compile-time constant.
func (t *Table) DefineConstant(info *ConstantInfo) error {
	if _, exists := t.constants[info.Name]; exists {
		return fmt.Errorf("constant %q already declared", info.Name)
	}
	t.constants[info.Name] = info
	return nil
}

// LookupConstant returns the constant registered under name, if any.
func (t *Table) LookupConstant(name string) (*ConstantInfo, bool) {
	c, ok := t.constants[name]
	return c, ok
}

// DefineRuntimeConstant registers a runtime-resolved constant.
func (t *Table) DefineRuntimeConstant(info *RuntimeConstantInfo) error {
	if _, exists := t.runtimeConstants[info.Name]; exists {
		return fmt.Errorf("runtime constant %q already declared", info.Name)
	}
	t.runtimeConstants[info.Name] = info
	return nil
}

// LookupRuntimeConstant returns the runtime constant registered under
// name, if any.
func (t *Table) LookupRuntimeConstant(name string) (*RuntimeConstantInfo, bool) {
	c, ok := t.runtimeConstants[name]
	return c, ok
}

// DefineVariable registers a variable under (domain, name).
func (t *Table) DefineVariable(info *VariableInfo) error {
	key := varKey{info.Domain, info.Name}
	if _, exists := t.variables[key]; exists {
		return fmt.Errorf("variable %q already declared in domain %s", info.Name, info.Domain)
	}
	t.variables[key] = info
	return nil
}

// LookupVariable returns the variable registered under (domain, name).
func (t *Table) LookupVariable(domain VarDomain, name string) (*VariableInfo, bool) {
	v, ok := t.variables[varKey{domain, name}]
	return v, ok
}

// LookupVariableAnyDomain searches PLAYER, PLAYER_BIT, CLIENT_INT and
// CLIENT_STRING in that order, used to resolve a bare `%name` reference
// whose storage domain isn't known until the symbol is found.
func (t *Table) LookupVariableAnyDomain(name string) (*VariableInfo, bool) {
	for _, d := range []VarDomain{PLAYER, PLAYER_BIT, CLIENT_INT, CLIENT_STRING} {
		if v, ok := t.LookupVariable(d, name); ok {
			return v, true
		}
	}
	return nil, false
}

// Scripts returns every currently declared script. Used by the WASM
// playground to undefine the previous buffer's scripts before recompiling.
func (t *Table) Scripts() []*ScriptInfo {
	out := make([]*ScriptInfo, 0, len(t.scripts))
	for _, s := range t.scripts {
		out = append(out, s)
	}
	return out
}
