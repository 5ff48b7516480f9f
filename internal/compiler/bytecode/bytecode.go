// Package bytecode defines the stack-based instruction model the
// generator emits: blocks of instructions joined by labels and branches,
// an abstract CoreOpcode remapped to a concrete runtime Opcode, and the
// per-script local slot table.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// CoreOpcode is a stable, portable instruction identifier. The generator
// never emits a CoreOpcode directly into a block; it always goes through
// an InstructionMap first, decoupling codegen from the runtime's own
// opcode numbering.
type CoreOpcode int

const (
	PUSH_INT_CONSTANT CoreOpcode = iota
	PUSH_STRING_CONSTANT
	PUSH_LONG_CONSTANT

	PUSH_INT_LOCAL
	POP_INT_LOCAL
	PUSH_STRING_LOCAL
	POP_STRING_LOCAL
	PUSH_LONG_LOCAL
	POP_LONG_LOCAL

	PUSH_VARP
	POP_VARP
	PUSH_VARP_BIT
	POP_VARP_BIT
	PUSH_VARC_INT
	POP_VARC_INT
	PUSH_VARC_STRING
	POP_VARC_STRING

	POP_INT_DISCARD
	POP_STRING_DISCARD
	POP_LONG_DISCARD

	GOSUB_WITH_PARAMS
	JOIN_STRING
	DYNAMIC_PUSH

	BRANCH
	BRANCH_IF_TRUE
	BRANCH_EQUALS
	BRANCH_NOT_EQUALS
	BRANCH_LESS_THAN
	BRANCH_GREATER_THAN
	BRANCH_LESS_THAN_OR_EQUALS
	BRANCH_GREATER_THAN_OR_EQUALS

	RETURN

	// Arithmetic and comparison-as-value opcodes. The branch-opcode
	// forms above (BRANCH_EQUALS etc.) are used only when a comparison
	// is the direct condition of an if/while; a comparison used as an
	// ordinary value (assigned, passed as an argument) instead pushes
	// its bool result via these.
	ADD
	SUB
	MUL
	DIV
	CMP_EQ
	CMP_NOT_EQ
	CMP_LESS_THAN
	CMP_GREATER_THAN
	CMP_LESS_THAN_OR_EQUALS
	CMP_GREATER_THAN_OR_EQUALS
	LOGICAL_AND
	LOGICAL_OR

	// COMMAND marks an instruction whose concrete Opcode is a command's
	// own registered opcode rather than one of the core identifiers
	// above; Operand carries the invocation's alternative-form flag (0
	// or 1).
	COMMAND
)

var coreNames = map[CoreOpcode]string{
	PUSH_INT_CONSTANT:          "PUSH_INT_CONSTANT",
	PUSH_STRING_CONSTANT:       "PUSH_STRING_CONSTANT",
	PUSH_LONG_CONSTANT:         "PUSH_LONG_CONSTANT",
	PUSH_INT_LOCAL:             "PUSH_INT_LOCAL",
	POP_INT_LOCAL:              "POP_INT_LOCAL",
	PUSH_STRING_LOCAL:          "PUSH_STRING_LOCAL",
	POP_STRING_LOCAL:           "POP_STRING_LOCAL",
	PUSH_LONG_LOCAL:            "PUSH_LONG_LOCAL",
	POP_LONG_LOCAL:             "POP_LONG_LOCAL",
	PUSH_VARP:                  "PUSH_VARP",
	POP_VARP:                   "POP_VARP",
	PUSH_VARP_BIT:              "PUSH_VARP_BIT",
	POP_VARP_BIT:               "POP_VARP_BIT",
	PUSH_VARC_INT:              "PUSH_VARC_INT",
	POP_VARC_INT:               "POP_VARC_INT",
	PUSH_VARC_STRING:           "PUSH_VARC_STRING",
	POP_VARC_STRING:            "POP_VARC_STRING",
	POP_INT_DISCARD:            "POP_INT_DISCARD",
	POP_STRING_DISCARD:         "POP_STRING_DISCARD",
	POP_LONG_DISCARD:           "POP_LONG_DISCARD",
	GOSUB_WITH_PARAMS:          "GOSUB_WITH_PARAMS",
	JOIN_STRING:                "JOIN_STRING",
	DYNAMIC_PUSH:               "DYNAMIC_PUSH",
	BRANCH:                     "BRANCH",
	BRANCH_IF_TRUE:             "BRANCH_IF_TRUE",
	BRANCH_EQUALS:              "BRANCH_EQUALS",
	BRANCH_NOT_EQUALS:          "BRANCH_NOT_EQUALS",
	BRANCH_LESS_THAN:           "BRANCH_LESS_THAN",
	BRANCH_GREATER_THAN:        "BRANCH_GREATER_THAN",
	BRANCH_LESS_THAN_OR_EQUALS: "BRANCH_LESS_THAN_OR_EQUALS",
	BRANCH_GREATER_THAN_OR_EQUALS: "BRANCH_GREATER_THAN_OR_EQUALS",
	RETURN:                        "RETURN",
	ADD:                           "ADD",
	SUB:                           "SUB",
	MUL:                           "MUL",
	DIV:                           "DIV",
	CMP_EQ:                        "CMP_EQ",
	CMP_NOT_EQ:                    "CMP_NOT_EQ",
	CMP_LESS_THAN:                 "CMP_LESS_THAN",
	CMP_GREATER_THAN:              "CMP_GREATER_THAN",
	CMP_LESS_THAN_OR_EQUALS:       "CMP_LESS_THAN_OR_EQUALS",
	CMP_GREATER_THAN_OR_EQUALS:    "CMP_GREATER_THAN_OR_EQUALS",
	LOGICAL_AND:                   "LOGICAL_AND",
	LOGICAL_OR:                    "LOGICAL_OR",
	COMMAND:                       "COMMAND",
}

func (c CoreOpcode) String() string {
	if s, ok := coreNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CoreOpcode(%d)", int(c))
}

// Opcode is the concrete, runtime-numbered instruction identifier an
// InstructionMap produces from a CoreOpcode.
type Opcode int

// InstructionMap remaps an abstract CoreOpcode (plus, for COMMAND, the
// command's own registered opcode) to the concrete Opcode a runtime
// expects on the wire.
type InstructionMap interface {
	Remap(core CoreOpcode, commandOpcode int) Opcode
}

// IdentityInstructionMap remaps every CoreOpcode to its own ordinal value
// and a COMMAND to the command's registered opcode unchanged. It is the
// default map used when a runtime hasn't supplied its own numbering.
type IdentityInstructionMap struct{}

func (IdentityInstructionMap) Remap(core CoreOpcode, commandOpcode int) Opcode {
	if core == COMMAND {
		return Opcode(commandOpcode)
	}
	return Opcode(core)
}

// Label names a Block as a branch target.
type Label string

// Instruction is one opcode plus its single operand: an int, long,
// string, *symtable.ScriptInfo, *symtable.VariableInfo, Label or local
// slot index, depending on the opcode.
type Instruction struct {
	Opcode  Opcode
	Operand interface{}
}

// Block is a sequence of instructions under one Label. Every control-flow
// join gets its own block; a block must end in a branch or return
// instruction — codegen never relies on block order implying fall-through.
type Block struct {
	Label        Label
	Instructions []Instruction
}

// Emit appends an instruction to the block.
func (b *Block) Emit(op Opcode, operand interface{}) {
	b.Instructions = append(b.Instructions, Instruction{Opcode: op, Operand: operand})
}

// Script is the bytecode for one compiled AST script: its ordered blocks,
// beginning with the "entry" block, plus the local slot table used to
// resolve $name references to slot indices.
type Script struct {
	Info   *symtable.ScriptInfo
	Blocks []*Block
	Locals *LocalMap
}

// FindBlock returns the block with the given label, if present.
func (s *Script) FindBlock(label Label) (*Block, bool) {
	for _, b := range s.Blocks {
		if b.Label == label {
			return b, true
		}
	}
	return nil, false
}

// LocalMap is a per-script table of local slots, partitioned by stack
// domain so int/string/long locals each get their own index space.
type LocalMap struct {
	slots  map[types.Domain]map[string]int
	counts map[types.Domain]int
}

// NewLocalMap returns an empty local slot table.
func NewLocalMap() *LocalMap {
	return &LocalMap{
		slots:  make(map[types.Domain]map[string]int),
		counts: make(map[types.Domain]int),
	}
}

// Define assigns name the next free slot in domain, or returns its
// existing slot if already defined (script parameters and body
// declarations share one namespace per domain).
func (m *LocalMap) Define(domain types.Domain, name string) int {
	if m.slots[domain] == nil {
		m.slots[domain] = make(map[string]int)
	}
	if slot, ok := m.slots[domain][name]; ok {
		return slot
	}
	slot := m.counts[domain]
	m.slots[domain][name] = slot
	m.counts[domain]++
	return slot
}

// Lookup returns name's slot in domain, if defined.
func (m *LocalMap) Lookup(domain types.Domain, name string) (int, bool) {
	slots, ok := m.slots[domain]
	if !ok {
		return 0, false
	}
	slot, ok := slots[name]
	return slot, ok
}

// Count returns the number of locals defined in domain.
func (m *LocalMap) Count(domain types.Domain) int {
	return m.counts[domain]
}

// Dump renders a script's blocks as a textual disassembly, one
// instruction per line, for the playground preview and `rs2c preview`.
// It is not a wire format — only the operand's %v rendering is stable.
func (s *Script) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Info.FullName())
	for _, blk := range s.Blocks {
		fmt.Fprintf(&b, "%s:\n", blk.Label)
		for _, ins := range blk.Instructions {
			fmt.Fprintf(&b, "    %-28s %s\n", opcodeName(ins.Opcode), operandString(ins.Operand))
		}
	}
	return b.String()
}

// opcodeName renders an opcode for the disassembly. Both Dump callers
// compile through IdentityInstructionMap, where a concrete Opcode is its
// CoreOpcode ordinal, so core mnemonics resolve directly; anything
// outside the core range (a command's own opcode under the identity map,
// or a runtime-renumbered instruction) falls back to its number.
func opcodeName(op Opcode) string {
	if _, ok := coreNames[CoreOpcode(op)]; ok {
		return CoreOpcode(op).String()
	}
	return fmt.Sprintf("op%d", int(op))
}

func operandString(operand interface{}) string {
	switch v := operand.(type) {
	case *symtable.ScriptInfo:
		return v.FullName()
	case *symtable.VariableInfo:
		return v.Name
	case Label:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
