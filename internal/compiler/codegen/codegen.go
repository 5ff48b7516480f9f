// Package codegen lowers an analyzed ast.Script into bytecode.Script:
// blocks of instructions joined by labels and explicit branches, with a
// context pointer tracking which block recursive emission appends into.
package codegen

import (
	"fmt"

	"github.com/btouchard/rs2c/internal/compiler/ast"
	"github.com/btouchard/rs2c/internal/compiler/bytecode"
	"github.com/btouchard/rs2c/internal/compiler/errors"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// Generate lowers script into bytecode, remapping every CoreOpcode
// through instrMap before it lands in a block. script must already be
// analyzed (every expression carries its resolved Type).
func Generate(script *ast.Script, table *symtable.Table, instrMap bytecode.InstructionMap, errs *errors.List) *bytecode.Script {
	info := &symtable.ScriptInfo{
		Trigger:    script.Trigger,
		Name:       script.Name,
		Params:     paramTypes(script.Params),
		ReturnType: script.ReturnType(),
	}

	locals := bytecode.NewLocalMap()
	for _, p := range script.Params {
		locals.Define(p.Type.Domain(), p.Name)
	}

	bc := &bytecode.Script{Info: info, Locals: locals}
	g := &scriptGen{
		table:    table,
		instrMap: instrMap,
		errs:     errs,
		script:   bc,
	}

	entry := g.newBlock("entry")
	g.cur = entry
	g.lowerBlock(script.Body)
	g.terminate()
	return bc
}

func paramTypes(params []*ast.Param) []types.Primitive {
	out := make([]types.Primitive, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

// scriptGen holds the state for lowering one script: the block currently
// being appended into (the generator's "context"), and a monotonically
// increasing counter that keeps generated labels unique within the
// script.
type scriptGen struct {
	table    *symtable.Table
	instrMap bytecode.InstructionMap
	errs     *errors.List
	script   *bytecode.Script

	cur      *bytecode.Block
	labelSeq int
}

func (g *scriptGen) newBlock(label bytecode.Label) *bytecode.Block {
	b := &bytecode.Block{Label: label}
	g.script.Blocks = append(g.script.Blocks, b)
	return b
}

func (g *scriptGen) newLabel(prefix string) bytecode.Label {
	g.labelSeq++
	return bytecode.Label(fmt.Sprintf("%s_%d", prefix, g.labelSeq))
}

func (g *scriptGen) emit(core bytecode.CoreOpcode, operand interface{}) {
	g.cur.Emit(g.instrMap.Remap(core, 0), operand)
}

func (g *scriptGen) emitCommand(cmd *symtable.CommandInfo, operand interface{}) {
	g.cur.Emit(g.instrMap.Remap(bytecode.COMMAND, cmd.Opcode), operand)
}

// terminate closes the final block: a block must end in a branch or
// return, so a body that falls off the end gets an implicit RETURN.
func (g *scriptGen) terminate() {
	ret := g.instrMap.Remap(bytecode.RETURN, 0)
	if n := len(g.cur.Instructions); n > 0 && g.cur.Instructions[n-1].Opcode == ret {
		return
	}
	g.emit(bytecode.RETURN, nil)
}

func (g *scriptGen) invariant(format string, args ...interface{}) {
	g.errs.Addf(token.Range{}, "codegen", "invariant violation: "+format, args...)
}

// ============ statements ============

func (g *scriptGen) lowerBlock(b *ast.BlockStmt) {
	for _, s := range b.Stmts {
		g.lowerStmt(s)
	}
}

func (g *scriptGen) lowerStmt(s ast.Statement) {
	switch stmt := s.(type) {
	case *ast.IfStmt:
		g.lowerIf(stmt)
	case *ast.WhileStmt:
		g.lowerWhile(stmt)
	case *ast.SwitchStmt:
		g.lowerSwitch(stmt)
	case *ast.ReturnStmt:
		g.lowerReturn(stmt)
	case *ast.ExprStmt:
		g.lowerExprStmt(stmt)
	case *ast.VarDeclStmt:
		g.script.Locals.Define(stmt.Type.Domain(), stmt.Name)
	case *ast.VarInitStmt:
		g.lowerVarInit(stmt)
	case *ast.BlockStmt:
		g.lowerBlock(stmt)
	default:
		g.invariant("unsupported statement %T", s)
	}
}

// lowerIf implements the if-statement lowering algorithm: labels
// if_true/if_else(optional)/if_end, a condition lowered into the source
// block, then true/false branches each bound to their own block and
// joined at if_end.
func (g *scriptGen) lowerIf(stmt *ast.IfStmt) {
	trueLabel := g.newLabel("if_true")
	hasElse := stmt.Else != nil
	var elseLabel bytecode.Label
	if hasElse {
		elseLabel = g.newLabel("if_else")
	}
	endLabel := g.newLabel("if_end")

	g.lowerCondition(stmt.Cond, trueLabel)
	if hasElse {
		g.emit(bytecode.BRANCH, elseLabel)
	} else {
		g.emit(bytecode.BRANCH, endLabel)
	}

	g.cur = g.newBlock(trueLabel)
	g.lowerBlock(stmt.Then)
	g.emit(bytecode.BRANCH, endLabel)

	if hasElse {
		g.cur = g.newBlock(elseLabel)
		g.lowerBlock(stmt.Else)
		g.emit(bytecode.BRANCH, endLabel)
	}

	g.cur = g.newBlock(endLabel)
}

// lowerWhile is analogous to lowerIf: the condition is re-evaluated in
// its own block on every iteration so the loop can branch straight back
// to it from the body.
func (g *scriptGen) lowerWhile(stmt *ast.WhileStmt) {
	condLabel := g.newLabel("while_cond")
	bodyLabel := g.newLabel("while_body")
	endLabel := g.newLabel("while_end")

	g.emit(bytecode.BRANCH, condLabel)

	g.cur = g.newBlock(condLabel)
	g.lowerCondition(stmt.Cond, bodyLabel)
	g.emit(bytecode.BRANCH, endLabel)

	g.cur = g.newBlock(bodyLabel)
	g.lowerBlock(stmt.Body)
	g.emit(bytecode.BRANCH, condLabel)

	g.cur = g.newBlock(endLabel)
}

// lowerSwitch evaluates the subject once into a synthetic local, then
// compares it against each case value in source order; the default case
// (if any) is optional and lowers to its own block like every other case.
func (g *scriptGen) lowerSwitch(stmt *ast.SwitchStmt) {
	domain := scalarDomain(stmt.Subject.Type())
	subjName := fmt.Sprintf("$switch_subject_%d", g.labelSeq+1)
	slot := g.script.Locals.Define(domain, subjName)

	g.lowerExpr(stmt.Subject)
	g.emit(popLocalOpcode(domain), slot)

	endLabel := g.newLabel("switch_end")
	var defaultLabel bytecode.Label
	if stmt.Default != nil {
		defaultLabel = g.newLabel("switch_default")
	}

	caseLabels := make([]bytecode.Label, len(stmt.Cases))
	for i, c := range stmt.Cases {
		caseLabels[i] = g.newLabel("switch_case")
		for _, v := range c.Values {
			g.emit(pushLocalOpcode(domain), slot)
			g.lowerExpr(v)
			g.emit(bytecode.CMP_EQ, nil)
			g.emit(bytecode.BRANCH_IF_TRUE, caseLabels[i])
		}
	}
	if stmt.Default != nil {
		g.emit(bytecode.BRANCH, defaultLabel)
	} else {
		g.emit(bytecode.BRANCH, endLabel)
	}

	for i, c := range stmt.Cases {
		g.cur = g.newBlock(caseLabels[i])
		g.lowerBlock(c.Body)
		g.emit(bytecode.BRANCH, endLabel)
	}
	if stmt.Default != nil {
		g.cur = g.newBlock(defaultLabel)
		g.lowerBlock(stmt.Default.Body)
		g.emit(bytecode.BRANCH, endLabel)
	}

	g.cur = g.newBlock(endLabel)
}

func (g *scriptGen) lowerReturn(stmt *ast.ReturnStmt) {
	for _, v := range stmt.Values {
		g.lowerExpr(v)
	}
	g.emit(bytecode.RETURN, nil)
}

// lowerExprStmt discards the values an expression statement pushes: one
// POP_*_DISCARD per flattened element of the expression's type, grouped
// by stack domain.
func (g *scriptGen) lowerExprStmt(stmt *ast.ExprStmt) {
	g.lowerExpr(stmt.Expr)
	counts := stmt.Expr.Type().DomainCounts()
	for i := 0; i < counts[types.INT]; i++ {
		g.emit(bytecode.POP_INT_DISCARD, nil)
	}
	for i := 0; i < counts[types.STRING]; i++ {
		g.emit(bytecode.POP_STRING_DISCARD, nil)
	}
	for i := 0; i < counts[types.LONG]; i++ {
		g.emit(bytecode.POP_LONG_DISCARD, nil)
	}
}

func (g *scriptGen) lowerVarInit(stmt *ast.VarInitStmt) {
	slot := g.script.Locals.Define(stmt.Type.Domain(), stmt.Name)
	g.lowerExpr(stmt.Value)
	g.emit(popLocalOpcode(stmt.Type.Domain()), slot)
}

// lowerCondition lowers cond for use as a branch decision: a direct
// =, <, >, <= or >= comparison becomes its own branch opcode against
// trueLabel; anything else (including !=) is lowered as a scalar bool
// value followed by BRANCH_IF_TRUE.
func (g *scriptGen) lowerCondition(cond ast.Expression, trueLabel bytecode.Label) {
	if be, ok := cond.(*ast.BinaryExpr); ok {
		if branchOp, ok := directBranchOpcode(be.Op); ok {
			g.lowerExpr(be.Left)
			g.lowerExpr(be.Right)
			g.emit(branchOp, trueLabel)
			return
		}
	}
	g.lowerExpr(cond)
	g.emit(bytecode.BRANCH_IF_TRUE, trueLabel)
}

func directBranchOpcode(op token.Type) (bytecode.CoreOpcode, bool) {
	switch op {
	case token.EQ:
		return bytecode.BRANCH_EQUALS, true
	case token.LT:
		return bytecode.BRANCH_LESS_THAN, true
	case token.GT:
		return bytecode.BRANCH_GREATER_THAN, true
	case token.LT_EQ:
		return bytecode.BRANCH_LESS_THAN_OR_EQUALS, true
	case token.GT_EQ:
		return bytecode.BRANCH_GREATER_THAN_OR_EQUALS, true
	default:
		return 0, false
	}
}

// ============ expressions ============

func (g *scriptGen) lowerExpr(e ast.Expression) {
	switch node := e.(type) {
	case *ast.IntLit:
		g.emit(bytecode.PUSH_INT_CONSTANT, node.Value)
	case *ast.LongLit:
		g.emit(bytecode.PUSH_LONG_CONSTANT, node.Value)
	case *ast.StringLit:
		g.emit(bytecode.PUSH_STRING_CONSTANT, node.Value)
	case *ast.BoolLit:
		g.emit(bytecode.PUSH_INT_CONSTANT, boolAsInt(node.Value))
	case *ast.StringConcatExpr:
		for _, p := range node.Parts {
			g.lowerExpr(p)
		}
		g.emit(bytecode.JOIN_STRING, int32(len(node.Parts)))
	case *ast.LocalVarRef:
		g.lowerLocalVarRef(node)
	case *ast.VarRef:
		g.lowerVarRef(node)
	case *ast.ConstantRef:
		g.lowerConstantRef(node)
	case *ast.DynamicExpr:
		g.emit(bytecode.DYNAMIC_PUSH, nil)
	case *ast.CallExpr:
		g.lowerCall(node)
	case *ast.BinaryExpr:
		g.lowerBinary(node)
	default:
		g.invariant("unsupported expression %T", e)
	}
}

func boolAsInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (g *scriptGen) lowerLocalVarRef(node *ast.LocalVarRef) {
	domain := scalarDomain(node.Resolved)
	slot, ok := g.script.Locals.Lookup(domain, node.Name)
	if !ok {
		g.invariant("local $%s not defined in domain %s", node.Name, domain)
		return
	}
	g.emit(pushLocalOpcode(domain), slot)
}

func (g *scriptGen) lowerVarRef(node *ast.VarRef) {
	v, ok := g.table.LookupVariableAnyDomain(node.Name)
	if !ok {
		g.invariant("variable %%%s not declared", node.Name)
		return
	}
	g.emit(varPushOpcode(node.ResolvedDomain), v)
}

func (g *scriptGen) lowerConstantRef(node *ast.ConstantRef) {
	if c, ok := g.table.LookupConstant(node.Name); ok {
		g.emitConstantLiteral(c)
		return
	}
	if _, ok := g.table.LookupRuntimeConstant(node.Name); ok {
		g.emit(bytecode.DYNAMIC_PUSH, node.Name)
		return
	}
	g.invariant("constant ^%s not declared", node.Name)
}

func (g *scriptGen) emitConstantLiteral(c *symtable.ConstantInfo) {
	switch c.Type.Domain() {
	case types.STRING:
		g.emit(bytecode.PUSH_STRING_CONSTANT, c.Value)
	case types.LONG:
		g.emit(bytecode.PUSH_LONG_CONSTANT, c.Value)
	default:
		g.emit(bytecode.PUSH_INT_CONSTANT, c.Value)
	}
}

// lowerCall lowers a gosub or command invocation: arguments left-to-right,
// then GOSUB_WITH_PARAMS or the command's own opcode with its
// alternative-form flag as operand.
func (g *scriptGen) lowerCall(node *ast.CallExpr) {
	for _, a := range node.Args {
		g.lowerExpr(a)
	}

	switch {
	case node.IsGosub:
		info, ok := g.table.LookupScript("proc", node.Name)
		if !ok {
			g.invariant("gosub target %q not declared", node.Name)
			return
		}
		g.emit(bytecode.GOSUB_WITH_PARAMS, info)

	case node.IsCommand:
		cmd, ok := g.table.LookupCommand(node.Name)
		if !ok {
			g.invariant("command %q not declared", node.Name)
			return
		}
		alt := int32(0)
		if cmd.Alternative {
			alt = 1
		}
		g.emitCommand(cmd, alt)

	default:
		g.invariant("call %q resolved to neither gosub nor command", node.Name)
	}
}

func (g *scriptGen) lowerBinary(node *ast.BinaryExpr) {
	g.lowerExpr(node.Left)
	g.lowerExpr(node.Right)

	switch node.Op {
	case token.PLUS:
		g.emit(bytecode.ADD, nil)
	case token.MINUS:
		g.emit(bytecode.SUB, nil)
	case token.ASTERISK:
		g.emit(bytecode.MUL, nil)
	case token.SLASH:
		g.emit(bytecode.DIV, nil)
	case token.AND:
		g.emit(bytecode.LOGICAL_AND, nil)
	case token.OR:
		g.emit(bytecode.LOGICAL_OR, nil)
	case token.EQ:
		g.emit(bytecode.CMP_EQ, nil)
	case token.NOT_EQ:
		g.emit(bytecode.CMP_NOT_EQ, nil)
	case token.LT:
		g.emit(bytecode.CMP_LESS_THAN, nil)
	case token.GT:
		g.emit(bytecode.CMP_GREATER_THAN, nil)
	case token.LT_EQ:
		g.emit(bytecode.CMP_LESS_THAN_OR_EQUALS, nil)
	case token.GT_EQ:
		g.emit(bytecode.CMP_GREATER_THAN_OR_EQUALS, nil)
	default:
		g.invariant("unsupported binary operator %s", node.Op)
	}
}

// ============ opcode selection ============

func scalarDomain(t types.Type) types.Domain {
	if !t.IsScalar() {
		return types.INT
	}
	return t.Elems[0].Domain()
}

func pushLocalOpcode(d types.Domain) bytecode.CoreOpcode {
	switch d {
	case types.STRING:
		return bytecode.PUSH_STRING_LOCAL
	case types.LONG:
		return bytecode.PUSH_LONG_LOCAL
	default:
		return bytecode.PUSH_INT_LOCAL
	}
}

func popLocalOpcode(d types.Domain) bytecode.CoreOpcode {
	switch d {
	case types.STRING:
		return bytecode.POP_STRING_LOCAL
	case types.LONG:
		return bytecode.POP_LONG_LOCAL
	default:
		return bytecode.POP_INT_LOCAL
	}
}

func varPushOpcode(d symtable.VarDomain) bytecode.CoreOpcode {
	switch d {
	case symtable.PLAYER:
		return bytecode.PUSH_VARP
	case symtable.PLAYER_BIT:
		return bytecode.PUSH_VARP_BIT
	case symtable.CLIENT_INT:
		return bytecode.PUSH_VARC_INT
	case symtable.CLIENT_STRING:
		return bytecode.PUSH_VARC_STRING
	default:
		return bytecode.PUSH_VARP
	}
}
