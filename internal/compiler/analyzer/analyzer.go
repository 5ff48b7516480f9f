// Package analyzer implements semantic analysis: name/type resolution and
// signature checking over an already-parsed ast.File, annotating every
// expression with its resolved type and accumulating diagnostics rather
// than failing outright.
package analyzer

import (
	"github.com/btouchard/rs2c/internal/compiler/ast"
	"github.com/btouchard/rs2c/internal/compiler/errors"
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// Analyzer walks a file's scripts as an ast.Visitor, resolving symbols
// against table and emitting diagnostics to errs. One Analyzer instance
// analyzes one file; construct a fresh one per file.
type Analyzer struct {
	ast.BaseVisitor

	table        *symtable.Table
	errs         *errors.List
	triggerTypes map[string]types.Primitive

	current *ast.Script
	locals  map[string]types.Primitive
}

// New returns an analyzer resolving symbols against table. triggerTypes
// maps a script's trigger to the type `dynamic` resolves to for that
// trigger; a trigger absent from the map makes `dynamic` an error there.
func New(table *symtable.Table, errs *errors.List, triggerTypes map[string]types.Primitive) *Analyzer {
	return &Analyzer{table: table, errs: errs, triggerTypes: triggerTypes}
}

// AnalyzeFile runs semantic analysis over every script in f.
func (a *Analyzer) AnalyzeFile(f *ast.File) {
	f.Accept(a)
}

func (a *Analyzer) Enter(n ast.Node) bool {
	switch node := n.(type) {
	case *ast.Script:
		a.current = node
		a.locals = make(map[string]types.Primitive)
		seen := make(map[string]bool)
		for _, p := range node.Params {
			if seen[p.Name] {
				a.errorf(p.Rng, "duplicate parameter %q", p.Name)
				continue
			}
			seen[p.Name] = true
			a.locals[p.Name] = p.Type
		}
	case *ast.BlockStmt:
		a.checkUnreachable(node)
	}
	return true
}

func (a *Analyzer) Exit(n ast.Node) {
	switch node := n.(type) {
	case *ast.Script:
		a.current = nil
		a.locals = nil

	case *ast.VarDeclStmt:
		a.defineLocal(node.Type, node.Name, node.Rng)

	case *ast.VarInitStmt:
		if node.Value != nil && !assignable(node.Type, node.Value.Type()) {
			a.errorf(node.Rng, "cannot initialize %s local %q with %s", node.Type, node.Name, node.Value.Type())
		}
		a.defineLocal(node.Type, node.Name, node.Rng)

	case *ast.ReturnStmt:
		a.checkReturn(node)

	case *ast.BoolLit:
		node.Resolved = types.Scalar(types.Bool)
	case *ast.IntLit:
		node.Resolved = types.Scalar(types.Int)
	case *ast.LongLit:
		node.Resolved = types.Scalar(types.Long)
	case *ast.StringLit:
		node.Resolved = types.Scalar(types.StringType)
	case *ast.StringConcatExpr:
		node.Resolved = types.Scalar(types.StringType)
	case *ast.DynamicExpr:
		a.resolveDynamic(node)
	case *ast.LocalVarRef:
		a.resolveLocalVarRef(node)
	case *ast.VarRef:
		a.resolveVarRef(node)
	case *ast.ConstantRef:
		a.resolveConstantRef(node)
	case *ast.CallExpr:
		a.resolveCall(node)
	case *ast.BinaryExpr:
		a.resolveBinary(node)
	}
}

func (a *Analyzer) defineLocal(typ types.Primitive, name string, rng token.Range) {
	if _, exists := a.locals[name]; exists {
		a.errorf(rng, "local %q already declared", name)
		return
	}
	a.locals[name] = typ
}

func (a *Analyzer) resolveDynamic(node *ast.DynamicExpr) {
	if a.current == nil {
		return
	}
	typ, ok := a.triggerTypes[a.current.Trigger]
	if !ok {
		a.errorf(node.Rng, "dynamic has no data for trigger %q", a.current.Trigger)
		node.Resolved = types.Scalar(types.Void)
		return
	}
	node.Resolved = types.Scalar(typ)
}

func (a *Analyzer) resolveLocalVarRef(node *ast.LocalVarRef) {
	typ, ok := a.locals[node.Name]
	if !ok {
		a.errorf(node.Rng, "undeclared local $%s", node.Name)
		node.Resolved = types.Scalar(types.Void)
		return
	}
	node.Resolved = types.Scalar(typ)
}

func (a *Analyzer) resolveVarRef(node *ast.VarRef) {
	v, ok := a.table.LookupVariableAnyDomain(node.Name)
	if !ok {
		a.errorf(node.Rng, "undeclared variable %%%s", node.Name)
		node.Resolved = types.Scalar(types.Void)
		return
	}
	node.ResolvedDomain = v.Domain
	node.Resolved = types.Scalar(v.Type)
}

func (a *Analyzer) resolveConstantRef(node *ast.ConstantRef) {
	if c, ok := a.table.LookupConstant(node.Name); ok {
		node.Resolved = types.Scalar(c.Type)
		return
	}
	if c, ok := a.table.LookupRuntimeConstant(node.Name); ok {
		node.Resolved = types.Scalar(c.Type)
		return
	}
	a.errorf(node.Rng, "undeclared constant ^%s", node.Name)
	node.Resolved = types.Scalar(types.Void)
}

func (a *Analyzer) resolveCall(node *ast.CallExpr) {
	if script, ok := a.table.LookupScript("proc", node.Name); ok {
		node.IsGosub = true
		a.checkArgs(node.Rng, node.Name, node.Args, script.Params)
		node.Resolved = script.ReturnType
		return
	}
	if cmd, ok := a.table.LookupCommand(node.Name); ok {
		node.IsCommand = true
		a.checkArgs(node.Rng, node.Name, node.Args, cmd.Params)
		node.Resolved = cmd.ReturnType
		return
	}
	a.errorf(node.Rng, "undeclared symbol ~%s", node.Name)
	node.Resolved = types.Scalar(types.Void)
}

func (a *Analyzer) checkArgs(rng token.Range, name string, args []ast.Expression, params []types.Primitive) {
	if len(args) != len(params) {
		a.errorf(rng, "%s: expected %d argument(s), got %d", name, len(params), len(args))
		return
	}
	for i, arg := range args {
		if !assignable(params[i], arg.Type()) {
			a.errorf(arg.Range(), "%s: argument %d: expected %s, got %s", name, i+1, params[i], arg.Type())
		}
	}
}

func (a *Analyzer) resolveBinary(node *ast.BinaryExpr) {
	switch node.Op {
	case token.PLUS, token.MINUS, token.ASTERISK, token.SLASH:
		if !isScalar(node.Left.Type(), types.Int) || !isScalar(node.Right.Type(), types.Int) {
			a.errorf(node.Rng, "arithmetic operator %s requires int operands", node.Op)
		}
		node.Resolved = types.Scalar(types.Int)

	case token.AND, token.OR:
		if !isScalar(node.Left.Type(), types.Bool) || !isScalar(node.Right.Type(), types.Bool) {
			a.errorf(node.Rng, "logical operator %s requires bool operands", node.Op)
		}
		node.Resolved = types.Scalar(types.Bool)

	case token.EQ, token.NOT_EQ, token.LT, token.GT, token.LT_EQ, token.GT_EQ:
		if node.Left.Type().IsScalar() && node.Right.Type().IsScalar() {
			lp := node.Left.Type().Elems[0]
			rp := node.Right.Type().Elems[0]
			if lp.Domain() != rp.Domain() {
				a.errorf(node.Rng, "operator %s requires matching stack domains, got %s and %s", node.Op, lp, rp)
			}
		} else {
			a.errorf(node.Rng, "operator %s requires scalar operands", node.Op)
		}
		node.Resolved = types.Scalar(types.Bool)

	default:
		a.errorf(node.Rng, "unsupported binary operator %s", node.Op)
		node.Resolved = types.Scalar(types.Void)
	}
}

func (a *Analyzer) checkReturn(node *ast.ReturnStmt) {
	if a.current == nil {
		return
	}
	want := a.current.ReturnType()

	if len(node.Values) == 0 {
		if !want.IsVoid() {
			a.errorf(node.Rng, "return: expected %s, got no value", want)
		}
		return
	}

	got := make([]types.Primitive, 0, len(node.Values))
	for _, v := range node.Values {
		got = append(got, v.Type().Elems...)
	}
	gotType := types.Type{Elems: got}
	if !gotType.Equal(want) {
		a.errorf(node.Rng, "return: expected %s, got %s", want, gotType)
	}
}

// checkUnreachable flags the first statement following an unconditional
// return within the same block.
func (a *Analyzer) checkUnreachable(block *ast.BlockStmt) {
	seenReturn := false
	for _, stmt := range block.Stmts {
		if seenReturn {
			a.errorf(stmt.Range(), "unreachable code")
			return
		}
		if _, ok := stmt.(*ast.ReturnStmt); ok {
			seenReturn = true
		}
	}
}

func isScalar(t types.Type, p types.Primitive) bool {
	return t.IsScalar() && t.Elems[0] == p
}

// assignable reports whether a value of type got may be used where want
// is expected. RuneScript has no implicit widening in this model: the
// flattened scalar primitive must match exactly.
func assignable(want types.Primitive, got types.Type) bool {
	return got.IsScalar() && got.Elems[0] == want
}

func (a *Analyzer) errorf(rng token.Range, format string, args ...interface{}) {
	a.errs.Addf(rng, "semantic", format, args...)
}
