// Package ast defines the RuneScript AST: a closed sum type of node kinds
// plus a double-dispatch visitor framework used by semantic analysis,
// bytecode generation and dependency extraction.
package ast

import (
	"github.com/btouchard/rs2c/internal/compiler/symtable"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// Node is the base of every AST node: a source range and double-dispatch
// entry point.
type Node interface {
	Range() token.Range
	Accept(v Visitor)
}

// Visitor receives pre/post hooks for every node visited by Accept. Enter
// returning false skips the node's children (Exit is still called).
type Visitor interface {
	Enter(n Node) bool
	Exit(n Node)
}

// BaseVisitor is an embeddable no-op visitor: Enter always descends,
// Exit does nothing. Embed it and override only the hooks you need.
type BaseVisitor struct{}

func (BaseVisitor) Enter(Node) bool { return true }
func (BaseVisitor) Exit(Node)       {}

// walk calls Enter, visits children if it returned true, then calls Exit.
func walk(v Visitor, n Node, children func()) {
	if v.Enter(n) {
		children()
	}
	v.Exit(n)
}

// Statement is any node usable as a script-body statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is any node usable as a value-producing expression.
type Expression interface {
	Node
	expressionNode()
	// Type returns the expression's resolved type, set by the analyzer.
	// It is the zero Type before analysis runs.
	Type() types.Type
	SetType(t types.Type)
}

// ============ SCRIPT ============

// Param is a script parameter: a local variable declared in the header.
type Param struct {
	Name string
	Type types.Primitive
	Rng  token.Range
}

func (p *Param) Range() token.Range { return p.Rng }
func (p *Param) Accept(v Visitor)   { walk(v, p, func() {}) }

// Script is one `[trigger,name](...)(...)  stmt...` top-level declaration.
type Script struct {
	Trigger     string
	Name        string
	Params      []*Param
	ReturnTypes []types.Primitive
	Body        *BlockStmt
	Rng         token.Range
}

func (s *Script) Range() token.Range { return s.Rng }

// FullName returns the symbol table key "[trigger,name]".
func (s *Script) FullName() string {
	return "[" + s.Trigger + "," + s.Name + "]"
}

// ReturnType flattens the script's declared return types into a Type.
func (s *Script) ReturnType() types.Type {
	return types.Tuple(s.ReturnTypes...)
}

func (s *Script) Accept(v Visitor) {
	walk(v, s, func() {
		for _, p := range s.Params {
			p.Accept(v)
		}
		if s.Body != nil {
			s.Body.Accept(v)
		}
	})
}

// File is the root node for one compiled source file: every script it
// declares, in source order.
type File struct {
	Scripts []*Script
	Rng     token.Range
}

func (f *File) Range() token.Range { return f.Rng }
func (f *File) Accept(v Visitor) {
	walk(v, f, func() {
		for _, s := range f.Scripts {
			s.Accept(v)
		}
	})
}

// ============ STATEMENTS ============

// BlockStmt is a brace-delimited sequence of statements (if/while/switch
// bodies) or, at the script level, the implicit top-level body.
type BlockStmt struct {
	Stmts []Statement
	Rng   token.Range
}

func (b *BlockStmt) Range() token.Range { return b.Rng }
func (b *BlockStmt) statementNode()     {}
func (b *BlockStmt) Accept(v Visitor) {
	walk(v, b, func() {
		for _, s := range b.Stmts {
			s.Accept(v)
		}
	})
}

// IfStmt: if (cond) { then } else { else }. Else is nil when absent.
type IfStmt struct {
	Cond Expression
	Then *BlockStmt
	Else *BlockStmt
	Rng  token.Range
}

func (i *IfStmt) Range() token.Range { return i.Rng }
func (i *IfStmt) statementNode()     {}
func (i *IfStmt) Accept(v Visitor) {
	walk(v, i, func() {
		i.Cond.Accept(v)
		i.Then.Accept(v)
		if i.Else != nil {
			i.Else.Accept(v)
		}
	})
}

// WhileStmt: while (cond) { body }.
type WhileStmt struct {
	Cond Expression
	Body *BlockStmt
	Rng  token.Range
}

func (w *WhileStmt) Range() token.Range { return w.Rng }
func (w *WhileStmt) statementNode()     {}
func (w *WhileStmt) Accept(v Visitor) {
	walk(v, w, func() {
		w.Cond.Accept(v)
		w.Body.Accept(v)
	})
}

// CaseClause is one `case expr, expr: ...` or `default: ...` arm of a
// SwitchStmt.
type CaseClause struct {
	Values    []Expression
	IsDefault bool
	Body      *BlockStmt
	Rng       token.Range
}

func (c *CaseClause) Range() token.Range { return c.Rng }
func (c *CaseClause) Accept(v Visitor) {
	walk(v, c, func() {
		for _, e := range c.Values {
			e.Accept(v)
		}
		c.Body.Accept(v)
	})
}

// SwitchStmt: switch (subject) { case ...; default: ... }. Default is
// optional; at most one per switch (checked by the parser).
type SwitchStmt struct {
	Subject Expression
	Cases   []*CaseClause
	Default *CaseClause
	Rng     token.Range
}

func (s *SwitchStmt) Range() token.Range { return s.Rng }
func (s *SwitchStmt) statementNode()     {}
func (s *SwitchStmt) Accept(v Visitor) {
	walk(v, s, func() {
		s.Subject.Accept(v)
		for _, c := range s.Cases {
			c.Accept(v)
		}
		if s.Default != nil {
			s.Default.Accept(v)
		}
	})
}

// ReturnStmt: bare `return;` (Values nil) or `return(expr, ...)`.
type ReturnStmt struct {
	Values []Expression
	Rng    token.Range
}

func (r *ReturnStmt) Range() token.Range { return r.Rng }
func (r *ReturnStmt) statementNode()     {}
func (r *ReturnStmt) Accept(v Visitor) {
	walk(v, r, func() {
		for _, e := range r.Values {
			e.Accept(v)
		}
	})
}

// ExprStmt is an expression used as a statement; its pushed values are
// discarded by codegen.
type ExprStmt struct {
	Expr Expression
	Rng  token.Range
}

func (e *ExprStmt) Range() token.Range { return e.Rng }
func (e *ExprStmt) statementNode()     {}
func (e *ExprStmt) Accept(v Visitor) {
	walk(v, e, func() {
		e.Expr.Accept(v)
	})
}

// VarDeclStmt: `def_int $x;` — a local declared with no initializer.
type VarDeclStmt struct {
	Type types.Primitive
	Name string
	Rng  token.Range
}

func (d *VarDeclStmt) Range() token.Range { return d.Rng }
func (d *VarDeclStmt) statementNode()     {}
func (d *VarDeclStmt) Accept(v Visitor)   { walk(v, d, func() {}) }

// VarInitStmt: `def_int $x = expr;` — a local declared with an initializer.
type VarInitStmt struct {
	Type  types.Primitive
	Name  string
	Value Expression
	Rng   token.Range
}

func (d *VarInitStmt) Range() token.Range { return d.Rng }
func (d *VarInitStmt) statementNode()     {}
func (d *VarInitStmt) Accept(v Visitor) {
	walk(v, d, func() {
		d.Value.Accept(v)
	})
}

// ============ EXPRESSIONS ============

// BoolLit: true / false.
type BoolLit struct {
	Value    bool
	Rng      token.Range
	Resolved types.Type
}

func (b *BoolLit) Range() token.Range   { return b.Rng }
func (b *BoolLit) expressionNode()      {}
func (b *BoolLit) Type() types.Type     { return b.Resolved }
func (b *BoolLit) SetType(t types.Type) { b.Resolved = t }
func (b *BoolLit) Accept(v Visitor)     { walk(v, b, func() {}) }

// IntLit: a decimal integer literal.
type IntLit struct {
	Value    int32
	Rng      token.Range
	Resolved types.Type
}

func (i *IntLit) Range() token.Range   { return i.Rng }
func (i *IntLit) expressionNode()      {}
func (i *IntLit) Type() types.Type     { return i.Resolved }
func (i *IntLit) SetType(t types.Type) { i.Resolved = t }
func (i *IntLit) Accept(v Visitor)     { walk(v, i, func() {}) }

// LongLit: a decimal integer literal with an L/l suffix.
type LongLit struct {
	Value    int64
	Rng      token.Range
	Resolved types.Type
}

func (l *LongLit) Range() token.Range   { return l.Rng }
func (l *LongLit) expressionNode()      {}
func (l *LongLit) Type() types.Type     { return l.Resolved }
func (l *LongLit) SetType(t types.Type) { l.Resolved = t }
func (l *LongLit) Accept(v Visitor)     { walk(v, l, func() {}) }

// StringLit: a "..." literal with no interpolation.
type StringLit struct {
	Value    string
	Rng      token.Range
	Resolved types.Type
}

func (s *StringLit) Range() token.Range   { return s.Rng }
func (s *StringLit) expressionNode()      {}
func (s *StringLit) Type() types.Type     { return s.Resolved }
func (s *StringLit) SetType(t types.Type) { s.Resolved = t }
func (s *StringLit) Accept(v Visitor)     { walk(v, s, func() {}) }

// StringConcatExpr is the parser's lowering of an interpolated string
// literal into its literal and `{expr}` parts, left-to-right.
type StringConcatExpr struct {
	Parts    []Expression
	Rng      token.Range
	Resolved types.Type
}

func (s *StringConcatExpr) Range() token.Range   { return s.Rng }
func (s *StringConcatExpr) expressionNode()      {}
func (s *StringConcatExpr) Type() types.Type     { return s.Resolved }
func (s *StringConcatExpr) SetType(t types.Type) { s.Resolved = t }
func (s *StringConcatExpr) Accept(v Visitor) {
	walk(v, s, func() {
		for _, p := range s.Parts {
			p.Accept(v)
		}
	})
}

// LocalVarRef: `$name` — reference to a script-local variable.
type LocalVarRef struct {
	Name     string
	Rng      token.Range
	Resolved types.Type
}

func (l *LocalVarRef) Range() token.Range   { return l.Rng }
func (l *LocalVarRef) expressionNode()      {}
func (l *LocalVarRef) Type() types.Type     { return l.Resolved }
func (l *LocalVarRef) SetType(t types.Type) { l.Resolved = t }
func (l *LocalVarRef) Accept(v Visitor)     { walk(v, l, func() {}) }

// VarRef: `%name` — reference to a PLAYER / PLAYER_BIT / CLIENT_INT /
// CLIENT_STRING variable; the analyzer resolves which.
type VarRef struct {
	Name     string
	Rng      token.Range
	Resolved types.Type

	// ResolvedDomain is set by the analyzer once Name is found in the
	// symbol table, selecting which push/pop opcode pair codegen uses.
	ResolvedDomain symtable.VarDomain
}

func (vr *VarRef) Range() token.Range   { return vr.Rng }
func (vr *VarRef) expressionNode()      {}
func (vr *VarRef) Type() types.Type     { return vr.Resolved }
func (vr *VarRef) SetType(t types.Type) { vr.Resolved = t }
func (vr *VarRef) Accept(v Visitor)     { walk(v, vr, func() {}) }

// ConstantRef: `^name`.
type ConstantRef struct {
	Name     string
	Rng      token.Range
	Resolved types.Type
}

func (c *ConstantRef) Range() token.Range   { return c.Rng }
func (c *ConstantRef) expressionNode()      {}
func (c *ConstantRef) Type() types.Type     { return c.Resolved }
func (c *ConstantRef) SetType(t types.Type) { c.Resolved = t }
func (c *ConstantRef) Accept(v Visitor)     { walk(v, c, func() {}) }

// DynamicExpr: `dynamic` — engine-injected, trigger-contextual data whose
// type is resolved per-trigger by the analyzer.
type DynamicExpr struct {
	Rng      token.Range
	Resolved types.Type
}

func (d *DynamicExpr) Range() token.Range   { return d.Rng }
func (d *DynamicExpr) expressionNode()      {}
func (d *DynamicExpr) Type() types.Type     { return d.Resolved }
func (d *DynamicExpr) SetType(t types.Type) { d.Resolved = t }
func (d *DynamicExpr) Accept(v Visitor)     { walk(v, d, func() {}) }

// CallExpr: `~name(args...)` — ambiguous between a gosub and a command
// call until the analyzer resolves Name against the symbol table.
type CallExpr struct {
	Name     string
	Args     []Expression
	Rng      token.Range
	Resolved types.Type

	// IsGosub and IsCommand are set by the analyzer once Name is
	// resolved; exactly one is true after a successful analysis.
	IsGosub   bool
	IsCommand bool
}

func (c *CallExpr) Range() token.Range   { return c.Rng }
func (c *CallExpr) expressionNode()      {}
func (c *CallExpr) Type() types.Type     { return c.Resolved }
func (c *CallExpr) SetType(t types.Type) { c.Resolved = t }
func (c *CallExpr) Accept(v Visitor) {
	walk(v, c, func() {
		for _, a := range c.Args {
			a.Accept(v)
		}
	})
}

// BinaryExpr: arithmetic, relational or equality operator applied to two
// operands.
type BinaryExpr struct {
	Op       token.Type
	Left     Expression
	Right    Expression
	Rng      token.Range
	Resolved types.Type
}

func (b *BinaryExpr) Range() token.Range   { return b.Rng }
func (b *BinaryExpr) expressionNode()      {}
func (b *BinaryExpr) Type() types.Type     { return b.Resolved }
func (b *BinaryExpr) SetType(t types.Type) { b.Resolved = t }
func (b *BinaryExpr) Accept(v Visitor) {
	walk(v, b, func() {
		b.Left.Accept(v)
		b.Right.Accept(v)
	})
}
