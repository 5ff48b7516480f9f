// Package parser implements a recursive-descent parser over the token
// stream, using a Pratt (precedence-climbing) expression parser driven by
// prefix/infix function maps.
package parser

import (
	"strconv"
	"strings"

	"github.com/btouchard/rs2c/internal/compiler/ast"
	"github.com/btouchard/rs2c/internal/compiler/errors"
	"github.com/btouchard/rs2c/internal/compiler/lexer"
	"github.com/btouchard/rs2c/internal/compiler/token"
	"github.com/btouchard/rs2c/internal/compiler/types"
)

// Precedence levels for the Pratt expression parser.
const (
	_ int = iota
	LOWEST
	OR          // ||
	AND         // &&
	EQUALS      // == !=
	LESSGREATER // < > <= >=
	SUM         // + -
	PRODUCT     // * /
)

var precedences = map[token.Type]int{
	token.OR:       OR,
	token.AND:      AND,
	token.ASSIGN:   EQUALS,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.GT:       LESSGREATER,
	token.LT_EQ:    LESSGREATER,
	token.GT_EQ:    LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
}

type prefixParseFn func() ast.Expression
type infixParseFn func(ast.Expression) ast.Expression

// Parser turns one file's token stream into an ast.File. Parse errors are
// appended to the shared errors.List and parsing continues; it never
// panics on malformed input. A malformed script header skips ahead to the
// next '['. A malformed statement is not skipped to a statement boundary:
// parsing resumes at the token after the one where the error was found, so
// one bad statement can produce several diagnostics.
type Parser struct {
	l    *lexer.Lexer
	errs *errors.List

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New returns a parser reading from l, appending diagnostics to errs.
func New(l *lexer.Lexer, errs *errors.List) *Parser {
	p := &Parser{l: l, errs: errs}

	p.prefixParseFns = map[token.Type]prefixParseFn{
		token.INT:       p.parseIntLiteral,
		token.LONG:      p.parseLongLiteral,
		token.STRING:    p.parseStringLiteral,
		token.TRUE:      p.parseBoolLiteral,
		token.FALSE:     p.parseBoolLiteral,
		token.LOCAL_VAR: p.parseLocalVarRef,
		token.VAR:       p.parseVarRef,
		token.CONSTANT:  p.parseConstantRef,
		token.CALL_NAME: p.parseCallExpr,
		token.DYNAMIC:   p.parseDynamicExpr,
		token.LPAREN:    p.parseGroupedExpr,
	}

	p.infixParseFns = map[token.Type]infixParseFn{
		token.PLUS:     p.parseBinaryExpr,
		token.MINUS:    p.parseBinaryExpr,
		token.ASTERISK: p.parseBinaryExpr,
		token.SLASH:    p.parseBinaryExpr,
		token.ASSIGN:   p.parseBinaryExpr,
		token.EQ:       p.parseBinaryExpr,
		token.NOT_EQ:   p.parseBinaryExpr,
		token.LT:       p.parseBinaryExpr,
		token.GT:       p.parseBinaryExpr,
		token.LT_EQ:    p.parseBinaryExpr,
		token.GT_EQ:    p.parseBinaryExpr,
		token.AND:      p.parseBinaryExpr,
		token.OR:       p.parseBinaryExpr,
	}

	p.nextToken()
	p.nextToken()
	return p
}

// ParseFile parses every `[trigger,name](...)(...)  stmts` script declared
// at top level until EOF.
func (p *Parser) ParseFile() *ast.File {
	start := p.curToken.Range
	file := &ast.File{}

	for p.curToken.Type != token.EOF {
		if p.curToken.Type != token.LBRACKET {
			p.error("expected '[' to begin a script declaration, got " + string(p.curToken.Type))
			p.resyncToNextScript()
			continue
		}
		if s := p.parseScript(); s != nil {
			file.Scripts = append(file.Scripts, s)
		}
	}

	file.Rng = token.Range{Start: start.Start, End: p.curToken.Range.End}
	return file
}

// resyncToNextScript advances past tokens until the next top-level '[' or
// EOF, recovering from a malformed script header.
func (p *Parser) resyncToNextScript() {
	for p.curToken.Type != token.LBRACKET && p.curToken.Type != token.EOF {
		p.nextToken()
	}
}

func (p *Parser) parseScript() *ast.Script {
	start := p.curToken.Range.Start

	if !p.expectPeek(token.IDENT) {
		p.resyncToNextScript()
		return nil
	}
	trigger := p.curToken.Lit

	if !p.expectPeek(token.COMMA) {
		p.resyncToNextScript()
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		p.resyncToNextScript()
		return nil
	}
	name := p.curToken.Lit

	if !p.expectPeek(token.RBRACKET) {
		p.resyncToNextScript()
		return nil
	}

	if !p.expectPeek(token.LPAREN) {
		p.resyncToNextScript()
		return nil
	}
	params := p.parseParamList()

	if !p.expectPeek(token.LPAREN) {
		p.resyncToNextScript()
		return nil
	}
	returnTypes := p.parseTypeList()

	body := p.parseScriptBody()

	return &ast.Script{
		Trigger:     trigger,
		Name:        name,
		Params:      params,
		ReturnTypes: returnTypes,
		Body:        body,
		Rng:         token.Range{Start: start, End: body.Range().End},
	}
}

func (p *Parser) parseParamList() []*ast.Param {
	var params []*ast.Param
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}

	p.nextToken()
	if param := p.parseParam(); param != nil {
		params = append(params, param)
	}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		if param := p.parseParam(); param != nil {
			params = append(params, param)
		}
	}

	if !p.expectPeek(token.RPAREN) {
		p.resyncToNextScript()
	}
	return params
}

func (p *Parser) parseParam() *ast.Param {
	start := p.curToken.Range.Start
	if p.curToken.Type != token.IDENT {
		p.error("expected parameter type, got " + string(p.curToken.Type))
		return nil
	}
	typ, ok := types.Lookup(p.curToken.Lit)
	if !ok {
		p.error("unknown type " + p.curToken.Lit)
	}
	if !p.expectPeek(token.LOCAL_VAR) {
		return nil
	}
	return &ast.Param{
		Name: p.curToken.Lit,
		Type: typ,
		Rng:  token.Range{Start: start, End: p.curToken.Range.End},
	}
}

func (p *Parser) parseTypeList() []types.Primitive {
	var list []types.Primitive
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseTypeName())
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseTypeName())
	}

	if !p.expectPeek(token.RPAREN) {
		p.resyncToNextScript()
	}
	return list
}

func (p *Parser) parseTypeName() types.Primitive {
	if p.curToken.Type != token.IDENT {
		p.error("expected type name, got " + string(p.curToken.Type))
		return types.Void
	}
	typ, ok := types.Lookup(p.curToken.Lit)
	if !ok {
		p.error("unknown type " + p.curToken.Lit)
	}
	return typ
}

// parseScriptBody parses every statement up to the next top-level '[' or
// EOF; there is no enclosing brace for the script body itself.
func (p *Parser) parseScriptBody() *ast.BlockStmt {
	start := p.peekToken.Range.Start
	block := &ast.BlockStmt{}
	p.nextToken()

	for p.curToken.Type != token.LBRACKET && p.curToken.Type != token.EOF {
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		p.nextToken()
	}

	block.Rng = token.Range{Start: start, End: p.curToken.Range.Start}
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.SWITCH:
		return p.parseSwitchStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.DEF_INT, token.DEF_LONG, token.DEF_STRING, token.DEF_BOOL:
		return p.parseVarDeclStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.curToken.Range.Start
	if !p.curTokenIs(token.LBRACE) {
		p.error("expected '{', got " + string(p.curToken.Type))
		return &ast.BlockStmt{}
	}
	p.nextToken()

	block := &ast.BlockStmt{}
	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		p.nextToken()
	}
	block.Rng = token.Range{Start: start, End: p.curToken.Range.End}
	return block
}

func (p *Parser) parseIfStmt() ast.Statement {
	start := p.curToken.Range.Start
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	then := p.parseBlock()

	stmt := &ast.IfStmt{Cond: cond, Then: then}
	end := then.Range().End

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			stmt.Rng = token.Range{Start: start, End: end}
			return stmt
		}
		stmt.Else = p.parseBlock()
		end = stmt.Else.Range().End
	}
	stmt.Rng = token.Range{Start: start, End: end}
	return stmt
}

func (p *Parser) parseWhileStmt() ast.Statement {
	start := p.curToken.Range.Start
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	return &ast.WhileStmt{
		Cond: cond,
		Body: body,
		Rng:  token.Range{Start: start, End: body.Range().End},
	}
}

func (p *Parser) parseSwitchStmt() ast.Statement {
	start := p.curToken.Range.Start
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	subject := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	stmt := &ast.SwitchStmt{Subject: subject}
	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		switch p.curToken.Type {
		case token.CASE:
			clause := p.parseCaseClause(false)
			if clause != nil {
				stmt.Cases = append(stmt.Cases, clause)
			}
		case token.DEFAULT:
			clause := p.parseCaseClause(true)
			if clause != nil {
				if stmt.Default != nil {
					p.error("switch may have at most one default case")
				} else {
					stmt.Default = clause
				}
			}
		default:
			p.error("expected 'case' or 'default', got " + string(p.curToken.Type))
			p.nextToken()
		}
	}
	stmt.Rng = token.Range{Start: start, End: p.curToken.Range.End}
	return stmt
}

func (p *Parser) parseCaseClause(isDefault bool) *ast.CaseClause {
	start := p.curToken.Range.Start
	clause := &ast.CaseClause{IsDefault: isDefault}

	if !isDefault {
		p.nextToken()
		clause.Values = append(clause.Values, p.parseExpression(LOWEST))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			clause.Values = append(clause.Values, p.parseExpression(LOWEST))
		}
	}

	if !p.expectPeek(token.COLON) {
		return nil
	}
	p.nextToken()

	body := &ast.BlockStmt{}
	for !p.curTokenIs(token.CASE) && !p.curTokenIs(token.DEFAULT) &&
		!p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			body.Stmts = append(body.Stmts, stmt)
		}
		p.nextToken()
	}
	clause.Body = body
	clause.Rng = token.Range{Start: start, End: p.curToken.Range.Start}
	return clause
}

func (p *Parser) parseReturnStmt() ast.Statement {
	start := p.curToken.Range.Start
	stmt := &ast.ReturnStmt{}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Rng = token.Range{Start: start, End: p.curToken.Range.End}
		return stmt
	}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		stmt.Values = append(stmt.Values, p.parseExpression(LOWEST))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			stmt.Values = append(stmt.Values, p.parseExpression(LOWEST))
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	stmt.Rng = token.Range{Start: start, End: p.curToken.Range.End}
	return stmt
}

func (p *Parser) declType() types.Primitive {
	switch p.curToken.Type {
	case token.DEF_INT:
		return types.Int
	case token.DEF_LONG:
		return types.Long
	case token.DEF_STRING:
		return types.StringType
	case token.DEF_BOOL:
		return types.Bool
	default:
		return types.Void
	}
}

func (p *Parser) parseVarDeclStmt() ast.Statement {
	start := p.curToken.Range.Start
	typ := p.declType()
	if !p.expectPeek(token.LOCAL_VAR) {
		return nil
	}
	name := p.curToken.Lit

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		return &ast.VarInitStmt{
			Type:  typ,
			Name:  name,
			Value: value,
			Rng:   token.Range{Start: start, End: p.curToken.Range.End},
		}
	}

	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return &ast.VarDeclStmt{
		Type: typ,
		Name: name,
		Rng:  token.Range{Start: start, End: p.curToken.Range.End},
	}
}

func (p *Parser) parseExprStmt() ast.Statement {
	start := p.curToken.Range.Start
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	end := expr.Range().End
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		end = p.curToken.Range.End
	} else {
		p.error("expected ';' after expression statement")
	}
	return &ast.ExprStmt{Expr: expr, Rng: token.Range{Start: start, End: end}}
}

// ============ EXPRESSIONS ============

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.error("no prefix parse function for " + string(p.curToken.Type))
		return nil
	}
	left := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && !p.peekTokenIs(token.EOF) &&
		precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIntLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.curToken.Lit, 10, 32)
	if err != nil {
		p.error("invalid int literal " + p.curToken.Lit)
	}
	return &ast.IntLit{Value: int32(v), Rng: p.curToken.Range}
}

func (p *Parser) parseLongLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.curToken.Lit, 10, 64)
	if err != nil {
		p.error("invalid long literal " + p.curToken.Lit)
	}
	return &ast.LongLit{Value: v, Rng: p.curToken.Range}
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLit{Value: p.curToken.Type == token.TRUE, Rng: p.curToken.Range}
}

func (p *Parser) parseLocalVarRef() ast.Expression {
	return &ast.LocalVarRef{Name: p.curToken.Lit, Rng: p.curToken.Range}
}

func (p *Parser) parseVarRef() ast.Expression {
	return &ast.VarRef{Name: p.curToken.Lit, Rng: p.curToken.Range}
}

func (p *Parser) parseConstantRef() ast.Expression {
	return &ast.ConstantRef{Name: p.curToken.Lit, Rng: p.curToken.Range}
}

func (p *Parser) parseDynamicExpr() ast.Expression {
	return &ast.DynamicExpr{Rng: p.curToken.Range}
}

func (p *Parser) parseCallExpr() ast.Expression {
	start := p.curToken.Range.Start
	name := p.curToken.Lit
	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	var args []ast.Expression
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		args = append(args, p.parseExpression(LOWEST))
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			args = append(args, p.parseExpression(LOWEST))
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return &ast.CallExpr{
		Name: name,
		Args: args,
		Rng:  token.Range{Start: start, End: p.curToken.Range.End},
	}
}

func (p *Parser) parseGroupedExpr() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseBinaryExpr(left ast.Expression) ast.Expression {
	op := p.curToken.Type
	// Inside an expression a single `=` is the equality operator; the
	// only assignment position, a variable initializer, consumes its `=`
	// before expression parsing begins.
	if op == token.ASSIGN {
		op = token.EQ
	}
	start := left.Range().Start
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return left
	}
	return &ast.BinaryExpr{
		Op:    op,
		Left:  left,
		Right: right,
		Rng:   token.Range{Start: start, End: right.Range().End},
	}
}

// parseStringLiteral splits the lexer's raw string literal on `{expr}`
// interpolation segments, lowering a mixed literal into a StringConcatExpr
// and a pure literal into a plain StringLit.
func (p *Parser) parseStringLiteral() ast.Expression {
	raw := p.curToken.Lit
	rng := p.curToken.Range

	if !strings.Contains(raw, "{") {
		return &ast.StringLit{Value: raw, Rng: rng}
	}

	var parts []ast.Expression
	var text strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '{' {
			if text.Len() > 0 {
				parts = append(parts, &ast.StringLit{Value: text.String(), Rng: rng})
				text.Reset()
			}
			depth := 1
			j := i + 1
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth > 0 {
					j++
				}
			}
			exprSrc := raw[i+1 : j]
			sub := New(lexer.New(exprSrc), p.errs)
			parts = append(parts, sub.parseExpression(LOWEST))
			i = j + 1
			continue
		}
		text.WriteByte(raw[i])
		i++
	}
	if text.Len() > 0 {
		parts = append(parts, &ast.StringLit{Value: text.String(), Rng: rng})
	}

	return &ast.StringConcatExpr{Parts: parts, Rng: rng}
}

// ============ token helpers ============

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.error("expected next token to be " + string(t) + ", got " + string(p.peekToken.Type))
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) error(msg string) {
	p.errs.Add(p.curToken.Range, "parser", msg)
}
