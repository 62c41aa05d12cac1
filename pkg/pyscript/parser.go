// Package pyscript provides lexing and parsing for the dataframe-script
// subset of Python consumed by the analyzer.
//
// # Usage
//
//	mod, err := pyscript.Parse(src)
//	if err != nil {
//	    // *ParseError with line/column information
//	}
//
// # Grammar Overview
//
//	module      → statement*
//	statement   → assign | expr_stmt | import | block
//	assign      → target "=" expression NEWLINE
//	target      → name | subscript | attribute
//	block       → (def|if|for|while|with|try|class) ... indented suite
//
// Compound statements are captured as opaque BlockStmt nodes; the
// analyzer maps them to code-recipe fallbacks rather than rejecting the
// script.
package pyscript

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/token"
)

// Operator precedence levels, lowest to highest.
const (
	precNone = iota
	precOr
	precAnd
	precNot
	precComparison // == != < > <= >= in is
	precBitOr      // |
	precBitAnd     // &
	precAddition   // + -
	precMultiply   // * / // %
	precUnary      // - ~ not
	precPower      // **
)

// Parser parses a script into a Module.
type Parser struct {
	lexer  *Lexer
	token  token.Token // current token
	peek   token.Token // lookahead token
	errors []error
}

// NewParser creates a new parser for the given source text.
func NewParser(src string) *Parser {
	p := &Parser{lexer: NewLexer(src)}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the source text and returns the module AST.
// The first error encountered is returned; it is always a *ParseError.
func Parse(src string) (*Module, error) {
	p := NewParser(src)
	mod := p.parseModule()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return mod, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token. Lexical errors (unterminated
// strings) surface here so they are ordered with parse errors.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
	if p.lexer.err != nil {
		p.errors = append(p.errors, p.lexer.err)
		p.lexer.err = nil
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, t))
	return false
}

// addError adds a parse error at the current token.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// atStatementEnd returns true at a NEWLINE or EOF.
func (p *Parser) atStatementEnd() bool {
	return p.check(token.NEWLINE) || p.check(token.EOF)
}

// endStatement consumes the statement terminator.
func (p *Parser) endStatement() {
	if p.check(token.NEWLINE) {
		p.nextToken()
		return
	}
	if !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.NEWLINE))
		// Resynchronize at the next line so one bad statement yields one error.
		for !p.atStatementEnd() {
			p.nextToken()
		}
		p.match(token.NEWLINE)
	}
}

// ---------- Statements ----------

// parseModule parses all top-level statements.
func (p *Parser) parseModule() *Module {
	mod := &Module{}
	for !p.check(token.EOF) {
		if p.match(token.NEWLINE) {
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			mod.Statements = append(mod.Statements, stmt)
		}
		if len(p.errors) > 0 {
			break
		}
	}
	return mod
}

// parseStatement parses one top-level statement.
func (p *Parser) parseStatement() Stmt {
	switch {
	case p.check(token.IMPORT) || p.check(token.FROM):
		return p.parseImport()
	case token.BeginsBlock(p.token.Type):
		return p.parseBlock()
	}

	start := p.token.Pos
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}

	if p.check(token.ASSIGN) {
		switch expr.(type) {
		case *Name, *Subscript, *Attribute:
		default:
			p.addError(fmt.Sprintf(ErrBadAssignTarget, "expression"))
			return nil
		}
		p.nextToken()
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		stmt := &AssignStmt{Target: expr, Value: value}
		stmt.Span = token.Span{Start: start, End: p.token.Pos}
		p.endStatement()
		return stmt
	}

	stmt := &ExprStmt{X: expr}
	stmt.Span = token.Span{Start: start, End: p.token.Pos}
	p.endStatement()
	return stmt
}

// parseImport parses `import m [as a]` and `from m import n [, n]*`.
func (p *Parser) parseImport() Stmt {
	start := p.token.Pos
	stmt := &ImportStmt{}

	if p.match(token.FROM) {
		stmt.Module = p.parseDottedName()
		if !p.expect(token.IMPORT) {
			return nil
		}
		for {
			if !p.check(token.IDENT) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.IDENT))
				return nil
			}
			name := p.token.Literal
			p.nextToken()
			if p.match(token.AS) {
				// Imported name is bound under the alias.
				if p.check(token.IDENT) {
					name = p.token.Literal
					p.nextToken()
				}
			}
			stmt.Names = append(stmt.Names, name)
			if !p.match(token.COMMA) {
				break
			}
		}
	} else {
		p.nextToken() // consume 'import'
		stmt.Module = p.parseDottedName()
		if p.match(token.AS) {
			if p.check(token.IDENT) {
				stmt.Alias = p.token.Literal
				p.nextToken()
			}
		}
	}

	stmt.Span = token.Span{Start: start, End: p.token.Pos}
	p.endStatement()
	return stmt
}

// parseDottedName reads a possibly dotted module path.
func (p *Parser) parseDottedName() string {
	var parts []string
	for p.check(token.IDENT) {
		parts = append(parts, p.token.Literal)
		p.nextToken()
		if !p.match(token.DOT) {
			break
		}
	}
	return strings.Join(parts, ".")
}

// parseBlock captures a compound statement (header plus indented suite)
// without descending into it. The suite ends at the next token that
// starts in column one.
func (p *Parser) parseBlock() Stmt {
	start := p.token.Pos
	keyword := p.token.Literal

	var header strings.Builder
	for !p.atStatementEnd() {
		if header.Len() > 0 {
			header.WriteByte(' ')
		}
		header.WriteString(p.token.Literal)
		p.nextToken()
	}
	p.match(token.NEWLINE)

	// Consume every line of the indented suite.
	for !p.check(token.EOF) && p.token.Pos.Column > 1 {
		for !p.atStatementEnd() {
			p.nextToken()
		}
		p.match(token.NEWLINE)
	}

	stmt := &BlockStmt{Keyword: keyword, Header: strings.TrimSuffix(header.String(), " :")}
	stmt.Span = token.Span{Start: start, End: p.token.Pos}
	return stmt
}

// ---------- Expressions ----------

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		prec := infixPrecedence(p.token.Type)
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses unary operators and primary expressions.
func (p *Parser) parsePrefixExpr() Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		x := p.parseExpressionWithPrecedence(precNot)
		e := &UnaryExpr{Op: token.NOT, X: x}
		e.Span = token.Span{Start: pos, End: p.token.Pos}
		return e
	case token.MINUS:
		p.nextToken()
		x := p.parseExpressionWithPrecedence(precUnary)
		e := &UnaryExpr{Op: token.MINUS, X: x}
		e.Span = token.Span{Start: pos, End: p.token.Pos}
		return e
	case token.TILDE:
		p.nextToken()
		x := p.parseExpressionWithPrecedence(precUnary)
		e := &UnaryExpr{Op: token.TILDE, X: x}
		e.Span = token.Span{Start: pos, End: p.token.Pos}
		return e
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// infixPrecedence returns the precedence of the token as an infix operator.
func infixPrecedence(t token.TokenType) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE, token.IN, token.IS:
		return precComparison
	case token.PIPE:
		return precBitOr
	case token.AMP:
		return precBitAnd
	case token.PLUS, token.MINUS:
		return precAddition
	case token.STAR, token.SLASH, token.DSLASH, token.PERCENT:
		return precMultiply
	case token.DSTAR:
		return precPower
	default:
		return precNone
	}
}

// parseInfixExpr parses a binary operation with the given precedence.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	op := p.token.Type
	pos := p.token.Pos
	p.nextToken()

	// Power is right-associative; everything else left-associative.
	next := prec + 1
	if op == token.DSTAR {
		next = prec
	}

	right := p.parseExpressionWithPrecedence(next)
	if right == nil {
		return nil
	}
	e := &BinaryExpr{Op: op, Left: left, Right: right}
	e.Span = token.Span{Start: pos, End: p.token.Pos}
	return e
}

// parsePostfix parses attribute access, calls, and subscripts.
func (p *Parser) parsePostfix(x Expr) Expr {
	if x == nil {
		return nil
	}
	for {
		switch p.token.Type {
		case token.DOT:
			pos := p.token.Pos
			p.nextToken()
			if !p.check(token.IDENT) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, token.IDENT))
				return nil
			}
			attr := &Attribute{Value: x, Attr: p.token.Literal}
			attr.Span = token.Span{Start: pos, End: p.peek.Pos}
			p.nextToken()
			x = attr
		case token.LPAREN:
			call := p.parseCall(x)
			if call == nil {
				return nil
			}
			x = call
		case token.LBRACKET:
			sub := p.parseSubscript(x)
			if sub == nil {
				return nil
			}
			x = sub
		default:
			return x
		}
	}
}

// parseCall parses the argument list of a call expression.
func (p *Parser) parseCall(fn Expr) Expr {
	pos := p.token.Pos
	p.nextToken() // consume '('

	call := &Call{Func: fn}
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		// Keyword argument: IDENT '=' value
		if p.check(token.IDENT) && p.peek.Type == token.ASSIGN {
			name := p.token.Literal
			p.nextToken()
			p.nextToken()
			value := p.parseExpression()
			if value == nil {
				return nil
			}
			call.Keywords = append(call.Keywords, KeywordArg{Name: name, Value: value})
		} else {
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	call.Span = token.Span{Start: pos, End: p.token.Pos}
	return call
}

// parseSubscript parses `[index]`, including slice forms.
func (p *Parser) parseSubscript(value Expr) Expr {
	pos := p.token.Pos
	p.nextToken() // consume '['

	var index Expr
	if p.check(token.COLON) {
		index = p.parseSlice(nil)
	} else {
		index = p.parseExpression()
		if index == nil {
			return nil
		}
		if p.check(token.COLON) {
			index = p.parseSlice(index)
		}
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	sub := &Subscript{Value: value, Index: index}
	sub.Span = token.Span{Start: pos, End: p.token.Pos}
	return sub
}

// parseSlice parses the remainder of a slice after the first element.
func (p *Parser) parseSlice(lo Expr) Expr {
	sl := &SliceExpr{Lo: lo}
	sl.Span = token.Span{Start: p.token.Pos, End: p.token.Pos}
	p.nextToken() // consume ':'
	if !p.check(token.RBRACKET) && !p.check(token.COLON) {
		sl.Hi = p.parseExpression()
	}
	if p.match(token.COLON) {
		if !p.check(token.RBRACKET) {
			sl.Step = p.parseExpression()
		}
	}
	return sl
}

// parsePrimary parses a primary expression.
func (p *Parser) parsePrimary() Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case token.IDENT:
		e := &Name{Ident: p.token.Literal}
		e.Span = token.Span{Start: pos, End: p.peek.Pos}
		p.nextToken()
		return e
	case token.NUMBER:
		e := &NumberLit{Literal: p.token.Literal}
		e.Span = token.Span{Start: pos, End: p.peek.Pos}
		p.nextToken()
		return e
	case token.STRING:
		e := &StringLit{Value: p.token.Literal}
		e.Span = token.Span{Start: pos, End: p.peek.Pos}
		p.nextToken()
		// Adjacent string literals concatenate.
		for p.check(token.STRING) {
			e.Value += p.token.Literal
			p.nextToken()
		}
		return e
	case token.TRUE, token.FALSE:
		e := &BoolLit{Value: p.token.Type == token.TRUE}
		e.Span = token.Span{Start: pos, End: p.peek.Pos}
		p.nextToken()
		return e
	case token.NONE:
		e := &NoneLit{}
		e.Span = token.Span{Start: pos, End: p.peek.Pos}
		p.nextToken()
		return e
	case token.LPAREN:
		return p.parseParenOrTuple()
	case token.LBRACKET:
		return p.parseList()
	case token.LBRACE:
		return p.parseDict()
	case token.LAMBDA:
		return p.parseLambda()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, "expression"))
		return nil
	}
}

// parseParenOrTuple parses a parenthesized expression or tuple literal.
func (p *Parser) parseParenOrTuple() Expr {
	pos := p.token.Pos
	p.nextToken() // consume '('

	if p.check(token.RPAREN) {
		p.nextToken()
		e := &TupleLit{}
		e.Span = token.Span{Start: pos, End: p.token.Pos}
		return e
	}

	first := p.parseExpression()
	if first == nil {
		return nil
	}

	if p.check(token.COMMA) {
		tup := &TupleLit{Elems: []Expr{first}}
		for p.match(token.COMMA) {
			if p.check(token.RPAREN) {
				break
			}
			elem := p.parseExpression()
			if elem == nil {
				return nil
			}
			tup.Elems = append(tup.Elems, elem)
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		tup.Span = token.Span{Start: pos, End: p.token.Pos}
		return tup
	}

	if !p.expect(token.RPAREN) {
		return nil
	}
	return first
}

// parseList parses a list literal.
func (p *Parser) parseList() Expr {
	pos := p.token.Pos
	p.nextToken() // consume '['

	lst := &ListLit{}
	for !p.check(token.RBRACKET) && !p.check(token.EOF) {
		elem := p.parseExpression()
		if elem == nil {
			return nil
		}
		lst.Elems = append(lst.Elems, elem)
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	lst.Span = token.Span{Start: pos, End: p.token.Pos}
	return lst
}

// parseDict parses a dict literal.
func (p *Parser) parseDict() Expr {
	pos := p.token.Pos
	p.nextToken() // consume '{'

	d := &DictLit{}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		key := p.parseExpression()
		if key == nil {
			return nil
		}
		if !p.expect(token.COLON) {
			return nil
		}
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, value)
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	d.Span = token.Span{Start: pos, End: p.token.Pos}
	return d
}

// parseLambda parses a lambda expression.
func (p *Parser) parseLambda() Expr {
	pos := p.token.Pos
	p.nextToken() // consume 'lambda'

	lam := &LambdaExpr{}
	for p.check(token.IDENT) {
		lam.Params = append(lam.Params, p.token.Literal)
		p.nextToken()
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.COLON) {
		return nil
	}
	lam.Body = p.parseExpression()
	if lam.Body == nil {
		return nil
	}
	lam.Span = token.Span{Start: pos, End: p.token.Pos}
	return lam
}
