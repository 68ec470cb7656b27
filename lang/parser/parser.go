// Package parser implements the parser that transforms source code into an
// abstract syntax tree (AST).
//
// The parser is also responsible for the value discipline the compiler
// relies on: in the tree it produces, a node in statement position leaves no
// value on the stack (expression statements are wrapped in Ignore) and a
// node in value position leaves exactly one (a body ending in a statement
// gets a trailing zero constant).
package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/lama/lang/ast"
	"github.com/mna/lama/lang/scanner"
	"github.com/mna/lama/lang/token"
)

// ParseFiles is a helper function that parses the source files and returns
// the program ASTs and any error encountered. The error, if non-nil, is
// guaranteed to be a scanner.ErrorList.
func ParseFiles(ctx context.Context, files ...string) ([]ast.Node, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var p parser
	res := make([]ast.Node, 0, len(files))
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			p.errors.Add(token.Position{Filename: file}, err.Error())
			continue
		}
		p.init(file, b)
		res = append(res, p.parseProgram())
	}
	p.errors.Sort()
	return res, p.errors.Err()
}

// ParseChunk is a helper function that parses a single program from a slice
// of bytes and returns the AST and any error encountered. The error, if
// non-nil, is guaranteed to be a scanner.ErrorList.
func ParseChunk(ctx context.Context, filename string, src []byte) (ast.Node, error) {
	var p parser
	p.init(filename, src)
	prog := p.parseProgram()
	return prog, p.errors.Err()
}

// parser parses source files and generates an AST.
type parser struct {
	filename string
	scanner  scanner.Scanner
	errors   scanner.ErrorList

	// current token
	tok token.Token
	val token.Value
}

func (p *parser) init(filename string, src []byte) {
	p.filename = filename
	p.scanner.Init(filename, src, p.errors.Add)
	p.advance()
}

func (p *parser) advance() {
	p.tok = p.scanner.Scan(&p.val)
}

func (p *parser) errorf(pos token.Pos, format string, args ...interface{}) {
	p.errors.Add(pos.ToPosition(p.filename), fmt.Sprintf(format, args...))
}

// expect consumes the current token if it matches, otherwise records an
// error and leaves the token in place.
func (p *parser) expect(tok token.Token) token.Value {
	v := p.val
	if p.tok != tok {
		p.errorf(p.val.Pos, "expected %v, found %#v", tok, p.tok)
		return v
	}
	p.advance()
	return v
}

// program is a block in statement position: its value, if any, is dropped.
func (p *parser) parseProgram() ast.Node {
	pos := p.val.Pos
	n := p.parseBlock(token.EOF)
	p.expect(token.EOF)
	if sc, ok := n.(*ast.Scope); ok {
		return &ast.Scope{Start: pos, Defs: sc.Defs, Body: asStmt(sc.Body)}
	}
	return &ast.Scope{Start: pos, Body: asStmt(n)}
}

// parseBlock parses a sequence of declarations followed by a sequence of
// statements, up to (and excluding) any of the stop tokens. In the returned
// node, all but the final statement are in statement position; the caller
// fixes up the final one with asStmt or asValue.
func (p *parser) parseBlock(stops ...token.Token) ast.Node {
	pos := p.val.Pos

	var defs []ast.Def
	for p.tok == token.VAR || p.tok == token.VAL || p.tok == token.FUN {
		defs = append(defs, p.parseDefs()...)
	}

	var items []ast.Node
	for !p.at(stops...) {
		items = append(items, p.parseStmt())
		if p.tok != token.SEMI {
			break
		}
		p.advance()
	}
	if !p.at(stops...) {
		p.errorf(p.val.Pos, "unexpected %#v", p.tok)
		// skip the offending token so that parsing cannot loop forever
		p.advance()
	}

	body := assemble(pos, items)
	if len(defs) > 0 {
		return &ast.Scope{Start: pos, Defs: defs, Body: body}
	}
	return body
}

func (p *parser) at(stops ...token.Token) bool {
	if p.tok == token.EOF {
		return true
	}
	for _, s := range stops {
		if p.tok == s {
			return true
		}
	}
	return false
}

// assemble folds statements into a right-leaning Seq chain; all but the last
// are put in statement position.
func assemble(pos token.Pos, items []ast.Node) ast.Node {
	if len(items) == 0 {
		return &ast.Skip{Start: pos}
	}
	n := items[len(items)-1]
	for i := len(items) - 2; i >= 0; i-- {
		n = &ast.Seq{A: asStmt(items[i]), B: n}
	}
	return n
}

func (p *parser) parseDefs() []ast.Def {
	switch p.tok {
	case token.VAR:
		p.advance()
		var defs []ast.Def
		for {
			id := p.parseIdent()
			def := &ast.VarDef{Ident: id}
			if p.tok == token.EQ {
				p.advance()
				def.Init = asValue(p.parseExpr())
			}
			defs = append(defs, def)
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
		p.expect(token.SEMI)
		return defs

	case token.VAL:
		p.advance()
		var defs []ast.Def
		for {
			id := p.parseIdent()
			p.expect(token.EQ)
			defs = append(defs, &ast.ValDef{Ident: id, Init: asValue(p.parseExpr())})
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
		p.expect(token.SEMI)
		return defs

	case token.FUN:
		p.advance()
		id := p.parseIdent()
		p.expect(token.LPAREN)
		var params []ast.Ident
		for p.tok != token.RPAREN && p.tok != token.EOF {
			params = append(params, p.parseIdent())
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
		p.expect(token.RPAREN)
		p.expect(token.LBRACE)
		body := asValue(p.parseBlock(token.RBRACE))
		p.expect(token.RBRACE)
		return []ast.Def{&ast.FunDef{Ident: id, Params: params, Body: body}}

	default:
		panic(fmt.Sprintf("parseDefs called on %v", p.tok))
	}
}

func (p *parser) parseIdent() ast.Ident {
	v := p.expect(token.IDENT)
	return ast.Ident{Name: v.Str, Start: v.Pos}
}

// parseStmt parses one statement; the result is "raw": if it is an
// expression, its value is still on the stack (the sequence assembly or the
// caller decides whether to keep or drop it).
func (p *parser) parseStmt() ast.Node {
	switch p.tok {
	case token.SKIP:
		pos := p.val.Pos
		p.advance()
		return &ast.Skip{Start: pos}

	case token.IF:
		return p.parseIf()

	case token.WHILE:
		pos := p.val.Pos
		p.advance()
		cond := asValue(p.parseExpr())
		p.expect(token.DO)
		body := asStmt(p.parseBlock(token.OD))
		p.expect(token.OD)
		return &ast.While{Start: pos, Cond: cond, Body: body}

	case token.REPEAT:
		pos := p.val.Pos
		p.advance()
		body := asStmt(p.parseBlock(token.UNTIL))
		p.expect(token.UNTIL)
		cond := asValue(p.parseExpr())
		// the loop repeats while the condition is false
		return &ast.DoWhile{Start: pos, Body: body, Cond: &ast.Binop{Op: "==", Left: cond, Right: &ast.Const{Start: pos, Value: 0}}}

	case token.FOR:
		pos := p.val.Pos
		p.advance()
		init := asStmt(p.parseStmt())
		p.expect(token.COMMA)
		cond := asValue(p.parseExpr())
		p.expect(token.COMMA)
		post := asStmt(p.parseStmt())
		p.expect(token.DO)
		body := asStmt(p.parseBlock(token.OD))
		p.expect(token.OD)
		return &ast.Seq{A: init, B: &ast.While{Start: pos, Cond: cond, Body: &ast.Seq{A: body, B: post}}}

	default:
		return p.parseAssignOrExpr()
	}
}

// parseIf parses if .. then .. {elif ..} [else ..] fi. The branches are left
// raw; asStmt/asValue distributes over both.
func (p *parser) parseIf() ast.Node {
	pos := p.val.Pos
	p.advance() // if or elif
	cond := asValue(p.parseExpr())
	p.expect(token.THEN)
	truePart := p.parseBlock(token.ELIF, token.ELSE, token.FI)

	var falsePart ast.Node
	switch p.tok {
	case token.ELIF:
		falsePart = p.parseIf()
		return &ast.If{Start: pos, Cond: cond, True: truePart, False: falsePart}
	case token.ELSE:
		p.advance()
		falsePart = p.parseBlock(token.FI)
	default:
		falsePart = &ast.Skip{Start: p.val.Pos}
	}
	p.expect(token.FI)
	return &ast.If{Start: pos, Cond: cond, True: truePart, False: falsePart}
}

// parseAssignOrExpr parses an expression and, if it is followed by the
// assignment token, reinterprets it as an assignment target.
func (p *parser) parseAssignOrExpr() ast.Node {
	e := p.parseExpr()
	if p.tok != token.ASSIGN {
		return e
	}
	pos := p.val.Pos
	p.advance()
	rhs := asValue(p.parseExpr())

	switch lhs := e.(type) {
	case *ast.Var:
		return &ast.Set{Ident: lhs.Ident, Value: rhs}
	case *ast.Elem:
		return &ast.Assn{Target: &ast.ElemRef{X: lhs.X, Index: lhs.Index}, Value: rhs}
	default:
		p.errorf(pos, "cannot assign to this expression")
		return e
	}
}

// binary operator precedence levels, lowest first; all operators associate
// to the left.
var binOpLevels = [][]token.Token{
	{token.OROR},
	{token.ANDAND},
	{token.CIRCUMFLEX},
	{token.EQL, token.NEQ, token.LT, token.LE, token.GT, token.GE},
	{token.PLUS, token.MINUS},
	{token.STAR, token.SLASH, token.PERCENT},
}

func (p *parser) parseExpr() ast.Node {
	return p.parseBinary(0)
}

func (p *parser) parseBinary(level int) ast.Node {
	if level >= len(binOpLevels) {
		return p.parsePostfix()
	}
	left := p.parseBinary(level + 1)
	for {
		op := ""
		for _, tok := range binOpLevels[level] {
			if p.tok == tok {
				op = tok.Operator()
				break
			}
		}
		if op == "" {
			return left
		}
		p.advance()
		right := p.parseBinary(level + 1)
		left = &ast.Binop{Op: op, Left: left, Right: right}
	}
}

// parsePostfix parses a primary expression followed by any number of
// indexing suffixes.
func (p *parser) parsePostfix() ast.Node {
	e := p.parsePrimary()
	for p.tok == token.LBRACK {
		p.advance()
		ix := asValue(p.parseExpr())
		p.expect(token.RBRACK)
		e = &ast.Elem{X: e, Index: ix}
	}
	return e
}

func (p *parser) parsePrimary() ast.Node {
	pos := p.val.Pos
	switch p.tok {
	case token.INT:
		n := int(p.val.Int)
		p.advance()
		return &ast.Const{Start: pos, Value: n}

	case token.MINUS:
		p.advance()
		e := p.parsePostfix()
		return &ast.Binop{Op: "-", Left: &ast.Const{Start: pos, Value: 0}, Right: e}

	case token.STRING:
		s := p.val.Str
		p.advance()
		return &ast.StrLit{Start: pos, Value: s}

	case token.LBRACK:
		p.advance()
		var items []ast.Node
		for p.tok != token.RBRACK && p.tok != token.EOF {
			items = append(items, asValue(p.parseExpr()))
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
		p.expect(token.RBRACK)
		return &ast.ArrayLit{Start: pos, Items: items}

	case token.BACKQUOTE:
		p.advance()
		tag := p.expect(token.IDENT)
		var args []ast.Node
		if p.tok == token.LPAREN {
			p.advance()
			for p.tok != token.RPAREN && p.tok != token.EOF {
				args = append(args, asValue(p.parseExpr()))
				if p.tok != token.COMMA {
					break
				}
				p.advance()
			}
			p.expect(token.RPAREN)
		}
		return &ast.SexpLit{Start: pos, Tag: tag.Str, Args: args}

	case token.IDENT:
		id := p.parseIdent()
		if p.tok != token.LPAREN {
			return &ast.Var{Ident: id}
		}
		p.advance()
		var args []ast.Node
		for p.tok != token.RPAREN && p.tok != token.EOF {
			args = append(args, asValue(p.parseExpr()))
			if p.tok != token.COMMA {
				break
			}
			p.advance()
		}
		p.expect(token.RPAREN)
		return &ast.Call{Ident: id, Args: args}

	case token.LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e

	case token.IF:
		return asValue(p.parseIf())

	default:
		p.errorf(pos, "unexpected %#v", p.tok)
		p.advance()
		return &ast.Const{Start: pos, Value: 0}
	}
}

// leavesValue reports whether n leaves a value on the stack.
func leavesValue(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.Skip, *ast.While, *ast.DoWhile, *ast.Ignore:
		return false
	case *ast.Seq:
		return leavesValue(n.B)
	case *ast.Scope:
		return leavesValue(n.Body)
	case *ast.If:
		// branches are fixed up together, inspecting one is enough
		return leavesValue(n.True)
	default:
		return true
	}
}

// asStmt puts n in statement position: whatever value it leaves is dropped.
// The fixup distributes over sequences, scopes and both branches of an if,
// so that the drop happens on every path.
func asStmt(n ast.Node) ast.Node {
	switch n := n.(type) {
	case *ast.Seq:
		return &ast.Seq{A: n.A, B: asStmt(n.B)}
	case *ast.Scope:
		return &ast.Scope{Start: n.Start, Defs: n.Defs, Body: asStmt(n.Body)}
	case *ast.If:
		return &ast.If{Start: n.Start, Cond: n.Cond, True: asStmt(n.True), False: asStmt(n.False)}
	default:
		if leavesValue(n) {
			return &ast.Ignore{Expr: n}
		}
		return n
	}
}

// asValue puts n in value position: every path must leave exactly one value.
// A void node gets a zero constant appended.
func asValue(n ast.Node) ast.Node {
	switch n := n.(type) {
	case *ast.Seq:
		return &ast.Seq{A: n.A, B: asValue(n.B)}
	case *ast.Scope:
		return &ast.Scope{Start: n.Start, Defs: n.Defs, Body: asValue(n.Body)}
	case *ast.If:
		return &ast.If{Start: n.Start, Cond: n.Cond, True: asValue(n.True), False: asValue(n.False)}
	default:
		if leavesValue(n) {
			return n
		}
		return &ast.Seq{A: n, B: &ast.Const{Start: n.Pos(), Value: 0}}
	}
}
