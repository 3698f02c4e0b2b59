// Package syntax provides an error-tolerant concrete syntax tree for Erlang.
//
// # Usage
//
//	file := syntax.Parse(src)
//	for _, form := range file.Forms() {
//	    // inspect form.Kind, form.Children ...
//	}
//
// Parsing never fails: tokens that cannot be placed are wrapped in KindError
// nodes, and required children that are absent are simply not present in
// the parent's Children. Consumers detect a missing child by asking for a
// field and getting nil.
//
// # Grammar Overview
//
// The parser is recursive descent with precedence climbing for operators:
//
//	form        → '-' attribute '.' | function_clause (';' function_clause)* '.'
//	clause      → name '(' args ')' ['when' guard] '->' exprs
//	expr        → 'catch' expr | expr binop expr | prefix_op expr | postfix
//	postfix     → primary (':' primary | '(' args ')' | '#' record_or_map)*
//	primary     → atom | var | number | char | string+ | '(' expr ')' | tuple
//	            | list | binary | map | record | block | if | case | receive
//	            | try | maybe | fun | '?' macro ['(' args ')'] | '??' var
//
// Expressions, patterns, guards and types share one grammar; type-only shapes
// ('|' unions, '..' ranges, '::' annotations, '...', fun types) are parsed
// everywhere and rejected later by lowering when they occur in the wrong place.
// See each file for detailed grammar rules for that section.
package syntax

import (
	"fmt"

	"github.com/leapstack-labs/leaperl/pkg/token"
)

// Parser parses a token slice into a CST.
type Parser struct {
	toks     []token.Token
	idx      int
	limit    int // tokens at or after limit read as EOF
	errors   []error
	noRemote bool // ':' is not a remote call separator (binary elements, catch patterns)
}

// NewParser creates a parser over toks, which must end with an EOF token.
func NewParser(toks []token.Token) *Parser {
	return &Parser{toks: toks, limit: len(toks) - 1}
}

// Parse lexes and parses src.
func Parse(src string) *SourceFile {
	toks, comments, lexErrs := Tokenize(src)
	p := NewParser(toks)
	root := p.parseSourceFile()
	errs := append([]error{}, lexErrs...)
	errs = append(errs, p.errors...)
	return newSourceFile(src, root, toks, comments, errs)
}

// ---------- Token Helpers ----------

// tok returns the current token.
func (p *Parser) tok() token.Token {
	return p.peekAt(0)
}

// peekAt returns the token n positions ahead of the current one.
func (p *Parser) peekAt(n int) token.Token {
	i := p.idx + n
	if i >= p.limit {
		eof := p.toks[p.limit]
		return token.Token{Type: token.EOF, Pos: eof.Pos, End: eof.Pos}
	}
	return p.toks[i]
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.tok().Type == t
}

// checkPeek returns true if the next token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peekAt(1).Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.match(t) {
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), t))
	return false
}

func (p *Parser) advance() {
	if p.idx < p.limit {
		p.idx++
	}
}

func (p *Parser) atEnd() bool {
	return p.idx >= p.limit
}

func (p *Parser) describe(t token.Token) string {
	if t.Type == token.EOF {
		return "EOF"
	}
	return fmt.Sprintf("%q", t.Literal)
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{Pos: p.tok().Pos, Message: msg})
}

// ---------- Node Helpers ----------

// finish builds a node of kind from the tokens consumed since start.
// Nil children are skipped.
func (p *Parser) finish(kind NodeKind, start int, children ...*Node) *Node {
	n := &Node{Kind: kind, FirstTok: start, EndTok: p.idx}
	for _, c := range children {
		if c == nil {
			continue
		}
		c.Parent = n
		n.Children = append(n.Children, c)
	}
	n.Span = p.spanOf(start, p.idx)
	return n
}

func (p *Parser) spanOf(start, end int) token.Span {
	if end > start {
		return token.Span{Start: p.toks[start].Pos, End: p.toks[end-1].End}
	}
	pos := p.peekAt(0).Pos
	if start < len(p.toks) {
		pos = p.toks[start].Pos
	}
	return token.Span{Start: pos, End: pos}
}

// leaf consumes the current token as a leaf node of kind.
func (p *Parser) leaf(kind NodeKind) *Node {
	start := p.idx
	tok := p.tok()
	p.advance()
	n := p.finish(kind, start)
	n.Tok = tok
	return n
}

// field labels n with f and returns it.
func field(f Field, n *Node) *Node {
	if n != nil {
		n.Field = f
	}
	return n
}

func fields(f Field, ns []*Node) []*Node {
	for _, n := range ns {
		field(f, n)
	}
	return ns
}

// leafKind maps literal token types to leaf kinds.
func leafKind(t token.TokenType) (NodeKind, bool) {
	switch t {
	case token.ATOM:
		return KindAtom, true
	case token.VAR:
		return KindVar, true
	case token.INTEGER:
		return KindInteger, true
	case token.FLOAT:
		return KindFloat, true
	case token.CHAR:
		return KindChar, true
	case token.STRING:
		return KindString, true
	}
	return 0, false
}

// errorNode consumes tokens while stop returns false and wraps them in an
// Error node. Literal tokens become leaf children.
func (p *Parser) errorNode(stop func(token.Token) bool) *Node {
	start := p.idx
	var kids []*Node
	for !p.atEnd() && !stop(p.tok()) {
		if k, ok := leafKind(p.tok().Type); ok {
			kids = append(kids, p.leaf(k))
			continue
		}
		p.advance()
	}
	if p.idx == start {
		return nil
	}
	return p.finish(KindError, start, kids...)
}

// errorToken wraps the current token in an Error node.
func (p *Parser) errorToken() *Node {
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "expression"))
	done := false
	return p.errorNode(func(token.Token) bool {
		if done {
			return true
		}
		done = true
		return false
	})
}

// isFormStart reports whether t plausibly begins a new top-level form after
// a missing terminator: a '-', atom or '?' in the first column of a later line.
func (p *Parser) isFormStart(t token.Token, afterLine int) bool {
	if t.Pos.Column != 1 || t.Pos.Line <= afterLine {
		return false
	}
	switch t.Type {
	case token.MINUS, token.ATOM, token.QMARK:
		return true
	}
	return false
}

// syncForm skips to the end of the current form, returning the skipped
// tokens as an Error node. The terminating '.' is not consumed.
func (p *Parser) syncForm() *Node {
	line := p.tok().Pos.Line
	if p.idx > 0 {
		line = p.toks[p.idx-1].Pos.Line
	}
	depth := 0
	return p.errorNode(func(t token.Token) bool {
		switch t.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE, token.LTLT:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE, token.GTGT:
			if depth > 0 {
				depth--
			}
		case token.DOT:
			return true
		}
		return depth == 0 && p.isFormStart(t, line)
	})
}

// ---------- Source File ----------

func (p *Parser) parseSourceFile() *Node {
	start := p.idx
	var forms []*Node
	for !p.atEnd() {
		before := p.idx
		if f := p.parseForm(); f != nil {
			forms = append(forms, f)
		}
		if p.idx == before {
			// Guarantee progress on tokens no rule accepts.
			forms = append(forms, p.errorToken())
		}
	}
	root := p.finish(KindSourceFile, start, forms...)
	// The root covers the whole text, trailing whitespace included.
	root.Span.Start = token.Position{Line: 1, Column: 1, Offset: 0}
	root.Span.End = p.toks[len(p.toks)-1].End
	return root
}

func (p *Parser) parseForm() *Node {
	switch p.tok().Type {
	case token.MINUS:
		return p.parseAttribute()
	case token.ATOM, token.QMARK:
		return p.parseFunDecl()
	}
	p.addError(fmt.Sprintf(ErrUnexpectedForm, p.describe(p.tok())))
	start := p.idx
	junk := p.syncForm()
	p.match(token.DOT)
	if junk == nil {
		if p.idx == start {
			return nil
		}
		return p.finish(KindError, start)
	}
	junk.EndTok = p.idx
	junk.Span = p.spanOf(start, p.idx)
	return junk
}

// endForm consumes the terminating '.', skipping junk before it.
func (p *Parser) endForm() *Node {
	if p.match(token.DOT) {
		return nil
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'.'"))
	junk := p.syncForm()
	p.match(token.DOT)
	return junk
}

// ---------- Function Declarations ----------

// parseFunDecl parses clause (';' clause)* '.'.
func (p *Parser) parseFunDecl() *Node {
	start := p.idx
	var kids []*Node
	for {
		before := p.idx
		c := p.parseFunctionClause()
		kids = append(kids, field(FieldClause, c))
		if p.match(token.SEMI) {
			continue
		}
		if p.idx == before || p.check(token.DOT) || p.atEnd() {
			break
		}
		// A clause start on the next line means a missing ';'.
		if (p.check(token.ATOM) || p.check(token.QMARK)) && !p.isFormStart(p.tok(), 0) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "';'"))
			continue
		}
		break
	}
	kids = append(kids, p.endForm())
	return p.finish(KindFunDecl, start, kids...)
}

// parseFunctionClause parses name(args) [when guard] -> body, or a macro
// call standing in for a whole clause.
func (p *Parser) parseFunctionClause() *Node {
	start := p.idx
	var name *Node
	switch {
	case p.check(token.QMARK):
		if !p.macroNamesClause() {
			return p.parseMacroCall()
		}
		name = p.parseMacroCallNoArgs()
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "function name"))
	}
	var args *Node
	if p.check(token.LPAREN) {
		args = p.parseExprArgs()
	} else {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'('"))
	}
	guard := p.parseOptGuard()
	var body *Node
	if p.expect(token.ARROW) {
		body = p.parseClauseBody()
	}
	return p.finish(KindFunctionClause, start,
		field(FieldName, name), field(FieldArgs, args), field(FieldGuard, guard), field(FieldBody, body))
}

// macroNamesClause reports whether '?' NAME '(' ... ')' is followed by
// '->' or 'when', so that the macro is the clause name rather than the
// clause itself.
func (p *Parser) macroNamesClause() bool {
	if p.peekAt(2).Type != token.LPAREN {
		return false
	}
	end := p.matchingClose(p.idx + 2)
	if end < 0 || end+1 >= p.limit {
		return false
	}
	next := p.toks[end+1].Type
	return next == token.ARROW || next == token.WHEN
}

// matchingClose returns the index of the bracket closing the one at open.
func (p *Parser) matchingClose(open int) int {
	depth := 0
	for i := open; i < p.limit; i++ {
		switch p.toks[i].Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE, token.LTLT:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE, token.GTGT:
			depth--
			if depth == 0 {
				return i
			}
		case token.DOT:
			if i+1 >= len(p.toks) || p.toks[i+1].Pos.Line > p.toks[i].Pos.Line || p.toks[i+1].Type == token.EOF {
				return -1
			}
		}
	}
	return -1
}

// parseOptGuard parses ['when' guard].
func (p *Parser) parseOptGuard() *Node {
	if !p.check(token.WHEN) {
		return nil
	}
	start := p.idx
	p.advance()
	return p.parseGuardFrom(start)
}

// parseGuardFrom parses guard_clause (';' guard_clause)* into a Guard node
// starting at token start.
func (p *Parser) parseGuardFrom(start int) *Node {
	var clauses []*Node
	for {
		cs := p.idx
		exprs := p.parseExprSeq()
		clauses = append(clauses, p.finish(KindGuardClause, cs, exprs...))
		if !p.match(token.SEMI) {
			break
		}
	}
	return p.finish(KindGuard, start, clauses...)
}

// parseExprSeq parses expr (',' expr)*.
func (p *Parser) parseExprSeq() []*Node {
	var out []*Node
	for {
		e := p.parseExpr()
		if e != nil {
			out = append(out, e)
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	return out
}

// parseClauseBody parses the expressions after '->'.
func (p *Parser) parseClauseBody() *Node {
	start := p.idx
	exprs := p.parseExprSeq()
	return p.finish(KindClauseBody, start, exprs...)
}

// parseExprArgs parses '(' [expr (',' expr)*] ')'.
func (p *Parser) parseExprArgs() *Node {
	start := p.idx
	p.expect(token.LPAREN)
	kids := p.parseDelimited(token.RPAREN, p.parseExpr)
	return p.finish(KindExprArgs, start, kids...)
}

// isStop reports tokens that end any delimited list without being consumed.
func isStop(t token.TokenType) bool {
	switch t {
	case token.EOF, token.DOT, token.END, token.ARROW, token.SEMI, token.OF,
		token.AFTER, token.WHEN, token.ELSE, token.DPIPE,
		token.RPAREN, token.RBRACKET, token.RBRACE, token.GTGT:
		return true
	}
	return false
}

// parseDelimited parses comma separated elements up to and including
// closer. Unparseable tokens become Error children.
func (p *Parser) parseDelimited(closer token.TokenType, elem func() *Node) []*Node {
	var out []*Node
	for {
		if p.match(closer) {
			return out
		}
		if p.atEnd() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, "EOF", closer))
			return out
		}
		before := p.idx
		if e := elem(); e != nil {
			out = append(out, e)
		}
		if p.match(token.COMMA) {
			continue
		}
		if p.check(closer) {
			continue
		}
		if isStop(p.tok().Type) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), closer))
			return out
		}
		if p.idx == before {
			out = append(out, p.errorToken())
			continue
		}
		// Missing comma between elements.
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "','"))
	}
}
