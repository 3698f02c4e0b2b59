package syntax

import (
	"fmt"

	"github.com/leapstack-labs/leaperl/pkg/token"
)

// Attribute grammar:
//
//	attribute   → '-' name ['(' args ')'] '.'
//	module      → '-module(' atom ').'
//	export      → '-export([' fa (',' fa)* ']).'
//	import      → '-import(' atom ', [' fa (',' fa)* ']).'
//	type        → '-type' name '(' vars ')' '::' type '.'
//	spec        → '-spec' [atom ':'] atom sig (';' sig)* '.'
//	record      → '-record(' name ', {' field (',' field)* '}).'
//	define      → '-define(' name ['(' vars ')'] ',' replacement ').'
//	include     → '-include(' string ').'

// attrName returns the attribute name for the token after '-'. Keywords
// such as 'if' and 'else' name preprocessor directives.
func attrName(t token.Token) (string, bool) {
	if t.Type == token.ATOM || t.Type.IsKeyword() {
		return t.Literal, true
	}
	return "", false
}

func (p *Parser) parseAttribute() *Node {
	start := p.idx
	p.advance() // '-'
	name, ok := attrName(p.tok())
	if !ok {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "attribute name"))
		junk := p.syncForm()
		p.match(token.DOT)
		return p.finish(KindError, start, junk)
	}

	switch name {
	case "module":
		return p.parseNameAttr(start, KindModuleAttribute)
	case "behaviour", "behavior":
		return p.parseNameAttr(start, KindBehaviourAttribute)
	case "export":
		return p.parseFaListAttr(start, KindExportAttribute)
	case "export_type":
		return p.parseFaListAttr(start, KindExportTypeAttribute)
	case "optional_callbacks":
		return p.parseFaListAttr(start, KindOptionalCallbacksAttribute)
	case "import":
		return p.parseImport(start)
	case "compile":
		return p.parseValueAttr(start, KindCompileOptionsAttribute)
	case "deprecated":
		return p.parseValueAttr(start, KindDeprecatedAttribute)
	case "type":
		return p.parseTypeAlias(start, KindTypeAlias)
	case "opaque":
		return p.parseTypeAlias(start, KindOpaque)
	case "spec":
		return p.parseSpec(start, KindSpec)
	case "callback":
		return p.parseSpec(start, KindCallback)
	case "record":
		return p.parseRecordDecl(start)
	case "define":
		return p.parseDefine(start)
	case "include":
		return p.parseInclude(start, KindPpInclude)
	case "include_lib":
		return p.parseInclude(start, KindPpIncludeLib)
	case "undef":
		return p.parseMacroNameAttr(start, KindPpUndef)
	case "ifdef":
		return p.parseMacroNameAttr(start, KindPpIfdef)
	case "ifndef":
		return p.parseMacroNameAttr(start, KindPpIfndef)
	case "if":
		return p.parseValueAttr(start, KindPpIf)
	case "elif":
		return p.parseValueAttr(start, KindPpElif)
	case "else":
		p.advance()
		return p.finish(KindPpElse, start, p.endForm())
	case "endif":
		p.advance()
		return p.finish(KindPpEndif, start, p.endForm())
	}
	return p.parseWildAttribute(start)
}

// parseNameAttr parses -name(atom).
func (p *Parser) parseNameAttr(start int, kind NodeKind) *Node {
	p.advance()
	p.expect(token.LPAREN)
	var name *Node
	if p.check(token.ATOM) {
		name = p.leaf(KindAtom)
	} else if p.check(token.QMARK) {
		name = p.parseMacroCall()
	} else {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "atom"))
	}
	p.expect(token.RPAREN)
	return p.finish(kind, start, field(FieldName, name), p.endForm())
}

func (p *Parser) parseFaListAttr(start int, kind NodeKind) *Node {
	p.advance()
	p.expect(token.LPAREN)
	fas := p.parseFaList()
	p.expect(token.RPAREN)
	kids := fields(FieldFun, fas)
	kids = append(kids, p.endForm())
	return p.finish(kind, start, kids...)
}

func (p *Parser) parseImport(start int) *Node {
	p.advance()
	p.expect(token.LPAREN)
	var module *Node
	if p.check(token.ATOM) {
		module = field(FieldModule, p.leaf(KindAtom))
	}
	p.expect(token.COMMA)
	fas := fields(FieldFun, p.parseFaList())
	p.expect(token.RPAREN)
	kids := append([]*Node{module}, fas...)
	kids = append(kids, p.endForm())
	return p.finish(KindImportAttribute, start, kids...)
}

// parseFaList parses '[' fa (',' fa)* ']'.
func (p *Parser) parseFaList() []*Node {
	if !p.expect(token.LBRACKET) {
		return nil
	}
	return p.parseDelimited(token.RBRACKET, p.parseFa)
}

// parseFa parses name '/' arity.
func (p *Parser) parseFa() *Node {
	start := p.idx
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.QMARK):
		name = p.parseMacroCall()
	default:
		return nil
	}
	var arity *Node
	if p.match(token.SLASH) {
		as := p.idx
		var value *Node
		switch {
		case p.check(token.INTEGER):
			value = p.leaf(KindInteger)
		case p.check(token.QMARK):
			value = p.parseMacroCall()
		}
		arity = p.finish(KindArity, as, field(FieldValue, value))
	}
	return p.finish(KindFa, start, field(FieldFun, name), field(FieldArity, arity))
}

// parseValueAttr parses -name(expr).
func (p *Parser) parseValueAttr(start int, kind NodeKind) *Node {
	p.advance()
	var value *Node
	if p.match(token.LPAREN) {
		value = p.parseExpr()
		p.expect(token.RPAREN)
	}
	return p.finish(kind, start, field(FieldValue, value), p.endForm())
}

func (p *Parser) parseWildAttribute(start int) *Node {
	ns := p.idx
	atom := p.leaf(KindAtom)
	name := p.finish(KindAttrName, ns, field(FieldName, atom))
	var value *Node
	if p.match(token.LPAREN) {
		value = p.parseExpr()
		p.expect(token.RPAREN)
	}
	return p.finish(KindWildAttribute, start, field(FieldName, name), field(FieldValue, value), p.endForm())
}

func (p *Parser) parseMacroNameAttr(start int, kind NodeKind) *Node {
	p.advance()
	p.expect(token.LPAREN)
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.VAR):
		name = p.leaf(KindVar)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "macro name"))
	}
	p.expect(token.RPAREN)
	return p.finish(kind, start, field(FieldName, name), p.endForm())
}

func (p *Parser) parseInclude(start int, kind NodeKind) *Node {
	p.advance()
	p.expect(token.LPAREN)
	var parts []*Node
	for p.check(token.STRING) || p.check(token.QMARK) {
		if p.check(token.STRING) {
			parts = append(parts, field(FieldFile, p.leaf(KindString)))
		} else {
			parts = append(parts, field(FieldFile, p.parseMacroCall()))
		}
	}
	p.expect(token.RPAREN)
	parts = append(parts, p.endForm())
	return p.finish(kind, start, parts...)
}

// ---------- Types and Specs ----------

// parseTypeAlias parses -type name(Vars) :: type. with optional outer parens.
func (p *Parser) parseTypeAlias(start int, kind NodeKind) *Node {
	p.advance()
	parens := p.check(token.LPAREN) && p.peekAt(1).Type == token.ATOM && p.peekAt(2).Type == token.LPAREN
	if parens {
		p.advance()
	}
	ns := p.idx
	var nameAtom *Node
	switch {
	case p.check(token.ATOM):
		nameAtom = p.leaf(KindAtom)
	case p.check(token.QMARK):
		nameAtom = p.parseMacroCallNoArgs()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "type name"))
	}
	var args *Node
	if p.check(token.LPAREN) {
		as := p.idx
		p.advance()
		vars := p.parseDelimited(token.RPAREN, p.parseExpr)
		args = p.finish(KindVarArgs, as, vars...)
	}
	name := p.finish(KindTypeName, ns, field(FieldName, nameAtom), field(FieldArgs, args))
	var ty *Node
	if p.expect(token.COLONCOLON) {
		ty = p.parseExpr()
	}
	if parens {
		p.expect(token.RPAREN)
	}
	return p.finish(kind, start, field(FieldName, name), field(FieldTy, ty), p.endForm())
}

// parseSpec parses -spec [Mod:]name sig (';' sig)*. and -callback.
func (p *Parser) parseSpec(start int, kind NodeKind) *Node {
	p.advance()
	parens := p.check(token.LPAREN) && p.peekAt(1).Type == token.ATOM
	if parens {
		p.advance()
	}
	var kids []*Node
	if p.check(token.ATOM) && p.checkPeek(token.COLON) {
		ms := p.idx
		mod := p.leaf(KindAtom)
		p.advance()
		kids = append(kids, field(FieldModule, p.finish(KindModule, ms, field(FieldName, mod))))
	}
	switch {
	case p.check(token.ATOM):
		kids = append(kids, field(FieldFun, p.leaf(KindAtom)))
	case p.check(token.QMARK):
		kids = append(kids, field(FieldFun, p.parseMacroCallNoArgs()))
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "function name"))
	}
	for {
		if !p.check(token.LPAREN) {
			break
		}
		kids = append(kids, field(FieldSig, p.parseTypeSig()))
		if !p.match(token.SEMI) {
			break
		}
	}
	if parens {
		p.match(token.RPAREN)
	}
	kids = append(kids, p.endForm())
	return p.finish(kind, start, kids...)
}

// parseTypeSig parses (args) -> result [when guards].
func (p *Parser) parseTypeSig() *Node {
	start := p.idx
	args := p.parseExprArgs()
	var result *Node
	if p.expect(token.ARROW) {
		result = p.parseExpr()
	}
	var guards *Node
	if p.check(token.WHEN) {
		gs := p.idx
		p.advance()
		guards = p.finish(KindTypeGuards, gs, p.parseExprSeq()...)
	}
	return p.finish(KindTypeSig, start,
		field(FieldArgs, args), field(FieldResult, result), field(FieldGuard, guards))
}

// ---------- Records ----------

func (p *Parser) parseRecordDecl(start int) *Node {
	p.advance()
	p.expect(token.LPAREN)
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.QMARK):
		name = p.parseMacroCall()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "record name"))
	}
	p.expect(token.COMMA)
	var fieldNodes []*Node
	if p.expect(token.LBRACE) {
		fieldNodes = p.parseDelimited(token.RBRACE, p.parseRecordDeclField)
	}
	p.expect(token.RPAREN)
	kids := append([]*Node{field(FieldName, name)}, fields(FieldField, fieldNodes)...)
	kids = append(kids, p.endForm())
	return p.finish(KindRecordDecl, start, kids...)
}

// parseRecordDeclField parses name ['=' expr] ['::' type].
func (p *Parser) parseRecordDeclField() *Node {
	start := p.idx
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.QMARK):
		name = p.parseMacroCall()
	default:
		return nil
	}
	var value, ty *Node
	if p.match(token.MATCH) {
		value = p.parseExprPrec(precPipe)
	}
	if p.check(token.COLONCOLON) {
		ts := p.idx
		p.advance()
		t := p.parseExprPrec(precPipe)
		ty = p.finish(KindFieldType, ts, field(FieldTy, t))
	}
	return p.finish(KindRecordField, start, field(FieldName, name), field(FieldValue, value), field(FieldTy, ty))
}

// ---------- Macro Definitions ----------

func (p *Parser) parseDefine(start int) *Node {
	p.advance()
	p.expect(token.LPAREN)

	ls := p.idx
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.VAR):
		name = p.leaf(KindVar)
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "macro name"))
	}
	var args *Node
	if p.check(token.LPAREN) {
		as := p.idx
		p.advance()
		vars := p.parseDelimited(token.RPAREN, func() *Node {
			if p.check(token.VAR) {
				return p.leaf(KindVar)
			}
			return nil
		})
		args = p.finish(KindVarArgs, as, vars...)
	}
	lhs := p.finish(KindMacroLhs, ls, field(FieldName, name), field(FieldArgs, args))

	var replacement *Node
	if p.match(token.COMMA) {
		replacement = p.parseReplacement()
	}
	p.expect(token.RPAREN)
	return p.finish(KindPpDefine, start, field(FieldLhs, lhs), field(FieldReplacement, replacement), p.endForm())
}

// replacementEnd finds the ')' closing a -define, which is the last ')' at
// bracket depth zero before the terminating '.'.
func (p *Parser) replacementEnd() int {
	depth := 0
	last := -1
	for i := p.idx; i < p.limit; i++ {
		switch p.toks[i].Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE, token.LTLT:
			depth++
		case token.RPAREN:
			if depth == 0 {
				last = i
				if i+1 < p.limit && p.toks[i+1].Type == token.DOT {
					return i
				}
				continue
			}
			depth--
		case token.RBRACKET, token.RBRACE, token.GTGT:
			if depth > 0 {
				depth--
			}
		case token.DOT:
			if depth == 0 && last >= 0 {
				return last
			}
		}
	}
	return last
}

// parseReplacement parses a macro body: a function clause, a case clause
// or an expression. Anything left over turns the body into an Error node.
func (p *Parser) parseReplacement() *Node {
	end := p.replacementEnd()
	if end < 0 {
		return p.parseExpr()
	}
	saved := p.limit
	p.limit = end
	defer func() { p.limit = saved }()

	if p.atEnd() {
		return nil
	}
	start := p.idx
	var body *Node
	switch {
	case p.check(token.ATOM) && p.checkPeek(token.LPAREN) && p.hasTopLevelArrow():
		body = p.parseFunctionClause()
	case p.hasTopLevelArrow():
		body = p.parseCrClause()
	default:
		body = p.parseExpr()
	}
	if !p.atEnd() {
		rest := p.errorNode(func(token.Token) bool { return false })
		return p.finish(KindError, start, body, rest)
	}
	return body
}

// hasTopLevelArrow reports whether '->' occurs outside brackets and blocks
// between the current token and the limit.
func (p *Parser) hasTopLevelArrow() bool {
	depth := 0
	for i := p.idx; i < p.limit; i++ {
		switch p.toks[i].Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE, token.LTLT,
			token.BEGIN, token.CASE, token.IF, token.RECEIVE, token.TRY, token.MAYBE:
			depth++
		case token.FUN:
			if i+1 < p.limit && (p.toks[i+1].Type == token.LPAREN || p.toks[i+1].Type == token.VAR) {
				depth++
			}
		case token.RPAREN, token.RBRACKET, token.RBRACE, token.GTGT, token.END:
			depth--
		case token.ARROW:
			if depth == 0 {
				return true
			}
		}
	}
	return false
}
