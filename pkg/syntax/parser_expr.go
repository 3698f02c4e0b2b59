package syntax

import (
	"fmt"

	"github.com/leapstack-labs/leaperl/pkg/token"
)

// Expression grammar (lowest to highest binding):
//
//	'catch' expr
//	expr '::' expr                     right
//	expr '|' expr                      right
//	expr ('=' | '!' | '?=') expr       right
//	expr 'orelse' expr                 right
//	expr 'andalso' expr                right
//	expr compare_op expr               non-associative
//	expr '..' expr                     non-associative
//	expr ('++' | '--') expr            right
//	expr add_op expr                   left
//	expr mult_op expr                  left
//	prefix_op expr
//	postfix

// Precedence levels.
const (
	precLowest = iota
	precAnn
	precPipe
	precMatch
	precOrelse
	precAndalso
	precComp
	precRange
	precList
	precAdd
	precMul
)

type binop struct {
	prec  int
	right bool
	kind  NodeKind
}

var binops = map[token.TokenType]binop{
	token.COLONCOLON: {precAnn, true, KindAnnType},
	token.PIPE:       {precPipe, true, KindPipe},
	token.MATCH:      {precMatch, true, KindMatchExpr},
	token.BANG:       {precMatch, true, KindBinaryOpExpr},
	token.QMARKEQ:    {precMatch, true, KindCondMatchExpr},
	token.ORELSE:     {precOrelse, true, KindBinaryOpExpr},
	token.ANDALSO:    {precAndalso, true, KindBinaryOpExpr},

	token.EQEQ:     {precComp, false, KindBinaryOpExpr},
	token.NEQ:      {precComp, false, KindBinaryOpExpr},
	token.LTE:      {precComp, false, KindBinaryOpExpr},
	token.LT:       {precComp, false, KindBinaryOpExpr},
	token.GTE:      {precComp, false, KindBinaryOpExpr},
	token.GT:       {precComp, false, KindBinaryOpExpr},
	token.EXACTEQ:  {precComp, false, KindBinaryOpExpr},
	token.EXACTNEQ: {precComp, false, KindBinaryOpExpr},

	token.DOTDOT: {precRange, false, KindRangeType},

	token.PLUSPLUS:   {precList, true, KindBinaryOpExpr},
	token.MINUSMINUS: {precList, true, KindBinaryOpExpr},

	token.PLUS:  {precAdd, false, KindBinaryOpExpr},
	token.MINUS: {precAdd, false, KindBinaryOpExpr},
	token.BOR:   {precAdd, false, KindBinaryOpExpr},
	token.BXOR:  {precAdd, false, KindBinaryOpExpr},
	token.BSL:   {precAdd, false, KindBinaryOpExpr},
	token.BSR:   {precAdd, false, KindBinaryOpExpr},
	token.OR:    {precAdd, false, KindBinaryOpExpr},
	token.XOR:   {precAdd, false, KindBinaryOpExpr},

	token.SLASH: {precMul, false, KindBinaryOpExpr},
	token.STAR:  {precMul, false, KindBinaryOpExpr},
	token.DIV:   {precMul, false, KindBinaryOpExpr},
	token.REM:   {precMul, false, KindBinaryOpExpr},
	token.BAND:  {precMul, false, KindBinaryOpExpr},
	token.AND:   {precMul, false, KindBinaryOpExpr},
}

func isPrefixOp(t token.TokenType) bool {
	switch t {
	case token.PLUS, token.MINUS, token.BNOT, token.NOT:
		return true
	}
	return false
}

// parseExpr parses a full expression. It returns nil, consuming nothing,
// when the current token cannot start an expression.
func (p *Parser) parseExpr() *Node {
	return p.parseExprPrec(precLowest)
}

func (p *Parser) parseExprPrec(minPrec int) *Node {
	start := p.idx
	var lhs *Node
	if p.check(token.CATCH) {
		p.advance()
		operand := p.parseExprPrec(precMatch)
		lhs = p.finish(KindCatchExpr, start, field(FieldExpr, operand))
	} else {
		lhs = p.parseUnary()
	}
	if lhs == nil {
		return nil
	}

	for {
		op := p.tok().Type
		info, ok := binops[op]
		if !ok || info.prec < minPrec {
			return lhs
		}
		p.advance()
		next := info.prec + 1
		if info.right {
			next = info.prec
		}
		rhs := p.parseExprPrec(next)
		n := p.finish(info.kind, start, field(FieldLhs, lhs), field(FieldRhs, rhs))
		n.Op = op
		lhs = n
	}
}

// parseUnary parses prefix_op* postfix.
func (p *Parser) parseUnary() *Node {
	if !isPrefixOp(p.tok().Type) {
		return p.parsePostfix()
	}
	start := p.idx
	op := p.tok().Type
	p.advance()
	operand := p.parseUnary()
	n := p.finish(KindUnaryOpExpr, start, field(FieldExpr, operand))
	n.Op = op
	return n
}

// parsePostfix parses primary followed by remote, call and record/map suffixes.
func (p *Parser) parsePostfix() *Node {
	start := p.idx
	e := p.parsePrimary()
	if e == nil {
		return nil
	}
	for {
		switch {
		case p.check(token.COLON) && !p.noRemote:
			p.advance()
			module := p.finish(KindRemoteModule, start, field(FieldModule, e))
			fn := p.parsePrimary()
			e = p.finish(KindRemote, start, field(FieldModule, module), field(FieldFun, fn))
		case p.check(token.LPAREN):
			args := p.parseExprArgs()
			e = p.finish(KindCall, start, field(FieldExpr, e), field(FieldArgs, args))
		case p.check(token.HASH):
			e = p.parseHashSuffix(start, e)
		default:
			return e
		}
	}
}

// parseHashSuffix parses Expr#{...}, Expr#name{...} and Expr#name.field.
func (p *Parser) parseHashSuffix(start int, expr *Node) *Node {
	p.advance() // '#'
	if p.check(token.LBRACE) {
		p.advance()
		fs := p.parseDelimited(token.RBRACE, p.parseMapField)
		kids := append([]*Node{field(FieldExpr, expr)}, fields(FieldField, fs)...)
		return p.finish(KindMapExprUpdate, start, kids...)
	}
	name := p.parseRecordName()
	if p.match(token.DOT) {
		fieldName := p.parseRecordFieldName()
		return p.finish(KindRecordFieldExpr, start,
			field(FieldExpr, expr), field(FieldName, name), field(FieldField, fieldName))
	}
	var fs []*Node
	if p.expect(token.LBRACE) {
		fs = p.parseDelimited(token.RBRACE, p.parseRecordExprField)
	}
	kids := append([]*Node{field(FieldExpr, expr), field(FieldName, name)}, fields(FieldField, fs)...)
	return p.finish(KindRecordUpdateExpr, start, kids...)
}

func (p *Parser) parseRecordName() *Node {
	start := p.idx
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.QMARK):
		name = p.parseMacroCallNoArgs()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "record name"))
	}
	return p.finish(KindRecordName, start, field(FieldName, name))
}

func (p *Parser) parseRecordFieldName() *Node {
	start := p.idx
	var name *Node
	switch {
	case p.check(token.ATOM):
		name = p.leaf(KindAtom)
	case p.check(token.VAR):
		name = p.leaf(KindVar)
	case p.check(token.QMARK):
		name = p.parseMacroCallNoArgs()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "field name"))
	}
	return p.finish(KindRecordFieldName, start, field(FieldName, name))
}

// parseRecordExprField parses name ['=' expr] ['::' type].
func (p *Parser) parseRecordExprField() *Node {
	if !p.check(token.ATOM) && !p.check(token.VAR) && !p.check(token.QMARK) {
		return nil
	}
	start := p.idx
	name := p.parseRecordFieldName()
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

// parseMapField parses key ('=>' | ':=') value.
func (p *Parser) parseMapField() *Node {
	start := p.idx
	key := p.parseExprPrec(precAnn)
	if key == nil {
		return nil
	}
	op := p.tok().Type
	var value *Node
	if op == token.FATARROW || op == token.ASSOC {
		p.advance()
		value = p.parseExprPrec(precAnn)
	} else {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'=>' or ':='"))
		op = token.FATARROW
	}
	n := p.finish(KindMapField, start, field(FieldKey, key), field(FieldValue, value))
	n.Op = op
	return n
}

// parsePrimary parses an expression atom. It returns nil without consuming
// anything if the current token cannot start one.
func (p *Parser) parsePrimary() *Node {
	t := p.tok()
	switch t.Type {
	case token.ATOM:
		return p.leaf(KindAtom)
	case token.VAR:
		return p.leaf(KindVar)
	case token.INTEGER:
		return p.leaf(KindInteger)
	case token.FLOAT:
		return p.leaf(KindFloat)
	case token.CHAR:
		return p.leaf(KindChar)
	case token.STRING:
		return p.parseStringLike()
	case token.QMARK:
		m := p.parseMacroCall()
		if p.check(token.STRING) {
			return p.parseConcat(m.FirstTok, m)
		}
		return m
	case token.DQMARK:
		return p.parseMacroString()
	case token.LPAREN:
		start := p.idx
		p.advance()
		inner := p.parseExpr()
		p.expect(token.RPAREN)
		return p.finish(KindParenExpr, start, field(FieldExpr, inner))
	case token.LBRACE:
		start := p.idx
		p.advance()
		elems := p.parseDelimited(token.RBRACE, p.parseExpr)
		return p.finish(KindTuple, start, elems...)
	case token.LBRACKET:
		return p.parseList()
	case token.LTLT:
		return p.parseBinary()
	case token.HASH:
		return p.parseHashPrimary()
	case token.BEGIN:
		start := p.idx
		p.advance()
		body := p.parseClauseBody()
		p.expectEnd("begin")
		return p.finish(KindBlockExpr, start, field(FieldBody, body))
	case token.IF:
		return p.parseIf()
	case token.CASE:
		return p.parseCase()
	case token.RECEIVE:
		return p.parseReceive()
	case token.TRY:
		return p.parseTry()
	case token.MAYBE:
		return p.parseMaybe()
	case token.FUN:
		return p.parseFun()
	case token.CATCH:
		start := p.idx
		p.advance()
		operand := p.parseExprPrec(precMatch)
		return p.finish(KindCatchExpr, start, field(FieldExpr, operand))
	case token.DOTDOTDOT:
		start := p.idx
		p.advance()
		return p.finish(KindDotdotdot, start)
	}
	return nil
}

// parseStringLike parses a string and any adjacent strings, macros or
// variables that form one concatenated literal.
func (p *Parser) parseStringLike() *Node {
	start := p.idx
	first := p.leaf(KindString)
	switch p.tok().Type {
	case token.STRING, token.QMARK, token.DQMARK, token.VAR:
		return p.parseConcat(start, first)
	}
	return first
}

func (p *Parser) parseConcat(start int, first *Node) *Node {
	parts := []*Node{first}
	for {
		switch p.tok().Type {
		case token.STRING:
			parts = append(parts, p.leaf(KindString))
		case token.QMARK:
			parts = append(parts, p.parseMacroCall())
		case token.DQMARK:
			parts = append(parts, p.parseMacroString())
		case token.VAR:
			parts = append(parts, p.leaf(KindVar))
		default:
			return p.finish(KindStringConcat, start, parts...)
		}
	}
}

// parseMacroCall parses '?' name ['(' args ')'].
func (p *Parser) parseMacroCall() *Node {
	start := p.idx
	p.advance() // '?'
	name := p.parseMacroName()
	var args *Node
	if p.check(token.LPAREN) {
		as := p.idx
		p.advance()
		elems := p.parseDelimited(token.RPAREN, p.parseMacroArg)
		args = p.finish(KindMacroCallArgs, as, elems...)
	}
	return p.finish(KindMacroCallExpr, start, field(FieldName, name), field(FieldArgs, args))
}

// parseMacroArg parses one macro argument, which may be a bare clause
// such as 'ok -> ok'.
func (p *Parser) parseMacroArg() *Node {
	return p.parseExpr()
}

// parseMacroCallNoArgs parses '?' name, leaving any '(' for the caller.
func (p *Parser) parseMacroCallNoArgs() *Node {
	start := p.idx
	p.advance()
	name := p.parseMacroName()
	return p.finish(KindMacroCallExpr, start, field(FieldName, name))
}

func (p *Parser) parseMacroName() *Node {
	switch {
	case p.check(token.ATOM):
		return p.leaf(KindAtom)
	case p.check(token.VAR):
		return p.leaf(KindVar)
	case p.tok().Type.IsKeyword():
		// ?if and friends are legal macro names.
		n := p.leaf(KindAtom)
		n.Tok.Value = n.Tok.Literal
		return n
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "macro name"))
	return nil
}

func (p *Parser) parseMacroString() *Node {
	start := p.idx
	p.advance() // '??'
	name := p.parseMacroName()
	return p.finish(KindMacroString, start, field(FieldName, name))
}

// parseList parses '[' ']' | '[' elems ['|' tail] ']' | '[' expr '||' lc ']'.
func (p *Parser) parseList() *Node {
	start := p.idx
	p.advance() // '['
	if p.match(token.RBRACKET) {
		return p.finish(KindList, start)
	}
	first := p.parseExprPrec(precMatch)
	if p.check(token.DPIPE) {
		lc := p.parseLcExprs(token.RBRACKET)
		return p.finish(KindListComprehension, start, field(FieldExpr, first), field(FieldLcExprs, lc))
	}
	elems := []*Node{first}
	var tail *Node
	for {
		if p.match(token.COMMA) {
			elems = append(elems, p.parseExprPrec(precMatch))
			continue
		}
		if p.match(token.PIPE) {
			tail = field(FieldTail, p.parseExprPrec(precMatch))
		}
		break
	}
	if !p.match(token.RBRACKET) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "']'"))
		if junk := p.skipToCloser(token.RBRACKET); junk != nil {
			elems = append(elems, junk)
		}
	}
	elems = append(elems, tail)
	return p.finish(KindList, start, elems...)
}

// skipToCloser wraps tokens up to closer in an Error node and consumes closer.
func (p *Parser) skipToCloser(closer token.TokenType) *Node {
	junk := p.errorNode(func(t token.Token) bool { return isStop(t.Type) })
	p.match(closer)
	return junk
}

// parseLcExprs parses '||' (generator | filter) (',' ...)* closer.
func (p *Parser) parseLcExprs(closer token.TokenType) *Node {
	start := p.idx
	p.advance() // '||'
	items := p.parseDelimited(closer, p.parseLcExpr)
	return p.finish(KindLcExprs, start, items...)
}

func (p *Parser) parseLcExpr() *Node {
	start := p.idx
	lhs := p.parseExprPrec(precMatch)
	if lhs == nil {
		return nil
	}
	switch p.tok().Type {
	case token.ASSOC:
		p.advance()
		value := p.parseExprPrec(precMatch)
		p.expect(token.LARROW)
		rhs := p.parseExpr()
		return p.finish(KindMapGenerator, start, field(FieldKey, lhs), field(FieldValue, value), field(FieldRhs, rhs))
	case token.LARROW:
		p.advance()
		rhs := p.parseExpr()
		return p.finish(KindListGenerator, start, field(FieldLhs, lhs), field(FieldRhs, rhs))
	case token.LEARROW:
		p.advance()
		rhs := p.parseExpr()
		return p.finish(KindBinaryGenerator, start, field(FieldLhs, lhs), field(FieldRhs, rhs))
	}
	return lhs
}

// parseBinary parses '<<' elements '>>' or a binary comprehension.
func (p *Parser) parseBinary() *Node {
	start := p.idx
	p.advance() // '<<'
	if p.match(token.GTGT) {
		return p.finish(KindBinary, start)
	}
	first := p.parseBinElement()
	if p.check(token.DPIPE) {
		head := first
		if head != nil && len(head.Children) == 1 {
			head = head.Children[0]
		}
		lc := p.parseLcExprs(token.GTGT)
		return p.finish(KindBinaryComprehension, start, field(FieldExpr, head), field(FieldLcExprs, lc))
	}
	elems := []*Node{first}
	if p.match(token.COMMA) {
		elems = append(elems, p.parseDelimited(token.GTGT, p.parseBinElement)...)
	} else if !p.match(token.GTGT) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'>>'"))
		if junk := p.skipToCloser(token.GTGT); junk != nil {
			elems = append(elems, junk)
		}
	}
	return p.finish(KindBinary, start, elems...)
}

// parseBinElement parses [prefix_op] value [':' size] ['/' types].
func (p *Parser) parseBinElement() *Node {
	start := p.idx
	saved := p.noRemote
	p.noRemote = true
	defer func() { p.noRemote = saved }()

	var value *Node
	if isPrefixOp(p.tok().Type) {
		op := p.tok().Type
		p.advance()
		operand := p.parsePostfix()
		value = p.finish(KindUnaryOpExpr, start, field(FieldExpr, operand))
		value.Op = op
	} else {
		value = p.parsePostfix()
	}
	if value == nil {
		return nil
	}
	var size, types *Node
	if p.match(token.COLON) {
		size = p.parsePostfix()
	}
	if p.check(token.SLASH) {
		ts := p.idx
		p.advance()
		var specs []*Node
		for {
			s := p.parseBitType()
			if s == nil {
				break
			}
			specs = append(specs, s)
			if !p.match(token.MINUS) {
				break
			}
		}
		types = p.finish(KindBitTypeList, ts, specs...)
	}
	return p.finish(KindBinElement, start, field(FieldValue, value), field(FieldSize, size), field(FieldTypes, types))
}

// parseBitType parses atom or atom ':' integer.
func (p *Parser) parseBitType() *Node {
	if !p.check(token.ATOM) {
		return nil
	}
	start := p.idx
	name := p.leaf(KindAtom)
	if p.match(token.COLON) {
		var size *Node
		if p.check(token.INTEGER) {
			size = p.leaf(KindInteger)
		}
		return p.finish(KindBitTypeUnit, start, field(FieldName, name), field(FieldSize, size))
	}
	return name
}

// parseHashPrimary parses '#{...}', '#name{...}' and '#name.field'.
func (p *Parser) parseHashPrimary() *Node {
	start := p.idx
	p.advance() // '#'
	if p.check(token.LBRACE) {
		p.advance()
		if p.match(token.RBRACE) {
			return p.finish(KindMapExpr, start)
		}
		first := p.parseMapField()
		if p.check(token.DPIPE) {
			lc := p.parseLcExprs(token.RBRACE)
			return p.finish(KindMapComprehension, start, field(FieldExpr, first), field(FieldLcExprs, lc))
		}
		fs := []*Node{first}
		if p.match(token.COMMA) {
			fs = append(fs, p.parseDelimited(token.RBRACE, p.parseMapField)...)
		} else if !p.match(token.RBRACE) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'}'"))
			if junk := p.skipToCloser(token.RBRACE); junk != nil {
				fs = append(fs, junk)
			}
		}
		return p.finish(KindMapExpr, start, fields(FieldField, fs)...)
	}
	name := p.parseRecordName()
	if p.match(token.DOT) {
		fieldName := p.parseRecordFieldName()
		return p.finish(KindRecordIndexExpr, start, field(FieldName, name), field(FieldField, fieldName))
	}
	var fs []*Node
	if p.expect(token.LBRACE) {
		fs = p.parseDelimited(token.RBRACE, p.parseRecordExprField)
	}
	kids := append([]*Node{field(FieldName, name)}, fields(FieldField, fs)...)
	return p.finish(KindRecordExpr, start, kids...)
}

// parseFun parses closures, captures and fun types.
//
//	fun_expr    → 'fun' clause (';' clause)* 'end'
//	capture     → 'fun' [module ':'] name '/' arity
//	fun_type    → 'fun' '(' ')' | 'fun' '(' '(' args ')' '->' type ')'
func (p *Parser) parseFun() *Node {
	start := p.idx
	p.advance() // 'fun'
	switch {
	case p.check(token.LPAREN) && p.checkPeek(token.LPAREN):
		p.advance()
		ss := p.idx
		var args *Node
		if p.peekAt(1).Type == token.DOTDOTDOT {
			as := p.idx
			p.advance()
			p.advance()
			p.expect(token.RPAREN)
			args = p.finish(KindDotdotdot, as)
		} else {
			args = p.parseExprArgs()
		}
		var result *Node
		if p.expect(token.ARROW) {
			result = p.parseExpr()
		}
		sig := p.finish(KindFunTypeSig, ss, field(FieldArgs, args), field(FieldResult, result))
		p.expect(token.RPAREN)
		return p.finish(KindFunType, start, field(FieldSig, sig))
	case p.check(token.LPAREN) && p.checkPeek(token.RPAREN) &&
		p.peekAt(2).Type != token.ARROW && p.peekAt(2).Type != token.WHEN:
		p.advance()
		p.advance()
		return p.finish(KindFunType, start)
	case p.check(token.LPAREN), p.check(token.VAR) && p.checkPeek(token.LPAREN):
		var clauses []*Node
		for {
			before := p.idx
			clauses = append(clauses, field(FieldClause, p.parseFunClause()))
			if !p.match(token.SEMI) || p.idx == before {
				break
			}
		}
		p.expectEnd("fun")
		return p.finish(KindAnonymousFun, start, clauses...)
	}

	first := p.parseFunRefPart()
	if p.check(token.COLON) {
		module := p.finish(KindModule, startOf(first, p.idx), field(FieldName, first))
		p.advance()
		name := p.parseFunRefPart()
		arity := p.parseFunArity()
		return p.finish(KindExternalFun, start, field(FieldModule, module), field(FieldFun, name), field(FieldArity, arity))
	}
	arity := p.parseFunArity()
	return p.finish(KindInternalFun, start, field(FieldFun, first), field(FieldArity, arity))
}

func startOf(n *Node, fallback int) int {
	if n != nil {
		return n.FirstTok
	}
	return fallback
}

// parseFunRefPart parses an atom, var or macro in a fun reference.
func (p *Parser) parseFunRefPart() *Node {
	switch {
	case p.check(token.ATOM):
		return p.leaf(KindAtom)
	case p.check(token.VAR):
		return p.leaf(KindVar)
	case p.check(token.QMARK):
		return p.parseMacroCallNoArgs()
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "function name"))
	return nil
}

func (p *Parser) parseFunArity() *Node {
	if !p.expect(token.SLASH) {
		return nil
	}
	start := p.idx
	var value *Node
	switch {
	case p.check(token.INTEGER):
		value = p.leaf(KindInteger)
	case p.check(token.VAR):
		value = p.leaf(KindVar)
	case p.check(token.QMARK):
		value = p.parseMacroCall()
	case p.check(token.LPAREN):
		value = p.parsePrimary()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "arity"))
	}
	return p.finish(KindArity, start, field(FieldValue, value))
}

// parseFunClause parses [Var] '(' args ')' [when guard] '->' body.
func (p *Parser) parseFunClause() *Node {
	start := p.idx
	var name *Node
	if p.check(token.VAR) {
		name = p.leaf(KindVar)
	}
	args := p.parseExprArgs()
	guard := p.parseOptGuard()
	var body *Node
	if p.expect(token.ARROW) {
		body = p.parseClauseBody()
	}
	return p.finish(KindFunClause, start,
		field(FieldName, name), field(FieldArgs, args), field(FieldGuard, guard), field(FieldBody, body))
}

func (p *Parser) expectEnd(what string) {
	if !p.match(token.END) {
		p.addError(fmt.Sprintf(ErrMissingEnd, what))
	}
}

// ---------- Block Expressions ----------

// isClauseEnd reports tokens that close a clause list.
func isClauseEnd(t token.TokenType) bool {
	switch t {
	case token.END, token.AFTER, token.CATCH, token.ELSE, token.OF,
		token.DOT, token.EOF, token.RPAREN, token.RBRACKET, token.RBRACE, token.GTGT:
		return true
	}
	return false
}

// parseClauses parses clause (';' clause)*, tolerating a missing ';'
// between clauses. Each clause is labelled f.
func (p *Parser) parseClauses(f Field, clause func() *Node) []*Node {
	var out []*Node
	for !isClauseEnd(p.tok().Type) {
		before := p.idx
		c := clause()
		if c == nil || p.idx == before {
			break
		}
		out = append(out, field(f, c))
		if p.match(token.SEMI) {
			continue
		}
		if isClauseEnd(p.tok().Type) || isStop(p.tok().Type) {
			break
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "';'"))
	}
	return out
}

// isClauseMacro reports whether the '?' at the current token is a macro
// standing in for a whole clause: ?NAME or ?NAME(...) followed by a clause
// separator rather than '->' or an operator.
func (p *Parser) isClauseMacro() bool {
	i := p.idx + 2
	if i < p.limit && p.toks[i].Type == token.LPAREN {
		end := p.matchingClose(i)
		if end < 0 {
			return false
		}
		i = end + 1
	}
	if i >= p.limit {
		return true
	}
	switch p.toks[i].Type {
	case token.SEMI, token.END, token.AFTER, token.CATCH, token.ELSE:
		return true
	}
	return false
}

// parseCrClause parses pat ['when' guard] '->' body for case, receive,
// try-of and maybe-else. A clause without '->' or without a body is kept
// as an Error node.
func (p *Parser) parseCrClause() *Node {
	if p.check(token.QMARK) && p.isClauseMacro() {
		return p.parseMacroCall()
	}
	start := p.idx
	pat := p.parseExpr()
	guard := p.parseOptGuard()
	var body *Node
	arrow := p.match(token.ARROW)
	if arrow {
		body = p.parseClauseBody()
	} else if p.idx != start {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'->'"))
	}
	if p.idx == start {
		return nil
	}
	n := p.finish(KindCrClause, start, field(FieldPat, pat), field(FieldGuard, guard), field(FieldBody, body))
	if !arrow || body.Empty() {
		n.Kind = KindError
	}
	return n
}

// parseCatchClause parses [class ':'] pat [':' stack] ['when' guard] '->' body.
func (p *Parser) parseCatchClause() *Node {
	if p.check(token.QMARK) && p.isClauseMacro() {
		return p.parseMacroCall()
	}
	start := p.idx
	saved := p.noRemote
	p.noRemote = true
	var class, pat, stack *Node
	first := p.parseExpr()
	if p.check(token.COLON) {
		class = p.finish(KindTryClass, start, field(FieldClass, first))
		p.advance()
		pat = p.parseExpr()
		if p.check(token.COLON) {
			ss := p.idx
			p.advance()
			var v *Node
			if p.check(token.VAR) {
				v = p.leaf(KindVar)
			} else {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "stacktrace variable"))
			}
			stack = p.finish(KindTryStack, ss, field(FieldName, v))
		}
	} else {
		pat = first
	}
	p.noRemote = saved

	guard := p.parseOptGuard()
	var body *Node
	arrow := p.match(token.ARROW)
	if arrow {
		body = p.parseClauseBody()
	} else if p.idx != start {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'->'"))
	}
	if p.idx == start {
		return nil
	}
	n := p.finish(KindCatchClause, start,
		field(FieldClass, class), field(FieldPat, pat), field(FieldStack, stack),
		field(FieldGuard, guard), field(FieldBody, body))
	if !arrow || body.Empty() {
		n.Kind = KindError
	}
	return n
}

// parseIfClause parses guard '->' body.
func (p *Parser) parseIfClause() *Node {
	start := p.idx
	guard := p.parseGuardFrom(start)
	var body *Node
	arrow := p.match(token.ARROW)
	if arrow {
		body = p.parseClauseBody()
	} else if p.idx != start {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.tok()), "'->'"))
	}
	if p.idx == start {
		return nil
	}
	n := p.finish(KindIfClause, start, field(FieldGuard, guard), field(FieldBody, body))
	if !arrow {
		n.Kind = KindError
	}
	return n
}

func (p *Parser) parseIf() *Node {
	start := p.idx
	p.advance() // 'if'
	clauses := p.parseClauses(FieldClause, p.parseIfClause)
	p.expectEnd("if")
	return p.finish(KindIfExpr, start, clauses...)
}

func (p *Parser) parseCase() *Node {
	start := p.idx
	p.advance() // 'case'
	expr := p.parseExpr()
	kids := []*Node{field(FieldExpr, expr)}
	if p.expect(token.OF) {
		kids = append(kids, p.parseClauses(FieldClause, p.parseCrClause)...)
	}
	p.expectEnd("case")
	return p.finish(KindCaseExpr, start, kids...)
}

func (p *Parser) parseReceive() *Node {
	start := p.idx
	p.advance() // 'receive'
	kids := p.parseClauses(FieldClause, p.parseCrClause)
	if p.check(token.AFTER) {
		as := p.idx
		p.advance()
		timeout := p.parseExpr()
		var body *Node
		if p.expect(token.ARROW) {
			body = p.parseClauseBody()
		}
		after := p.finish(KindReceiveAfter, as, field(FieldTimeout, timeout), field(FieldBody, body))
		kids = append(kids, field(FieldAfter, after))
	}
	p.expectEnd("receive")
	return p.finish(KindReceiveExpr, start, kids...)
}

// parseTry parses
//
//	'try' exprs ['of' clauses] ['catch' catch_clauses] ['after' exprs] 'end'
func (p *Parser) parseTry() *Node {
	start := p.idx
	p.advance() // 'try'
	kids := []*Node{field(FieldBody, p.parseClauseBody())}
	if p.match(token.OF) {
		kids = append(kids, p.parseClauses(FieldOf, p.parseCrClause)...)
	}
	if p.match(token.CATCH) {
		kids = append(kids, p.parseClauses(FieldCatch, p.parseCatchClause)...)
	}
	if p.check(token.AFTER) {
		as := p.idx
		p.advance()
		body := p.parseClauseBody()
		kids = append(kids, field(FieldAfter, p.finish(KindTryAfter, as, field(FieldBody, body))))
	}
	p.expectEnd("try")
	return p.finish(KindTryExpr, start, kids...)
}

// parseMaybe parses 'maybe' exprs ['else' clauses] 'end'.
func (p *Parser) parseMaybe() *Node {
	start := p.idx
	p.advance() // 'maybe'
	kids := []*Node{field(FieldBody, p.parseClauseBody())}
	if p.match(token.ELSE) {
		kids = append(kids, p.parseClauses(FieldElse, p.parseCrClause)...)
	}
	p.expectEnd("maybe")
	return p.finish(KindMaybeExpr, start, kids...)
}
