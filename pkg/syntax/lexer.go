package syntax

import (
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/leaperl/pkg/token"
)

// Lexer tokenizes Erlang source.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	// Comments collected during lexing.
	Comments []*token.Comment

	errors []error
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// Errors returns the lexical errors seen so far.
func (l *Lexer) Errors() []error {
	return l.errors
}

// Tokenize lexes the whole input, EOF token included.
func Tokenize(input string) ([]token.Token, []*token.Comment, []error) {
	l := NewLexer(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks, l.Comments, l.errors
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else if l.readPos > 0 {
		l.col++
	} else {
		l.col = 1
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		return
	}
	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) peekCharN(n int) byte {
	i := l.readPos + n - 1
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) addError(pos token.Position, msg string) {
	l.errors = append(l.errors, &LexError{Pos: pos, Message: msg})
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	if l.atEOF() {
		return token.Token{Type: token.EOF, Pos: pos, End: pos}
	}

	switch l.ch {
	case '(':
		return l.punct(pos, token.LPAREN, 1)
	case ')':
		return l.punct(pos, token.RPAREN, 1)
	case '[':
		return l.punct(pos, token.LBRACKET, 1)
	case ']':
		return l.punct(pos, token.RBRACKET, 1)
	case '{':
		return l.punct(pos, token.LBRACE, 1)
	case '}':
		return l.punct(pos, token.RBRACE, 1)
	case ',':
		return l.punct(pos, token.COMMA, 1)
	case ';':
		return l.punct(pos, token.SEMI, 1)
	case '!':
		return l.punct(pos, token.BANG, 1)
	case '#':
		return l.punct(pos, token.HASH, 1)
	case '*':
		return l.punct(pos, token.STAR, 1)
	case '.':
		if l.peekChar() == '.' {
			if l.peekCharN(2) == '.' {
				return l.punct(pos, token.DOTDOTDOT, 3)
			}
			return l.punct(pos, token.DOTDOT, 2)
		}
		return l.punct(pos, token.DOT, 1)
	case ':':
		switch l.peekChar() {
		case ':':
			return l.punct(pos, token.COLONCOLON, 2)
		case '=':
			return l.punct(pos, token.ASSOC, 2)
		}
		return l.punct(pos, token.COLON, 1)
	case '|':
		if l.peekChar() == '|' {
			return l.punct(pos, token.DPIPE, 2)
		}
		return l.punct(pos, token.PIPE, 1)
	case '-':
		switch l.peekChar() {
		case '>':
			return l.punct(pos, token.ARROW, 2)
		case '-':
			return l.punct(pos, token.MINUSMINUS, 2)
		}
		return l.punct(pos, token.MINUS, 1)
	case '+':
		if l.peekChar() == '+' {
			return l.punct(pos, token.PLUSPLUS, 2)
		}
		return l.punct(pos, token.PLUS, 1)
	case '/':
		if l.peekChar() == '=' {
			return l.punct(pos, token.NEQ, 2)
		}
		return l.punct(pos, token.SLASH, 1)
	case '=':
		switch l.peekChar() {
		case ':':
			if l.peekCharN(2) == '=' {
				return l.punct(pos, token.EXACTEQ, 3)
			}
		case '/':
			if l.peekCharN(2) == '=' {
				return l.punct(pos, token.EXACTNEQ, 3)
			}
		case '=':
			return l.punct(pos, token.EQEQ, 2)
		case '<':
			return l.punct(pos, token.LTE, 2)
		case '>':
			return l.punct(pos, token.FATARROW, 2)
		}
		return l.punct(pos, token.MATCH, 1)
	case '<':
		switch l.peekChar() {
		case '-':
			return l.punct(pos, token.LARROW, 2)
		case '=':
			return l.punct(pos, token.LEARROW, 2)
		case '<':
			return l.punct(pos, token.LTLT, 2)
		}
		return l.punct(pos, token.LT, 1)
	case '>':
		switch l.peekChar() {
		case '=':
			return l.punct(pos, token.GTE, 2)
		case '>':
			return l.punct(pos, token.GTGT, 2)
		}
		return l.punct(pos, token.GT, 1)
	case '?':
		switch l.peekChar() {
		case '?':
			return l.punct(pos, token.DQMARK, 2)
		case '=':
			return l.punct(pos, token.QMARKEQ, 2)
		}
		return l.punct(pos, token.QMARK, 1)
	case '$':
		return l.readCharLiteral(pos)
	case '"':
		return l.readQuoted(pos, '"', token.STRING)
	case '\'':
		return l.readQuoted(pos, '\'', token.ATOM)
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(pos)
	case l.ch == '_' || isUpper(l.ch):
		lit := l.readName()
		return l.finish(pos, token.VAR, lit, lit)
	case isLower(l.ch):
		lit := l.readName()
		return l.finish(pos, token.LookupIdent(lit), lit, lit)
	case l.ch >= utf8.RuneSelf:
		r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
		if unicode.IsUpper(r) {
			lit := l.readName()
			return l.finish(pos, token.VAR, lit, lit)
		}
		if unicode.IsLetter(r) {
			lit := l.readName()
			return l.finish(pos, token.ATOM, lit, lit)
		}
	}

	start := l.pos
	l.readChar()
	for l.ch >= 0x80 && l.ch < 0xC0 {
		l.readChar()
	}
	l.addError(pos, "unexpected character "+l.input[start:l.pos])
	return l.finish(pos, token.ILLEGAL, l.input[start:l.pos], "")
}

func (l *Lexer) punct(pos token.Position, t token.TokenType, n int) token.Token {
	start := l.pos
	for range n {
		l.readChar()
	}
	return token.Token{Type: t, Literal: l.input[start:l.pos], Pos: pos, End: l.currentPos()}
}

func (l *Lexer) finish(pos token.Position, t token.TokenType, lit, value string) token.Token {
	return token.Token{Type: t, Literal: lit, Value: value, Pos: pos, End: l.currentPos()}
}

// skipWhitespaceAndComments skips whitespace and collects % comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch l.ch {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.readChar()
		case '%':
			l.collectComment()
		default:
			return
		}
	}
}

func (l *Lexer) collectComment() {
	startPos := l.currentPos()
	start := l.pos
	for l.ch != '\n' && !l.atEOF() {
		l.readChar()
	}
	l.Comments = append(l.Comments, &token.Comment{
		Text: l.input[start:l.pos],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

// readName reads the tail of an atom or variable name.
func (l *Lexer) readName() string {
	start := l.pos
	for !l.atEOF() && (isNameChar(l.ch) || l.ch >= utf8.RuneSelf) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readQuoted reads a string or quoted atom, resolving escapes.
func (l *Lexer) readQuoted(pos token.Position, quote byte, t token.TokenType) token.Token {
	start := l.pos
	l.readChar() // opening quote

	var sb strings.Builder
	terminated := false
	for !l.atEOF() {
		if l.ch == quote {
			l.readChar()
			terminated = true
			break
		}
		if l.ch == '\\' {
			l.readChar()
			if l.atEOF() {
				break
			}
			sb.WriteRune(l.readEscape())
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if !terminated {
		l.addError(pos, ErrUnterminatedString)
		return l.finish(pos, token.ILLEGAL, lit, sb.String())
	}
	return l.finish(pos, t, lit, sb.String())
}

// readEscape decodes the escape sequence after a backslash.
func (l *Lexer) readEscape() rune {
	c := l.ch
	switch c {
	case 'b':
		l.readChar()
		return '\b'
	case 'd':
		l.readChar()
		return 0x7f
	case 'e':
		l.readChar()
		return 0x1b
	case 'f':
		l.readChar()
		return '\f'
	case 'n':
		l.readChar()
		return '\n'
	case 'r':
		l.readChar()
		return '\r'
	case 's':
		l.readChar()
		return ' '
	case 't':
		l.readChar()
		return '\t'
	case 'v':
		l.readChar()
		return '\v'
	case '^':
		l.readChar()
		ctl := l.ch
		l.readChar()
		return rune(ctl & 31)
	case 'x':
		l.readChar()
		if l.ch == '{' {
			l.readChar()
			var v rune
			for isHexDigit(l.ch) {
				v = v*16 + hexValue(l.ch)
				l.readChar()
			}
			if l.ch == '}' {
				l.readChar()
			}
			return v
		}
		var v rune
		for i := 0; i < 2 && isHexDigit(l.ch); i++ {
			v = v*16 + hexValue(l.ch)
			l.readChar()
		}
		return v
	}
	if c >= '0' && c <= '7' {
		var v rune
		for i := 0; i < 3 && l.ch >= '0' && l.ch <= '7'; i++ {
			v = v*8 + rune(l.ch-'0')
			l.readChar()
		}
		return v
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	for range size {
		l.readChar()
	}
	return r
}

// readCharLiteral reads $c, $\n and friends.
func (l *Lexer) readCharLiteral(pos token.Position) token.Token {
	start := l.pos
	l.readChar() // $
	if l.atEOF() {
		l.addError(pos, ErrInvalidChar)
		return l.finish(pos, token.ILLEGAL, l.input[start:l.pos], "")
	}
	var r rune
	if l.ch == '\\' {
		l.readChar()
		r = l.readEscape()
	} else {
		var size int
		r, size = utf8.DecodeRuneInString(l.input[l.pos:])
		for range size {
			l.readChar()
		}
	}
	return l.finish(pos, token.CHAR, l.input[start:l.pos], string(r))
}

// readNumber reads integers (with base and _ separators) and floats.
func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos
	l.readDigits(isDigit)

	if l.ch == '#' && isAlnum(l.peekChar()) {
		base, ok := new(big.Int).SetString(strings.ReplaceAll(l.input[start:l.pos], "_", ""), 10)
		l.readChar()
		digitsStart := l.pos
		l.readDigits(isAlnum)
		lit := l.input[start:l.pos]
		if !ok || !base.IsInt64() || base.Int64() < 2 || base.Int64() > 36 {
			l.addError(pos, ErrInvalidNumber)
			return l.finish(pos, token.INTEGER, lit, "")
		}
		v, ok := new(big.Int).SetString(strings.ReplaceAll(l.input[digitsStart:l.pos], "_", ""), int(base.Int64()))
		if !ok {
			l.addError(pos, ErrInvalidNumber)
			return l.finish(pos, token.INTEGER, lit, "")
		}
		return l.finish(pos, token.INTEGER, lit, v.String())
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		l.readDigits(isDigit)
		if (l.ch == 'e' || l.ch == 'E') &&
			(isDigit(l.peekChar()) || ((l.peekChar() == '-' || l.peekChar() == '+') && isDigit(l.peekCharN(2)))) {
			l.readChar()
			if l.ch == '-' || l.ch == '+' {
				l.readChar()
			}
			l.readDigits(isDigit)
		}
		lit := l.input[start:l.pos]
		return l.finish(pos, token.FLOAT, lit, strings.ReplaceAll(lit, "_", ""))
	}

	lit := l.input[start:l.pos]
	v, ok := new(big.Int).SetString(strings.ReplaceAll(lit, "_", ""), 10)
	if !ok {
		l.addError(pos, ErrInvalidNumber)
		return l.finish(pos, token.INTEGER, lit, "")
	}
	return l.finish(pos, token.INTEGER, lit, v.String())
}

// readDigits consumes digits accepted by ok, allowing single _ separators.
func (l *Lexer) readDigits(ok func(byte) bool) {
	for ok(l.ch) || (l.ch == '_' && ok(l.peekChar())) {
		l.readChar()
	}
}

func isDigit(ch byte) bool    { return ch >= '0' && ch <= '9' }
func isLower(ch byte) bool    { return ch >= 'a' && ch <= 'z' }
func isUpper(ch byte) bool    { return ch >= 'A' && ch <= 'Z' }
func isAlnum(ch byte) bool    { return isDigit(ch) || isLower(ch) || isUpper(ch) }
func isNameChar(ch byte) bool { return isAlnum(ch) || ch == '_' || ch == '@' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexValue(ch byte) rune {
	switch {
	case isDigit(ch):
		return rune(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return rune(ch-'a') + 10
	default:
		return rune(ch-'A') + 10
	}
}
