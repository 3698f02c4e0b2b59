// Package token defines the lexical tokens of Erlang source files.
//
// Token kinds are a closed int32 enum so that the parser can switch on them
// directly. Keywords are reserved words; every other lowercase word is an atom.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	ATOM    // ok, 'quoted atom'
	VAR     // X, _Acc, _
	INTEGER // 42, 16#ff, 1_000
	FLOAT   // 1.5, 2.0e10
	CHAR    // $a, $\n
	STRING  // "text"

	// Punctuation
	LPAREN     // (
	RPAREN     // )
	LBRACKET   // [
	RBRACKET   // ]
	LBRACE     // {
	RBRACE     // }
	COMMA      // ,
	DOT        // .
	SEMI       // ;
	COLON      // :
	COLONCOLON // ::
	PIPE       // |
	DPIPE      // ||
	ARROW      // ->
	FATARROW   // =>
	ASSOC      // :=
	LARROW     // <-
	LEARROW    // <=
	LTLT       // <<
	GTGT       // >>
	HASH       // #
	QMARK      // ?
	DQMARK     // ??
	QMARKEQ    // ?=
	BANG       // !
	MATCH      // =
	EQEQ       // ==
	NEQ        // /=
	LTE        // =<
	LT         // <
	GTE        // >=
	GT         // >
	EXACTEQ    // =:=
	EXACTNEQ   // =/=
	PLUS       // +
	MINUS      // -
	STAR       // *
	SLASH      // /
	PLUSPLUS   // ++
	MINUSMINUS // --
	DOTDOT     // ..
	DOTDOTDOT  // ...

	// Keywords
	keywordStart
	AFTER
	AND
	ANDALSO
	BAND
	BEGIN
	BNOT
	BOR
	BSL
	BSR
	BXOR
	CASE
	CATCH
	COND
	DIV
	ELSE
	END
	FUN
	IF
	LET
	MAYBE
	NOT
	OF
	OR
	ORELSE
	RECEIVE
	REM
	TRY
	WHEN
	XOR
	keywordEnd
)

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	ATOM:    "ATOM",
	VAR:     "VAR",
	INTEGER: "INTEGER",
	FLOAT:   "FLOAT",
	CHAR:    "CHAR",
	STRING:  "STRING",

	LPAREN:     "(",
	RPAREN:     ")",
	LBRACKET:   "[",
	RBRACKET:   "]",
	LBRACE:     "{",
	RBRACE:     "}",
	COMMA:      ",",
	DOT:        ".",
	SEMI:       ";",
	COLON:      ":",
	COLONCOLON: "::",
	PIPE:       "|",
	DPIPE:      "||",
	ARROW:      "->",
	FATARROW:   "=>",
	ASSOC:      ":=",
	LARROW:     "<-",
	LEARROW:    "<=",
	LTLT:       "<<",
	GTGT:       ">>",
	HASH:       "#",
	QMARK:      "?",
	DQMARK:     "??",
	QMARKEQ:    "?=",
	BANG:       "!",
	MATCH:      "=",
	EQEQ:       "==",
	NEQ:        "/=",
	LTE:        "=<",
	LT:         "<",
	GTE:        ">=",
	GT:         ">",
	EXACTEQ:    "=:=",
	EXACTNEQ:   "=/=",
	PLUS:       "+",
	MINUS:      "-",
	STAR:       "*",
	SLASH:      "/",
	PLUSPLUS:   "++",
	MINUSMINUS: "--",
	DOTDOT:     "..",
	DOTDOTDOT:  "...",

	AFTER:   "after",
	AND:     "and",
	ANDALSO: "andalso",
	BAND:    "band",
	BEGIN:   "begin",
	BNOT:    "bnot",
	BOR:     "bor",
	BSL:     "bsl",
	BSR:     "bsr",
	BXOR:    "bxor",
	CASE:    "case",
	CATCH:   "catch",
	COND:    "cond",
	DIV:     "div",
	ELSE:    "else",
	END:     "end",
	FUN:     "fun",
	IF:      "if",
	LET:     "let",
	MAYBE:   "maybe",
	NOT:     "not",
	OF:      "of",
	OR:      "or",
	ORELSE:  "orelse",
	RECEIVE: "receive",
	REM:     "rem",
	TRY:     "try",
	WHEN:    "when",
	XOR:     "xor",
}

var keywords map[string]TokenType

func init() {
	keywords = make(map[string]TokenType, int(keywordEnd-keywordStart))
	for t := keywordStart + 1; t < keywordEnd; t++ {
		keywords[tokenNames[t]] = t
	}
}

// String returns the display name of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int32(t))
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t > keywordStart && t < keywordEnd
}

// LookupIdent returns the keyword type for a lowercase word, or ATOM.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return ATOM
}

// IsKeyword reports whether word is a reserved word.
func IsKeyword(word string) bool {
	_, ok := keywords[word]
	return ok
}

// Token is a single lexical token.
//
// Literal holds the raw source text. Value holds the decoded value for
// atoms, strings and chars (escapes resolved, quotes stripped) and the
// normalized digits for numbers.
type Token struct {
	Type    TokenType
	Literal string
	Value   string
	Pos     Position
	End     Position
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

// Text returns the decoded value of literal tokens and the raw text of
// everything else.
func (t Token) Text() string {
	switch t.Type {
	case ATOM, VAR, STRING, CHAR, INTEGER, FLOAT:
		return t.Value
	}
	return t.Literal
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Literal, t.Pos.Line, t.Pos.Column)
}
