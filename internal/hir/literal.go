package hir

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// LiteralKind discriminates Literal.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitChar
	LitAtom
	LitInteger
	LitFloat
)

// Literal is a constant shared by all four node families.
//
// Floats are kept as their IEEE bit pattern so that literals compare
// structurally; integers are arbitrary width.
type Literal struct {
	Kind      LiteralKind
	Str       string // string or atom text
	Char      rune
	Int       *big.Int
	FloatBits uint64
}

func StringLit(s string) *Literal { return &Literal{Kind: LitString, Str: s} }
func AtomLit(a string) *Literal   { return &Literal{Kind: LitAtom, Str: a} }
func CharLit(c rune) *Literal     { return &Literal{Kind: LitChar, Char: c} }
func IntLit(i *big.Int) *Literal  { return &Literal{Kind: LitInteger, Int: i} }
func IntLit64(i int64) *Literal   { return IntLit(big.NewInt(i)) }
func FloatLit(f float64) *Literal { return &Literal{Kind: LitFloat, FloatBits: math.Float64bits(f)} }

// Float returns the float value of a LitFloat.
func (l *Literal) Float() float64 {
	return math.Float64frombits(l.FloatBits)
}

// Negate returns -l. Chars negate to integers. Strings and atoms cannot be
// negated.
func (l *Literal) Negate() (*Literal, bool) {
	switch l.Kind {
	case LitChar:
		return IntLit(big.NewInt(-int64(l.Char))), true
	case LitInteger:
		return IntLit(new(big.Int).Neg(l.Int)), true
	case LitFloat:
		return FloatLit(-l.Float()), true
	}
	return nil, false
}

// Equal compares literals structurally (floats by bit pattern).
func (l *Literal) Equal(o *Literal) bool {
	if l.Kind != o.Kind {
		return false
	}
	switch l.Kind {
	case LitString, LitAtom:
		return l.Str == o.Str
	case LitChar:
		return l.Char == o.Char
	case LitInteger:
		return l.Int.Cmp(o.Int) == 0
	case LitFloat:
		return l.FloatBits == o.FloatBits
	}
	return false
}

func (l *Literal) String() string {
	switch l.Kind {
	case LitString:
		return strconv.Quote(l.Str)
	case LitAtom:
		return QuoteAtom(l.Str)
	case LitChar:
		return "$" + charText(l.Char)
	case LitInteger:
		return l.Int.String()
	case LitFloat:
		return strconv.FormatFloat(l.Float(), 'g', -1, 64)
	}
	return "?"
}

// QuoteAtom renders an atom in single quotes.
func QuoteAtom(a string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range a {
		switch r {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

func charText(c rune) string {
	switch c {
	case '\n':
		return `\n`
	case '\t':
		return `\t`
	case ' ':
		return `\s`
	case '\\':
		return `\\`
	}
	if c < 0x20 {
		return `\x{` + strconv.FormatInt(int64(c), 16) + `}`
	}
	return string(c)
}
