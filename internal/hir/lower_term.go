package hir

import (
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

func (l *lowerer) missingTerm(n *syntax.Node) TermID {
	return l.allocTerm(&Missing{}, n)
}

// lowerTerm lowers n as a constant term: literals and the containers
// built from them, 'name/arity' pairs, literal binaries and external
// fun references.
func (l *lowerer) lowerTerm(n *syntax.Node) TermID {
	if n == nil {
		return l.missingTerm(nil)
	}
	switch n.Kind {
	case syntax.KindAtom, syntax.KindString, syntax.KindChar, syntax.KindInteger, syntax.KindFloat:
		if lit, ok := literal(n); ok {
			return l.allocTerm(lit, n)
		}
	case syntax.KindVar:
		if arg, ok := l.param(n); ok {
			var id TermID
			l.withFrame(l.frame.parent, func() { id = l.lowerTerm(arg) })
			return id
		}
	case syntax.KindStringConcat:
		if s, ok := l.concat(n); ok {
			return l.allocTerm(StringLit(s), n)
		}
	case syntax.KindParenExpr:
		if inner := n.Child(syntax.FieldExpr); inner != nil {
			return l.lowerTerm(inner)
		}
	case syntax.KindUnaryOpExpr:
		if lit, ok := foldUnary(n); ok {
			return l.allocTerm(lit, n)
		}
	case syntax.KindBinaryOpExpr:
		if n.Op == token.SLASH {
			if t, ok := l.nameArityTerm(n); ok {
				return t
			}
		}
	case syntax.KindTuple:
		return l.allocTerm(&TermTuple{Exprs: l.lowerTerms(n.Children)}, n)
	case syntax.KindList:
		var elems []TermID
		var tail *TermID
		for _, c := range n.Children {
			if c.Field == syntax.FieldTail {
				id := l.lowerTerm(c)
				tail = &id
				continue
			}
			elems = append(elems, l.lowerTerm(c))
		}
		return l.allocTerm(&TermList{Exprs: elems, Tail: tail}, n)
	case syntax.KindMapExpr:
		var fields []TermMapField
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindMapField) {
				continue
			}
			key := l.lowerTerm(f.Child(syntax.FieldKey))
			value := l.lowerTerm(f.Child(syntax.FieldValue))
			fields = append(fields, TermMapField{Key: key, Value: value})
		}
		return l.allocTerm(&TermMap{Fields: fields}, n)
	case syntax.KindBinary:
		if bin, ok := l.binaryTerm(n); ok {
			return l.allocTerm(bin, n)
		}
	case syntax.KindExternalFun:
		module := n.Child(syntax.FieldModule).Child(syntax.FieldName)
		name := n.Child(syntax.FieldFun)
		arity := n.Child(syntax.FieldArity).Child(syntax.FieldValue)
		if module.Is(syntax.KindAtom) && name.Is(syntax.KindAtom) && arity.Is(syntax.KindInteger) {
			if a, err := strconv.ParseUint(arity.Text(), 10, 32); err == nil {
				return l.allocTerm(&TermCaptureFun{Module: module.Text(), Name: name.Text(), Arity: uint32(a)}, n)
			}
		}
	case syntax.KindMacroCallExpr:
		exp := l.resolveMacro(n)
		var expansion TermID
		switch exp.kind {
		case expandBuiltin:
			expansion = l.allocTerm(exp.lit, nil)
		case expandReplacement:
			l.withFrame(exp.frame, func() { expansion = l.lowerTerm(exp.node) })
		default:
			expansion = l.missingTerm(nil)
		}
		return l.allocTerm(&TermMacroCall{Expansion: expansion, Args: l.macroArgs(n)}, n)
	}
	return l.missingTerm(n)
}

func (l *lowerer) lowerTerms(nodes []*syntax.Node) []TermID {
	out := make([]TermID, 0, len(nodes))
	for _, c := range nodes {
		out = append(out, l.lowerTerm(c))
	}
	return out
}

// nameArityTerm lowers 'name/arity' to the tuple {name, arity}.
func (l *lowerer) nameArityTerm(n *syntax.Node) (TermID, bool) {
	name, arity := n.Child(syntax.FieldLhs), n.Child(syntax.FieldRhs)
	if !name.Is(syntax.KindAtom) || !arity.Is(syntax.KindInteger) {
		return 0, false
	}
	nameLit, _ := literal(name)
	arityLit, ok := literal(arity)
	if !ok {
		return 0, false
	}
	ids := []TermID{l.allocTerm(nameLit, name), l.allocTerm(arityLit, arity)}
	return l.allocTerm(&TermTuple{Exprs: ids}, n), true
}

// binaryTerm folds a binary of plain literal segments into its bytes.
// Strings contribute their UTF-8 encoding; integers and chars are
// truncated to a byte.
func (l *lowerer) binaryTerm(n *syntax.Node) (TermBinary, bool) {
	out := TermBinary{}
	for _, e := range n.Children {
		if !e.Is(syntax.KindBinElement) || e.Child(syntax.FieldSize) != nil || e.Child(syntax.FieldTypes) != nil {
			return nil, false
		}
		v := e.Child(syntax.FieldValue)
		var lit *Literal
		var ok bool
		switch {
		case v.Is(syntax.KindUnaryOpExpr):
			lit, ok = foldUnary(v)
		case v.Is(syntax.KindStringConcat):
			var s string
			s, ok = l.concat(v)
			lit = StringLit(s)
		case v != nil:
			lit, ok = literal(v)
		}
		if !ok {
			return nil, false
		}
		switch lit.Kind {
		case LitString:
			out = append(out, lit.Str...)
		case LitChar:
			out = append(out, byteOf(big.NewInt(int64(lit.Char))))
		case LitInteger:
			out = append(out, byteOf(lit.Int))
		default:
			return nil, false
		}
	}
	return out, true
}

// byteOf returns i mod 256, so -1 is 255.
func byteOf(i *big.Int) byte {
	m := new(big.Int).Mod(i, big.NewInt(256))
	return byte(m.Int64())
}

// validUTF8 reports whether a term binary should print as a string.
func validUTF8(b []byte) bool {
	return utf8.Valid(b)
}
