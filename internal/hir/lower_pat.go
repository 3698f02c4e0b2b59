package hir

import (
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

func (l *lowerer) missingPat(n *syntax.Node) PatID {
	return l.allocPat(&Missing{}, n)
}

// lowerPat lowers n as a pattern. Constructs that cannot match (calls,
// blocks, funs, comprehensions, record updates and the like) are Missing.
func (l *lowerer) lowerPat(n *syntax.Node) PatID {
	if n == nil {
		return l.missingPat(nil)
	}
	switch n.Kind {
	case syntax.KindAtom, syntax.KindString, syntax.KindChar, syntax.KindInteger, syntax.KindFloat:
		if lit, ok := literal(n); ok {
			return l.allocPat(lit, n)
		}
	case syntax.KindVar:
		if arg, ok := l.param(n); ok {
			var id PatID
			l.withFrame(l.frame.parent, func() { id = l.lowerPat(arg) })
			return id
		}
		return l.allocPat(Var(n.Text()), n)
	case syntax.KindStringConcat:
		if s, ok := l.concat(n); ok {
			return l.allocPat(StringLit(s), n)
		}
	case syntax.KindParenExpr:
		if inner := n.Child(syntax.FieldExpr); inner != nil {
			return l.lowerPat(inner)
		}
	case syntax.KindMatchExpr:
		lhs := l.lowerPat(n.Child(syntax.FieldLhs))
		rhs := l.lowerPat(n.Child(syntax.FieldRhs))
		return l.allocPat(&PatMatch{Lhs: lhs, Rhs: rhs}, n)
	case syntax.KindBinaryOpExpr:
		lhs := l.lowerPat(n.Child(syntax.FieldLhs))
		rhs := l.lowerPat(n.Child(syntax.FieldRhs))
		return l.allocPat(&PatBinaryOp{Lhs: lhs, Rhs: rhs, Op: opOf(n)}, n)
	case syntax.KindUnaryOpExpr:
		if lit, ok := foldUnary(n); ok {
			return l.allocPat(lit, n)
		}
		operand := l.lowerPat(n.Child(syntax.FieldExpr))
		return l.allocPat(&PatUnaryOp{Pat: operand, Op: opOf(n)}, n)
	case syntax.KindTuple:
		return l.allocPat(&PatTuple{Pats: l.lowerPats(n.Children)}, n)
	case syntax.KindList:
		var elems []PatID
		var tail *PatID
		for _, c := range n.Children {
			if c.Field == syntax.FieldTail {
				id := l.lowerPat(c)
				tail = &id
				continue
			}
			elems = append(elems, l.lowerPat(c))
		}
		return l.allocPat(&PatList{Pats: elems, Tail: tail}, n)
	case syntax.KindBinary:
		var segs []BinarySeg[PatID]
		for _, e := range n.Children {
			if !e.Is(syntax.KindBinElement) {
				continue
			}
			seg := BinarySeg[PatID]{Elem: l.lowerPat(e.Child(syntax.FieldValue))}
			if size := e.Child(syntax.FieldSize); size != nil {
				id := l.lowerExpr(size)
				seg.Size = &id
			}
			seg.Tys, seg.Unit = bitTypes(e.Child(syntax.FieldTypes))
			segs = append(segs, seg)
		}
		return l.allocPat(&PatBinary{Segs: segs}, n)
	case syntax.KindMapExpr:
		var fields []MapFieldPat
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindMapField) {
				continue
			}
			key := l.lowerExpr(f.Child(syntax.FieldKey))
			value := l.lowerPat(f.Child(syntax.FieldValue))
			fields = append(fields, MapFieldPat{Key: key, Value: value})
		}
		return l.allocPat(&PatMap{Fields: fields}, n)
	case syntax.KindRecordExpr:
		name, ok := l.resolveName(n.Child(syntax.FieldName))
		if !ok {
			break
		}
		var fields []RecordFieldPat
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindRecordField) {
				continue
			}
			fname, ok := l.resolveName(f.Child(syntax.FieldName))
			if !ok {
				continue
			}
			fields = append(fields, RecordFieldPat{Name: fname, Value: l.lowerPat(f.Child(syntax.FieldValue))})
		}
		return l.allocPat(&PatRecord{Name: name, Fields: fields}, n)
	case syntax.KindRecordIndexExpr:
		name, ok1 := l.resolveName(n.Child(syntax.FieldName))
		field, ok2 := l.resolveName(n.Child(syntax.FieldField))
		if ok1 && ok2 {
			return l.allocPat(&PatRecordIndex{Name: name, Field: field}, n)
		}
	case syntax.KindMacroCallExpr:
		exp := l.resolveMacro(n)
		var expansion PatID
		switch exp.kind {
		case expandBuiltin:
			expansion = l.allocPat(exp.lit, nil)
		case expandReplacement:
			l.withFrame(exp.frame, func() { expansion = l.lowerPat(exp.node) })
		default:
			expansion = l.missingPat(nil)
		}
		return l.allocPat(&PatMacroCall{Expansion: expansion, Args: l.macroArgs(n)}, n)
	}
	return l.missingPat(n)
}

func (l *lowerer) lowerPats(nodes []*syntax.Node) []PatID {
	out := make([]PatID, 0, len(nodes))
	for _, c := range nodes {
		out = append(out, l.lowerPat(c))
	}
	return out
}
