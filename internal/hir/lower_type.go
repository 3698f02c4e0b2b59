package hir

import (
	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

func (l *lowerer) missingType(n *syntax.Node) TypeExprID {
	return l.allocTypeExpr(&Missing{}, n)
}

// lowerType lowers n as a type expression. Operators are kept as written:
// '-1' is the unary minus applied to 1.
func (l *lowerer) lowerType(n *syntax.Node) TypeExprID {
	if n == nil {
		return l.missingType(nil)
	}
	switch n.Kind {
	case syntax.KindAtom, syntax.KindString, syntax.KindChar, syntax.KindInteger, syntax.KindFloat:
		if lit, ok := literal(n); ok {
			return l.allocTypeExpr(lit, n)
		}
	case syntax.KindVar:
		if arg, ok := l.param(n); ok {
			var id TypeExprID
			l.withFrame(l.frame.parent, func() { id = l.lowerType(arg) })
			return id
		}
		return l.allocTypeExpr(Var(n.Text()), n)
	case syntax.KindStringConcat:
		if s, ok := l.concat(n); ok {
			return l.allocTypeExpr(StringLit(s), n)
		}
	case syntax.KindParenExpr:
		if inner := n.Child(syntax.FieldExpr); inner != nil {
			return l.lowerType(inner)
		}
	case syntax.KindUnaryOpExpr:
		operand := l.lowerType(n.Child(syntax.FieldExpr))
		return l.allocTypeExpr(&TypeUnaryOp{Type: operand, Op: opOf(n)}, n)
	case syntax.KindBinaryOpExpr:
		lhs := l.lowerType(n.Child(syntax.FieldLhs))
		rhs := l.lowerType(n.Child(syntax.FieldRhs))
		return l.allocTypeExpr(&TypeBinaryOp{Lhs: lhs, Rhs: rhs, Op: opOf(n)}, n)
	case syntax.KindAnnType:
		v := n.Child(syntax.FieldLhs)
		if !v.Is(syntax.KindVar) {
			break
		}
		l.allocTypeExpr(Var(v.Text()), v)
		ty := l.lowerType(n.Child(syntax.FieldRhs))
		return l.allocTypeExpr(&TypeAnn{Var: Var(v.Text()), Ty: ty}, n)
	case syntax.KindPipe:
		var types []TypeExprID
		for cur := n; ; {
			types = append(types, l.lowerType(cur.Child(syntax.FieldLhs)))
			rhs := cur.Child(syntax.FieldRhs)
			if !rhs.Is(syntax.KindPipe) {
				types = append(types, l.lowerType(rhs))
				break
			}
			cur = rhs
		}
		return l.allocTypeExpr(&TypeUnion{Types: types}, n)
	case syntax.KindRangeType:
		lhs := l.lowerType(n.Child(syntax.FieldLhs))
		rhs := l.lowerType(n.Child(syntax.FieldRhs))
		return l.allocTypeExpr(&TypeRange{Lhs: lhs, Rhs: rhs}, n)
	case syntax.KindCall:
		target := l.typeCallTarget(n.Child(syntax.FieldExpr))
		args := l.lowerTypes(n.Child(syntax.FieldArgs).Children)
		return l.allocTypeExpr(&TypeCall{Target: target, Args: args}, n)
	case syntax.KindFunType:
		sig := n.Child(syntax.FieldSig)
		if sig == nil {
			return l.allocTypeExpr(&TypeFun{Kind: FunTypeAny}, n)
		}
		args := sig.Child(syntax.FieldArgs)
		if args.Is(syntax.KindDotdotdot) {
			result := l.lowerType(sig.Child(syntax.FieldResult))
			return l.allocTypeExpr(&TypeFun{Kind: FunTypeAnyArgs, Result: result}, n)
		}
		var params []TypeExprID
		if args != nil {
			params = l.lowerTypes(args.Children)
		}
		result := l.lowerType(sig.Child(syntax.FieldResult))
		return l.allocTypeExpr(&TypeFun{Kind: FunTypeFull, Params: params, Result: result}, n)
	case syntax.KindList:
		return l.lowerListType(n)
	case syntax.KindMapExpr:
		var fields []TypeMapField
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindMapField) {
				continue
			}
			op := MapAssoc
			if f.Op == token.ASSOC {
				op = MapExact
			}
			key := l.lowerType(f.Child(syntax.FieldKey))
			value := l.lowerType(f.Child(syntax.FieldValue))
			fields = append(fields, TypeMapField{Key: key, Op: op, Value: value})
		}
		return l.allocTypeExpr(&TypeMap{Fields: fields}, n)
	case syntax.KindTuple:
		return l.allocTypeExpr(&TypeTuple{Args: l.lowerTypes(n.Children)}, n)
	case syntax.KindRecordExpr:
		name, ok := l.resolveName(n.Child(syntax.FieldName))
		if !ok {
			break
		}
		var fields []TypeRecordField
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindRecordField) {
				continue
			}
			fname, ok := l.resolveName(f.Child(syntax.FieldName))
			if !ok {
				continue
			}
			fields = append(fields, TypeRecordField{Name: fname, Ty: l.lowerType(f.Child(syntax.FieldTy).Child(syntax.FieldTy))})
		}
		return l.allocTypeExpr(&TypeRecord{Name: name, Fields: fields}, n)
	case syntax.KindMacroCallExpr:
		return l.lowerMacroType(n)
	}
	return l.missingType(n)
}

func (l *lowerer) lowerTypes(nodes []*syntax.Node) []TypeExprID {
	out := make([]TypeExprID, 0, len(nodes))
	for _, c := range nodes {
		out = append(out, l.lowerType(c))
	}
	return out
}

// lowerListType handles [], [T], [T, ...] and, leniently, a list with a
// tail, which is the union of its parts.
func (l *lowerer) lowerListType(n *syntax.Node) TypeExprID {
	var elems, tail []*syntax.Node
	nonEmpty := false
	for _, c := range n.Children {
		switch {
		case c.Field == syntax.FieldTail:
			tail = append(tail, c)
		case c.Is(syntax.KindDotdotdot):
			nonEmpty = true
		default:
			elems = append(elems, c)
		}
	}
	parts := append(elems, tail...)
	switch {
	case len(parts) == 0:
		return l.allocTypeExpr(&TypeList{Kind: ListTypeEmpty}, n)
	case len(parts) == 1:
		kind := ListTypeRegular
		if nonEmpty {
			kind = ListTypeNonEmpty
		}
		return l.allocTypeExpr(&TypeList{Kind: kind, Elem: l.lowerType(parts[0])}, n)
	}
	union := l.allocTypeExpr(&TypeUnion{Types: l.lowerTypes(parts)}, nil)
	return l.allocTypeExpr(&TypeList{Kind: ListTypeRegular, Elem: union}, n)
}

func (l *lowerer) typeCallTarget(n *syntax.Node) CallTarget[TypeExprID] {
	if n.Is(syntax.KindRemote) {
		module := l.lowerType(n.Child(syntax.FieldModule).Child(syntax.FieldModule))
		name := l.lowerType(n.Child(syntax.FieldFun))
		return CallTarget[TypeExprID]{Remote: true, Module: module, Name: name}
	}
	return CallTarget[TypeExprID]{Name: l.lowerType(n)}
}

func (l *lowerer) lowerMacroType(n *syntax.Node) TypeExprID {
	exp := l.resolveMacro(n)
	var expansion TypeExprID
	switch exp.kind {
	case expandMissing:
		expansion = l.missingType(nil)
	case expandBuiltin:
		expansion = l.allocTypeExpr(exp.lit, nil)
	case expandReplacement:
		l.withFrame(exp.frame, func() { expansion = l.lowerType(exp.node) })
	case expandCall:
		var target CallTarget[TypeExprID]
		if exp.node == nil {
			target.Name = l.allocTypeExpr(exp.lit, nil)
		} else {
			l.withFrame(exp.frame, func() { target = l.typeCallTarget(exp.node) })
		}
		expansion = l.allocTypeExpr(&TypeCall{Target: target, Args: l.lowerTypes(exp.args)}, nil)
	}
	return l.allocTypeExpr(&TypeMacroCall{Expansion: expansion, Args: l.macroArgs(n)}, n)
}
