package hir

import (
	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

func (l *lowerer) missingExpr(n *syntax.Node) ExprID {
	return l.allocExpr(&Missing{}, n)
}

// lowerExpr lowers n as an expression. Absent or invalid syntax yields
// Missing.
func (l *lowerer) lowerExpr(n *syntax.Node) ExprID {
	if n == nil {
		return l.missingExpr(nil)
	}
	switch n.Kind {
	case syntax.KindAtom, syntax.KindString, syntax.KindChar, syntax.KindInteger, syntax.KindFloat:
		if lit, ok := literal(n); ok {
			return l.allocExpr(lit, n)
		}
	case syntax.KindVar:
		if arg, ok := l.param(n); ok {
			var id ExprID
			l.withFrame(l.frame.parent, func() { id = l.lowerExpr(arg) })
			return id
		}
		return l.allocExpr(Var(n.Text()), n)
	case syntax.KindStringConcat:
		if s, ok := l.concat(n); ok {
			return l.allocExpr(StringLit(s), n)
		}
	case syntax.KindParenExpr:
		if inner := n.Child(syntax.FieldExpr); inner != nil {
			return l.lowerExpr(inner)
		}
	case syntax.KindMatchExpr:
		lhs := l.lowerPat(n.Child(syntax.FieldLhs))
		rhs := l.lowerExpr(n.Child(syntax.FieldRhs))
		return l.allocExpr(&ExprMatch{Lhs: lhs, Rhs: rhs}, n)
	case syntax.KindBinaryOpExpr:
		lhs := l.lowerExpr(n.Child(syntax.FieldLhs))
		rhs := l.lowerExpr(n.Child(syntax.FieldRhs))
		return l.allocExpr(&ExprBinaryOp{Lhs: lhs, Rhs: rhs, Op: opOf(n)}, n)
	case syntax.KindUnaryOpExpr:
		if lit, ok := foldUnary(n); ok {
			return l.allocExpr(lit, n)
		}
		operand := l.lowerExpr(n.Child(syntax.FieldExpr))
		return l.allocExpr(&ExprUnaryOp{Expr: operand, Op: opOf(n)}, n)
	case syntax.KindCatchExpr:
		return l.allocExpr(&ExprCatch{Expr: l.lowerExpr(n.Child(syntax.FieldExpr))}, n)
	case syntax.KindTuple:
		return l.allocExpr(&ExprTuple{Exprs: l.lowerExprs(n.Children)}, n)
	case syntax.KindList:
		return l.lowerListExpr(n)
	case syntax.KindBinary:
		return l.allocExpr(&ExprBinary{Segs: l.exprSegs(n.Children)}, n)
	case syntax.KindMapExpr:
		var fields []MapField
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindMapField) {
				continue
			}
			key := l.lowerExpr(f.Child(syntax.FieldKey))
			value := l.lowerExpr(f.Child(syntax.FieldValue))
			fields = append(fields, MapField{Key: key, Value: value})
		}
		return l.allocExpr(&ExprMap{Fields: fields}, n)
	case syntax.KindMapExprUpdate:
		base := l.lowerExpr(n.Child(syntax.FieldExpr))
		var fields []MapUpdateField
		for _, f := range n.ChildrenOf(syntax.FieldField) {
			if !f.Is(syntax.KindMapField) {
				continue
			}
			op := MapAssoc
			if f.Op == token.ASSOC {
				op = MapExact
			}
			key := l.lowerExpr(f.Child(syntax.FieldKey))
			value := l.lowerExpr(f.Child(syntax.FieldValue))
			fields = append(fields, MapUpdateField{Key: key, Op: op, Value: value})
		}
		return l.allocExpr(&ExprMapUpdate{Expr: base, Fields: fields}, n)
	case syntax.KindRecordExpr:
		name, ok := l.resolveName(n.Child(syntax.FieldName))
		if !ok {
			break
		}
		return l.allocExpr(&ExprRecord{Name: name, Fields: l.recordExprFields(n)}, n)
	case syntax.KindRecordUpdateExpr:
		base := l.lowerExpr(n.Child(syntax.FieldExpr))
		name, ok := l.resolveName(n.Child(syntax.FieldName))
		if !ok {
			break
		}
		return l.allocExpr(&ExprRecordUpdate{Expr: base, Name: name, Fields: l.recordExprFields(n)}, n)
	case syntax.KindRecordIndexExpr:
		name, ok1 := l.resolveName(n.Child(syntax.FieldName))
		field, ok2 := l.resolveName(n.Child(syntax.FieldField))
		if ok1 && ok2 {
			return l.allocExpr(&ExprRecordIndex{Name: name, Field: field}, n)
		}
	case syntax.KindRecordFieldExpr:
		base := l.lowerExpr(n.Child(syntax.FieldExpr))
		name, ok1 := l.resolveName(n.Child(syntax.FieldName))
		field, ok2 := l.resolveName(n.Child(syntax.FieldField))
		if ok1 && ok2 {
			return l.allocExpr(&ExprRecordField{Expr: base, Name: name, Field: field}, n)
		}
	case syntax.KindCall:
		target := l.exprCallTarget(n.Child(syntax.FieldExpr))
		args := l.lowerExprs(n.Child(syntax.FieldArgs).Children)
		return l.allocExpr(&ExprCall{Target: target, Args: args}, n)
	case syntax.KindInternalFun:
		name := l.lowerExpr(n.Child(syntax.FieldFun))
		arity := l.lowerExpr(n.Child(syntax.FieldArity).Child(syntax.FieldValue))
		return l.allocExpr(&ExprCaptureFun{Target: CallTarget[ExprID]{Name: name}, Arity: arity}, n)
	case syntax.KindExternalFun:
		module := l.lowerExpr(n.Child(syntax.FieldModule).Child(syntax.FieldName))
		name := l.lowerExpr(n.Child(syntax.FieldFun))
		arity := l.lowerExpr(n.Child(syntax.FieldArity).Child(syntax.FieldValue))
		return l.allocExpr(&ExprCaptureFun{
			Target: CallTarget[ExprID]{Remote: true, Module: module, Name: name},
			Arity:  arity,
		}, n)
	case syntax.KindAnonymousFun:
		return l.lowerClosure(n)
	case syntax.KindListComprehension, syntax.KindBinaryComprehension, syntax.KindMapComprehension:
		return l.lowerComprehension(n)
	case syntax.KindBlockExpr:
		return l.allocExpr(&ExprBlock{Exprs: l.lowerBody(n.Child(syntax.FieldBody))}, n)
	case syntax.KindIfExpr:
		var clauses []IfClause
		for _, c := range n.ChildrenOf(syntax.FieldClause) {
			if !c.Is(syntax.KindIfClause) {
				continue
			}
			clauses = append(clauses, IfClause{
				Guards: l.lowerGuard(c.Child(syntax.FieldGuard)),
				Exprs:  l.lowerBody(c.Child(syntax.FieldBody)),
			})
		}
		return l.allocExpr(&ExprIf{Clauses: clauses}, n)
	case syntax.KindCaseExpr:
		expr := l.lowerExpr(n.Child(syntax.FieldExpr))
		clauses := l.lowerCRClauses(n.ChildrenOf(syntax.FieldClause))
		return l.allocExpr(&ExprCase{Expr: expr, Clauses: clauses}, n)
	case syntax.KindReceiveExpr:
		clauses := l.lowerCRClauses(n.ChildrenOf(syntax.FieldClause))
		var after *ReceiveAfter
		if a := n.Child(syntax.FieldAfter); a != nil {
			after = &ReceiveAfter{
				Timeout: l.lowerExpr(a.Child(syntax.FieldTimeout)),
				Exprs:   l.lowerBody(a.Child(syntax.FieldBody)),
			}
		}
		return l.allocExpr(&ExprReceive{Clauses: clauses, After: after}, n)
	case syntax.KindTryExpr:
		try := &ExprTry{Exprs: l.lowerBody(n.Child(syntax.FieldBody))}
		try.Of = l.lowerCRClauses(n.ChildrenOf(syntax.FieldOf))
		try.Catch = l.lowerCatchClauses(n.ChildrenOf(syntax.FieldCatch))
		if a := n.Child(syntax.FieldAfter); a != nil {
			try.After = l.lowerBody(a.Child(syntax.FieldBody))
		}
		return l.allocExpr(try, n)
	case syntax.KindMaybeExpr:
		return l.lowerMaybe(n)
	case syntax.KindMacroCallExpr:
		return l.lowerMacroExpr(n)
	}
	return l.missingExpr(n)
}

func (l *lowerer) lowerExprs(nodes []*syntax.Node) []ExprID {
	out := make([]ExprID, 0, len(nodes))
	for _, c := range nodes {
		out = append(out, l.lowerExpr(c))
	}
	return out
}

func (l *lowerer) lowerListExpr(n *syntax.Node) ExprID {
	var elems []ExprID
	var tail *ExprID
	for _, c := range n.Children {
		if c.Field == syntax.FieldTail {
			id := l.lowerExpr(c)
			tail = &id
			continue
		}
		elems = append(elems, l.lowerExpr(c))
	}
	return l.allocExpr(&ExprList{Exprs: elems, Tail: tail}, n)
}

func (l *lowerer) exprSegs(elems []*syntax.Node) []BinarySeg[ExprID] {
	var segs []BinarySeg[ExprID]
	for _, e := range elems {
		if !e.Is(syntax.KindBinElement) {
			continue
		}
		seg := BinarySeg[ExprID]{Elem: l.lowerExpr(e.Child(syntax.FieldValue))}
		if size := e.Child(syntax.FieldSize); size != nil {
			id := l.lowerExpr(size)
			seg.Size = &id
		}
		seg.Tys, seg.Unit = bitTypes(e.Child(syntax.FieldTypes))
		segs = append(segs, seg)
	}
	return segs
}

func (l *lowerer) recordExprFields(n *syntax.Node) []RecordFieldExpr {
	var out []RecordFieldExpr
	for _, f := range n.ChildrenOf(syntax.FieldField) {
		if !f.Is(syntax.KindRecordField) {
			continue
		}
		name, ok := l.resolveName(f.Child(syntax.FieldName))
		if !ok {
			continue
		}
		out = append(out, RecordFieldExpr{Name: name, Value: l.lowerExpr(f.Child(syntax.FieldValue))})
	}
	return out
}

// exprCallTarget splits the callee of a call into module and name.
func (l *lowerer) exprCallTarget(n *syntax.Node) CallTarget[ExprID] {
	if n.Is(syntax.KindRemote) {
		module := l.lowerExpr(n.Child(syntax.FieldModule).Child(syntax.FieldModule))
		name := l.lowerExpr(n.Child(syntax.FieldFun))
		return CallTarget[ExprID]{Remote: true, Module: module, Name: name}
	}
	return CallTarget[ExprID]{Name: l.lowerExpr(n)}
}

func (l *lowerer) lowerClosure(n *syntax.Node) ExprID {
	var clauses []Clause
	var name *PatID
	for _, c := range n.ChildrenOf(syntax.FieldClause) {
		if v := c.Child(syntax.FieldName); v != nil && name == nil {
			id := l.lowerPat(v)
			name = &id
		}
		clauses = append(clauses, l.lowerClause(c))
	}
	return l.allocExpr(&ExprClosure{Clauses: clauses, Name: name}, n)
}

func (l *lowerer) lowerComprehension(n *syntax.Node) ExprID {
	head := n.Child(syntax.FieldExpr)
	var builder ComprehensionBuilder
	switch n.Kind {
	case syntax.KindListComprehension:
		builder = ComprehensionBuilder{Kind: ComprehensionList, Expr: l.lowerExpr(head)}
	case syntax.KindBinaryComprehension:
		var expr ExprID
		if head.Is(syntax.KindBinElement) {
			expr = l.allocExpr(&ExprBinary{Segs: l.exprSegs([]*syntax.Node{head})}, head)
		} else {
			expr = l.lowerExpr(head)
		}
		builder = ComprehensionBuilder{Kind: ComprehensionBinary, Expr: expr}
	case syntax.KindMapComprehension:
		builder = ComprehensionBuilder{
			Kind:  ComprehensionMap,
			Expr:  l.lowerExpr(head.Child(syntax.FieldKey)),
			Value: l.lowerExpr(head.Child(syntax.FieldValue)),
		}
	}
	var exprs []ComprehensionExpr
	if lc := n.Child(syntax.FieldLcExprs); lc != nil {
		for _, c := range lc.Children {
			switch c.Kind {
			case syntax.KindListGenerator, syntax.KindBinaryGenerator:
				kind := ListGenerator
				if c.Kind == syntax.KindBinaryGenerator {
					kind = BinaryGenerator
				}
				// The source is evaluated before the pattern binds.
				expr := l.lowerExpr(c.Child(syntax.FieldRhs))
				pat := l.lowerPat(c.Child(syntax.FieldLhs))
				exprs = append(exprs, ComprehensionExpr{Kind: kind, Pat: pat, Expr: expr})
			case syntax.KindMapGenerator:
				expr := l.lowerExpr(c.Child(syntax.FieldRhs))
				key := l.lowerPat(c.Child(syntax.FieldKey))
				value := l.lowerPat(c.Child(syntax.FieldValue))
				exprs = append(exprs, ComprehensionExpr{Kind: MapGenerator, Pat: key, Value: value, Expr: expr})
			default:
				exprs = append(exprs, ComprehensionExpr{Kind: Filter, Expr: l.lowerExpr(c)})
			}
		}
	}
	return l.allocExpr(&ExprComprehension{Builder: builder, Exprs: exprs}, n)
}

func (l *lowerer) lowerMaybe(n *syntax.Node) ExprID {
	var exprs []MaybeExpr
	if body := n.Child(syntax.FieldBody); body != nil {
		for _, e := range body.Children {
			if e.Is(syntax.KindCondMatchExpr) {
				pat := l.lowerPat(e.Child(syntax.FieldLhs))
				expr := l.lowerExpr(e.Child(syntax.FieldRhs))
				exprs = append(exprs, MaybeExpr{Pat: &pat, Expr: expr})
				continue
			}
			exprs = append(exprs, MaybeExpr{Expr: l.lowerExpr(e)})
		}
	}
	return l.allocExpr(&ExprMaybe{Exprs: exprs, Else: l.lowerCRClauses(n.ChildrenOf(syntax.FieldElse))}, n)
}

func (l *lowerer) lowerMacroExpr(n *syntax.Node) ExprID {
	exp := l.resolveMacro(n)
	var expansion ExprID
	switch exp.kind {
	case expandMissing:
		expansion = l.missingExpr(nil)
	case expandBuiltin:
		expansion = l.allocExpr(exp.lit, nil)
	case expandReplacement:
		l.withFrame(exp.frame, func() { expansion = l.lowerExpr(exp.node) })
	case expandCall:
		var target CallTarget[ExprID]
		if exp.node == nil {
			target.Name = l.allocExpr(exp.lit, nil)
		} else {
			l.withFrame(exp.frame, func() { target = l.exprCallTarget(exp.node) })
		}
		args := l.lowerExprs(exp.args)
		expansion = l.allocExpr(&ExprCall{Target: target, Args: args}, nil)
	}
	return l.allocExpr(&ExprMacroCall{Expansion: expansion, Args: l.macroArgs(n)}, n)
}
