package hir

import "strconv"

// AsAtom returns the atom e is, if it is a literal atom.
func AsAtom(e Expr) (string, bool) {
	if lit, ok := e.(*Literal); ok && lit.Kind == LitAtom {
		return lit.Str, true
	}
	return "", false
}

// AsVar returns the variable e is, if it is one.
func AsVar(e Expr) (Var, bool) {
	v, ok := e.(Var)
	return v, ok
}

// TypeAsAtom returns the atom t is, if it is a literal atom type.
func TypeAsAtom(t TypeExpr) (string, bool) {
	if lit, ok := t.(*Literal); ok && lit.Kind == LitAtom {
		return lit.Str, true
	}
	return "", false
}

// ExprAtom is AsAtom looking through macro expansions.
func (b *Body) ExprAtom(id ExprID) (string, bool) {
	e := b.Expr(id)
	if m, ok := e.(*ExprMacroCall); ok {
		return b.ExprAtom(m.Expansion)
	}
	return AsAtom(e)
}

// ListLength returns the number of elements of a proper list expression,
// following list tails. It fails for improper or non-literal lists.
func (b *Body) ListLength(id ExprID) (int, bool) {
	switch e := b.Expr(id).(type) {
	case *ExprList:
		if e.Tail == nil {
			return len(e.Exprs), true
		}
		rest, ok := b.ListLength(*e.Tail)
		return len(e.Exprs) + rest, ok
	case *ExprMacroCall:
		return b.ListLength(e.Expansion)
	}
	return 0, false
}

// TargetLabel renders t applied to arity as 'name/arity' or
// 'module:name/arity'. It fails unless every part is an atom.
func (b *Body) TargetLabel(t CallTarget[ExprID], arity int) (string, bool) {
	name, ok := b.ExprAtom(t.Name)
	if !ok {
		return "", false
	}
	label := name + "/" + strconv.Itoa(arity)
	if !t.Remote {
		return label, true
	}
	module, ok := b.ExprAtom(t.Module)
	if !ok {
		return "", false
	}
	return module + ":" + label, true
}

// TargetShortLabel is TargetLabel without the module.
func (b *Body) TargetShortLabel(t CallTarget[ExprID], arity int) (string, bool) {
	name, ok := b.ExprAtom(t.Name)
	if !ok {
		return "", false
	}
	return name + "/" + strconv.Itoa(arity), true
}
