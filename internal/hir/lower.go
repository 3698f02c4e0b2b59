package hir

import (
	"context"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

// lowerer lowers the syntax of one form into one Body.
type lowerer struct {
	ctx      context.Context
	lc       *LowerContext
	body     *Body
	frame    *frame
	function *NameArity
	err      error
}

func newLowerer(ctx context.Context, lc *LowerContext) *lowerer {
	if lc.Macros == nil {
		lc.Macros = NewMacroEnv(nil)
	}
	return &lowerer{ctx: ctx, lc: lc, body: &Body{Source: newSourceMap()}}
}

// Syntax is only mapped when lowered outside any macro replacement.

func (l *lowerer) allocExpr(e Expr, n *syntax.Node) ExprID {
	id := l.body.Exprs.Alloc(e)
	if n != nil && l.frame == nil {
		l.body.Source.addExpr(id, n)
	}
	return id
}

func (l *lowerer) allocPat(p Pat, n *syntax.Node) PatID {
	id := l.body.Pats.Alloc(p)
	if n != nil && l.frame == nil {
		l.body.Source.addPat(id, n)
	}
	return id
}

func (l *lowerer) allocTerm(t Term, n *syntax.Node) TermID {
	id := l.body.Terms.Alloc(t)
	if n != nil && l.frame == nil {
		l.body.Source.addTerm(id, n)
	}
	return id
}

func (l *lowerer) allocTypeExpr(t TypeExpr, n *syntax.Node) TypeExprID {
	id := l.body.TypeExprs.Alloc(t)
	if n != nil && l.frame == nil {
		l.body.Source.addTypeExpr(id, n)
	}
	return id
}

// LowerFunction lowers every clause of fn. Clauses written as macros that
// do not expand to a function clause are dropped.
func LowerFunction(ctx context.Context, lc *LowerContext, fn *Function) (*FunctionBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newLowerer(ctx, lc)
	if fn.Name.Name != "" {
		name := fn.Name
		l.function = &name
	}
	var clauses []Clause
	for _, c := range fn.Node.ChildrenOf(syntax.FieldClause) {
		switch {
		case c.Is(syntax.KindFunctionClause):
			clauses = append(clauses, l.lowerClause(c))
		case c.Is(syntax.KindMacroCallExpr):
			exp := l.resolveMacro(c)
			if exp.kind == expandReplacement && exp.node.Is(syntax.KindFunctionClause) {
				l.withFrame(exp.frame, func() {
					clauses = append(clauses, l.lowerClause(exp.node))
				})
			}
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return &FunctionBody{Body: l.body, Clauses: clauses}, nil
}

// LowerTypeAlias lowers a -type or -opaque.
func LowerTypeAlias(ctx context.Context, lc *LowerContext, ta *TypeAlias) (*TypeBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newLowerer(ctx, lc)
	tb := &TypeBody{Body: l.body}
	if args := ta.Node.Child(syntax.FieldName).Child(syntax.FieldArgs); args != nil {
		for _, a := range args.Children {
			if a.Is(syntax.KindVar) {
				tb.Vars = append(tb.Vars, Var(a.Text()))
				l.allocTypeExpr(Var(a.Text()), a)
			}
		}
	}
	tb.Ty = l.lowerType(ta.Node.Child(syntax.FieldTy))
	if l.err != nil {
		return nil, l.err
	}
	return tb, nil
}

// LowerSpec lowers every signature of a -spec or -callback.
func LowerSpec(ctx context.Context, lc *LowerContext, s *Spec) (*SpecBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newLowerer(ctx, lc)
	sb := &SpecBody{Body: l.body}
	for _, sig := range s.Node.ChildrenOf(syntax.FieldSig) {
		var out SpecSig
		if args := sig.Child(syntax.FieldArgs); args != nil {
			for _, a := range args.Children {
				out.Args = append(out.Args, l.lowerType(a))
			}
		}
		out.Result = l.lowerType(sig.Child(syntax.FieldResult))
		if guards := sig.Child(syntax.FieldGuard); guards != nil {
			for _, g := range guards.Children {
				if !g.Is(syntax.KindAnnType) {
					continue
				}
				v := g.Child(syntax.FieldLhs)
				if !v.Is(syntax.KindVar) {
					continue
				}
				l.allocTypeExpr(Var(v.Text()), v)
				out.Guards = append(out.Guards, SpecGuard{Var: Var(v.Text()), Ty: l.lowerType(g.Child(syntax.FieldRhs))})
			}
		}
		sb.Sigs = append(sb.Sigs, out)
	}
	if l.err != nil {
		return nil, l.err
	}
	return sb, nil
}

// LowerRecord lowers field defaults as expressions and field types as
// type expressions.
func LowerRecord(ctx context.Context, lc *LowerContext, r *Record) (*RecordBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newLowerer(ctx, lc)
	rb := &RecordBody{Body: l.body}
	for _, f := range r.Node.ChildrenOf(syntax.FieldField) {
		name, ok := l.resolveName(f.Child(syntax.FieldName))
		if !ok {
			continue
		}
		field := RecordFieldBody{Name: name}
		if v := f.Child(syntax.FieldValue); v != nil {
			id := l.lowerExpr(v)
			field.Expr = &id
		}
		if ty := f.Child(syntax.FieldTy); ty != nil {
			id := l.lowerType(ty.Child(syntax.FieldTy))
			field.Ty = &id
		}
		rb.Fields = append(rb.Fields, field)
	}
	if l.err != nil {
		return nil, l.err
	}
	return rb, nil
}

// LowerAttribute lowers the value of a wild attribute as a term.
func LowerAttribute(ctx context.Context, lc *LowerContext, a *Attribute) (*AttributeBody, error) {
	return lowerAttributeValue(ctx, lc, a.Node)
}

// LowerCompileOption lowers the value of a -compile attribute as a term.
func LowerCompileOption(ctx context.Context, lc *LowerContext, c *CompileOption) (*AttributeBody, error) {
	return lowerAttributeValue(ctx, lc, c.Node)
}

func lowerAttributeValue(ctx context.Context, lc *LowerContext, n *syntax.Node) (*AttributeBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newLowerer(ctx, lc)
	value := l.lowerTerm(n.Child(syntax.FieldValue))
	if l.err != nil {
		return nil, l.err
	}
	return &AttributeBody{Body: l.body, Value: value}, nil
}

// LowerDefine lowers a macro replacement as a plain expression. Parameters
// are left as variables.
func LowerDefine(ctx context.Context, lc *LowerContext, d *Define) (*DefineBody, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newLowerer(ctx, lc)
	expr := l.lowerExpr(d.Replacement)
	if l.err != nil {
		return nil, l.err
	}
	return &DefineBody{Body: l.body, Expr: expr}, nil
}

// ---------- Clauses ----------

func (l *lowerer) lowerClause(n *syntax.Node) Clause {
	var c Clause
	if args := n.Child(syntax.FieldArgs); args != nil {
		for _, a := range args.Children {
			c.Pats = append(c.Pats, l.lowerPat(a))
		}
	}
	c.Guards = l.lowerGuard(n.Child(syntax.FieldGuard))
	c.Exprs = l.lowerBody(n.Child(syntax.FieldBody))
	return c
}

func (l *lowerer) lowerGuard(n *syntax.Node) [][]ExprID {
	if n == nil {
		return nil
	}
	var out [][]ExprID
	for _, gc := range n.Children {
		var group []ExprID
		for _, e := range gc.Children {
			group = append(group, l.lowerExpr(e))
		}
		out = append(out, group)
	}
	return out
}

func (l *lowerer) lowerBody(n *syntax.Node) []ExprID {
	if n == nil {
		return nil
	}
	out := make([]ExprID, 0, len(n.Children))
	for _, e := range n.Children {
		out = append(out, l.lowerExpr(e))
	}
	return out
}

// lowerCRClauses lowers case-like clauses. Clause macros are expanded in
// place; those that do not produce a clause are dropped.
func (l *lowerer) lowerCRClauses(nodes []*syntax.Node) []CRClause {
	var out []CRClause
	for _, c := range nodes {
		switch {
		case c.Is(syntax.KindCrClause):
			out = append(out, l.lowerCRClause(c))
		case c.Is(syntax.KindMacroCallExpr):
			exp := l.resolveMacro(c)
			if exp.kind == expandReplacement && exp.node.Is(syntax.KindCrClause) {
				l.withFrame(exp.frame, func() {
					out = append(out, l.lowerCRClause(exp.node))
				})
			}
		}
	}
	return out
}

func (l *lowerer) lowerCRClause(n *syntax.Node) CRClause {
	return CRClause{
		Pat:    l.lowerPat(n.Child(syntax.FieldPat)),
		Guards: l.lowerGuard(n.Child(syntax.FieldGuard)),
		Exprs:  l.lowerBody(n.Child(syntax.FieldBody)),
	}
}

func (l *lowerer) lowerCatchClauses(nodes []*syntax.Node) []CatchClause {
	var out []CatchClause
	for _, c := range nodes {
		switch {
		case c.Is(syntax.KindCatchClause):
			out = append(out, l.lowerCatchClause(c))
		case c.Is(syntax.KindMacroCallExpr):
			exp := l.resolveMacro(c)
			if exp.kind == expandReplacement && exp.node.Is(syntax.KindCrClause) {
				l.withFrame(exp.frame, func() {
					cr := l.lowerCRClause(exp.node)
					out = append(out, CatchClause{Reason: cr.Pat, Guards: cr.Guards, Exprs: cr.Exprs})
				})
			}
		}
	}
	return out
}

func (l *lowerer) lowerCatchClause(n *syntax.Node) CatchClause {
	var c CatchClause
	if class := n.Child(syntax.FieldClass); class != nil {
		id := l.lowerPat(class.Child(syntax.FieldClass))
		c.Class = &id
	}
	c.Reason = l.lowerPat(n.Child(syntax.FieldPat))
	if stack := n.Child(syntax.FieldStack); stack != nil {
		id := l.lowerPat(stack.Child(syntax.FieldName))
		c.Stack = &id
	}
	c.Guards = l.lowerGuard(n.Child(syntax.FieldGuard))
	c.Exprs = l.lowerBody(n.Child(syntax.FieldBody))
	return c
}

// ---------- Literals ----------

// literal converts a literal leaf. Malformed numbers are not literals.
func literal(n *syntax.Node) (*Literal, bool) {
	switch n.Kind {
	case syntax.KindAtom:
		return AtomLit(n.Text()), true
	case syntax.KindString:
		return StringLit(n.Text()), true
	case syntax.KindChar:
		r, _ := utf8.DecodeRuneInString(n.Text())
		return CharLit(r), true
	case syntax.KindInteger:
		i, ok := new(big.Int).SetString(n.Text(), 10)
		if !ok {
			return nil, false
		}
		return IntLit(i), true
	case syntax.KindFloat:
		f, err := strconv.ParseFloat(n.Text(), 64)
		if err != nil {
			return nil, false
		}
		return FloatLit(f), true
	}
	return nil, false
}

// foldUnary folds '+' or '-' applied directly to a numeric or char
// literal, looking through parentheses.
func foldUnary(n *syntax.Node) (*Literal, bool) {
	if n.Op != token.PLUS && n.Op != token.MINUS {
		return nil, false
	}
	operand := n.Child(syntax.FieldExpr)
	for operand.Is(syntax.KindParenExpr) {
		operand = operand.Child(syntax.FieldExpr)
	}
	if operand == nil {
		return nil, false
	}
	switch operand.Kind {
	case syntax.KindChar, syntax.KindInteger, syntax.KindFloat:
	default:
		return nil, false
	}
	lit, ok := literal(operand)
	if !ok {
		return nil, false
	}
	if n.Op == token.PLUS {
		return lit, true
	}
	return lit.Negate()
}

func opOf(n *syntax.Node) Op {
	return Op(n.Op.String())
}

// bitTypes splits a bit type list into type names and the unit size.
func bitTypes(n *syntax.Node) ([]string, *int64) {
	if n == nil {
		return nil, nil
	}
	var tys []string
	var unit *int64
	for _, c := range n.Children {
		switch {
		case c.Is(syntax.KindAtom):
			tys = append(tys, c.Text())
		case c.Is(syntax.KindBitTypeUnit):
			size := c.Child(syntax.FieldSize)
			if c.Child(syntax.FieldName).Text() != "unit" || size == nil {
				continue
			}
			if v, err := strconv.ParseInt(size.Text(), 10, 64); err == nil {
				unit = &v
			}
		}
	}
	return tys, unit
}
