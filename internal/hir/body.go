package hir

import (
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

// FileID identifies a source file within a database revision.
type FileID uint32

// Body owns the lowered nodes of exactly one form.
//
// Handles returned by a Body are only valid for that Body. A Body is never
// modified once lowering returns it.
type Body struct {
	Exprs     Arena[ExprID, Expr]
	Pats      Arena[PatID, Pat]
	Terms     Arena[TermID, Term]
	TypeExprs Arena[TypeExprID, TypeExpr]

	Source SourceMap
}

// Expr returns the expression node for id.
func (b *Body) Expr(id ExprID) Expr { return b.Exprs.Get(id) }

// Pat returns the pattern node for id.
func (b *Body) Pat(id PatID) Pat { return b.Pats.Get(id) }

// Term returns the term node for id.
func (b *Body) Term(id TermID) Term { return b.Terms.Get(id) }

// TypeExpr returns the type expression node for id.
func (b *Body) TypeExpr(id TypeExprID) TypeExpr { return b.TypeExprs.Get(id) }

// SourceMap links lowered nodes to the syntax they came from. Only syntax
// written directly in the form is mapped; nodes produced inside macro
// replacements have no source.
type SourceMap struct {
	exprSyntax     map[ExprID]*syntax.Node
	exprs          map[*syntax.Node]ExprID
	patSyntax      map[PatID]*syntax.Node
	pats           map[*syntax.Node]PatID
	termSyntax     map[TermID]*syntax.Node
	terms          map[*syntax.Node]TermID
	typeExprSyntax map[TypeExprID]*syntax.Node
	typeExprs      map[*syntax.Node]TypeExprID
}

func newSourceMap() SourceMap {
	return SourceMap{
		exprSyntax:     map[ExprID]*syntax.Node{},
		exprs:          map[*syntax.Node]ExprID{},
		patSyntax:      map[PatID]*syntax.Node{},
		pats:           map[*syntax.Node]PatID{},
		termSyntax:     map[TermID]*syntax.Node{},
		terms:          map[*syntax.Node]TermID{},
		typeExprSyntax: map[TypeExprID]*syntax.Node{},
		typeExprs:      map[*syntax.Node]TypeExprID{},
	}
}

func (m *SourceMap) ExprSyntax(id ExprID) (*syntax.Node, bool) {
	n, ok := m.exprSyntax[id]
	return n, ok
}

func (m *SourceMap) PatSyntax(id PatID) (*syntax.Node, bool) {
	n, ok := m.patSyntax[id]
	return n, ok
}

func (m *SourceMap) TermSyntax(id TermID) (*syntax.Node, bool) {
	n, ok := m.termSyntax[id]
	return n, ok
}

func (m *SourceMap) TypeExprSyntax(id TypeExprID) (*syntax.Node, bool) {
	n, ok := m.typeExprSyntax[id]
	return n, ok
}

// ExprFor returns the expression lowered from n.
func (m *SourceMap) ExprFor(n *syntax.Node) (ExprID, bool) {
	id, ok := m.exprs[n]
	return id, ok
}

// PatFor returns the pattern lowered from n.
func (m *SourceMap) PatFor(n *syntax.Node) (PatID, bool) {
	id, ok := m.pats[n]
	return id, ok
}

// TermFor returns the term lowered from n.
func (m *SourceMap) TermFor(n *syntax.Node) (TermID, bool) {
	id, ok := m.terms[n]
	return id, ok
}

// TypeExprFor returns the type expression lowered from n.
func (m *SourceMap) TypeExprFor(n *syntax.Node) (TypeExprID, bool) {
	id, ok := m.typeExprs[n]
	return id, ok
}

// AnyFor returns whatever node n lowered to, trying patterns first.
func (m *SourceMap) AnyFor(n *syntax.Node) (AnyExprID, bool) {
	if id, ok := m.pats[n]; ok {
		return PatRef(id), true
	}
	if id, ok := m.exprs[n]; ok {
		return ExprRef(id), true
	}
	if id, ok := m.typeExprs[n]; ok {
		return TypeExprRef(id), true
	}
	if id, ok := m.terms[n]; ok {
		return TermRef(id), true
	}
	return AnyExprID{}, false
}

// The first lowering of a node wins: macro arguments are lowered twice.

func (m *SourceMap) addExpr(id ExprID, n *syntax.Node) {
	if _, ok := m.exprs[n]; !ok {
		m.exprs[n] = id
		m.exprSyntax[id] = n
	}
}

func (m *SourceMap) addPat(id PatID, n *syntax.Node) {
	if _, ok := m.pats[n]; !ok {
		m.pats[n] = id
		m.patSyntax[id] = n
	}
}

func (m *SourceMap) addTerm(id TermID, n *syntax.Node) {
	if _, ok := m.terms[n]; !ok {
		m.terms[n] = id
		m.termSyntax[id] = n
	}
}

func (m *SourceMap) addTypeExpr(id TypeExprID, n *syntax.Node) {
	if _, ok := m.typeExprs[n]; !ok {
		m.typeExprs[n] = id
		m.typeExprSyntax[id] = n
	}
}

// FunctionBody is a lowered function: every clause of one declaration.
type FunctionBody struct {
	Body    *Body
	Clauses []Clause
}

// TypeBody is a lowered -type or -opaque.
type TypeBody struct {
	Body *Body
	Vars []Var
	Ty   TypeExprID
}

// SpecSig is one signature of a spec or callback.
type SpecSig struct {
	Args   []TypeExprID
	Result TypeExprID
	Guards []SpecGuard
}

// SpecGuard is one 'Var :: Type' constraint of a signature.
type SpecGuard struct {
	Var Var
	Ty  TypeExprID
}

// SpecBody is a lowered -spec or -callback.
type SpecBody struct {
	Body *Body
	Sigs []SpecSig
}

// RecordFieldBody is one lowered field declaration.
type RecordFieldBody struct {
	Name string
	Expr *ExprID
	Ty   *TypeExprID
}

// RecordBody is a lowered -record.
type RecordBody struct {
	Body   *Body
	Fields []RecordFieldBody
}

// AttributeBody is the constant value of a wild attribute or -compile.
type AttributeBody struct {
	Body  *Body
	Value TermID
}

// DefineBody is a -define replacement lowered as an expression, for
// navigation inside macro definitions.
type DefineBody struct {
	Body *Body
	Expr ExprID
}
