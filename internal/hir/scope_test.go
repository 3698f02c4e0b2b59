package hir_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

type scopeFixture struct {
	src    string
	file   *syntax.SourceFile
	body   *hir.FunctionBody
	scopes *hir.Scopes
}

func newScopeFixture(t *testing.T, src string) *scopeFixture {
	t.Helper()
	file := syntax.Parse(src)
	fl := hir.NewFormList(file)
	require.NotEmpty(t, fl.Functions)
	body, err := hir.LowerFunction(context.Background(), &hir.LowerContext{}, &fl.Functions[0])
	require.NoError(t, err)
	return &scopeFixture{src: src, file: file, body: body, scopes: hir.ComputeScopes(body)}
}

// leaf returns the syntax leaf of the nth occurrence of name.
func (f *scopeFixture) leaf(t *testing.T, name string, n int) *syntax.Node {
	t.Helper()
	offset := -1
	for i, from := 0, 0; i <= n; i++ {
		idx := strings.Index(f.src[from:], name)
		require.GreaterOrEqual(t, idx, 0, "occurrence %d of %s", n, name)
		offset = from + idx
		from = offset + len(name)
	}
	touching := f.file.TokensTouching(offset + 1)
	require.NotEmpty(t, touching)
	return f.file.TokenOwner(touching[0])
}

func (f *scopeFixture) pat(t *testing.T, name string, n int) hir.PatID {
	t.Helper()
	id, ok := f.body.Body.Source.PatFor(f.leaf(t, name, n))
	require.True(t, ok, "occurrence %d of %s is not a pattern", n, name)
	return id
}

func (f *scopeFixture) expr(t *testing.T, name string, n int) hir.ExprID {
	t.Helper()
	id, ok := f.body.Body.Source.ExprFor(f.leaf(t, name, n))
	require.True(t, ok, "occurrence %d of %s is not an expression", n, name)
	return id
}

func TestScopesSequential(t *testing.T) {
	f := newScopeFixture(t, `foo(Xa) -> Yb = Xa, {Xa, Yb}.`)
	head := f.pat(t, "Xa", 0)
	assert.True(t, f.scopes.IsBinding(head))
	assert.Equal(t, []hir.PatID{head}, f.scopes.ExprBindings(f.expr(t, "Xa", 1)))
	assert.Equal(t, []hir.PatID{head}, f.scopes.ExprBindings(f.expr(t, "Xa", 2)))

	yb := f.pat(t, "Yb", 0)
	assert.True(t, f.scopes.IsBinding(yb))
	assert.Equal(t, []hir.PatID{yb}, f.scopes.ExprBindings(f.expr(t, "Yb", 1)))
}

func TestScopesRepeatedPatternVariableIsUse(t *testing.T) {
	f := newScopeFixture(t, `foo(Xa, Xa) -> Xa = 1.`)
	first := f.pat(t, "Xa", 0)
	second := f.pat(t, "Xa", 1)
	third := f.pat(t, "Xa", 2)

	assert.True(t, f.scopes.IsBinding(first))
	assert.False(t, f.scopes.IsBinding(second))
	assert.Equal(t, []hir.PatID{first}, f.scopes.PatBindings(second))
	assert.False(t, f.scopes.IsBinding(third))
	assert.Equal(t, []hir.PatID{first}, f.scopes.PatBindings(third))
}

func TestScopesBranchesMerge(t *testing.T) {
	f := newScopeFixture(t, `
foo(Ab) ->
    case Ab of
        1 -> Bc = one;
        _ -> Bc = other
    end,
    Bc.`)
	first := f.pat(t, "Bc", 0)
	second := f.pat(t, "Bc", 1)
	assert.True(t, f.scopes.IsBinding(first))
	assert.True(t, f.scopes.IsBinding(second))
	assert.Equal(t, []hir.PatID{first, second}, f.scopes.ExprBindings(f.expr(t, "Bc", 2)))
}

func TestScopesBranchBindingIsNotDuplicated(t *testing.T) {
	f := newScopeFixture(t, `
foo(Ab) ->
    Bc = 1,
    case Ab of
        1 -> ok;
        _ -> other
    end,
    Bc.`)
	binding := f.pat(t, "Bc", 0)
	assert.Equal(t, []hir.PatID{binding}, f.scopes.ExprBindings(f.expr(t, "Bc", 1)))
}

func TestScopesFunHeadShadows(t *testing.T) {
	f := newScopeFixture(t, `foo(Xa) -> Fn = fun(Xa) -> Xa end, Xa.`)
	outer := f.pat(t, "Xa", 0)
	inner := f.pat(t, "Xa", 1)

	assert.True(t, f.scopes.IsBinding(inner))
	assert.Equal(t, []hir.PatID{inner}, f.scopes.ExprBindings(f.expr(t, "Xa", 2)))
	assert.Equal(t, []hir.PatID{outer}, f.scopes.ExprBindings(f.expr(t, "Xa", 3)))
}

func TestScopesClosureBindingsDoNotEscape(t *testing.T) {
	f := newScopeFixture(t, `foo() -> Fn = fun() -> Yb = 1 end, Yb.`)
	assert.Empty(t, f.scopes.ExprBindings(f.expr(t, "Yb", 1)))
}

func TestScopesComprehensionIsLocal(t *testing.T) {
	f := newScopeFixture(t, `foo(Ls) -> [Yb || Yb <- Ls], Yb.`)
	gen := f.pat(t, "Yb", 1)
	assert.True(t, f.scopes.IsBinding(gen))
	assert.Equal(t, []hir.PatID{gen}, f.scopes.ExprBindings(f.expr(t, "Yb", 0)))
	assert.Empty(t, f.scopes.ExprBindings(f.expr(t, "Yb", 2)))
	assert.Equal(t, []hir.PatID{f.pat(t, "Ls", 0)}, f.scopes.ExprBindings(f.expr(t, "Ls", 1)))
}

func TestScopesUnderscoreNeverBinds(t *testing.T) {
	f := newScopeFixture(t, `foo(_, _) -> ok.`)
	assert.False(t, f.scopes.IsBinding(f.pat(t, "_", 0)))
	assert.False(t, f.scopes.IsBinding(f.pat(t, "_", 1)))
}

func TestScopesTryCatch(t *testing.T) {
	f := newScopeFixture(t, `
foo() ->
    try Ab = 1 of
        _ -> Ab
    catch
        Cl:Re -> {Cl, Re}
    end.`)
	ab := f.pat(t, "Ab", 0)
	assert.Equal(t, []hir.PatID{ab}, f.scopes.ExprBindings(f.expr(t, "Ab", 1)))
	assert.Equal(t, []hir.PatID{f.pat(t, "Cl", 0)}, f.scopes.ExprBindings(f.expr(t, "Cl", 1)))
}

func TestScopesThroughMacro(t *testing.T) {
	src := "-define(ID(X), X).\nfoo(Ab) -> ?ID(Ab)."
	file := syntax.Parse(src)
	fl := hir.NewFormList(file)
	lc := &hir.LowerContext{
		Macros: hir.NewMacroEnv(hir.LocalMacroEntries(0, fl, nil)),
		Offset: fl.Functions[0].Node.Span.Start.Offset,
	}
	body, err := hir.LowerFunction(context.Background(), lc, &fl.Functions[0])
	require.NoError(t, err)
	scopes := hir.ComputeScopes(body)

	f := &scopeFixture{src: src, file: file, body: body, scopes: scopes}
	head := f.pat(t, "Ab", 0)
	assert.Equal(t, []hir.PatID{head}, scopes.ExprBindings(f.expr(t, "Ab", 1)))
}
