package hir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

func buildDefMap(file hir.FileID, src string, headers ...*hir.DefMap) *hir.DefMap {
	return hir.BuildDefMap(file, hir.NewFormList(syntax.Parse(src)), headers)
}

func names(fns []*hir.FunctionInfo) []string {
	out := make([]string, len(fns))
	for i, fn := range fns {
		out[i] = fn.Name.String()
	}
	return out
}

func TestDefMapFunctions(t *testing.T) {
	dm := buildDefMap(0, `
-module(foo).
-export([a/1, missing/0]).

a(Name) -> Name.
b({X, Y}, _Ignored) -> X + Y;
b(Pair = {_, _}, Count) -> Count.
c() -> ok.
`)
	assert.Equal(t, "foo", dm.Module)
	assert.Equal(t, []string{"a/1", "b/2", "c/0"}, names(dm.Functions()))
	assert.Equal(t, []string{"a/1"}, names(dm.ExportedFunctions()))
	assert.True(t, dm.IsExported(hir.NameArity{Name: "missing", Arity: 0}))

	b, ok := dm.Function(hir.NameArity{Name: "b", Arity: 2})
	require.True(t, ok)
	assert.False(t, b.Exported)
	assert.Equal(t, []string{"Pair", "Count"}, b.ParamNames)

	a, _ := dm.Function(hir.NameArity{Name: "a", Arity: 1})
	assert.Equal(t, []string{"Name"}, a.ParamNames)

	assert.Len(t, dm.FunctionsNamed("b"), 1)
}

func TestDefMapExportAll(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"atom", "-compile(export_all).\nf() -> ok.", true},
		{"list", "-compile([debug_info, export_all]).\nf() -> ok.", true},
		{"other options", "-compile([debug_info]).\nf() -> ok.", false},
		{"none", "f() -> ok.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := buildDefMap(0, tt.src)
			assert.Equal(t, tt.want, dm.ExportAll)
			fn, ok := dm.Function(hir.NameArity{Name: "f", Arity: 0})
			require.True(t, ok)
			assert.Equal(t, tt.want, fn.Exported)
		})
	}
}

func TestDefMapDeprecation(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		deprecated []string
		live       []string
	}{
		{
			name:       "function and arity",
			src:        "-export([f/0, f/1]).\n-deprecated({f, 1}).\nf() -> ok.\nf(_) -> ok.",
			deprecated: []string{"f/1"},
			live:       []string{"f/0"},
		},
		{
			name:       "with reason",
			src:        "-deprecated({f, 0, \"use g/0\"}).\nf() -> ok.\ng() -> ok.",
			deprecated: []string{"f/0"},
			live:       []string{"g/0"},
		},
		{
			name:       "any arity",
			src:        "-deprecated([{f, '_'}]).\nf() -> ok.\nf(_) -> ok.\ng() -> ok.",
			deprecated: []string{"f/0", "f/1"},
			live:       []string{"g/0"},
		},
		{
			name:       "module deprecates exported functions",
			src:        "-export([f/0]).\n-deprecated(module).\nf() -> ok.\ng() -> ok.",
			deprecated: []string{"f/0"},
			live:       []string{"g/0"},
		},
		{
			name:       "reason from adjacent strings",
			src:        "-deprecated({f, '_', \"use \" \"g/0\"}).\nf() -> ok.\nf(_) -> ok.\ng() -> ok.",
			deprecated: []string{"f/0", "f/1"},
			live:       []string{"g/0"},
		},
		{
			name: "unrecognised shape",
			src:  "-deprecated({f}).\nf() -> ok.",
			live: []string{"f/0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := buildDefMap(0, tt.src)
			for _, fn := range dm.Functions() {
				switch {
				case contains(tt.deprecated, fn.Name.String()):
					assert.True(t, dm.IsDeprecated(fn.Name), fn.Name.String())
				case contains(tt.live, fn.Name.String()):
					assert.False(t, dm.IsDeprecated(fn.Name), fn.Name.String())
				}
			}
		})
	}

	dm := buildDefMap(0, "-deprecated({f, 1, \"use \" \"g/1\"}).")
	require.Len(t, dm.Deprecations(), 1)
	assert.Equal(t, hir.DeprecatedFunction, dm.Deprecations()[0].Kind)
	assert.Equal(t, "use g/1", dm.Deprecations()[0].Reason)

	dm = buildDefMap(0, "-deprecated([{f}, module]).")
	require.Len(t, dm.Deprecations(), 2)
	assert.Equal(t, hir.DeprecatedUnrecognised, dm.Deprecations()[0].Kind)
	assert.True(t, dm.ModuleDeprecated())
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func TestDefMapTypesRecordsCallbacks(t *testing.T) {
	dm := buildDefMap(0, `
-export_type([t/0]).
-type t() :: ok.
-opaque o(A) :: {A}.
-record(r, {a, b = 1}).
-callback init(term()) -> ok.
-callback extra() -> ok.
-optional_callbacks([extra/0]).
-define(M, 1).
-define(M(X), X).
`)
	tt, ok := dm.Type(hir.NameArity{Name: "t", Arity: 0})
	require.True(t, ok)
	assert.True(t, tt.Exported)
	o, ok := dm.Type(hir.NameArity{Name: "o", Arity: 1})
	require.True(t, ok)
	assert.True(t, o.Opaque)
	assert.False(t, o.Exported)

	r, ok := dm.Record("r")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Fields)

	require.Len(t, dm.Callbacks(), 2)
	extra, _ := dm.Callback(hir.NameArity{Name: "extra", Arity: 0})
	assert.True(t, extra.Optional)
	initCb, _ := dm.Callback(hir.NameArity{Name: "init", Arity: 1})
	assert.False(t, initCb.Optional)

	require.Len(t, dm.DefinesNamed("M"), 2)
	_, ok = dm.Define(hir.MacroKey{Name: "M", Arity: 1})
	assert.True(t, ok)
}

func TestDefMapMergesHeaders(t *testing.T) {
	inner := buildDefMap(2, "-define(INNER, 1).")
	header := buildDefMap(1, "-record(hdr, {x}).\n-type ht() :: ok.\n-define(H, 1).", inner)
	dm := buildDefMap(0, "-record(local, {}).\nf() -> ok.", header)

	rec, ok := dm.Record("hdr")
	require.True(t, ok)
	assert.Equal(t, hir.FileID(1), rec.File)

	local, ok := dm.Record("local")
	require.True(t, ok)
	assert.Equal(t, hir.FileID(0), local.File)

	ty, ok := dm.Type(hir.NameArity{Name: "ht", Arity: 0})
	require.True(t, ok)
	assert.Equal(t, hir.FileID(1), ty.File)

	d, ok := dm.Define(hir.MacroKey{Name: "INNER", Arity: -1})
	require.True(t, ok)
	assert.Equal(t, hir.FileID(2), d.File)

	assert.Equal(t, []hir.FileID{1, 2}, dm.IncludedFiles())
}
