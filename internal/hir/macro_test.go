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

func TestExpandMacros(t *testing.T) {
	runGolden(t, []goldenCase{
		{"function clause", "-define(CLAUSE, foo(_) -> ok).\n\nfoo(1) -> 1;\n?CLAUSE.", `
foo(1) ->
    1;
foo(_) ->
    'ok'.`},
		{"expr", "-define(EXPR, 1 + 2).\n\nfoo() -> ?EXPR.", `
foo() ->
    (1 + 2).`},
		{"var in expr", "-define(EXPR(X), 1 + X).\n\nfoo() -> ?EXPR(2).", `
foo() ->
    (1 + 2).`},
		{"function name", "-define(NAME, name).\n\nfoo() -> ?NAME(2).", `
foo() ->
    'name'(
        2
    ).`},
		{"remote function name", "-define(NAME, module:name).\n\nfoo() -> ?NAME(2).", `
foo() ->
    'module':'name'(
        2
    ).`},
		{"pat", "-define(PAT, [_]).\n\nfoo(?PAT) -> ok.", `
foo([
    _
]) ->
    'ok'.`},
		{"var in pat", "-define(PAT(X), [X]).\n\nfoo(?PAT(_)) -> ok.", `
foo([
    _
]) ->
    'ok'.`},
		{"type", "-define(TY, a | b).\n\n-type foo() :: ?TY.", `
-type foo() :: (
    'a' |
    'b'
).`},
		{"type call", "-define(NAME, name).\n\n-type foo() :: ?NAME().", `-type foo() :: 'name'().`},
		{"remote type call", "-define(NAME, module:name).\n\n-type foo() :: ?NAME().", `-type foo() :: 'module':'name'().`},
		{"var in type", "-define(TY(X), a | X).\n\n-type foo() :: ?TY(b).", `
-type foo() :: (
    'a' |
    'b'
).`},
		{"term", "-define(TERM, [0, 1]).\n\n-foo(?TERM).", `
-foo([
    0,
    1
]).`},
		{"var in term", "-define(TERM(X), [0, X]).\n\n-foo(?TERM(1)).", `
-foo([
    0,
    1
]).`},
		{"case clause", `
-define(CLAUSE(Pat, Expr), Pat -> Expr).

foo() ->
    case bar() of
        ?CLAUSE(ok, ok);
        ?CLAUSE(_, error)
    end.`, `
foo() ->
    case 'bar'() of
        'ok' ->
            'ok';
        _ ->
            'error'
    end.`},
		{"arity", `
-define(ARITY(X), X).

foo() ->
    fun local/?ARITY(1),
    fun remote:function/?ARITY(2).`, `
foo() ->
    fun 'local'/1,
    fun 'remote':'function'/2.`},
		{"record name", `
-define(NAME, name).

foo() ->
    #?NAME{?NAME = ?NAME}.`, `
foo() ->
    #name{
        name = 'name'
    }.`},
	})
}

func TestExpandNestedMacros(t *testing.T) {
	src := `
-define(M1(A, B), {m1, ?M2(A, ?M3(B))}).
-define(M2(B, A), {m2, B, ?M3(A)}).
-define(M3(A), {m3, A}).

foo() ->
    ?M1(1, 2),
    ?M1(A, B).`
	want := `
foo() ->
    {
        'm1',
        {
            'm2',
            1,
            {
                'm3',
                {
                    'm3',
                    2
                }
            }
        }
    },
    {
        'm1',
        {
            'm2',
            A,
            {
                'm3',
                {
                    'm3',
                    B
                }
            }
        }
    }.`
	assert.Equal(t, strings.TrimSpace(want), lowerAndPrint(t, "test.erl", src))
}

func TestExpandBuiltinMacros(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		src      string
		want     string
	}{
		{"function name", "test.erl", `foo(?FUNCTION_NAME) -> ?FUNCTION_NAME.`, "foo('foo') ->\n    'foo'."},
		{"function name call", "test.erl", `foo() -> ?FUNCTION_NAME().`, "foo() ->\n    'foo'()."},
		{"function arity", "test.erl", `foo(?FUNCTION_ARITY) -> ?FUNCTION_ARITY.`, "foo(1) ->\n    1."},
		{"function name outside function", "test.erl", `-type foo() :: ?FUNCTION_NAME.`, "-type foo() :: [missing]."},
		{"line", "test.erl", "-type foo() :: ?LINE.\n\nfoo(?LINE) -> ?LINE.", "-type foo() :: 0.\n\nfoo(0) ->\n    0."},
		{"machine", "test.erl", "-type foo() :: ?MACHINE.\n\nfoo(?MACHINE) -> ?MACHINE.", "-type foo() :: 'BEAM'.\n\nfoo('BEAM') ->\n    'BEAM'."},
		{"otp release", "test.erl", "-type foo() :: ?OTP_RELEASE.\n\nfoo(?OTP_RELEASE) -> ?OTP_RELEASE.", "-type foo() :: 26.\n\nfoo(26) ->\n    26."},
		{"module without attribute", "test.erl", "-type foo() :: ?MODULE.\n\nfoo(?MODULE) -> ?MODULE.", "-type foo() :: [missing].\n\nfoo([missing]) ->\n    [missing]."},
		{"module", "foobar.erl", "-module(foobar).\n\n-type foo() :: ?MODULE.\n\nfoo(?MODULE) -> ?MODULE.", "-type foo() :: 'foobar'.\n\nfoo('foobar') ->\n    'foobar'."},
		{"module string", "foobar.erl", "-module(foobar).\n\n-type foo() :: ?MODULE_STRING.\n\nfoo(?MODULE_STRING) -> ?MODULE_STRING.", "-type foo() :: \"foobar\".\n\nfoo(\"foobar\") ->\n    \"foobar\"."},
		{"file", "foobar.erl", "-module(foobar).\n\n-type foo() :: ?FILE.\n\nfoo(?FILE) -> ?FILE.", "-type foo() :: \"foobar.erl\".\n\nfoo(\"foobar.erl\") ->\n    \"foobar.erl\"."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lowerAndPrint(t, tt.fileName, tt.src))
		})
	}
}

func TestExpandRecursiveMacros(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"self", "-define(FOO, ?FOO).\n\nfoo(?FOO) -> ?FOO.", "foo([missing]) ->\n    [missing]."},
		{"mutual", "-define(FOO, ?BAR).\n-define(BAR, ?FOO).\n\nfoo(?FOO) -> ?BAR.", "foo([missing]) ->\n    [missing]."},
		{"argument", "-define(FOO(X), X).\n\nfoo(?FOO(?FOO(1))) -> ?FOO(?FOO(1)).", "foo(1) ->\n    1."},
		{"argument through another macro", "-define(FOO(X), ?BAR(X)).\n-define(BAR(X), X).\n\nfoo(?FOO(?BAR(?FOO(?BAR(1))))) -> ?FOO(?BAR(?FOO(?BAR(1)))).", "foo(1) ->\n    1."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lowerAndPrint(t, "test.erl", tt.src))
		})
	}
}

func TestExpandRespectsDefinitionOrder(t *testing.T) {
	src := `
foo() -> ?X.
-define(X, 1).
bar() -> ?X.
-undef(X).
baz() -> ?X.
-define(X, 2).
qux() -> ?X.`
	want := `
foo() ->
    [missing].

bar() ->
    1.

baz() ->
    [missing].

qux() ->
    2.`
	assert.Equal(t, strings.TrimSpace(want), lowerAndPrint(t, "test.erl", src))
}

func TestMacroEnv(t *testing.T) {
	fl := hir.NewFormList(syntax.Parse(`
-define(A, 1).
-define(A(X), X).
-define(B, 2).
-undef(A).
-define(A(X, Y), {X, Y}).
`))
	entries := hir.LocalMacroEntries(3, fl, nil)
	require.Len(t, entries, 5)
	env := hir.NewMacroEnv(entries)
	end := 1 << 20

	t.Run("resolve before undef", func(t *testing.T) {
		entry, ok := env.Resolve(hir.MacroKey{Name: "A", Arity: 1}, entries[3].Offset)
		require.True(t, ok)
		assert.Equal(t, hir.FileID(3), entry.File)
		assert.Equal(t, []string{"X"}, entry.Define.Params)
	})

	t.Run("undef removes every arity", func(t *testing.T) {
		_, ok := env.Resolve(hir.MacroKey{Name: "A", Arity: -1}, end)
		assert.False(t, ok)
		_, ok = env.Resolve(hir.MacroKey{Name: "A", Arity: 1}, end)
		assert.False(t, ok)
	})

	t.Run("redefinition after undef", func(t *testing.T) {
		_, ok := env.Resolve(hir.MacroKey{Name: "A", Arity: 2}, end)
		assert.True(t, ok)
	})

	t.Run("named", func(t *testing.T) {
		before := env.Named("A", entries[3].Offset)
		require.Len(t, before, 2)
		assert.Equal(t, -1, before[0].Define.Arity)
		assert.Equal(t, 1, before[1].Define.Arity)

		after := env.Named("A", end)
		require.Len(t, after, 1)
		assert.Equal(t, 2, after[0].Define.Arity)
	})

	t.Run("not yet defined", func(t *testing.T) {
		_, ok := env.Resolve(hir.MacroKey{Name: "B", Arity: -1}, entries[2].Offset)
		assert.False(t, ok)
	})
}

func TestMacroKeyString(t *testing.T) {
	assert.Equal(t, "FOO", hir.MacroKey{Name: "FOO", Arity: -1}.String())
	assert.Equal(t, "FOO/2", hir.MacroKey{Name: "FOO", Arity: 2}.String())
	assert.True(t, hir.IsBuiltinMacro("MODULE"))
	assert.False(t, hir.IsBuiltinMacro("FOO"))
}

func TestLowerCanceled(t *testing.T) {
	fl := hir.NewFormList(syntax.Parse(`foo() -> ok.`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hir.LowerFunction(ctx, &hir.LowerContext{}, &fl.Functions[0])
	require.ErrorIs(t, err, context.Canceled)
}
