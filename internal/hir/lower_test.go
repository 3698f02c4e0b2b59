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

// lowerAndPrint lowers every printable form of src and joins the
// printed forms with a blank line.
func lowerAndPrint(t *testing.T, fileName, src string) string {
	t.Helper()
	file := syntax.Parse(src)
	fl := hir.NewFormList(file)
	macros := hir.NewMacroEnv(hir.LocalMacroEntries(0, fl, nil))
	ctx := context.Background()

	module := ""
	var out []string
	for _, idx := range fl.Forms() {
		lc := &hir.LowerContext{
			FileName: fileName,
			Module:   module,
			Macros:   macros,
			Offset:   fl.Node(idx).Span.Start.Offset,
		}
		switch idx.Kind {
		case hir.FormModuleAttribute:
			module = fl.ModuleAttr.Name
		case hir.FormFunction:
			fn := &fl.Functions[idx.Index]
			body, err := hir.LowerFunction(ctx, lc, fn)
			require.NoError(t, err)
			out = append(out, hir.PrintFunction(body, fn))
		case hir.FormTypeAlias:
			ta := &fl.TypeAliases[idx.Index]
			body, err := hir.LowerTypeAlias(ctx, lc, ta)
			require.NoError(t, err)
			out = append(out, hir.PrintType(body, ta))
		case hir.FormSpec:
			s := &fl.Specs[idx.Index]
			body, err := hir.LowerSpec(ctx, lc, s)
			require.NoError(t, err)
			out = append(out, hir.PrintSpec(body, s, false))
		case hir.FormCallback:
			s := &fl.Callbacks[idx.Index]
			body, err := hir.LowerSpec(ctx, lc, s)
			require.NoError(t, err)
			out = append(out, hir.PrintSpec(body, s, true))
		case hir.FormRecord:
			r := &fl.Records[idx.Index]
			body, err := hir.LowerRecord(ctx, lc, r)
			require.NoError(t, err)
			out = append(out, hir.PrintRecord(body, r))
		case hir.FormAttribute:
			a := &fl.Attributes[idx.Index]
			body, err := hir.LowerAttribute(ctx, lc, a)
			require.NoError(t, err)
			out = append(out, hir.PrintAttribute(body, a))
		case hir.FormCompileOption:
			c := &fl.CompileOptions[idx.Index]
			body, err := hir.LowerCompileOption(ctx, lc, c)
			require.NoError(t, err)
			out = append(out, hir.PrintCompileOption(body))
		}
	}
	return strings.Join(out, "\n\n")
}

type goldenCase struct {
	name string
	src  string
	want string
}

func runGolden(t *testing.T, tests []goldenCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lowerAndPrint(t, "test.erl", tt.src)
			assert.Equal(t, strings.TrimSpace(tt.want), got)
		})
	}
}

// ---------- Expressions and patterns ----------

func TestLowerLiterals(t *testing.T) {
	runGolden(t, []goldenCase{
		{"atom", `foo(ok) -> ok.`, `
foo('ok') ->
    'ok'.`},
		{"char", `foo($a) -> $b.`, `
foo($a) ->
    $b.`},
		{"float", `foo(0.1) -> 1.2.`, `
foo(0.1) ->
    1.2.`},
		{"integer", `foo(42) -> 4_2.`, `
foo(42) ->
    42.`},
		{"string", `foo("") -> "abc\s\x61".`, `
foo("") ->
    "abc a".`},
		{"concat", `foo("" "") -> "a" "b" "c" "\141".`, `
foo("") ->
    "abca".`},
		{"var", `foo(Foo) -> Foo.`, `
foo(Foo) ->
    Foo.`},
	})
}

func TestLowerContainers(t *testing.T) {
	runGolden(t, []goldenCase{
		{"tuple", `foo({a, b}) -> {1, 2, 3}.`, `
foo({
    'a',
    'b'
}) ->
    {
        1,
        2,
        3
    }.`},
		{"list", `foo([a, b]) -> [1, 2, 3].`, `
foo([
    'a',
    'b'
]) ->
    [
        1,
        2,
        3
    ].`},
		{"list tail", `foo([a | b]) -> [1, 2 | 3].`, `
foo([
    'a'
    | 'b'
]) ->
    [
        1,
        2
        | 3
    ].`},
		{"empty", `foo([], {}) -> [].`, `
foo([], {}) ->
    [].`},
		{"map", `foo(#{1 + 2 := 3 + 4}) -> #{a => b}.`, `
foo(#{
    (1 + 2) := (3 + 4)
}) ->
    #{
        'a' => 'b'
    }.`},
		{"map update", `foo() -> #{a => b}#{a := b, c => d}.`, `
foo() ->
    #{
        'a' => 'b'
    }#{
        'a' := 'b',
        'c' => 'd'
    }.`},
		{"binary", `foo(<<Size, Data:Size/binary>>) -> <<+1/integer-little-unit:8>>.`, `
foo(<<
    Size,
    Data:Size/binary
>>) ->
    <<
        1/integer-little-unit:8
    >>.`},
	})
}

func TestLowerOperators(t *testing.T) {
	runGolden(t, []goldenCase{
		{"match", `foo(A = B) -> A = B.`, `
foo(A = B) ->
    A = B.`},
		{"unary", `foo(+ A, -B) -> bnot A, not C.`, `
foo((+ A), (- B)) ->
    (bnot A),
    (not C).`},
		{"binary", `foo(A ++ B, C + D) -> E andalso F, G ! H.`, `
foo((A ++ B), (C + D)) ->
    (E andalso F),
    (G ! H).`},
		{"folded negative literals", `foo(-1, -2.5) -> -$a, +$a.`, `
foo(-1, -2.5) ->
    -97,
    $a.`},
		{"catch", `foo() -> catch 1 + 2.`, `
foo() ->
    (catch (1 + 2)).`},
		{"parens", "foo((ok), ()) ->\n    (ok),\n    ().", `
foo('ok', [missing]) ->
    'ok',
    [missing].`},
	})
}

func TestLowerRecords(t *testing.T) {
	runGolden(t, []goldenCase{
		{"index", `foo(#record.field) -> #record.field.`, `
foo(#record.field) ->
    #record.field.`},
		{"construct", "foo1(#record{field = 1}) -> #record{field = A + B}.\nfoo2(#record{field}) -> #record{field = }.", `
foo1(#record{
    field = 1
}) ->
    #record{
        field = (A + B)
    }.

foo2(#record{
    field = [missing]
}) ->
    #record{
        field = [missing]
    }.`},
		{"update", "foo1() -> Expr#record{field = undefined}.\nfoo2() -> Expr#record{field = ok, missing = }.", `
foo1() ->
    Expr#record{
        field = 'undefined'
    }.

foo2() ->
    Expr#record{
        field = 'ok',
        missing = [missing]
    }.`},
		{"field", `foo() -> Expr#record.field.`, `
foo() ->
    Expr#record.field.`},
	})
}

func TestLowerControlFlow(t *testing.T) {
	runGolden(t, []goldenCase{
		{"block", `foo() -> begin 1, 2 end.`, `
foo() ->
    begin
        1,
        2
    end.`},
		{"case", `
foo() ->
    case 1 + 2 of
        X when X andalso true; X =< 100, X >= 5 -> ok;
        _ -> error
    end.`, `
foo() ->
    case (1 + 2) of
        X when
            (X andalso 'true');
            (X =< 100),
            (X >= 5)
        ->
            'ok';
        _ ->
            'error'
    end.`},
		{"receive", `
foo() ->
    receive
        ok when true -> ok;
        _ -> error
    after Timeout -> timeout
    end.`, `
foo() ->
    receive
        'ok' when
            'true'
        ->
            'ok';
        _ ->
            'error'
    after Timeout ->
        'timeout'
    end.`},
		{"if", `
foo() ->
    if is_atom(X) -> ok;
       true -> error
    end.`, `
foo() ->
    if
        'is_atom'(
            X
        ) ->
            'ok';
        'true' ->
            'error'
    end.`},
		{"try", `
foo() ->
    try 1, 2 of
        _ -> ok
    catch
        Pat when true -> ok;
        error:undef:Stack -> Stack
    after
        ok
    end.`, `
foo() ->
    try
        1,
        2
    of
        _ ->
            'ok'
    catch
        Pat when
            'true'
        ->
            'ok';
        'error':'undef':Stack ->
            Stack
    after
        'ok'
    end.`},
		{"maybe", `
foo() ->
maybe
    {ok, A} ?= a(),
    true = A >= 0,
    {ok, B} ?= b(),
    A + B
end.`, `
foo() ->
    maybe
        {
            'ok',
            A
        } ?= 'a'(),
        'true' = (A >= 0),
        {
            'ok',
            B
        } ?= 'b'(),
        (A + B)
    end.`},
		{"maybe else", `
foo() ->
maybe
    {ok, A} ?= a(),
    A
else
    error -> error;
    Other when Other == 0 -> error
end.`, `
foo() ->
    maybe
        {
            'ok',
            A
        } ?= 'a'(),
        A
    else
        'error' ->
            'error';
        Other when
            (Other == 0)
        ->
            'error'
    end.`},
	})
}

func TestLowerCallsAndFuns(t *testing.T) {
	runGolden(t, []goldenCase{
		{"call", "foo() ->\n    foo(),\n    foo:bar(A).", `
foo() ->
    'foo'(),
    'foo':'bar'(
        A
    ).`},
		{"capture", "foo() ->\n    fun foo/1,\n    fun mod:foo/1,\n    fun Mod:Foo/Arity.", `
foo() ->
    fun 'foo'/1,
    fun 'mod':'foo'/1,
    fun Mod:Foo/Arity.`},
		{"closure", `
foo() ->
    fun (ok) -> ok;
        (error) -> error
    end,
    fun Named() -> Named() end.`, `
foo() ->
    fun
        ('ok') ->
            'ok';
        ('error') ->
            'error'
    end,
    fun
        Named() ->
            Named()
    end.`},
		{"comprehensions", `
foo() ->
    [X || X <- List, X >= 5],
    << Byte || <<Byte>> <= Bytes, Byte >= 5>>,
    #{KK => VV || KK := VV <- Map}.`, `
foo() ->
    [
        X
    ||
        X <- List,
        (X >= 5)
    ],
    <<
        Byte
    ||
        <<
            Byte
        >> <= Bytes,
        (Byte >= 5)
    >>,
    #{
        KK => VV
    ||
        KK := VV <- Map
    }.`},
	})
}

func TestLowerInvalidPatterns(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"call", `foo(bar()) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"catch", `foo(catch 1) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"map update", `foo(X#{}) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"record field", `foo(X#foo.bar) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"record update", `foo(X#foo{}) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"fun", `foo(fun() -> ok end) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"comprehension", `foo(<<Byte || Byte <- List>>, [Byte || Byte <- List]) -> ok.`, "foo([missing], [missing]) ->\n    'ok'."},
		{"block", `foo(begin foo end) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"case", `foo(case X of _ -> ok end) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"capture", `foo(fun erlang:self/0, fun foo/2) -> ok.`, "foo([missing], [missing]) ->\n    'ok'."},
		{"if", `foo(if true -> ok end) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"receive", `foo(receive _ -> ok after X -> timeout end) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"try", `foo(try 1 of _ -> ok catch _ -> error end) -> ok.`, "foo([missing]) ->\n    'ok'."},
		{"ann type", `foo(A :: {}) -> A :: {}.`, "foo([missing]) ->\n    [missing]."},
		{"pipe", `foo(X | Y) -> X | Y.`, "foo([missing]) ->\n    [missing]."},
		{"range", `foo(X..Y) -> X..Y.`, "foo([missing]) ->\n    [missing]."},
		{"remote", `foo(a:b) -> a:b.`, "foo([missing]) ->\n    [missing]."},
		{"fun type", `foo(fun()) -> fun().`, "foo([missing]) ->\n    [missing]."},
		{"macro string", `foo(??X) -> ??X.`, "foo([missing]) ->\n    [missing]."},
		{"concat with var", `foo("a" B "c") -> "a" B "c".`, "foo([missing]) ->\n    [missing]."},
		{"unknown macro", `foo(?MACRO()) -> ?MACRO().`, "foo([missing]) ->\n    [missing]."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lowerAndPrint(t, "test.erl", tt.src))
		})
	}
}

func TestLowerDropsUnresolvedClauseMacro(t *testing.T) {
	got := lowerAndPrint(t, "test.erl", `
foo() ->
    case X of
        ?MACRO();
        ok -> ok
    end.`)
	assert.Equal(t, `foo() ->
    case X of
        'ok' ->
            'ok'
    end.`, got)
}

// ---------- Types, specs and records ----------

func TestLowerTypes(t *testing.T) {
	runGolden(t, []goldenCase{
		{"simple", `-type foo() :: ok.`, `-type foo() :: 'ok'.`},
		{"opaque", `-opaque foo() :: ok.`, `-opaque foo() :: 'ok'.`},
		{"unary op", `-type foo() :: -1.`, `-type foo() :: (- 1).`},
		{"binary op", `-type foo() :: 1 + 1.`, `-type foo() :: (1 + 1).`},
		{"annotation", `-type foo() :: A :: any().`, `-type foo() :: (A  :: 'any'()).`},
		{"list", "-type foo() :: [foo].\n-type bar() :: [bar, ...].\n-type baz() :: [].", `
-type foo() :: ['foo'].

-type bar() :: ['bar', ...].

-type baz() :: [].`},
		{"tuple", `-type foo() :: {a, b, c}.`, `
-type foo() :: {
    'a',
    'b',
    'c'
}.`},
		{"range", `-type foo() :: 1..100.`, `-type foo() :: (1..100).`},
		{"map", `-type foo() :: #{a => b, c := d}.`, `
-type foo() :: #{
    'a' => 'b',
    'c' := 'd'
}.`},
		{"fun", "-type foo1() :: fun().\n-type foo2() :: fun(() -> ok).\n-type foo3() :: fun((a, b) -> ok).\n-type foo4() :: fun((...) -> ok).", `
-type foo1() :: fun().

-type foo2() :: fun(() -> 'ok').

-type foo3() :: fun(('a', 'b') -> 'ok').

-type foo4() :: fun((...) -> 'ok').`},
		{"union", "-type foo1() :: a | b.\n-type foo2() :: a | b | c.\n-type foo3() :: (a | b) | c.", `
-type foo1() :: (
    'a' |
    'b'
).

-type foo2() :: (
    'a' |
    'b' |
    'c'
).

-type foo3() :: (
    (
        'a' |
        'b'
    ) |
    'c'
).`},
		{"var", `-type foo(A) :: A.`, `-type foo(A) :: A.`},
		{"call", "-type local(A) :: local(A | integer()).\n-type remote(A) :: module:remote(A | integer()).", `
-type local(A) :: 'local'(
    (
        A |
        'integer'()
    )
).

-type remote(A) :: 'module':'remote'(
    (
        A |
        'integer'()
    )
).`},
		{"record", "-type foo1() :: #record{}.\n-type foo2(B) :: #record{a :: integer(), b :: B}.\n-type foo3() :: #record{a ::}.", `
-type foo1() :: #record{}.

-type foo2(B) :: #record{
    a :: 'integer'(),
    b :: B
}.

-type foo3() :: #record{
    a :: [missing]
}.`},
		{"invalid", `-type foo() :: catch 1.`, `-type foo() :: [missing].`},
	})
}

func TestLowerSpecs(t *testing.T) {
	runGolden(t, []goldenCase{
		{"spec", `-spec foo() -> ok.`, "-spec foo\n    () -> 'ok'."},
		{"callback", `-callback foo() -> ok.`, "-callback foo\n    () -> 'ok'."},
		{"multiple signatures", "-spec foo(atom()) -> atom();\n         (integer()) -> integer().", `
-spec foo
    ('atom'()) -> 'atom'();
    ('integer'()) -> 'integer'().`},
		{"annotated argument", `-spec foo(A :: any()) -> ok.`, "-spec foo\n    ((A  :: 'any'())) -> 'ok'."},
		{"guarded", "-spec foo(A) -> A\n    when A :: any().", `
-spec foo
    (A) -> A
        when A :: 'any'().`},
	})
}

func TestLowerRecordDeclarations(t *testing.T) {
	src := `
-record(foo, {}).
-record(foo, {field}).
-record(foo, {field = value}).
-record(foo, {field :: type}).
-record(foo, {field = value :: type}).`
	want := `
-record(foo, {
}).

-record(foo, {
    field
}).

-record(foo, {
    field = 'value'
}).

-record(foo, {
    field :: 'type'
}).

-record(foo, {
    field = 'value' :: 'type'
}).`
	assert.Equal(t, strings.TrimSpace(want), lowerAndPrint(t, "test.erl", src))
}

// ---------- Terms ----------

func TestLowerTerms(t *testing.T) {
	runGolden(t, []goldenCase{
		{"simple", "-foo(ok).\n-missing_value().", `
-foo('ok').

-missing_value([missing]).`},
		{"tuple", `-foo({1, 2, ok, "abc"}).`, `
-foo({
    1,
    2,
    'ok',
    "abc"
}).`},
		{"list", "-foo([]).\n-bar([1, 2]).\n-baz([1 | 2]).", `
-foo([]).

-bar([
    1,
    2
]).

-baz([
    1
    | 2
]).`},
		{"map", `-foo(#{1 => 2}).`, `
-foo(#{
    1 => 2
}).`},
		{"fun", `-foo(fun erlang:is_integer/1).`, `-foo(fun erlang:is_integer/1).`},
		{"unary op", "-foo(-(1)).\n-foo(-(1.5)).\n-foo(-$a).\n-foo(+1).\n-foo(+1.5).\n-foo(+$a).\n-foo(-atom).", `
-foo(-1).

-foo(-1.5).

-foo(-97).

-foo(1).

-foo(1.5).

-foo($a).

-foo([missing]).`},
		{"name arity", "-foo(foo/1).\n-compile({inline, [foo/1]}).\n-compile({a/a, 1/1}).", `
-foo({
    'foo',
    1
}).

-compile({
    'inline',
    [
        {
            'foo',
            1
        }
    ]
}).

-compile({
    [missing],
    [missing]
}).`},
		{"binary", "-foo(<<\"abc\">>).\n-bar(<<\"abc\", \"def\">>).\n-baz(<<$a, $b, $c>>).\n-foobar(<<1, 2, 3, -1>>).", `
-foo(<<"abc"/utf8>>).

-bar(<<"abcdef"/utf8>>).

-baz(<<"abc"/utf8>>).

-foobar(<<1, 2, 3, 255>>).`},
	})
}

// ---------- Round trip ----------

func TestPrintIsStable(t *testing.T) {
	// Printed output of these forms parses back to the same print.
	sources := []string{
		`foo({a, [1, 2 | T]}) -> case T of [] -> ok; _ -> #r{f = 1} end.`,
		`foo(X) when is_integer(X), X > 0 -> try bar:baz(X) catch error:R:S -> {R, S} end.`,
		`-type t(A) :: {A, [integer()]} | #{atom() => t(A)}.`,
		`-spec foo(A) -> [A] when A :: atom().`,
		`-foo([{a, 1}, "abc", fun m:f/2]).`,
	}
	for _, src := range sources {
		once := lowerAndPrint(t, "test.erl", src)
		twice := lowerAndPrint(t, "test.erl", once)
		assert.Equal(t, once, twice, "source: %s", src)
	}
}
