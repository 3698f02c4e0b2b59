package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/testutil"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

func ctxAt(t *testing.T, src string) Ctx {
	t.Helper()
	fx := testutil.ParseFixture(t, src)
	_, offset := fx.Cursor(t)
	return New(syntax.Parse(fx.Files[fx.CursorFile].Text), offset)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Ctx
	}{
		{"body", `
-module(sample).
test() ->
    ~X.
`, Expr},
		{"clause after broken case", `
-module(sample).
test() ->
    case 1 of.
        1 -> ~2
    end.
`, Expr},
		{"fun body", `
-module(sample).
test() ->
    fun(_) -> ~X end.
`, Expr},
		{"try with two catches", `
-module(sample).
test() ->
    try 1
    of
      1 -> X~
    catch
        _:_ -> ok
    catch
        _:_ -> ok
    end.
`, Expr},
		{"map key call argument", `
-module(sample).
main(_) ->
    #{(maps:from_list([~])) => 3}.
`, Expr},
		{"after module colon", `
-module(completion).

start() ->
    lists:~
    ok = preload_modules(),
    ok.
`, Expr},

		{"match lhs", `
-module(sample).
test(Y, X) ->
    ~Y = X.
`, Other},
		{"case pattern", `
-module(sample).
test(X) ->
    case rand:uniform(1) of
        {X~} -> true
    end.
`, Other},
		{"fun head", `
-module(sample).
test(X) ->
    fun(X~) -> 1 end.
`, Other},
		{"receive pattern", `
-module(sample).
test() ->
    receive
        [X~] -> true
    end.
`, Other},
		{"try of pattern", `
-module(sample).
test() ->
    try [1]
    of
      [X~] -> true
    catch
        _:_ -> ok
    end.
`, Other},
		{"if guard", `
-module(sample).
test(X) ->
    if
        X~ -> ok
        true -> error
    end.

`, Expr},
		{"function head", `
-module(sample).
test(X~) ->
    ok.
`, Other},
		{"catch pattern", `
-module(sample).
test(Y, X) ->
    try ok of
        ok -> ok
    catch
        X~ -> ok
`, Other},

		// Error recovery cannot tell these patterns apart from bodies yet.
		{"try of pattern at end of file", `
-module(sample).
test(Y, X) ->
    try ok of
        X~ ->

`, Expr},
		{"catch pattern without arrow", `
-module(sample).
test(Y, X) ->
    try ok of
        ok -> ok
    catch
        X~
`, Expr},

		{"type param", `
-module(sample).
-type ty(s~) :: ok.
`, Other},
		{"export", `
-module(sample).
-export([
    f~
])
`, Export},
		{"export type", `
-module(sample).
-export_type([
    t~
])
`, ExportType},

		{"spec result", `
-module(sample).
-spec test() -> ~
test() -> ok.
`, Type},
		{"spec result atom", `
-module(sample).
-spec test() -> o~k
test() -> ok.
`, Type},
		{"spec arg", `
-module(sample).
-spec test(o~) -> ok.
test() -> ok.
`, Type},
		{"record field type", `
-module(sample).
-record(foo, {field1, field2 :: X~}).
`, Type},
		{"opaque", `
-module(sample).
-opaque test() :: ~.
`, Type},
		{"type body", `
-module(sample).
-type test() :: m~
`, Type},
		{"spec before dot", `
-module(sample).
-spec test() -> ~ok.
`, Type},

		{"empty body", `
-module(sample).
test() ->
    ~
`, Expr},
		{"binary operand", `
-module(sample).
test() ->
    X + ~
`, Expr},
		{"binary operand before dot", `
-module(sample).
test() ->
    X + ~.
`, Expr},
		{"unterminated case clause body", `
-module(sample).
test() ->
    case rand:uniform(1) of
        1 -> ~X

`, Expr},
		{"unclosed call", `
-module(sample).
test() ->
    (erlang:term_to_binary(~

`, Expr},
		{"unclosed call before dot", `
-module(sample).
test() ->
    (erlang:term_to_binary(~.

`, Expr},
		{"type body without arrow", `
-module(sample).
-type ty() :: ~
`, Other},
		{"type body atom", `
-module(sample).
-type ty() :: l~.
`, Type},
		{"record field default", `
-module(sample).
-record(rec, {field = lists:map(fun(X) -> X + 1 end, [1, ~])}).
`, Expr},
		{"define replacement", `
-module(sample).
-define(FOO, ~ok).
`, Expr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ctxAt(t, tt.src))
		})
	}
}

// A match right after 'case' in a broken case expression is the subject
// being typed.
func TestNewCaseSubjectInError(t *testing.T) {
	src := "foo() -> case X = Y of _ -> ok end.\n"
	sf := syntax.Parse(src)
	cs := sf.FindNodeAt(len("foo() -> case "), syntax.KindCaseExpr)
	require.NotNil(t, cs)

	offset := len("foo() -> case X")
	assert.Equal(t, Other, New(sf, offset))

	cs.Kind = syntax.KindError
	assert.Equal(t, Expr, New(sf, offset))
}

func TestCtxString(t *testing.T) {
	assert.Equal(t, "expr", Expr.String())
	assert.Equal(t, "export_type", ExportType.String())
	assert.Equal(t, "other", Ctx(42).String())
}
