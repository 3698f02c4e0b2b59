// Package commands_test provides tests for CLI command creation.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaperl/internal/cli/testutil"
	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

func TestNewParseCommand(t *testing.T) {
	cmd := NewParseCommand()

	assert.Equal(t, "parse <file>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("tree"), "flag tree should exist")
}

func TestNewLowerCommand(t *testing.T) {
	cmd := NewLowerCommand()

	assert.Equal(t, "lower <file>...", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Error(t, cmd.Args(cmd, nil), "lower needs at least one file")
}

func TestNewDefMapCommand(t *testing.T) {
	cmd := NewDefMapCommand()

	assert.Equal(t, "defmap <file>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestPositionCommands(t *testing.T) {
	for _, cmd := range []*cobra.Command{NewClassifyCommand(), NewContextCommand()} {
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.True(t, strings.HasSuffix(cmd.Use, "<file:line:col>"))
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")

			// Note: --output is a global persistent flag on root, not local
			f := cmd.Flags().Lookup("offset")
			require.NotNil(t, f, "flag offset should exist")
			assert.Equal(t, "-1", f.DefValue)
		})
	}
}

func TestNewWatchCommand(t *testing.T) {
	cmd := NewWatchCommand()

	assert.Equal(t, "watch", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Error(t, cmd.Args(cmd, []string{"extra"}), "watch takes no arguments")
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		offset  int
		want    position
		wantErr bool
	}{
		{"line and column", "src/a.erl:3:7", -1, position{Path: "src/a.erl", Line: 3, Column: 7, Offset: -1}, false},
		{"colon in path", "C:/src/a.erl:1:1", -1, position{Path: "C:/src/a.erl", Line: 1, Column: 1, Offset: -1}, false},
		{"explicit offset", "src/a.erl", 42, position{Path: "src/a.erl", Offset: 42}, false},
		{"missing column", "src/a.erl:3", -1, position{}, true},
		{"bare path", "src/a.erl", -1, position{}, true},
		{"zero line", "a.erl:0:1", -1, position{}, true},
		{"bad column", "a.erl:1:x", -1, position{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePosition(tt.arg, tt.offset)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parsePosition() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPositionResolve(t *testing.T) {
	sf := syntax.Parse("-module(a).\nfoo() -> ok.\n")

	p := position{Line: 2, Column: 10, Offset: -1}
	p.resolve(sf.Lines)
	assert.Equal(t, len("-module(a).\n")+9, p.Offset)

	q := position{Offset: p.Offset}
	q.resolve(sf.Lines)
	assert.Equal(t, 2, q.Line)
	assert.Equal(t, 10, q.Column)
}

func TestRender(t *testing.T) {
	r := &contextReport{Position: "src/a.erl:2:10", Context: "expr"}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, "text", r))
		assert.Equal(t, "src/a.erl:2:10: expr\n", buf.String())
	})

	t.Run("auto is text off a terminal", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, "auto", r))
		assert.Equal(t, "src/a.erl:2:10: expr\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, "json", r))
		var got contextReport
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, *r, got)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, "yaml", r))
		var got contextReport
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, *r, got)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, "table", r))
		out := buf.String()
		testutil.AssertContains(t, out, "POSITION")
		testutil.AssertContains(t, out, "expr")
		testutil.AssertNoANSI(t, out)
	})

	t.Run("table falls back to text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, "table", textOnly("plain")))
		assert.Equal(t, "plain", buf.String())
	})

	t.Run("unknown mode", func(t *testing.T) {
		assert.Error(t, render(io.Discard, "xml", r))
	})
}

type textOnly string

func (s textOnly) writeText(w io.Writer) error {
	_, err := io.WriteString(w, string(s))
	return err
}

// runCommand executes cmd against a project rooted at root and returns
// its output.
func runCommand(t *testing.T, root, output string, cmd *cobra.Command, args ...string) string {
	t.Helper()
	cfg := config.Default(root)
	cfg.Output = output
	ctx := config.WithConfig(context.Background(), cfg)

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(ctx), buf.String())
	return buf.String()
}

func TestParseCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "json", NewParseCommand(), filepath.Join(root, "src", "cart.erl"))
	var r parseReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))

	assert.Equal(t, filepath.Join("src", "cart.erl"), r.File)
	assert.Empty(t, r.Errors)
	want := []formSummary{
		{Kind: "module", Name: "cart", Line: 1},
		{Kind: "export", Line: 2},
		{Kind: "function", Name: "checkout/1", Line: 4},
	}
	if diff := cmp.Diff(want, r.Forms); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCommandReportsErrors(t *testing.T) {
	root := testutil.SetupTestProject(t, "//- src/bad.erl\n-module(bad).\nfoo( -> ok.\n")

	out := runCommand(t, root, "text", NewParseCommand(), filepath.Join(root, "src", "bad.erl"))
	testutil.AssertContains(t, out, "src/bad.erl:")
	testutil.AssertNotContains(t, out, " 0 errors")
}

func TestParseCommandTree(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "text", NewParseCommand(), filepath.Join(root, "src", "cart.erl"), "--tree")
	testutil.AssertContains(t, out, "0 errors")
	assert.Greater(t, strings.Count(out, "\n"), 10, "tree should be printed")
}

func TestLowerCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "text", NewLowerCommand(), filepath.Join(root, "src", "shop.erl"))
	testutil.AssertContains(t, out, "-type amount()")
	testutil.AssertContains(t, out, "total(")
	testutil.AssertContains(t, out, "add(")
	testutil.AssertContains(t, out, "100")
	testutil.AssertNotContains(t, out, "?CENTS")
}

func TestLowerCommandSeveralFiles(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "json", NewLowerCommand(),
		filepath.Join(root, "src", "shop.erl"),
		filepath.Join(root, "src", "cart.erl"))
	var r lowerReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.Len(t, r.Files, 2)
	assert.Equal(t, filepath.Join("src", "cart.erl"), r.Files[1].File)
	require.Len(t, r.Files[1].Forms, 1)
	assert.Equal(t, "function", r.Files[1].Forms[0].Kind)
	testutil.AssertContains(t, r.Files[1].Forms[0].Text, "checkout(")
}

func TestLowerCommandMissingFile(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	cfg := config.Default(root)

	cmd := NewLowerCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{filepath.Join(root, "src", "nope.erl")})
	assert.Error(t, cmd.ExecuteContext(config.WithConfig(context.Background(), cfg)))
}

func TestDefMapCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "text", NewDefMapCommand(), filepath.Join(root, "src", "shop.erl"))
	testutil.AssertContains(t, out, "module shop")
	testutil.AssertContains(t, out, "include src/shop.hrl")
	testutil.AssertContains(t, out, "include include/money.hrl")
	testutil.AssertContains(t, out, "#item(name, price)")
	testutil.AssertContains(t, out, "?CENTS/1(X)")
	testutil.AssertContains(t, out, "total/1(Items) [exported]")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "price/1(Arg1)") {
			testutil.AssertNotContains(t, line, "exported")
		}
	}
}

func TestDefMapCommandYAML(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "yaml", NewDefMapCommand(), filepath.Join(root, "src", "cart.erl"))
	var r defMapReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	assert.Equal(t, "cart", r.Module)
	assert.False(t, r.ExportAll)
	require.Len(t, r.Definitions, 1)
	assert.Equal(t, "checkout/1", r.Definitions[0].Name)
	assert.Equal(t, []string{"exported"}, r.Definitions[0].Flags)
}

func TestClassifyCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	cart := filepath.Join(root, "src", "cart.erl")
	line, col := testutil.LineCol(t, cart, "total(Items)", 1)

	out := runCommand(t, root, "json", NewClassifyCommand(), fmt.Sprintf("%s:%d:%d", cart, line, col))
	var r classifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Found)
	assert.False(t, r.Definition)
	assert.Equal(t, "direct", r.Reference)
	require.Len(t, r.Targets, 1)
	assert.Equal(t, "function", r.Targets[0].Kind)
	assert.Equal(t, "total/1", r.Targets[0].Name)
	assert.Equal(t, filepath.Join("src", "shop.erl"), r.Targets[0].File)
	assert.False(t, r.Targets[0].Local)
}

func TestClassifyCommandMacroFromHeader(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	shop := filepath.Join(root, "src", "shop.erl")
	line, col := testutil.LineCol(t, shop, "CENTS(P)", 1)

	out := runCommand(t, root, "text", NewClassifyCommand(), fmt.Sprintf("%s:%d:%d", shop, line, col))
	testutil.AssertContains(t, out, "reference(direct) define ?CENTS/1")
	testutil.AssertContains(t, out, "include/money.hrl")
}

func TestClassifyCommandNoSymbol(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	cart := filepath.Join(root, "src", "cart.erl")

	// Offset 0 is the '-' of -module.
	out := runCommand(t, root, "text", NewClassifyCommand(), cart, "--offset", "0")
	testutil.AssertContains(t, out, "no symbol")
}

func TestContextCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	cart := filepath.Join(root, "src", "cart.erl")

	tests := []struct {
		needle string
		delta  int
		want   string
	}{
		{"shop:total", 0, "expr"},
		{"checkout/1", 0, "export"},
	}
	for _, tt := range tests {
		t.Run(tt.needle, func(t *testing.T) {
			line, col := testutil.LineCol(t, cart, tt.needle, tt.delta)
			out := runCommand(t, root, "text", NewContextCommand(), fmt.Sprintf("%s:%d:%d", cart, line, col))
			assert.Equal(t, fmt.Sprintf("%s:%d:%d: %s\n", filepath.Join("src", "cart.erl"), line, col, tt.want), out)
		})
	}
}

func TestContextCommandOffset(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	cart := filepath.Join(root, "src", "cart.erl")

	out := runCommand(t, root, "json", NewContextCommand(), cart, "--offset", "0")
	var r contextReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, filepath.Join("src", "cart.erl")+":1:1", r.Position)
}

func TestFindSources(t *testing.T) {
	root := testutil.SetupTestProject(t, `
//- src/a.erl
-module(a).
//- include/a.hrl
-define(A, 1).
//- _build/default/lib/x/src/x.erl
-module(x).
//- .git/hooks/h.erl
-module(h).
//- README.md
# readme
`)

	got, err := findSources([]string{root, filepath.Join(root, "include"), filepath.Join(root, "missing")})
	require.NoError(t, err)
	want := []string{
		filepath.Join(root, "include", "a.hrl"),
		filepath.Join(root, "src", "a.erl"),
	}
	assert.Equal(t, want, got)
}

func newTestProject(t *testing.T, root string) *project {
	t.Helper()
	ctx := config.WithConfig(context.Background(), config.Default(root))
	p, err := loadProject(ctx)
	require.NoError(t, err)
	return p
}

func TestWatchSessionHandle(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	s := newWatchSession(newTestProject(t, root), io.Discard)
	erl := filepath.Join(root, "src", "cart.erl")

	assert.True(t, s.handle(fsnotify.Event{Name: erl, Op: fsnotify.Write}, nil))
	assert.False(t, s.pending[erl])

	assert.True(t, s.handle(fsnotify.Event{Name: erl, Op: fsnotify.Remove}, nil))
	assert.True(t, s.pending[erl])

	assert.False(t, s.handle(fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write}, nil))
	assert.False(t, s.handle(fsnotify.Event{Name: erl, Op: fsnotify.Chmod}, nil))
}

func TestWatchSessionFlush(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)
	p := newTestProject(t, root)
	ctx := context.Background()
	require.NoError(t, p.db.Snapshot().Prewarm(ctx, nil))
	before := p.db.Snapshot().Revision()

	var out bytes.Buffer
	s := newWatchSession(p, &out)

	// Edit one module, add another and delete a third.
	cart := filepath.Join(root, "src", "cart.erl")
	testutil.WriteFile(t, cart, "-module(cart).\n-export([checkout/1]).\ncheckout(Items) -> {ok, shop:total(Items)}.\n")
	added := filepath.Join(root, "src", "pay.erl")
	testutil.WriteFile(t, added, "-module(pay).\n")
	gone := filepath.Join(root, "src", "gone.erl")

	s.handle(fsnotify.Event{Name: cart, Op: fsnotify.Write}, nil)
	s.handle(fsnotify.Event{Name: added, Op: fsnotify.Create}, nil)
	s.handle(fsnotify.Event{Name: gone, Op: fsnotify.Remove}, nil)
	require.NoError(t, s.flush(ctx))
	assert.Empty(t, s.pending)

	got := out.String()
	testutil.AssertContains(t, got, "removed src/gone.erl")
	testutil.AssertContains(t, got, "src/cart.erl (3 forms, 0 errors)")
	testutil.AssertContains(t, got, "src/pay.erl (1 forms, 0 errors)")

	snap := p.db.Snapshot()
	assert.Greater(t, snap.Revision(), before)
	_, ok := snap.FileID(added)
	assert.True(t, ok, "created file should be in the database")

	// Nothing pending is a no-op.
	out.Reset()
	require.NoError(t, s.flush(ctx))
	assert.Empty(t, out.String())
}
