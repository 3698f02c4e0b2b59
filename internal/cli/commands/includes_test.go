package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/cli/testutil"
	"github.com/leapstack-labs/leaperl/internal/dag"
)

func TestNewIncludesCommand(t *testing.T) {
	cmd := NewIncludesCommand()

	assert.Equal(t, "includes", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Long, "Long should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
}

func TestIncludeLevels(t *testing.T) {
	g := dag.NewGraph[string]()
	for _, n := range []string{"a.erl", "b.erl", "x.hrl", "y.hrl"} {
		g.AddNode(n)
	}
	require.NoError(t, g.AddEdge("y.hrl", "x.hrl"))
	require.NoError(t, g.AddEdge("x.hrl", "a.erl"))
	require.NoError(t, g.AddEdge("y.hrl", "b.erl"))

	assert.Equal(t, [][]string{{"y.hrl"}, {"b.erl", "x.hrl"}, {"a.erl"}}, includeLevels(g))

	require.NoError(t, g.AddEdge("a.erl", "y.hrl"))
	assert.Len(t, includeLevels(g), 1, "a cycle collapses to one level")
}

func TestIncludesCommand(t *testing.T) {
	root := testutil.SetupTestProject(t, testutil.DefaultProject)

	out := runCommand(t, root, "json", NewIncludesCommand())
	var r includesReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))

	assert.Equal(t, 4, r.TotalFiles)
	assert.Equal(t, 2, r.TotalEdges)
	assert.Empty(t, r.Cycle)
	assert.Empty(t, r.Unresolved)
	require.Len(t, r.Levels, 2)

	shop := filepath.Join("src", "shop.erl")
	require.Len(t, r.Levels[1].Files, 1)
	assert.Equal(t, shop, r.Levels[1].Files[0].Path)
	assert.ElementsMatch(t,
		[]string{filepath.Join("include", "money.hrl"), filepath.Join("src", "shop.hrl")},
		r.Levels[1].Files[0].Includes)
}

func TestIncludesCommandText(t *testing.T) {
	root := testutil.SetupTestProject(t, `
//- src/a.erl
-module(a).
-include("nope.hrl").
`)

	out := runCommand(t, root, "text", NewIncludesCommand())
	testutil.AssertContains(t, out, "Level 0:")
	testutil.AssertContains(t, out, "unresolved: "+filepath.Join("src", "a.erl")+": nope.hrl")
	testutil.AssertContains(t, out, "Total: 1 files, 0 includes")
}
