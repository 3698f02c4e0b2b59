package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixture_SingleFile(t *testing.T) {
	f := ParseFixture(t, "\nfoo() -> ~ok.\n")

	require.Len(t, f.Files, 1)
	assert.Equal(t, DefaultPath, f.Files[0].Path)
	assert.Equal(t, "foo() -> ok.\n", f.Files[0].Text)

	path, offset := f.Cursor(t)
	assert.Equal(t, DefaultPath, path)
	assert.Equal(t, 9, offset)
}

func TestParseFixture_MultiFile(t *testing.T) {
	f := ParseFixture(t, `
//- src/a.erl
-module(a).
-include("a.hrl").
//- src/a.hrl
-record(r, {~x}).
`)

	require.Len(t, f.Files, 2)
	assert.Equal(t, "src/a.erl", f.Files[0].Path)
	assert.Equal(t, "-module(a).\n-include(\"a.hrl\").\n", f.Files[0].Text)
	assert.Equal(t, "src/a.hrl", f.Files[1].Path)
	assert.Equal(t, "-record(r, {x}).\n", f.Files[1].Text)

	path, offset := f.Cursor(t)
	assert.Equal(t, "src/a.hrl", path)
	assert.Equal(t, 12, offset)

	assert.Equal(t, map[string]string{
		"src/a.erl": f.Files[0].Text,
		"src/a.hrl": f.Files[1].Text,
	}, f.Map())
}

func TestParseFixture_NoCursor(t *testing.T) {
	f := ParseFixture(t, "foo() -> ok.")
	assert.Equal(t, -1, f.CursorFile)
}
