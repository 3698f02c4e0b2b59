package db_test

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaperl/internal/db"
	"github.com/leapstack-labs/leaperl/internal/hir"
)

type pathSet []string

func (p pathSet) Exists(path string) bool { return slices.Contains(p, filepath.Clean(path)) }
func (p pathSet) Paths() []string         { return p }

func TestPathResolver(t *testing.T) {
	files := pathSet{
		filepath.FromSlash("app/src/a.erl"),
		filepath.FromSlash("app/src/local.hrl"),
		filepath.FromSlash("app/include/shared.hrl"),
		filepath.FromSlash("deps/stdlib-3.0/include/ms.hrl"),
		filepath.FromSlash("deps/stdlib-4.1/include/ms.hrl"),
		filepath.FromSlash("deps/kernel/include/file.hrl"),
		filepath.FromSlash("otp/lib/ssl/include/ssl.hrl"),
	}
	r := &db.PathResolver{
		IncludeDirs: []string{"app/include"},
		LibDirs:     []string{"otp/lib"},
	}
	from := filepath.FromSlash("app/src/a.erl")

	tests := []struct {
		name string
		inc  hir.Include
		want string
	}{
		{"next to includer", hir.Include{Path: "local.hrl"}, "app/src/local.hrl"},
		{"include dir", hir.Include{Path: "shared.hrl"}, "app/include/shared.hrl"},
		{"relative", hir.Include{Path: "../include/shared.hrl"}, "app/include/shared.hrl"},
		{"lib dir", hir.Include{Path: "ssl/include/ssl.hrl", Lib: true}, "otp/lib/ssl/include/ssl.hrl"},
		{"lib app without version", hir.Include{Path: "kernel/include/file.hrl", Lib: true}, "deps/kernel/include/file.hrl"},
		{"lib app highest version", hir.Include{Path: "stdlib/include/ms.hrl", Lib: true}, "deps/stdlib-4.1/include/ms.hrl"},
		{"lib form only for include_lib", hir.Include{Path: "kernel/include/file.hrl"}, ""},
		{"missing", hir.Include{Path: "nope.hrl"}, ""},
		{"empty", hir.Include{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ResolveInclude(files, from, tt.inc)
			if tt.want == "" {
				assert.False(t, ok, "resolved to %s", got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestIncludedFilesTransitive(t *testing.T) {
	d := newDB(t, map[string]string{
		"a.erl": "-include(\"b.hrl\").\n-include(\"missing.hrl\").",
		"b.hrl": "-include(\"c.hrl\").",
		"c.hrl": "-include(\"b.hrl\").\n-define(C, c).",
	})
	s := d.Snapshot()
	ctx := context.Background()

	got, err := s.IncludedFiles(ctx, fileID(t, s, "a.erl"))
	require.NoError(t, err)
	assert.Equal(t, []hir.FileID{fileID(t, s, "b.hrl"), fileID(t, s, "c.hrl")}, got)

	cycle, found := d.IncludeCycle()
	require.True(t, found)
	assert.Contains(t, cycle, "b.hrl")
	assert.Contains(t, cycle, "c.hrl")

	// The cycle does not stop macro expansion.
	env, err := s.MacroEnv(ctx, fileID(t, s, "a.erl"))
	require.NoError(t, err)
	_, ok := env.Resolve(hir.MacroKey{Name: "C", Arity: -1}, 1<<20)
	assert.True(t, ok)
}

func TestDefMapMergesHeaderRecords(t *testing.T) {
	d := newDB(t, map[string]string{
		"src/a.erl":         "-module(a).\n-include_lib(\"app/include/r.hrl\").\nfoo() -> ok.",
		"app/include/r.hrl": "-record(shared, {x}).",
	})
	s := d.Snapshot()
	ctx := context.Background()

	dm, err := s.DefMap(ctx, fileID(t, s, "src/a.erl"))
	require.NoError(t, err)
	rec, ok := dm.Record("shared")
	require.True(t, ok)
	assert.Equal(t, fileID(t, s, "app/include/r.hrl"), rec.File)
}

func TestResolveModule(t *testing.T) {
	d := newDB(t, map[string]string{
		"src/a.erl":     "-module(a).",
		"src/b.erl":     "foo() -> ok.",
		"src/dup.erl":   "-module(a).",
		"include/a.hrl": "-module(hdr).",
	})
	ctx := context.Background()
	s := d.Snapshot()

	a, ok, err := s.ResolveModule(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "src/a.erl", filepath.ToSlash(s.Path(a)))

	b, ok, err := s.ResolveModule(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "src/b.erl", filepath.ToSlash(s.Path(b)))

	_, ok, err = s.ResolveModule(ctx, "hdr")
	require.NoError(t, err)
	assert.False(t, ok)

	idx, err := s.ModuleIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, idx.Modules())

	d.RemoveFile("src/b.erl")
	_, ok, err = d.Snapshot().ResolveModule(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}
