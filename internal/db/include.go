package db

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

// FileSet is the read-only view of a revision's paths given to an
// IncludeResolver.
type FileSet interface {
	Exists(path string) bool
	Paths() []string
}

// IncludeResolver maps an -include or -include_lib in the file at from to
// the path of the included file. Resolution never touches the disk; only
// files in the revision can be found.
type IncludeResolver interface {
	ResolveInclude(files FileSet, from string, inc hir.Include) (string, bool)
}

// PathResolver searches the directory of the including file, then
// IncludeDirs. -include_lib("app/rest") additionally searches LibDirs and
// any known directory named app or app-Vsn.
type PathResolver struct {
	IncludeDirs []string
	LibDirs     []string
}

func (r *PathResolver) ResolveInclude(files FileSet, from string, inc hir.Include) (string, bool) {
	if inc.Path == "" {
		return "", false
	}
	target := filepath.Clean(filepath.FromSlash(inc.Path))
	if filepath.IsAbs(target) {
		return target, files.Exists(target)
	}

	dirs := append([]string{filepath.Dir(from)}, r.IncludeDirs...)
	for _, dir := range dirs {
		if p := filepath.Join(dir, target); files.Exists(p) {
			return p, true
		}
	}
	if !inc.Lib {
		return "", false
	}

	for _, dir := range r.LibDirs {
		if p := filepath.Join(dir, target); files.Exists(p) {
			return p, true
		}
	}
	return resolveLibApp(files, target)
}

// resolveLibApp finds app/rest under any directory named app or app-Vsn,
// picking the lexically last match so the highest version wins.
func resolveLibApp(files FileSet, target string) (string, bool) {
	app, rest, ok := strings.Cut(filepath.ToSlash(target), "/")
	if !ok {
		return "", false
	}
	rest = filepath.FromSlash(rest)
	var found []string
	for _, p := range files.Paths() {
		if !strings.HasSuffix(p, string(filepath.Separator)+rest) {
			continue
		}
		dir := filepath.Base(strings.TrimSuffix(p, string(filepath.Separator)+rest))
		if dir == app || strings.HasPrefix(dir, app+"-") {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	slices.Sort(found)
	return found[len(found)-1], true
}

// revisionFiles adapts a Revision to FileSet.
type revisionFiles struct {
	rev *Revision
}

func (f revisionFiles) Exists(path string) bool {
	_, ok := f.rev.ids[filepath.Clean(path)]
	return ok
}

func (f revisionFiles) Paths() []string {
	out := make([]string, 0, len(f.rev.paths))
	for _, p := range f.rev.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
