package db

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

// Snapshot is a read view bound to one revision. Its queries are safe for
// concurrent use and share memoized results with every other snapshot of
// the same revision.
type Snapshot struct {
	db  *Database
	rev *Revision
}

// Stats counts memo hits and misses of a revision.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

func (s *Snapshot) Revision() uint64 {
	return s.rev.Number
}

func (s *Snapshot) Stats() Stats {
	m := s.rev.memo
	return Stats{Entries: m.len(), Hits: m.hits.Load(), Misses: m.misses.Load()}
}

// check fails once the revision is superseded or ctx is done.
func (s *Snapshot) check(ctx context.Context) error {
	if s.rev.ctx.Err() != nil || ctx.Err() != nil {
		return ErrCanceled
	}
	return nil
}

// Files returns every file ID in ascending order.
func (s *Snapshot) Files() []hir.FileID {
	out := make([]hir.FileID, 0, len(s.rev.texts))
	for id := range s.rev.texts {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Path returns the path of file, or "" if it is not in the revision.
func (s *Snapshot) Path(file hir.FileID) string {
	return s.rev.paths[file]
}

func (s *Snapshot) FileID(path string) (hir.FileID, bool) {
	id, ok := s.rev.ids[filepath.Clean(path)]
	return id, ok
}

// Text returns the source of file and records it as a dependency of the
// calling query.
func (s *Snapshot) Text(ctx context.Context, file hir.FileID) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	text, ok := s.rev.texts[file]
	if !ok {
		return "", fmt.Errorf("file %d: %w", file, ErrUnknownFile)
	}
	trackerFrom(ctx).add(file)
	return text, nil
}

func (s *Snapshot) Parse(ctx context.Context, file hir.FileID) (*syntax.SourceFile, error) {
	return query(ctx, s, queryKey{kind: queryParse, file: file}, func(ctx context.Context) (*syntax.SourceFile, error) {
		text, err := s.Text(ctx, file)
		if err != nil {
			return nil, err
		}
		return syntax.Parse(text), nil
	})
}

func (s *Snapshot) FormList(ctx context.Context, file hir.FileID) (*hir.FormList, error) {
	return query(ctx, s, queryKey{kind: queryFormList, file: file}, func(ctx context.Context) (*hir.FormList, error) {
		sf, err := s.Parse(ctx, file)
		if err != nil {
			return nil, err
		}
		return hir.NewFormList(sf), nil
	})
}

// ResolveInclude returns the file inc in file refers to.
func (s *Snapshot) ResolveInclude(file hir.FileID, inc hir.Include) (hir.FileID, bool) {
	from, ok := s.rev.paths[file]
	if !ok {
		return 0, false
	}
	path, ok := s.db.opts.resolver.ResolveInclude(revisionFiles{s.rev}, from, inc)
	if !ok {
		return 0, false
	}
	return s.FileID(path)
}

// IncludedFiles returns every header file includes, transitively, in
// first-include order. Cycles and self-includes are cut.
func (s *Snapshot) IncludedFiles(ctx context.Context, file hir.FileID) ([]hir.FileID, error) {
	return query(ctx, s, queryKey{kind: queryIncludes, file: file}, func(ctx context.Context) ([]hir.FileID, error) {
		visited := map[hir.FileID]bool{file: true}
		var out []hir.FileID
		var walk func(f hir.FileID) error
		walk = func(f hir.FileID) error {
			fl, err := s.FormList(ctx, f)
			if err != nil {
				return err
			}
			var direct []hir.FileID
			for _, inc := range fl.Includes {
				h, ok := s.ResolveInclude(f, inc)
				if !ok {
					continue
				}
				direct = append(direct, h)
				if visited[h] {
					continue
				}
				visited[h] = true
				out = append(out, h)
				if err := walk(h); err != nil {
					return err
				}
			}
			s.db.recordIncludes(s.rev, f, direct)
			return nil
		}
		if err := walk(file); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// MacroEnv returns the macro table of file: its own defines and undefs
// with those of every included header spliced in at the -include.
func (s *Snapshot) MacroEnv(ctx context.Context, file hir.FileID) (*hir.MacroEnv, error) {
	return query(ctx, s, queryKey{kind: queryMacroEnv, file: file}, func(ctx context.Context) (*hir.MacroEnv, error) {
		// Populates the include graph used to widen invalidation.
		if _, err := s.IncludedFiles(ctx, file); err != nil {
			return nil, err
		}
		visited := map[hir.FileID]bool{file: true}
		var firstErr error
		var entries func(f hir.FileID) []hir.MacroEntry
		entries = func(f hir.FileID) []hir.MacroEntry {
			fl, err := s.FormList(ctx, f)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			return hir.LocalMacroEntries(f, fl, func(inc *hir.Include) []hir.MacroEntry {
				h, ok := s.ResolveInclude(f, *inc)
				if !ok || visited[h] {
					return nil
				}
				visited[h] = true
				spliced := entries(h)
				for i := range spliced {
					spliced[i].Offset = inc.Node.Span.Start.Offset
				}
				return spliced
			})
		}
		env := hir.NewMacroEnv(entries(file))
		if firstErr != nil {
			return nil, firstErr
		}
		return env, nil
	})
}

// DefMap returns the definitions of file merged with those of its headers.
func (s *Snapshot) DefMap(ctx context.Context, file hir.FileID) (*hir.DefMap, error) {
	return query(ctx, s, queryKey{kind: queryDefMap, file: file}, func(ctx context.Context) (*hir.DefMap, error) {
		return s.buildDefMap(ctx, file, map[hir.FileID]bool{})
	})
}

func (s *Snapshot) buildDefMap(ctx context.Context, file hir.FileID, visited map[hir.FileID]bool) (*hir.DefMap, error) {
	visited[file] = true
	fl, err := s.FormList(ctx, file)
	if err != nil {
		return nil, err
	}
	var headers []*hir.DefMap
	for _, inc := range fl.Includes {
		h, ok := s.ResolveInclude(file, inc)
		if !ok || visited[h] {
			continue
		}
		hdm, err := s.buildDefMap(ctx, h, visited)
		if err != nil {
			return nil, err
		}
		headers = append(headers, hdm)
	}
	return hir.BuildDefMap(file, fl, headers), nil
}

// ModuleIndex maps module names to the .erl files defining them.
type ModuleIndex struct {
	modules map[string]hir.FileID
}

func (m *ModuleIndex) Lookup(name string) (hir.FileID, bool) {
	id, ok := m.modules[name]
	return id, ok
}

// Modules returns every module name in ascending order.
func (m *ModuleIndex) Modules() []string {
	out := make([]string, 0, len(m.modules))
	for name := range m.modules {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// ModuleIndex indexes every .erl file by its -module name, falling back to
// the file name. When two files claim a module the lower ID wins.
func (s *Snapshot) ModuleIndex(ctx context.Context) (*ModuleIndex, error) {
	return query(ctx, s, queryKey{kind: queryModuleIndex}, func(ctx context.Context) (*ModuleIndex, error) {
		idx := &ModuleIndex{modules: map[string]hir.FileID{}}
		for _, file := range s.Files() {
			path := s.rev.paths[file]
			if filepath.Ext(path) != ".erl" {
				continue
			}
			fl, err := s.FormList(ctx, file)
			if err != nil {
				return nil, err
			}
			name := fl.ModuleName()
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), ".erl")
			}
			if prev, dup := idx.modules[name]; dup {
				s.db.logger().Warn("duplicate module",
					"module", name,
					"kept", s.rev.paths[prev],
					"ignored", path)
				continue
			}
			idx.modules[name] = file
		}
		return idx, nil
	})
}

// ResolveModule returns the file defining module name.
func (s *Snapshot) ResolveModule(ctx context.Context, name string) (hir.FileID, bool, error) {
	idx, err := s.ModuleIndex(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok := idx.Lookup(name)
	return id, ok, nil
}

// LowerContext returns the lowering context of the form at idx in file.
func (s *Snapshot) LowerContext(ctx context.Context, file hir.FileID, idx hir.FormIdx) (*hir.LowerContext, error) {
	fl, err := s.FormList(ctx, file)
	if err != nil {
		return nil, err
	}
	macros, err := s.MacroEnv(ctx, file)
	if err != nil {
		return nil, err
	}
	n := fl.Node(idx)
	lc := &hir.LowerContext{
		File:       file,
		FileName:   filepath.Base(s.rev.paths[file]),
		OTPRelease: s.db.opts.otpRelease,
		Macros:     macros,
		Offset:     n.Span.Start.Offset,
	}
	if m := fl.ModuleAttr; m != nil && m.Node.Span.Start.Offset < lc.Offset {
		lc.Module = m.Name
	}
	return lc, nil
}

// lowerForm memoizes lowering of one form kind.
func lowerForm[T any](ctx context.Context, s *Snapshot, kind queryKind, file hir.FileID, fk hir.FormKind, index int,
	lower func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (T, error)) (T, error) {
	return query(ctx, s, queryKey{kind: kind, file: file, index: index}, func(ctx context.Context) (T, error) {
		var zero T
		fl, err := s.FormList(ctx, file)
		if err != nil {
			return zero, err
		}
		if index < 0 || index >= fl.Count(fk) {
			return zero, fmt.Errorf("%s %d of file %d: %w", fk, index, file, ErrUnknownForm)
		}
		lc, err := s.LowerContext(ctx, file, hir.FormIdx{Kind: fk, Index: index})
		if err != nil {
			return zero, err
		}
		return lower(ctx, lc, fl)
	})
}

// FunctionBody lowers fl.Functions[index] of file.
func (s *Snapshot) FunctionBody(ctx context.Context, file hir.FileID, index int) (*hir.FunctionBody, error) {
	return lowerForm(ctx, s, queryFunctionBody, file, hir.FormFunction, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.FunctionBody, error) {
			return hir.LowerFunction(ctx, lc, &fl.Functions[index])
		})
}

func (s *Snapshot) TypeBody(ctx context.Context, file hir.FileID, index int) (*hir.TypeBody, error) {
	return lowerForm(ctx, s, queryTypeBody, file, hir.FormTypeAlias, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.TypeBody, error) {
			return hir.LowerTypeAlias(ctx, lc, &fl.TypeAliases[index])
		})
}

func (s *Snapshot) SpecBody(ctx context.Context, file hir.FileID, index int) (*hir.SpecBody, error) {
	return lowerForm(ctx, s, querySpecBody, file, hir.FormSpec, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.SpecBody, error) {
			return hir.LowerSpec(ctx, lc, &fl.Specs[index])
		})
}

func (s *Snapshot) CallbackBody(ctx context.Context, file hir.FileID, index int) (*hir.SpecBody, error) {
	return lowerForm(ctx, s, queryCallbackBody, file, hir.FormCallback, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.SpecBody, error) {
			return hir.LowerSpec(ctx, lc, &fl.Callbacks[index])
		})
}

func (s *Snapshot) RecordBody(ctx context.Context, file hir.FileID, index int) (*hir.RecordBody, error) {
	return lowerForm(ctx, s, queryRecordBody, file, hir.FormRecord, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.RecordBody, error) {
			return hir.LowerRecord(ctx, lc, &fl.Records[index])
		})
}

func (s *Snapshot) AttributeBody(ctx context.Context, file hir.FileID, index int) (*hir.AttributeBody, error) {
	return lowerForm(ctx, s, queryAttributeBody, file, hir.FormAttribute, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.AttributeBody, error) {
			return hir.LowerAttribute(ctx, lc, &fl.Attributes[index])
		})
}

func (s *Snapshot) CompileBody(ctx context.Context, file hir.FileID, index int) (*hir.AttributeBody, error) {
	return lowerForm(ctx, s, queryCompileBody, file, hir.FormCompileOption, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.AttributeBody, error) {
			return hir.LowerCompileOption(ctx, lc, &fl.CompileOptions[index])
		})
}

func (s *Snapshot) DefineBody(ctx context.Context, file hir.FileID, index int) (*hir.DefineBody, error) {
	return lowerForm(ctx, s, queryDefineBody, file, hir.FormDefine, index,
		func(ctx context.Context, lc *hir.LowerContext, fl *hir.FormList) (*hir.DefineBody, error) {
			return hir.LowerDefine(ctx, lc, &fl.Defines[index])
		})
}

// FunctionScopes returns the variable scopes of a function body.
func (s *Snapshot) FunctionScopes(ctx context.Context, file hir.FileID, index int) (*hir.Scopes, error) {
	return query(ctx, s, queryKey{kind: queryScopes, file: file, index: index}, func(ctx context.Context) (*hir.Scopes, error) {
		fb, err := s.FunctionBody(ctx, file, index)
		if err != nil {
			return nil, err
		}
		return hir.ComputeScopes(fb), nil
	})
}

// FormBody returns the lowered body of any form that has one, or nil for
// forms that are not lowered (exports, includes, directives).
func (s *Snapshot) FormBody(ctx context.Context, file hir.FileID, idx hir.FormIdx) (*hir.Body, error) {
	switch idx.Kind {
	case hir.FormFunction:
		fb, err := s.FunctionBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return fb.Body, nil
	case hir.FormTypeAlias:
		tb, err := s.TypeBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return tb.Body, nil
	case hir.FormSpec:
		sb, err := s.SpecBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return sb.Body, nil
	case hir.FormCallback:
		sb, err := s.CallbackBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return sb.Body, nil
	case hir.FormRecord:
		rb, err := s.RecordBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return rb.Body, nil
	case hir.FormAttribute:
		ab, err := s.AttributeBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return ab.Body, nil
	case hir.FormCompileOption:
		ab, err := s.CompileBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return ab.Body, nil
	case hir.FormDefine:
		dfb, err := s.DefineBody(ctx, file, idx.Index)
		if err != nil {
			return nil, err
		}
		return dfb.Body, nil
	}
	return nil, nil
}

// timeIt logs the duration of a query computation at debug level.
func (s *Snapshot) timeIt(k queryKey) func() {
	start := time.Now()
	return func() {
		s.db.logger().Debug("query",
			"query", k.String(),
			"revision", s.rev.Number,
			"trace", s.rev.TraceID.String(),
			"duration", time.Since(start))
	}
}
