package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

// ErrCanceled is returned by every query on a snapshot whose revision has
// been superseded, and to callers whose own context ends while waiting.
var ErrCanceled = errors.New("db: revision canceled")

var (
	ErrUnknownFile = errors.New("db: unknown file")
	ErrUnknownForm = errors.New("db: unknown form")
)

func isCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

type queryKind uint8

const (
	queryParse queryKind = iota
	queryFormList
	queryIncludes
	queryMacroEnv
	queryDefMap
	queryModuleIndex
	queryFunctionBody
	queryTypeBody
	querySpecBody
	queryCallbackBody
	queryRecordBody
	queryAttributeBody
	queryCompileBody
	queryDefineBody
	queryScopes
)

var queryNames = [...]string{
	queryParse:         "parse",
	queryFormList:      "form_list",
	queryIncludes:      "included_files",
	queryMacroEnv:      "macro_env",
	queryDefMap:        "def_map",
	queryModuleIndex:   "module_index",
	queryFunctionBody:  "function_body",
	queryTypeBody:      "type_body",
	querySpecBody:      "spec_body",
	queryCallbackBody:  "callback_body",
	queryRecordBody:    "record_body",
	queryAttributeBody: "attribute_body",
	queryCompileBody:   "compile_body",
	queryDefineBody:    "define_body",
	queryScopes:        "function_scopes",
}

func (k queryKind) String() string {
	return queryNames[k]
}

// queryKey identifies one memoized result. Index is the form index for
// body queries and unused otherwise.
type queryKey struct {
	kind  queryKind
	file  hir.FileID
	index int
}

func (k queryKey) String() string {
	return fmt.Sprintf("%s(%d,%d)", k.kind, k.file, k.index)
}

type fileSet map[hir.FileID]struct{}

type memoEntry struct {
	value any
	deps  fileSet
}

// memo is the result cache of one revision.
type memo struct {
	mu      sync.RWMutex
	entries map[queryKey]*memoEntry
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func newMemo() *memo {
	return &memo{entries: map[queryKey]*memoEntry{}}
}

func (m *memo) get(k queryKey) (*memoEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[k]
	return e, ok
}

func (m *memo) put(k queryKey, e *memoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[k] = e
}

func (m *memo) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// carryOver returns a new memo holding the entries that read none of the
// changed files.
func (m *memo) carryOver(changed []hir.FileID) *memo {
	out := newMemo()
	m.mu.RLock()
	defer m.mu.RUnlock()
next:
	for k, e := range m.entries {
		for _, f := range changed {
			if _, ok := e.deps[f]; ok {
				continue next
			}
		}
		out.entries[k] = e
	}
	return out
}

// tracker collects the files read while computing one query.
type tracker struct {
	mu   sync.Mutex
	deps fileSet
}

func (t *tracker) add(files ...hir.FileID) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range files {
		t.deps[f] = struct{}{}
	}
}

func (t *tracker) addSet(s fileSet) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for f := range s {
		t.deps[f] = struct{}{}
	}
}

type trackerKey struct{}

func trackerFrom(ctx context.Context) *tracker {
	t, _ := ctx.Value(trackerKey{}).(*tracker)
	return t
}

// query returns the memoized value of k, computing it at most once per
// revision. Concurrent callers share one computation. The computation
// runs under the revision's context, so it outlives an impatient caller
// but stops when the revision is superseded. Errors are never memoized.
func query[T any](ctx context.Context, s *Snapshot, k queryKey, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := s.check(ctx); err != nil {
		return zero, err
	}
	m := s.rev.memo
	parent := trackerFrom(ctx)

	if e, ok := m.get(k); ok {
		m.hits.Add(1)
		parent.addSet(e.deps)
		return e.value.(T), nil
	}

	ch := m.group.DoChan(k.String(), func() (any, error) {
		if e, ok := m.get(k); ok {
			return e, nil
		}
		m.misses.Add(1)
		tr := &tracker{deps: fileSet{}}
		done := s.timeIt(k)
		v, err := compute(context.WithValue(s.rev.ctx, trackerKey{}, tr))
		done()
		if err != nil {
			return nil, err
		}
		e := &memoEntry{value: v, deps: tr.deps}
		m.put(k, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return zero, ErrCanceled
	case r := <-ch:
		if r.Err != nil {
			if isCanceled(r.Err) {
				return zero, ErrCanceled
			}
			return zero, r.Err
		}
		e := r.Val.(*memoEntry)
		parent.addSet(e.deps)
		return e.value.(T), nil
	}
}
