// Package db is the incremental semantic database. It holds the source
// text of every file in a Revision and answers memoized queries (parse,
// form list, lowered bodies, def maps, macro tables) through a Snapshot.
//
// Every change creates a new revision and cancels the previous one. Memo
// entries whose dependency set is untouched by the change, after widening
// it along the include graph, are carried into the new revision.
package db

import (
	"context"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leaperl/internal/dag"
	"github.com/leapstack-labs/leaperl/internal/hir"
)

// Database owns the current revision. It is safe for concurrent use.
type Database struct {
	mu     sync.Mutex
	rev    *Revision
	ids    map[string]hir.FileID
	nextID hir.FileID

	graphMu sync.Mutex
	// includes has an edge from every header to each file that includes it
	// directly. It is filled in as include queries run.
	includes *dag.Graph[hir.FileID]

	opts options
}

// Revision is one immutable generation of file contents.
type Revision struct {
	Number uint64
	// TraceID tags the revision's log records.
	TraceID uuid.UUID

	texts map[hir.FileID]string
	paths map[hir.FileID]string
	ids   map[string]hir.FileID

	ctx    context.Context
	cancel context.CancelFunc
	memo   *memo
}

// New creates an empty database.
func New(opts ...Option) *Database {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &Database{
		ids:      map[string]hir.FileID{},
		includes: dag.NewGraph[hir.FileID](),
		opts:     o,
	}
	d.rev = d.newRevision(nil, nil, true)
	return d
}

func (d *Database) logger() *slog.Logger {
	return d.opts.logger
}

// newRevision derives the next revision from prev. changed lists the files
// whose text differs; structural is set when the file set itself changed,
// which can alter include and module resolution anywhere.
func (d *Database) newRevision(prev *Revision, changed []hir.FileID, structural bool) *Revision {
	ctx, cancel := context.WithCancel(context.Background())
	rev := &Revision{
		TraceID: uuid.New(),
		texts:   map[hir.FileID]string{},
		paths:   map[hir.FileID]string{},
		ids:     map[string]hir.FileID{},
		ctx:     ctx,
		cancel:  cancel,
	}
	if prev == nil {
		rev.memo = newMemo()
		return rev
	}

	rev.Number = prev.Number + 1
	maps.Copy(rev.texts, prev.texts)
	maps.Copy(rev.paths, prev.paths)
	maps.Copy(rev.ids, prev.ids)

	if structural {
		rev.memo = newMemo()
	} else {
		d.graphMu.Lock()
		affected := d.includes.Affected(changed)
		d.graphMu.Unlock()
		rev.memo = prev.memo.carryOver(affected)
	}
	prev.cancel()
	return rev
}

// publish installs rev as current. Callers hold d.mu.
func (d *Database) publish(rev *Revision, reason string) {
	d.rev = rev
	d.logger().Debug("new revision",
		"revision", rev.Number,
		"trace", rev.TraceID.String(),
		"reason", reason,
		"carried", rev.memo.len())
}

func (d *Database) idFor(path string) (hir.FileID, bool) {
	if id, ok := d.ids[path]; ok {
		return id, false
	}
	id := d.nextID
	d.nextID++
	d.ids[path] = id
	return id, true
}

// SetFileText sets the text of path, adding the file if needed, and
// returns its ID. Setting identical text does not create a revision.
func (d *Database) SetFileText(path, text string) hir.FileID {
	path = filepath.Clean(path)
	d.mu.Lock()
	defer d.mu.Unlock()

	id, _ := d.idFor(path)
	old, exists := d.rev.texts[id]
	if exists && old == text {
		return id
	}
	rev := d.newRevision(d.rev, []hir.FileID{id}, !exists)
	rev.texts[id] = text
	rev.paths[id] = path
	rev.ids[path] = id
	d.publish(rev, "set "+path)
	return id
}

// RemoveFile drops path from the database. IDs are never reused.
func (d *Database) RemoveFile(path string) {
	path = filepath.Clean(path)
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.rev.ids[path]
	if !ok {
		return
	}
	rev := d.newRevision(d.rev, []hir.FileID{id}, true)
	delete(rev.texts, id)
	delete(rev.paths, id)
	delete(rev.ids, path)

	d.graphMu.Lock()
	d.includes.RemoveNode(id)
	d.graphMu.Unlock()

	d.publish(rev, "remove "+path)
}

// SetFiles replaces the whole file set in one revision.
func (d *Database) SetFiles(files map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rev := d.newRevision(d.rev, nil, true)
	clear(rev.texts)
	clear(rev.paths)
	clear(rev.ids)
	for _, path := range slices.Sorted(maps.Keys(files)) {
		clean := filepath.Clean(path)
		id, _ := d.idFor(clean)
		rev.texts[id] = files[path]
		rev.paths[id] = clean
		rev.ids[clean] = id
	}

	d.graphMu.Lock()
	d.includes = dag.NewGraph[hir.FileID]()
	d.graphMu.Unlock()

	d.publish(rev, "set files")
}

// FileID returns the ID of path in the current revision.
func (d *Database) FileID(path string) (hir.FileID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.rev.ids[filepath.Clean(path)]
	return id, ok
}

// Snapshot returns a read view of the current revision. Queries on it
// fail with ErrCanceled once a later change is made.
func (d *Database) Snapshot() *Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Snapshot{db: d, rev: d.rev}
}

// IncludeCycle reports a cycle in the include edges seen so far.
func (d *Database) IncludeCycle() ([]string, bool) {
	d.graphMu.Lock()
	found, ids := d.includes.HasCycle()
	d.graphMu.Unlock()
	if !found {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = d.rev.paths[id]
	}
	return paths, true
}

// recordIncludes stores the direct includes of file for invalidation.
// Edges seen from a superseded revision are ignored.
func (d *Database) recordIncludes(rev *Revision, file hir.FileID, headers []hir.FileID) {
	if rev.ctx.Err() != nil {
		return
	}
	d.graphMu.Lock()
	defer d.graphMu.Unlock()
	// Self-includes are cut by the include walk and not worth an edge.
	headers = slices.DeleteFunc(slices.Clone(headers), func(h hir.FileID) bool { return h == file })
	if err := d.includes.SetParents(file, headers); err != nil {
		d.logger().Warn("include graph", "error", err)
	}
}
