package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/db"
	"github.com/leapstack-labs/leaperl/internal/hir"
)

const watchDebounce = 100 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the project loaded and re-lower files as they change",
		Long: `Load the project, then watch its source directories. Every batch of
file edits becomes a new revision of the semantic database; the changed
files and the files including them are lowered again and a summary is
printed. Results untouched by a change are reused.

Stop with Ctrl-C.`,
		Example: `  leaperl watch
  leaperl watch --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx)
	if err != nil {
		return err
	}
	if err := p.db.Snapshot().Prewarm(ctx, nil); err != nil {
		return fmt.Errorf("failed to lower project: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, root := range sourceRoots(p.cfg) {
		if err := watchDir(watcher, root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	s := newWatchSession(p, cmd.OutOrStdout())
	_, _ = fmt.Fprintf(s.out, "watching %s (%d files)\n", p.cfg.ProjectRoot, len(p.db.Snapshot().Files()))
	return s.loop(ctx, watcher)
}

// watchDir adds dir and its subdirectories to watcher. A missing dir is
// not an error.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watchSession batches file events and applies them to the database.
type watchSession struct {
	p       *project
	out     io.Writer
	pending map[string]bool // path -> removed
}

func newWatchSession(p *project, out io.Writer) *watchSession {
	return &watchSession{p: p, out: out, pending: map[string]bool{}}
}

func (s *watchSession) loop(ctx context.Context, watcher *fsnotify.Watcher) error {
	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.handle(event, watcher) {
				debounce.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.p.logger.Warn("watch error", "error", err)
		case <-debounce.C:
			if err := s.flush(ctx); err != nil {
				if errors.Is(err, db.ErrCanceled) || ctx.Err() != nil {
					continue
				}
				return err
			}
		}
	}
}

// handle records one event. It reports whether a source file changed.
func (s *watchSession) handle(event fsnotify.Event, watcher *fsnotify.Watcher) bool {
	path := filepath.Clean(event.Name)
	if event.Has(fsnotify.Create) && watcher != nil {
		if info, err := os.Stat(path); err == nil && info.IsDir() && !skipDir(info.Name()) {
			if err := watchDir(watcher, path); err != nil {
				s.p.logger.Warn("watch directory", "path", path, "error", err)
			}
			return false
		}
	}
	if !isSource(path) {
		return false
	}
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		s.pending[path] = true
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		s.pending[path] = false
	default:
		return false
	}
	return true
}

// flush applies pending changes, lowers the touched files and prints a
// summary line per file.
func (s *watchSession) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	paths := slices.Sorted(maps.Keys(s.pending))
	removed := s.pending
	s.pending = map[string]bool{}

	d := s.p.db
	var changed []string
	for _, path := range paths {
		if removed[path] {
			if _, err := os.Stat(path); err == nil {
				// Renamed back into place or replaced atomically.
				removed[path] = false
			}
		}
		if removed[path] {
			d.RemoveFile(path)
			_, _ = fmt.Fprintf(s.out, "removed %s\n", s.p.rel(path))
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			s.p.logger.Warn("read changed file", "path", path, "error", err)
			continue
		}
		d.SetFileText(path, string(content))
		changed = append(changed, path)
	}
	if len(changed) == 0 {
		return nil
	}

	snap := d.Snapshot()
	ids := make([]hir.FileID, 0, len(changed))
	for _, path := range changed {
		if id, ok := snap.FileID(path); ok {
			ids = append(ids, id)
		}
	}
	start := time.Now()
	if err := snap.Prewarm(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		sf, err := snap.Parse(ctx, id)
		if err != nil {
			return err
		}
		fl, err := snap.FormList(ctx, id)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "revision %d: %s (%d forms, %d errors)\n",
			snap.Revision(), s.p.rel(snap.Path(id)), len(fl.Forms()), len(sf.Errors))
	}
	if cycle, ok := d.IncludeCycle(); ok {
		s.p.logger.Warn("include cycle", "files", cycle)
	}
	stats := snap.Stats()
	s.p.logger.Info("revision lowered",
		"revision", snap.Revision(),
		"files", len(ids),
		"memo_entries", stats.Entries,
		"duration", time.Since(start))
	return nil
}
