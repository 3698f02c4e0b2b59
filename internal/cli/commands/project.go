package commands

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/internal/db"
	"github.com/leapstack-labs/leaperl/internal/hir"
)

// project is a semantic database loaded with every source file under the
// configured roots.
type project struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.Database
}

// isSource reports whether path is an Erlang module or header.
func isSource(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".erl" || ext == ".hrl"
}

// skipDir reports directories never scanned: hidden ones and build output.
func skipDir(name string) bool {
	return name == "_build" || name == "node_modules" || (len(name) > 1 && name[0] == '.')
}

// sourceRoots returns the directories scanned for source files.
func sourceRoots(cfg *config.Config) []string {
	roots := append([]string{cfg.ProjectRoot}, cfg.IncludeDirs...)
	roots = append(roots, cfg.LibDirs...)
	return roots
}

// findSources walks roots and returns the absolute paths of every source
// file, without duplicates. Missing roots are skipped.
func findSources(roots []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, root := range roots {
		root, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if isSource(path) && !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	slices.Sort(out)
	return out, nil
}

// readSources reads paths in parallel.
func readSources(ctx context.Context, paths []string, workers int) (map[string]string, error) {
	var mu sync.Mutex
	files := make(map[string]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			mu.Lock()
			files[path] = string(content)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// newDatabase creates an empty database configured from cfg.
func newDatabase(cfg *config.Config, logger *slog.Logger) *db.Database {
	return db.New(
		db.WithLogger(logger),
		db.WithIncludeResolver(&db.PathResolver{
			IncludeDirs: cfg.IncludeDirs,
			LibDirs:     cfg.LibDirs,
		}),
		db.WithOTPRelease(cfg.OTPRelease),
		db.WithWorkers(cfg.Workers),
	)
}

// loadProject builds a database from the config in ctx. extra files, such
// as command arguments outside the project root, are added as well.
func loadProject(ctx context.Context, extra ...string) (*project, error) {
	cfg := config.FromContext(ctx)
	logger := config.GetLogger(ctx)
	start := time.Now()

	paths, err := findSources(sourceRoots(cfg))
	if err != nil {
		return nil, err
	}
	for _, p := range extra {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(paths, abs) {
			paths = append(paths, abs)
		}
	}

	files, err := readSources(ctx, paths, cfg.Workers)
	if err != nil {
		return nil, err
	}

	d := newDatabase(cfg, logger)
	d.SetFiles(files)
	logger.Debug("project loaded",
		"root", cfg.ProjectRoot,
		"files", len(files),
		"duration", time.Since(start))

	return &project{cfg: cfg, logger: logger, db: d}, nil
}

// file returns the ID of path, which may be relative to the working
// directory.
func (p *project) file(path string) (hir.FileID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	id, ok := p.db.FileID(abs)
	if !ok {
		return 0, fmt.Errorf("file not found: %s", path)
	}
	return id, nil
}

// rel returns path relative to the project root when it lies inside it.
func (p *project) rel(path string) string {
	r, err := filepath.Rel(p.cfg.ProjectRoot, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return path
	}
	return r
}
