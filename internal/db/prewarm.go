package db

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaperl/internal/hir"
)

// Prewarm computes the def map and every lowered body of files in
// parallel, bounded by the configured worker count. A nil files slice
// warms the whole revision.
func (s *Snapshot) Prewarm(ctx context.Context, files []hir.FileID) error {
	if files == nil {
		files = s.Files()
	}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.db.opts.workers)
	for _, file := range files {
		g.Go(func() error {
			return s.warmFile(ctx, file)
		})
	}
	if err := g.Wait(); err != nil {
		if isCanceled(err) {
			return ErrCanceled
		}
		return err
	}

	s.db.logger().Debug("prewarm",
		"files", len(files),
		"revision", s.rev.Number,
		"trace", s.rev.TraceID.String(),
		"duration", time.Since(start))
	return nil
}

func (s *Snapshot) warmFile(ctx context.Context, file hir.FileID) error {
	if _, err := s.DefMap(ctx, file); err != nil {
		return err
	}
	fl, err := s.FormList(ctx, file)
	if err != nil {
		return err
	}
	for _, idx := range fl.Forms() {
		if _, err := s.FormBody(ctx, file, idx); err != nil {
			return err
		}
	}
	return nil
}
