package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

// batchFunc performs one backend batch over paths.
type batchFunc func(ctx context.Context, paths []string) ([]backend.PathResult, error)

// Stage copies the work tree content of files into the index. Untracked files
// become tracked.
func (c *Controller) Stage(ctx context.Context, files []ChangedFile) error {
	return c.mutate(ctx, "stage", files, nil, func(ctx context.Context, paths []string) ([]backend.PathResult, error) {
		return c.backend.Stage(ctx, paths)
	})
}

// Unstage resets the index entries of files to the baseline commit without
// touching the work tree. Files new to the baseline leave the index.
func (c *Controller) Unstage(ctx context.Context, files []ChangedFile) error {
	return c.mutate(ctx, "unstage", files, nil, func(ctx context.Context, paths []string) ([]backend.PathResult, error) {
		return c.backend.Unstage(ctx, paths, backend.UnstageOptions{Amend: c.Amend()})
	})
}

// Discard overwrites the work tree content of files with the index version.
// This cannot be undone; callers must confirm with the user first.
// Untracked files have no index version and are reported as failed.
func (c *Controller) Discard(ctx context.Context, files []ChangedFile) error {
	reject := func(f ChangedFile) error {
		if f.Untracked {
			return backend.NewError(backend.KindValidation, "discard", "untracked files cannot be discarded", nil)
		}
		return nil
	}
	return c.mutate(ctx, "discard", files, reject, func(ctx context.Context, paths []string) ([]backend.PathResult, error) {
		return c.backend.Checkout(ctx, paths, backend.CheckoutOptions{FromIndex: true})
	})
}

// Revert restores both index and work tree of files from the baseline commit.
func (c *Controller) Revert(ctx context.Context, files []ChangedFile) error {
	reject := func(f ChangedFile) error {
		if f.Status == StatusUntracked {
			return backend.NewError(backend.KindValidation, "revert", "file does not exist in the baseline commit", nil)
		}
		return nil
	}
	return c.mutate(ctx, "revert", files, reject, func(ctx context.Context, paths []string) ([]backend.PathResult, error) {
		return c.backend.Checkout(ctx, paths, backend.CheckoutOptions{Amend: c.Amend()})
	})
}

// mutate runs one backend batch for the known paths among files and re-scans
// afterwards, whatever the outcome, so the collection shows what the backend
// actually did. Failed paths are returned as a KindPartialFailure.
func (c *Controller) mutate(ctx context.Context, op string, files []ChangedFile, reject func(ChangedFile) error, run batchFunc) error {
	if len(files) == 0 {
		return nil
	}
	opID := uuid.NewString()
	log := c.log.With(slog.String("op", op), slog.String("op_id", opID))
	return c.withOp(ctx, func(ctx context.Context) error {
		var failed []backend.PathResult
		var paths []string
		seen := map[string]bool{}
		for _, f := range files {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			cur, ok := c.Lookup(f.Path)
			if !ok {
				failed = append(failed, backend.PathResult{Path: f.Path, Err: backend.NewError(backend.KindValidation, op, "not a changed file", nil)})
				continue
			}
			if reject != nil {
				if err := reject(cur); err != nil {
					failed = append(failed, backend.PathResult{Path: f.Path, Err: err})
					continue
				}
			}
			paths = append(paths, f.Path)
		}

		log.Debug("batch start", slog.Int("paths", len(paths)), slog.Int("rejected", len(failed)))
		if len(paths) > 0 {
			results, err := run(ctx, paths)
			if err != nil {
				log.Warn("batch failed", slog.Any("err", err))
				if rerr := c.refreshLocked(ctx, opID); rerr != nil {
					log.Debug("refresh after failed batch", slog.Any("err", rerr))
				}
				return fmt.Errorf("%s: %w", op, err)
			}
			failed = append(failed, backend.FailedPaths(results)...)
		}

		rerr := c.refreshLocked(ctx, opID)
		if len(failed) > 0 {
			log.Warn("batch partially failed", slog.Int("failed", len(failed)))
			return &backend.Error{Kind: backend.KindPartialFailure, Op: op, Paths: failed}
		}
		if rerr != nil {
			return fmt.Errorf("%s: %w", op, rerr)
		}
		log.Debug("batch done")
		return nil
	})
}
