package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

// HunkMode selects what ApplyHunk does with the hunk.
type HunkMode uint8

const (
	// HunkStage applies a hunk of the unstaged diff to the index.
	HunkStage HunkMode = iota
	// HunkUnstage removes a hunk of the staged diff from the index.
	HunkUnstage
	// HunkDiscard removes a hunk of the unstaged diff from the work tree.
	HunkDiscard
)

func (m HunkMode) String() string {
	switch m {
	case HunkUnstage:
		return "unstage hunk"
	case HunkDiscard:
		return "discard hunk"
	default:
		return "stage hunk"
	}
}

// apply returns the target and direction of mode along with the diff side
// the hunk has to come from.
func (m HunkMode) apply() (stage, reverse, fromStaged bool) {
	switch m {
	case HunkUnstage:
		return true, true, true
	case HunkDiscard:
		return false, true, false
	default:
		return true, false, false
	}
}

// Diff returns the unified diff of file: index against the baseline commit
// when staged is set, work tree against index otherwise.
func (c *Controller) Diff(ctx context.Context, file ChangedFile, staged bool, contextLines uint) (string, error) {
	c.mu.Lock()
	amend := c.amend
	c.mu.Unlock()
	out, err := c.backend.Diff(ctx, backend.DiffOptions{
		Path:         file.Path,
		Staged:       staged,
		Amend:        amend,
		Untracked:    file.Untracked && !staged,
		ContextLines: contextLines,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", file.Path, err)
	}
	return out, nil
}

// ApplyPatch applies a unified diff to the index (stage) or the work tree,
// optionally in reverse. A patch that no longer matches its target fails
// with backend.KindPatchRejected and leaves the collection untouched; the
// caller should diff again before retrying.
func (c *Controller) ApplyPatch(ctx context.Context, patch string, stage, reverse bool) error {
	d, err := ParseDiff(patch)
	if err != nil {
		return err
	}
	opID := uuid.NewString()
	return c.withOp(ctx, func(ctx context.Context) error {
		return c.applyLocked(ctx, opID, patch, d, stage, reverse)
	})
}

// ApplyHunk diffs file again, picks hunk hunkIndex of the staged or unstaged
// diff and applies it according to mode, all without releasing the
// operation slot so the hunk cannot go stale in between. Hunks of untracked
// files cannot be discarded, as with Discard.
func (c *Controller) ApplyHunk(ctx context.Context, file ChangedFile, hunkIndex int, mode HunkMode) error {
	stage, reverse, fromStaged := mode.apply()
	opID := uuid.NewString()
	return c.withOp(ctx, func(ctx context.Context) error {
		if cur, ok := c.Lookup(file.Path); ok {
			file = cur
		}
		if mode == HunkDiscard && file.Untracked {
			return backend.NewError(backend.KindValidation, "discard hunk", "untracked files cannot be discarded", nil)
		}
		text, err := c.Diff(ctx, file, fromStaged, c.contextLines)
		if err != nil {
			return err
		}
		d, err := ParseDiff(text)
		if err != nil {
			return fmt.Errorf("%s %s: %w", mode, file.Path, err)
		}
		patch, err := d.HunkPatch(hunkIndex)
		if err != nil {
			return fmt.Errorf("%s %s: %w", mode, file.Path, err)
		}
		hunkOnly, err := ParseDiff(patch)
		if err != nil {
			return err
		}
		return c.applyLocked(ctx, opID, patch, hunkOnly, stage, reverse)
	})
}

func (c *Controller) applyLocked(ctx context.Context, opID, patch string, d FileDiff, stage, reverse bool) error {
	log := c.log.With(slog.String("op", "apply"), slog.String("op_id", opID), slog.String("path", d.Path))
	if len(d.Hunks) == 0 {
		return backend.NewError(backend.KindValidation, "apply patch", "patch has no hunks", nil)
	}
	zeroContext := false
	for _, h := range d.Hunks {
		if !h.HasContext() {
			zeroContext = true
			break
		}
	}
	log.Debug("applying patch", slog.Int("hunks", len(d.Hunks)), slog.Bool("cached", stage), slog.Bool("reverse", reverse))
	err := c.backend.ApplyPatch(ctx, patch, backend.ApplyOptions{
		Cached:      stage,
		Reverse:     reverse,
		UnidiffZero: zeroContext,
	})
	if err != nil {
		log.Info("patch not applied", slog.Any("err", err))
		return fmt.Errorf("apply patch to %s: %w", d.Path, err)
	}
	if err := c.refreshLocked(ctx, opID); err != nil {
		return fmt.Errorf("apply patch to %s: %w", d.Path, err)
	}
	return nil
}
