package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

// Commit records the staged changes with message. verify runs the
// pre-commit and commit-msg hooks. A blank message or an empty staged set
// fails with backend.KindValidation before the backend is involved; amending
// accepts an empty staged set since the commit is rewritten anyway.
func (c *Controller) Commit(ctx context.Context, message string, verify bool) error {
	opID := uuid.NewString()
	log := c.log.With(slog.String("op", "commit"), slog.String("op_id", opID))
	fail := func(err error) error {
		c.emit(CommitFailed{Op: Op{opID}, Err: err})
		return err
	}
	if strings.TrimSpace(message) == "" {
		return fail(backend.NewError(backend.KindValidation, "commit", "commit message is empty", nil))
	}
	return c.withOp(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		amend := c.amend
		staged := false
		for _, f := range c.files {
			if f.HasStagedChanges {
				staged = true
				break
			}
		}
		c.mu.Unlock()
		if !staged && !amend {
			return fail(backend.NewError(backend.KindValidation, "commit", "nothing staged", nil))
		}

		log.Debug("commit start", slog.Bool("verify", verify), slog.Bool("amend", amend))
		sha, err := c.backend.Commit(ctx, backend.CommitOptions{
			Message: message,
			Verify:  verify,
			Amend:   amend,
			Progress: func(text string) {
				c.emit(CommitStatus{Op: Op{opID}, Text: text})
			},
		})
		if err != nil {
			log.Warn("commit failed", slog.Any("err", err))
			return fail(fmt.Errorf("commit: %w", err))
		}

		c.mu.Lock()
		c.amend = false
		c.amendMessage = ""
		c.mu.Unlock()
		log.Info("committed", slog.String("sha", sha))
		c.emit(CommitFinished{Op: Op{opID}, SHA: sha})

		if err := c.refreshLocked(ctx, opID); err != nil {
			return fmt.Errorf("commit %s: %w", sha, err)
		}
		return nil
	})
}
