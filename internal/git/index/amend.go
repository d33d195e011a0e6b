package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

func (c *Controller) Amend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amend
}

// AmendMessage returns the HEAD message captured when amend was switched on.
func (c *Controller) AmendMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.amendMessage
}

// SetAmend switches amend mode and re-scans, since staged changes are
// computed against HEAD's parent while amending. Switching it on publishes
// AmendMessageAvailable with the HEAD message. An unborn HEAD cannot be
// amended.
func (c *Controller) SetAmend(ctx context.Context, on bool) error {
	opID := uuid.NewString()
	log := c.log.With(slog.String("op", "amend"), slog.String("op_id", opID))
	return c.withOp(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		same := c.amend == on
		c.mu.Unlock()
		if same {
			return nil
		}

		message := ""
		if on {
			msg, ok, err := c.backend.HeadMessage(ctx)
			if err != nil {
				return fmt.Errorf("amend: %w", err)
			}
			if !ok {
				return backend.NewError(backend.KindValidation, "amend", "no commit to amend", nil)
			}
			message = msg
		}

		c.mu.Lock()
		c.amend = on
		c.amendMessage = message
		c.mu.Unlock()
		log.Debug("amend switched", slog.Bool("amend", on))
		if on {
			c.emit(AmendMessageAvailable{Op: Op{opID}, Message: message})
		}
		return c.refreshLocked(ctx, opID)
	})
}
