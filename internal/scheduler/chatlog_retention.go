package scheduler

import (
	"context"
	"time"

	"crm_assistant_backend/platform/logger"
)

const defaultRetentionInterval = time.Hour

// TurnPurger deletes logged conversation turns older than a cutoff.
type TurnPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ChatLogRetention periodically removes conversation log rows past the retention window.
type ChatLogRetention struct {
	repo      TurnPurger
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewChatLogRetention returns nil when retention is disabled (zero or negative).
func NewChatLogRetention(repo TurnPurger, log *logger.Logger, interval, retention time.Duration) *ChatLogRetention {
	if repo == nil || retention <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = defaultRetentionInterval
	}

	return &ChatLogRetention{
		repo:      repo,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *ChatLogRetention) Run(ctx context.Context) {
	if c == nil {
		return
	}

	c.purge(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.purge(ctx)
		}
	}
}

func (c *ChatLogRetention) purge(ctx context.Context) {
	deleted, err := c.repo.DeleteBefore(ctx, c.now().Add(-c.retention))
	if err != nil {
		c.log.DatabaseError("conversation_log_retention", err)
		return
	}

	if deleted > 0 {
		c.log.Info("conversation log retention deleted turns", "deleted", deleted)
	}
}
