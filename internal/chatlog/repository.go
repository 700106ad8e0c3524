// Package chatlog persists every completed conversation turn.
package chatlog

import (
	"context"
	"time"

	"crm_assistant_backend/internal/assistant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ assistant.ConversationLog = (*Repository)(nil)

// Record appends one turn to conversation_log.
func (r *Repository) Record(ctx context.Context, e assistant.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_log (id, logged_at, user_id, user_message, reply, tool)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), e.Timestamp, e.UserID, e.UserMessage, e.Reply, e.Tool)
	return err
}

// DeleteBefore removes turns logged before cutoff and returns how many were deleted.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversation_log WHERE logged_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
