package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// TypingRepository defines interactions for ephemeral typing rows. Rows are
// never swept; readers filter by age.
type TypingRepository interface {
	Upsert(ctx context.Context, conversationID, userID int, now time.Time) error
	Delete(ctx context.Context, conversationID, userID int) error
	ListForConversation(ctx context.Context, conversationID int) ([]models.TypingIndicator, error)
}

// TypingRepo is a sqlx-backed TypingRepository.
type TypingRepo struct {
	db *sqlx.DB
}

// NewTypingRepo constructs a TypingRepo.
func NewTypingRepo(db *sqlx.DB) *TypingRepo {
	return &TypingRepo{db: db}
}

// Upsert refreshes the (conversation, user) row. Each keystroke burst hits
// the same row.
func (r *TypingRepo) Upsert(ctx context.Context, conversationID, userID int, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO typing_indicators (conversation_id, user_id, updated_at) VALUES ($1, $2, $3)
         ON CONFLICT (conversation_id, user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		conversationID, userID, now)
	return err
}

// Delete removes the row if present; deleting an absent row is fine.
func (r *TypingRepo) Delete(ctx context.Context, conversationID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM typing_indicators WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	return err
}

// ListForConversation returns every typing row of a conversation,
// staleness included; callers apply the read-time window.
func (r *TypingRepo) ListForConversation(ctx context.Context, conversationID int) ([]models.TypingIndicator, error) {
	var rows []models.TypingIndicator
	err := r.db.SelectContext(ctx, &rows,
		`SELECT conversation_id, user_id, updated_at FROM typing_indicators WHERE conversation_id=$1`,
		conversationID)
	return rows, err
}
