package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ReactionRepository defines interactions for per-(message, user, emoji)
// reaction facts.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID, userID int, emoji string) (bool, error)
	ListForMessage(ctx context.Context, messageID int) ([]models.Reaction, error)
	ListForMessages(ctx context.Context, messageIDs []int) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx-backed ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle flips the (message, user, emoji) row between present and absent
// and reports whether the reaction is now present. The composite primary
// key makes the insert arm idempotent under races.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	var removed int
	err := r.db.GetContext(ctx, &removed,
		`DELETE FROM reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3 RETURNING 1`,
		messageID, userID, emoji)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListForMessage returns all reaction rows of one message.
func (r *ReactionRepo) ListForMessage(ctx context.Context, messageID int) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions,
		`SELECT message_id, user_id, emoji, created_at FROM reactions WHERE message_id=$1 ORDER BY created_at ASC`,
		messageID)
	return reactions, err
}

// ListForMessages returns reaction rows for a batch of messages in one
// round trip, for list rendering.
func (r *ReactionRepo) ListForMessages(ctx context.Context, messageIDs []int) ([]models.Reaction, error) {
	if len(messageIDs) == 0 {
		return []models.Reaction{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT message_id, user_id, emoji, created_at FROM reactions WHERE message_id IN (?) ORDER BY created_at ASC`,
		messageIDs)
	if err != nil {
		return nil, err
	}
	var reactions []models.Reaction
	err = r.db.SelectContext(ctx, &reactions, r.db.Rebind(query), args...)
	return reactions, err
}
