package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageDeleted  = errors.New("message is deleted")
	ErrNotSender       = errors.New("only the sender may modify a message")
	ErrEmptyContent    = errors.New("message text is required")
)

// MessageRepository defines interactions for messages and the conversation
// snapshot they maintain.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	List(ctx context.Context, conversationID int) ([]models.Message, error)
	Edit(ctx context.Context, messageID, senderID int, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID, senderID int) (models.Message, error)
	Meta(ctx context.Context, conversationID, userID int) (models.ConversationMeta, error)
}

// MessageRepo is a sqlx-backed MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, reply_to_id, sent_at, edited, edited_at, deleted, deleted_at`

// Create stores a message and, in the same transaction, patches the owning
// conversation's snapshot and increments unread_count for every member
// except the sender. The fan-out is how unread badges move for recipients.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, reply_to_id)
         VALUES ($1, $2, $3, $4)
         RETURNING `+messageColumns,
		conversationID, senderID, content, replyToID,
	).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations
         SET last_message_id=$2, last_message_text=$3, last_message_at=$4, last_message_sender_id=$5
         WHERE id=$1`,
		conversationID, msg.ID, models.SnapshotText(content), msg.SentAt, senderID); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversation_members SET unread_count = unread_count + 1
         WHERE conversation_id=$1 AND user_id <> $2`,
		conversationID, senderID); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message including tombstones.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// List returns every message of a conversation ordered by send time,
// tombstones included. Projection to client views happens above this layer.
func (r *MessageRepo) List(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY sent_at ASC`,
		conversationID)
	return msgs, err
}

// Edit updates message content for its sender. Tombstones cannot be edited.
// The conversation snapshot text follows when the message is still the
// latest one.
func (r *MessageRepo) Edit(ctx context.Context, messageID, senderID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`UPDATE messages SET content=$3, edited=TRUE, edited_at=NOW()
         WHERE id=$1 AND sender_id=$2 AND deleted=FALSE
         RETURNING `+messageColumns,
		messageID, senderID, content,
	).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMessageNotFound
		return models.Message{}, err
	}
	if err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_text=$3 WHERE id=$1 AND last_message_id=$2`,
		msg.ConversationID, msg.ID, models.SnapshotText(content)); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// SoftDelete transitions a message to a tombstone. Content stays in storage
// for referential integrity; read paths scrub it. When the deleted message
// is the conversation's snapshot last message, only the display text is
// swapped for the deletion marker; snapshot timestamp and sender stay stale
// on purpose.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, senderID int) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`UPDATE messages SET deleted=TRUE, deleted_at=NOW()
         WHERE id=$1 AND sender_id=$2 AND deleted=FALSE
         RETURNING `+messageColumns,
		messageID, senderID,
	).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMessageNotFound
		return models.Message{}, err
	}
	if err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_text=$3 WHERE id=$1 AND last_message_id=$2`,
		msg.ConversationID, msg.ID, models.DeletedSnapshotText); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Meta computes the lightweight change-detection view: the latest send time
// across all messages (tombstones included, a delete can be the most recent
// event) and the caller's unread count relative to their read watermark,
// falling back to join time when they never marked read.
func (r *MessageRepo) Meta(ctx context.Context, conversationID, userID int) (models.ConversationMeta, error) {
	var meta models.ConversationMeta

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest,
		`SELECT MAX(sent_at) FROM messages WHERE conversation_id=$1`, conversationID); err != nil {
		return models.ConversationMeta{}, err
	}
	if latest.Valid {
		t := latest.Time
		meta.LatestSentAt = &t
	}

	err := r.db.GetContext(ctx, &meta.UnreadCount,
		`SELECT COUNT(*) FROM messages m
         INNER JOIN conversation_members cm
             ON cm.conversation_id = m.conversation_id AND cm.user_id = $2
         WHERE m.conversation_id = $1
           AND m.sender_id <> $2
           AND m.sent_at > COALESCE(cm.last_read_at, cm.joined_at)`,
		conversationID, userID)
	if err != nil {
		return models.ConversationMeta{}, err
	}
	return meta, nil
}
