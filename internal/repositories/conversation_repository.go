package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMemberNotFound       = errors.New("not a conversation member")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrNotGroup             = errors.New("conversation is not a group")
	ErrGroupTooSmall        = errors.New("group needs at least two members")
	ErrGroupNameRequired    = errors.New("group name is required")
)

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	GetOrCreateDirect(ctx context.Context, userID, otherID int) (models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int, imageURL *string) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	GetMember(ctx context.Context, conversationID, userID int) (models.ConversationMember, error)
	ListMembers(ctx context.Context, conversationID int) ([]models.ConversationMember, error)
	ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	MarkRead(ctx context.Context, conversationID, userID int, lastReadMessageID *int) error
	Leave(ctx context.Context, conversationID, userID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, type, user1_id, user2_id, participant_ids, name, image_url, created_by,
    last_message_id, last_message_text, last_message_at, last_message_sender_id, created_at`

// canonicalPair orders a dm pair so (a, b) and (b, a) address the same row.
func canonicalPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// GetOrCreateDirect returns the unique dm conversation for the pair,
// creating it with both member rows when absent. The pair is stored in
// canonical sorted order and the insert goes through ON CONFLICT against
// the partial unique index, so two callers racing on first contact converge
// on a single row instead of duplicating it.
func (r *ConversationRepo) GetOrCreateDirect(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	if userID == otherID {
		return models.Conversation{}, ErrSelfConversation
	}
	user1, user2 := canonicalPair(userID, otherID)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE type='dm' AND user1_id=$1 AND user2_id=$2`,
		user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (type, user1_id, user2_id, participant_ids)
         VALUES ('dm', $1, $2, $3)
         ON CONFLICT (user1_id, user2_id) WHERE type = 'dm' DO NOTHING
         RETURNING `+conversationColumns,
		user1, user2, pq.Array([]int64{int64(user1), int64(user2)}),
	).StructScan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race: another caller inserted the pair between our
		// lookup and insert. Their row is the conversation.
		tx.Rollback()
		err = r.db.GetContext(ctx, &conv,
			`SELECT `+conversationColumns+` FROM conversations WHERE type='dm' AND user1_id=$1 AND user2_id=$2`,
			user1, user2)
		return conv, err
	}
	if err != nil {
		return models.Conversation{}, err
	}

	for _, id := range []int{user1, user2} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, id); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// CreateGroup creates a group conversation and its member rows atomically.
// The creator is always included and becomes admin.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int, imageURL *string) (models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Conversation{}, ErrGroupNameRequired
	}

	memberSet := map[int]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	if len(memberSet) < 2 {
		return models.Conversation{}, ErrGroupTooSmall
	}
	ids := make([]int, 0, len(memberSet))
	participants := make([]int64, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		participants = append(participants, int64(id))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (type, participant_ids, name, image_url, created_by)
         VALUES ('group', $1, $2, $3, $4)
         RETURNING `+conversationColumns,
		pq.Array(participants), name, imageURL, creatorID,
	).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	for _, id := range ids {
		role := models.RoleMember
		if id == creatorID {
			role = models.RoleAdmin
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id, role) VALUES ($1, $2, $3)`,
			conv.ID, id, role); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// GetMember fetches the caller's membership row.
func (r *ConversationRepo) GetMember(ctx context.Context, conversationID, userID int) (models.ConversationMember, error) {
	var member models.ConversationMember
	err := r.db.GetContext(ctx, &member,
		`SELECT conversation_id, user_id, unread_count, last_read_message_id, last_read_at, role, joined_at
         FROM conversation_members WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConversationMember{}, ErrMemberNotFound
	}
	return member, err
}

// ListMembers returns all membership rows ordered by join time.
func (r *ConversationRepo) ListMembers(ctx context.Context, conversationID int) ([]models.ConversationMember, error) {
	var members []models.ConversationMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT conversation_id, user_id, unread_count, last_read_message_id, last_read_at, role, joined_at
         FROM conversation_members WHERE conversation_id=$1 ORDER BY joined_at ASC`,
		conversationID)
	return members, err
}

// ListForUser returns the caller's conversations with their unread counts,
// most recent message first; conversations that never had a message sort
// last.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := r.db.SelectContext(ctx, &summaries,
		`SELECT c.id, c.type, c.user1_id, c.user2_id, c.participant_ids, c.name, c.image_url, c.created_by,
                c.last_message_id, c.last_message_text, c.last_message_at, c.last_message_sender_id, c.created_at,
                m.unread_count
         FROM conversations c
         INNER JOIN conversation_members m ON m.conversation_id = c.id
         WHERE m.user_id = $1
         ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`,
		userID)
	return summaries, err
}

// MarkRead resets the caller's unread count and records the high-water
// mark. A caller without a membership row is a silent no-op.
func (r *ConversationRepo) MarkRead(ctx context.Context, conversationID, userID int, lastReadMessageID *int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversation_members
         SET unread_count = 0,
             last_read_message_id = COALESCE($3, last_read_message_id),
             last_read_at = NOW()
         WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID, lastReadMessageID)
	return err
}

// Leave removes the caller from a group conversation. When the leaving
// member held the last admin role and members remain, the oldest-joined
// survivor is promoted so a non-empty group always keeps an admin.
func (r *ConversationRepo) Leave(ctx context.Context, conversationID, userID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var convType string
	err = tx.GetContext(ctx, &convType, `SELECT type FROM conversations WHERE id=$1 FOR UPDATE`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrConversationNotFound
		return err
	}
	if err != nil {
		return err
	}
	if convType != models.ConversationGroup {
		err = ErrNotGroup
		return err
	}

	var role string
	err = tx.GetContext(ctx, &role,
		`DELETE FROM conversation_members WHERE conversation_id=$1 AND user_id=$2 RETURNING role`,
		conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMemberNotFound
		return err
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET participant_ids = array_remove(participant_ids, $2) WHERE id=$1`,
		conversationID, userID); err != nil {
		return err
	}

	if role == models.RoleAdmin {
		var admins int
		if err = tx.GetContext(ctx, &admins,
			`SELECT COUNT(*) FROM conversation_members WHERE conversation_id=$1 AND role=$2`,
			conversationID, models.RoleAdmin); err != nil {
			return err
		}
		if admins == 0 {
			if _, err = tx.ExecContext(ctx,
				`UPDATE conversation_members SET role=$2
                 WHERE conversation_id=$1 AND user_id = (
                     SELECT user_id FROM conversation_members
                     WHERE conversation_id=$1 ORDER BY joined_at ASC LIMIT 1
                 )`,
				conversationID, models.RoleAdmin); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
