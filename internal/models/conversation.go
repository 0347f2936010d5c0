package models

import (
	"time"

	"github.com/lib/pq"
)

// Conversation types.
const (
	ConversationDM    = "dm"
	ConversationGroup = "group"
)

// Member roles (group conversations only).
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Conversation represents a dm or group conversation. For dm the canonical
// sorted pair lives in User1ID/User2ID; ParticipantIDs mirrors the current
// member set for display. The last_message_* columns are a denormalized
// snapshot of the most recent message so listings avoid a join.
type Conversation struct {
	ID                  int           `db:"id" json:"id"`
	Type                string        `db:"type" json:"type"`
	User1ID             *int          `db:"user1_id" json:"-"`
	User2ID             *int          `db:"user2_id" json:"-"`
	ParticipantIDs      pq.Int64Array `db:"participant_ids" json:"participant_ids"`
	Name                *string       `db:"name" json:"name,omitempty"`
	ImageURL            *string       `db:"image_url" json:"image_url,omitempty"`
	CreatedBy           *int          `db:"created_by" json:"created_by,omitempty"`
	LastMessageID       *int          `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageText     *string       `db:"last_message_text" json:"last_message_text,omitempty"`
	LastMessageAt       *time.Time    `db:"last_message_at" json:"last_message_at,omitempty"`
	LastMessageSenderID *int          `db:"last_message_sender_id" json:"last_message_sender_id,omitempty"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
}

// OtherParticipant returns the dm peer of userID.
func (c Conversation) OtherParticipant(userID int) int {
	if c.User1ID != nil && *c.User1ID != userID {
		return *c.User1ID
	}
	if c.User2ID != nil {
		return *c.User2ID
	}
	return 0
}

// ConversationMember is the per-user pivot row carrying mutable read state.
// Keeping it split from Conversation means one member's unread-count write
// does not invalidate other members' views of the conversation itself.
type ConversationMember struct {
	ConversationID    int        `db:"conversation_id" json:"conversation_id"`
	UserID            int        `db:"user_id" json:"user_id"`
	UnreadCount       int        `db:"unread_count" json:"unread_count"`
	LastReadMessageID *int       `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
	Role              string     `db:"role" json:"role"`
	JoinedAt          time.Time  `db:"joined_at" json:"joined_at"`
}

// ConversationSummary is the listForUser view of one conversation.
type ConversationSummary struct {
	Conversation
	UnreadCount int `db:"unread_count" json:"unread_count"`

	// DM enrichment.
	OtherUserID     int    `json:"other_user_id,omitempty"`
	OtherUserName   string `json:"other_user_name,omitempty"`
	OtherUserAvatar string `json:"other_user_avatar,omitempty"`
	OtherUserStatus string `json:"other_user_status,omitempty"`

	// Group enrichment.
	MemberCount int `json:"member_count,omitempty"`
}
