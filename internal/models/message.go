package models

import (
	"time"
	"unicode/utf8"
)

// SnapshotTextLimit bounds the conversation snapshot text, in runes.
const SnapshotTextLimit = 60

// DeletedSnapshotText replaces the snapshot text when its last message is
// tombstoned.
const DeletedSnapshotText = "Message deleted"

// Message is the stored message row. Deleted messages keep their content in
// storage so replies and reactions stay referentially intact; every read
// path must project through MessageView instead.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	ReplyToID      *int       `db:"reply_to_id" json:"reply_to_id,omitempty"`
	SentAt         time.Time  `db:"sent_at" json:"sent_at"`
	Edited         bool       `db:"edited" json:"edited"`
	EditedAt       *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	Deleted        bool       `db:"deleted" json:"deleted"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// MessageView is the client-facing projection of a message. Text is nil for
// tombstones.
type MessageView struct {
	ID             int        `json:"id"`
	ConversationID int        `json:"conversation_id"`
	SenderID       int        `json:"sender_id"`
	SenderName     string     `json:"sender_name,omitempty"`
	SenderAvatar   string     `json:"sender_avatar,omitempty"`
	Text           *string    `json:"text"`
	ReplyToID      *int       `json:"reply_to_id,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// NewMessageView projects a stored message for clients. This is the single
// tombstone-scrubbing chokepoint: a deleted message keeps its id, sender,
// reply link and timestamps but loses its text and edit metadata.
func NewMessageView(m Message) MessageView {
	view := MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReplyToID:      m.ReplyToID,
		SentAt:         m.SentAt,
		Deleted:        m.Deleted,
		DeletedAt:      m.DeletedAt,
	}
	if m.Deleted {
		return view
	}
	text := m.Content
	view.Text = &text
	view.Edited = m.Edited
	view.EditedAt = m.EditedAt
	return view
}

// SnapshotText truncates s for the conversation snapshot, appending an
// ellipsis when content was cut.
func SnapshotText(s string) string {
	if utf8.RuneCountInString(s) <= SnapshotTextLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:SnapshotTextLimit]) + "…"
}

// ConversationMeta is the lightweight companion read for change detection.
type ConversationMeta struct {
	LatestSentAt *time.Time `json:"latest_sent_at,omitempty"`
	UnreadCount  int        `json:"unread_count"`
}

// MessageEvent is broadcasted through websocket subscriptions.
type MessageEvent struct {
	Type      string       `json:"type"`
	Message   *MessageView `json:"message,omitempty"`
	MessageID int          `json:"message_id,omitempty"`
	UserID    int          `json:"user_id,omitempty"`
	Emoji     string       `json:"emoji,omitempty"`
	IsTyping  bool         `json:"is_typing,omitempty"`
}
