package models

import "time"

// TypingIndicator is the single per (conversation, user) row. Keystroke
// bursts upsert the same row; rows expire at read time, never by a sweep.
type TypingIndicator struct {
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	UserID         int       `db:"user_id" json:"user_id"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TypingUser is a resolved active typer for display.
type TypingUser struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
}
