package models

import (
	"time"

	"messaging-service/internal/staleness"
)

// Presence status values as stored. The stored value is never returned to
// clients directly; readers go through Effective.
const (
	StatusOnline  = "online"
	StatusIdle    = "idle"
	StatusDnd     = "dnd"
	StatusOffline = "offline"
)

// PresenceRecord is the single per-user presence row.
type PresenceRecord struct {
	UserID     int       `db:"user_id" json:"user_id"`
	Status     string    `db:"status" json:"status"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// Effective derives the client-visible status at read time. A stale
// online/idle row decays to offline; dnd is manual and never expires.
func (p PresenceRecord) Effective(now time.Time) string {
	switch p.Status {
	case StatusDnd:
		return StatusDnd
	case StatusOffline:
		return StatusOffline
	}
	if staleness.Expired(p.LastSeenAt, staleness.PresenceWindow, now) {
		return StatusOffline
	}
	return p.Status
}

// ValidStatus reports whether s is a storable presence status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDnd, StatusOffline:
		return true
	}
	return false
}
