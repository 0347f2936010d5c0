package models

import "time"

// User mirrors a row of the identity directory. Rows are written only by
// identity provider sync and are never deleted.
type User struct {
	ID           int       `db:"id" json:"id"`
	Subject      string    `db:"subject" json:"-"`
	Name         string    `db:"name" json:"name"`
	NameOverride *string   `db:"name_override" json:"name_override,omitempty"`
	Email        string    `db:"email" json:"email"`
	AvatarURL    string    `db:"avatar_url" json:"avatar_url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DisplayName prefers the user-chosen override over the provider name.
func (u User) DisplayName() string {
	if u.NameOverride != nil && *u.NameOverride != "" {
		return *u.NameOverride
	}
	return u.Name
}
