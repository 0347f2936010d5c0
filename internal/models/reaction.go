package models

import (
	"sort"
	"time"
)

// Reaction is one (message, user, emoji) fact. Row existence means "this
// user is currently reacting with this emoji".
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReactionGroup is the grouped per-emoji view of a message's reactions.
type ReactionGroup struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	UserIDs     []int  `json:"user_ids"`
	SelfReacted bool   `json:"self_reacted"`
}

// GroupReactions folds raw reaction rows into per-emoji groups sorted by
// descending count (emoji as tiebreak, for stable rendering). SelfReacted
// marks groups containing the viewer.
func GroupReactions(reactions []Reaction, viewerID int) []ReactionGroup {
	byEmoji := map[string]*ReactionGroup{}
	order := []string{}
	for _, r := range reactions {
		group, ok := byEmoji[r.Emoji]
		if !ok {
			group = &ReactionGroup{Emoji: r.Emoji}
			byEmoji[r.Emoji] = group
			order = append(order, r.Emoji)
		}
		group.Count++
		group.UserIDs = append(group.UserIDs, r.UserID)
		if r.UserID == viewerID {
			group.SelfReacted = true
		}
	}

	groups := make([]ReactionGroup, 0, len(order))
	for _, emoji := range order {
		groups = append(groups, *byEmoji[emoji])
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Emoji < groups[j].Emoji
	})
	return groups
}
