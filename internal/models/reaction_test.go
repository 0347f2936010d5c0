package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupReactionsSortsByCount(t *testing.T) {
	reactions := []Reaction{
		{MessageID: 1, UserID: 1, Emoji: "🎉"},
		{MessageID: 1, UserID: 2, Emoji: "👍"},
		{MessageID: 1, UserID: 3, Emoji: "👍"},
	}

	groups := GroupReactions(reactions, 5)
	require.Len(t, groups, 2)
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 2, groups[0].Count)
	assert.ElementsMatch(t, []int{2, 3}, groups[0].UserIDs)
	assert.Equal(t, "🎉", groups[1].Emoji)
	assert.Equal(t, 1, groups[1].Count)
}

func TestGroupReactionsTiesBreakOnEmoji(t *testing.T) {
	reactions := []Reaction{
		{MessageID: 1, UserID: 1, Emoji: "b"},
		{MessageID: 1, UserID: 2, Emoji: "a"},
	}

	groups := GroupReactions(reactions, 1)
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].Emoji)
	assert.Equal(t, "b", groups[1].Emoji)
}

func TestGroupReactionsMarksViewer(t *testing.T) {
	reactions := []Reaction{
		{MessageID: 1, UserID: 1, Emoji: "👍"},
		{MessageID: 1, UserID: 2, Emoji: "🎉"},
	}

	groups := GroupReactions(reactions, 1)
	for _, g := range groups {
		if g.Emoji == "👍" {
			assert.True(t, g.SelfReacted)
		} else {
			assert.False(t, g.SelfReacted)
		}
	}
}

func TestGroupReactionsEmpty(t *testing.T) {
	assert.Empty(t, GroupReactions(nil, 1))
}
