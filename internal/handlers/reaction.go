package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// ReactionHandler manages emoji reaction endpoints.
type ReactionHandler struct {
	reactionRepo repositories.ReactionRepository
	msgRepo      repositories.MessageRepository
	convRepo     repositories.ConversationRepository
	hub          *ws.Hub
}

// NewReactionHandler builds a ReactionHandler.
func NewReactionHandler(reactionRepo repositories.ReactionRepository, msgRepo repositories.MessageRepository, convRepo repositories.ConversationRepository, hub *ws.Hub) *ReactionHandler {
	return &ReactionHandler{
		reactionRepo: reactionRepo,
		msgRepo:      msgRepo,
		convRepo:     convRepo,
		hub:          hub,
	}
}

// Toggle flips the caller's reaction on a message. Tombstoned messages
// reject new reactions but keep the ones they already carry.
func (h *ReactionHandler) Toggle(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.msgRepo.Get(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.Deleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot react to a deleted message"})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.convRepo.GetMember(c.Request.Context(), msg.ConversationID, userID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}

	present, err := h.reactionRepo.Toggle(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle reaction"})
		return
	}

	h.hub.BroadcastReaction(msg.ConversationID, messageID, userID, req.Emoji)

	c.JSON(http.StatusOK, gin.H{"reacted": present})
}

// Grouped returns the per-emoji grouped view of one message's reactions.
func (h *ReactionHandler) Grouped(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	msg, err := h.msgRepo.Get(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.convRepo.GetMember(c.Request.Context(), msg.ConversationID, userID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}

	reactions, err := h.reactionRepo.ListForMessage(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reactions": models.GroupReactions(reactions, userID)})
}

// Batch returns grouped reactions for many messages at once, keyed by
// message id. Used when rendering a message list in a single round trip.
// Ids pointing at conversations the caller is not a member of are
// silently dropped, same as unknown ids.
func (h *ReactionHandler) Batch(c *gin.Context) {
	var req struct {
		MessageIDs []int `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	membership := make(map[int]bool)
	allowed := make([]int, 0, len(req.MessageIDs))
	for _, id := range uniqueIDs(req.MessageIDs) {
		msg, err := h.msgRepo.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				continue
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
			return
		}
		member, seen := membership[msg.ConversationID]
		if !seen {
			_, err := h.convRepo.GetMember(c.Request.Context(), msg.ConversationID, userID)
			if err != nil && !errors.Is(err, repositories.ErrMemberNotFound) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
				return
			}
			member = err == nil
			membership[msg.ConversationID] = member
		}
		if member {
			allowed = append(allowed, id)
		}
	}

	if len(allowed) == 0 {
		c.JSON(http.StatusOK, gin.H{"reactions": map[int][]models.ReactionGroup{}})
		return
	}

	reactions, err := h.reactionRepo.ListForMessages(c.Request.Context(), allowed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}

	byMessage := make(map[int][]models.Reaction)
	for _, r := range reactions {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}

	grouped := make(map[int][]models.ReactionGroup, len(byMessage))
	for id, rs := range byMessage {
		grouped[id] = models.GroupReactions(rs, userID)
	}

	c.JSON(http.StatusOK, gin.H{"reactions": grouped})
}
