package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/staleness"
	"messaging-service/internal/ws"
)

// TypingHandler manages the ephemeral typing signal. Rows expire by age at
// read time, nothing sweeps them.
type TypingHandler struct {
	typingRepo repositories.TypingRepository
	convRepo   repositories.ConversationRepository
	userRepo   repositories.UserRepository
	hub        *ws.Hub
}

// NewTypingHandler builds a TypingHandler.
func NewTypingHandler(typingRepo repositories.TypingRepository, convRepo repositories.ConversationRepository, userRepo repositories.UserRepository, hub *ws.Hub) *TypingHandler {
	return &TypingHandler{
		typingRepo: typingRepo,
		convRepo:   convRepo,
		userRepo:   userRepo,
		hub:        hub,
	}
}

// Set records or clears the caller's typing state in a conversation.
func (h *TypingHandler) Set(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.convRepo.GetMember(c.Request.Context(), conversationID, userID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}

	var req struct {
		IsTyping *bool `json:"is_typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	if *req.IsTyping {
		err = h.typingRepo.Upsert(c.Request.Context(), conversationID, userID, time.Now())
	} else {
		err = h.typingRepo.Delete(c.Request.Context(), conversationID, userID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update typing state"})
		return
	}

	h.hub.BroadcastTyping(conversationID, userID, *req.IsTyping)

	c.Status(http.StatusNoContent)
}

// Typers returns members currently typing in a conversation, the caller
// excluded. A row older than the typing window reads as not typing.
func (h *TypingHandler) Typers(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.convRepo.GetMember(c.Request.Context(), conversationID, userID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}

	rows, err := h.typingRepo.ListForConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load typing state"})
		return
	}

	now := time.Now()
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		if row.UserID == userID {
			continue
		}
		if staleness.Expired(row.UpdatedAt, staleness.TypingWindow, now) {
			continue
		}
		ids = append(ids, row.UserID)
	}

	usersByID, err := resolveUsers(c.Request.Context(), h.userRepo, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	typers := make([]models.TypingUser, 0, len(ids))
	for _, id := range ids {
		t := models.TypingUser{UserID: id}
		if u, ok := usersByID[id]; ok {
			t.Name = u.DisplayName()
		}
		typers = append(typers, t)
	}

	c.JSON(http.StatusOK, gin.H{"typing": typers})
}
