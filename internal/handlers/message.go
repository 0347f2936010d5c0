package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// MessageHandler manages message endpoints. Every read of message content
// funnels through models.NewMessageView so tombstones can never leak their
// pre-deletion text.
type MessageHandler struct {
	msgRepo  repositories.MessageRepository
	convRepo repositories.ConversationRepository
	userRepo repositories.UserRepository
	msgCache cache.MessageCache
	hub      *ws.Hub
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(msgRepo repositories.MessageRepository, convRepo repositories.ConversationRepository, userRepo repositories.UserRepository, msgCache cache.MessageCache, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		msgRepo:  msgRepo,
		convRepo: convRepo,
		userRepo: userRepo,
		msgCache: msgCache,
		hub:      hub,
		audit:    audit,
	}
}

// Send stores a message, fans unread counts out to the other members and
// broadcasts the new view.
func (h *MessageHandler) Send(c *gin.Context) {
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
		Text      string `json:"text" binding:"required"`
		ReplyToID *int   `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ReplyToID != nil {
		target, err := h.msgRepo.Get(c.Request.Context(), *req.ReplyToID)
		if err != nil || target.ConversationID != conversationID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reply target not in conversation"})
			return
		}
	}

	msg, err := h.msgRepo.Create(c.Request.Context(), conversationID, userID, req.Text, req.ReplyToID)
	if err != nil {
		if errors.Is(err, repositories.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	_ = h.msgCache.Invalidate(c.Request.Context(), conversationID)
	observability.IncMessageSent()

	view := models.NewMessageView(msg)
	if sender, err := h.userRepo.GetByID(c.Request.Context(), userID); err == nil {
		view.SenderName = sender.DisplayName()
		view.SenderAvatar = sender.AvatarURL
	}
	h.hub.BroadcastMessage(conversationID, view)

	c.JSON(http.StatusCreated, view)
}

// Edit rewrites message content for its sender.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	existing, err := h.msgRepo.Get(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if existing.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may edit"})
		return
	}
	if existing.Deleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is deleted"})
		return
	}

	msg, err := h.msgRepo.Edit(c.Request.Context(), messageID, userID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		}
		return
	}

	_ = h.msgCache.Invalidate(c.Request.Context(), msg.ConversationID)
	h.hub.BroadcastEdit(msg.ConversationID, models.NewMessageView(msg))

	c.JSON(http.StatusOK, models.NewMessageView(msg))
}

// Delete performs the irreversible tombstone transition for the sender.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	existing, err := h.msgRepo.Get(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if existing.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may delete"})
		return
	}
	if existing.Deleted {
		// Deleting a tombstone is a no-op: the transition already happened.
		c.Status(http.StatusNoContent)
		return
	}

	msg, err := h.msgRepo.SoftDelete(c.Request.Context(), messageID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete message"})
		return
	}

	_ = h.msgCache.Invalidate(c.Request.Context(), msg.ConversationID)
	h.hub.BroadcastDeletion(msg.ConversationID, messageID)
	emitAudit(c, h.audit, "INFO", "Message deleted")

	c.Status(http.StatusNoContent)
}

// List returns the conversation's messages in send order, tombstones
// projected, senders resolved even for tombstones so avatars still render.
func (h *MessageHandler) List(c *gin.Context) {
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

	msgs, err := h.msgCache.Get(c.Request.Context(), conversationID)
	if err != nil {
		msgs, err = h.msgRepo.List(c.Request.Context(), conversationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		_ = h.msgCache.Set(c.Request.Context(), conversationID, msgs)
	}

	senderIDs := make([]int, 0, len(msgs))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	usersByID, err := resolveUsers(c.Request.Context(), h.userRepo, uniqueIDs(senderIDs))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.NewMessageView(m)
		if sender, ok := usersByID[m.SenderID]; ok {
			view.SenderName = sender.DisplayName()
			view.SenderAvatar = sender.AvatarURL
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// Meta returns the lightweight change-detection companion read.
func (h *MessageHandler) Meta(c *gin.Context) {
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

	meta, err := h.msgRepo.Meta(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meta"})
		return
	}

	c.JSON(http.StatusOK, meta)
}
