package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// ConversationHandler manages conversation lifecycle and membership
// endpoints.
type ConversationHandler struct {
	convRepo     repositories.ConversationRepository
	userRepo     repositories.UserRepository
	presenceRepo repositories.PresenceRepository
	audit        *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convRepo repositories.ConversationRepository, userRepo repositories.UserRepository, presenceRepo repositories.PresenceRepository, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{
		convRepo:     convRepo,
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
		audit:        audit,
	}
}

// StartDirect returns the existing dm conversation for the pair or creates
// it. Repeated calls with either argument order land on the same
// conversation.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), req.UserID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "user not found"})
		return
	}

	conv, err := h.convRepo.GetOrCreateDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// CreateGroup handles POST /conversations/group.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name      string  `json:"name" binding:"required"`
		MemberIDs []int   `json:"member_ids"`
		ImageURL  *string `json:"image_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.MemberIDs) > 0 {
		users, err := h.userRepo.BulkByIDs(c.Request.Context(), uniqueIDs(req.MemberIDs))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate members"})
			return
		}
		if len(users) != len(uniqueIDs(req.MemberIDs)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown member id"})
			return
		}
	}

	conv, err := h.convRepo.CreateGroup(c.Request.Context(), userID, req.Name, req.MemberIDs, req.ImageURL)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupTooSmall) || errors.Is(err, repositories.ErrGroupNameRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	emitAudit(c, h.audit, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"conversation_id": conv.ID})
}

// List returns the caller's conversations, dm rows enriched with the peer's
// effective presence and group rows with a member count.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.convRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	otherIDs := make([]int, 0, len(summaries))
	for _, s := range summaries {
		if s.Type == models.ConversationDM {
			otherIDs = append(otherIDs, s.OtherParticipant(userID))
		}
	}
	otherIDs = uniqueIDs(otherIDs)

	usersByID, err := resolveUsers(c.Request.Context(), h.userRepo, otherIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	presenceByID := map[int]models.PresenceRecord{}
	records, err := h.presenceRepo.BulkByUserIDs(c.Request.Context(), otherIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	for _, rec := range records {
		presenceByID[rec.UserID] = rec
	}

	now := time.Now()
	for i := range summaries {
		s := &summaries[i]
		switch s.Type {
		case models.ConversationDM:
			otherID := s.OtherParticipant(userID)
			s.OtherUserID = otherID
			if u, ok := usersByID[otherID]; ok {
				s.OtherUserName = u.DisplayName()
				s.OtherUserAvatar = u.AvatarURL
			}
			// Raw stored status never leaks; a silent peer reads offline.
			s.OtherUserStatus = models.StatusOffline
			if rec, ok := presenceByID[otherID]; ok {
				s.OtherUserStatus = rec.Effective(now)
			}
		case models.ConversationGroup:
			s.MemberCount = len(s.ParticipantIDs)
		}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// MarkRead resets the caller's unread count and records the read
// watermark. Calls without a membership row succeed as a no-op.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	var req struct {
		LastReadMessageID *int `json:"last_read_message_id"`
	}
	// Body is optional; a bare POST still resets the counter.
	_ = c.ShouldBindJSON(&req)

	userID := c.GetInt("userID")
	if err := h.convRepo.MarkRead(c.Request.Context(), conversationID, userID, req.LastReadMessageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark read"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Leave removes the caller from a group conversation.
func (h *ConversationHandler) Leave(c *gin.Context) {
	conversationID, ok := paramID(c, "conversation_id")
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	err := h.convRepo.Leave(c.Request.Context(), conversationID, userID)
	switch {
	case err == nil:
		emitAudit(c, h.audit, "INFO", "Member left group")
		c.Status(http.StatusNoContent)
	case errors.Is(err, repositories.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, repositories.ErrNotGroup):
		c.JSON(http.StatusBadRequest, gin.H{"error": "only group conversations can be left"})
	case errors.Is(err, repositories.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not a member"})
	default:
		emitAudit(c, h.audit, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave conversation"})
	}
}
