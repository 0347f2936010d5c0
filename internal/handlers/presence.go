package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// PresenceHandler manages the heartbeat write path and the effective
// online roster.
type PresenceHandler struct {
	presenceRepo repositories.PresenceRepository
	userRepo     repositories.UserRepository
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(presenceRepo repositories.PresenceRepository, userRepo repositories.UserRepository) *PresenceHandler {
	return &PresenceHandler{presenceRepo: presenceRepo, userRepo: userRepo}
}

// Heartbeat records the caller's declared status and refreshes their
// last-seen timestamp.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	userID := c.GetInt("userID")
	rec, err := h.presenceRepo.Heartbeat(c.Request.Context(), userID, req.Status, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record heartbeat"})
		return
	}
	observability.IncHeartbeat(req.Status)

	c.JSON(http.StatusOK, gin.H{
		"user_id":      rec.UserID,
		"status":       rec.Effective(time.Now()),
		"last_seen_at": rec.LastSeenAt,
	})
}

// Online lists users whose effective status is online. Idle and dnd users
// are not part of the roster, and a stale row reads as offline anyway.
func (h *PresenceHandler) Online(c *gin.Context) {
	recs, err := h.presenceRepo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}

	now := time.Now()
	visible := make([]models.PresenceRecord, 0, len(recs))
	ids := make([]int, 0, len(recs))
	for _, rec := range recs {
		if rec.Effective(now) != models.StatusOnline {
			continue
		}
		visible = append(visible, rec)
		ids = append(ids, rec.UserID)
	}

	usersByID, err := resolveUsers(c.Request.Context(), h.userRepo, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}

	type onlineUser struct {
		UserID     int       `json:"user_id"`
		Name       string    `json:"name"`
		AvatarURL  string    `json:"avatar_url,omitempty"`
		Status     string    `json:"status"`
		LastSeenAt time.Time `json:"last_seen_at"`
	}
	out := make([]onlineUser, 0, len(visible))
	for _, rec := range visible {
		entry := onlineUser{
			UserID:     rec.UserID,
			Status:     rec.Effective(now),
			LastSeenAt: rec.LastSeenAt,
		}
		if u, ok := usersByID[rec.UserID]; ok {
			entry.Name = u.DisplayName()
			entry.AvatarURL = u.AvatarURL
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{"users": out})
}
