package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// ConversationWebSocketHandler upgrades subscription connections for a
// conversation. The transport layer re-delivers query results through these
// connections; membership is enforced before the upgrade.
type ConversationWebSocketHandler struct {
	hub       *Hub
	convRepo  repositories.ConversationRepository
	userRepo  repositories.UserRepository
	jwtSecret []byte
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
func NewConversationWebSocketHandler(hub *Hub, convRepo repositories.ConversationRepository, userRepo repositories.UserRepository, jwtSecret []byte) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{hub: hub, convRepo: convRepo, userRepo: userRepo, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client in the
// conversation room.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	subject, err := middleware.SubjectFromToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	user, err := h.userRepo.GetBySubject(ctx, subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown subject"})
		return
	}

	if _, err := h.convRepo.GetMember(ctx, conversationID, user.ID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conversationID, conn, info)

	observability.IncWSActive()
	publishLifecycleEvent(ctx, "ws_connect", conversationID, info, "")

	go h.readLoop(ctx, conversationID, conn, info)
}

func (h *ConversationWebSocketHandler) readLoop(ctx context.Context, conversationID int, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveClient(conversationID, conn)
		observability.DecWSActive()
		publishLifecycleEvent(ctx, "ws_disconnect", conversationID, info, closeReason)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishLifecycleEvent(ctx, "ws_error", conversationID, info, closeReason)
			}
			return
		}
	}
}

func publishLifecycleEvent(ctx context.Context, event string, conversationID int, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	_ = observability.PublishEvent(ctx, "ws_events.conversations", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"conversation_id": conversationID,
				"event":           event,
				"conn_id":         info.ConnID,
				"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
				"reason":          reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		if len(header) > 7 && (header[:7] == "Bearer " || header[:7] == "bearer ") {
			return header[7:]
		}
		return ""
	}
	return c.Query("token")
}
