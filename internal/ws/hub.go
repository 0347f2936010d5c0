package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Event types pushed to conversation subscribers.
const (
	EventMessage        = "message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventReaction       = "reaction"
	EventTyping         = "typing"
)

// Hub maintains active websocket subscriptions per conversation. Writes
// committed by handlers are pushed here after commit; the hub never reads
// storage itself.
type Hub struct {
	rooms    map[int]map[*websocket.Conn]bool
	connInfo map[int]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int]map[*websocket.Conn]bool),
		connInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection to a conversation room.
func (h *Hub) AddClient(conversationID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[conversationID][conn] = true
	if _, ok := h.connInfo[conversationID]; !ok {
		h.connInfo[conversationID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[conversationID][conn] = info
}

// RemoveClient removes a websocket connection from a conversation room.
func (h *Hub) RemoveClient(conversationID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if infos, ok := h.connInfo[conversationID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, conversationID)
		}
	}
}

// BroadcastMessage pushes a new message view to all subscribers.
func (h *Hub) BroadcastMessage(conversationID int, view models.MessageView) {
	h.broadcast(conversationID, models.MessageEvent{Type: EventMessage, Message: &view})
}

// BroadcastEdit pushes an edited message view.
func (h *Hub) BroadcastEdit(conversationID int, view models.MessageView) {
	h.broadcast(conversationID, models.MessageEvent{Type: EventMessageEdited, Message: &view})
}

// BroadcastDeletion notifies subscribers of a tombstone transition.
func (h *Hub) BroadcastDeletion(conversationID, messageID int) {
	h.broadcast(conversationID, models.MessageEvent{Type: EventMessageDeleted, MessageID: messageID})
}

// BroadcastReaction notifies subscribers of a reaction toggle.
func (h *Hub) BroadcastReaction(conversationID, messageID, userID int, emoji string) {
	h.broadcast(conversationID, models.MessageEvent{Type: EventReaction, MessageID: messageID, UserID: userID, Emoji: emoji})
}

// BroadcastTyping notifies subscribers that a user started or stopped
// typing.
func (h *Hub) BroadcastTyping(conversationID, userID int, isTyping bool) {
	h.broadcast(conversationID, models.MessageEvent{Type: EventTyping, UserID: userID, IsTyping: isTyping})
}

// RoomCounts reports active subscriber counts per conversation.
func (h *Hub) RoomCounts() map[int]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[int]int, len(h.rooms))
	for id, conns := range h.rooms {
		counts[id] = len(conns)
	}
	return counts
}

func (h *Hub) broadcast(conversationID int, event models.MessageEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[conversationID]))
	for conn := range h.rooms[conversationID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(conversationID, conn, err)
			h.RemoveClient(conversationID, conn)
		}
	}
}

func (h *Hub) publishWSError(conversationID int, conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.connInfo[conversationID][conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"conversation_id": conversationID,
			"event":           "ws_error",
			"conn_id":         info.ConnID,
			"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
			"reason":          err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.conversations", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
