package ws

import "time"

// ConnInfo carries identity and tracing context attached to a websocket
// connection at handshake time.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
