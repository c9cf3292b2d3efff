package websocket

import "github.com/pictallion/pictallion_agent/internal/upload"

type MessageType string

const (
	MessageTypeProgress  MessageType = "progress"
	MessageTypeConnected MessageType = "connected"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

type IncomingMessage struct {
	Type MessageType `json:"type"`
}

type OutgoingMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error,omitempty"`
}

// ProgressMessage carries the full picture after an engine mutation: the
// aggregate snapshot plus the per-entry state the UI renders rows from.
type ProgressMessage struct {
	Type     MessageType     `json:"type"`
	Snapshot upload.Snapshot `json:"snapshot"`
	Entries  []upload.Entry  `json:"entries"`
}
