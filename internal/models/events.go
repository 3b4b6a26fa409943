package models

// Client-to-server realtime event types.
const (
	EventSendMessage    = "send_message"
	EventJoinWhiteboard = "join_whiteboard"
	EventDraw           = "draw_event"
)

// Server-to-client realtime event types.
const (
	EventReceiveMessage = "receive_message"
	EventStatusChanged  = "delivery-status-changed"
	EventChatRead       = "chat_read"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
)

// Point is a single whiteboard coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClientEvent is the envelope for everything a client sends over the socket.
type ClientEvent struct {
	Type    string  `json:"type"`
	ChatID  int     `json:"chatId,omitempty"`
	Content string  `json:"content,omitempty"`
	RoomID  string  `json:"roomId,omitempty"`
	Points  []Point `json:"points,omitempty"`
}

// MessageEvent carries a new message to the other participant.
type MessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// StatusEvent notifies a sender that one of their messages moved forward in
// the delivery lifecycle.
type StatusEvent struct {
	Type      string        `json:"type"`
	MessageID int           `json:"messageId"`
	Status    MessageStatus `json:"status"`
}

// ReadEvent notifies the other participant that a chat was read.
type ReadEvent struct {
	Type     string `json:"type"`
	ChatID   int    `json:"chatId"`
	ReaderID int    `json:"readerId"`
}

// PresenceEvent announces an online/offline transition.
type PresenceEvent struct {
	Type   string `json:"type"`
	UserID int    `json:"userId"`
}

// DrawEvent relays a stroke batch to the rest of a whiteboard room.
type DrawEvent struct {
	Type   string  `json:"type"`
	RoomID string  `json:"roomId"`
	Points []Point `json:"points"`
}
