package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo describes one live connection for logging and event payloads.
type ConnInfo struct {
	ConnID      string
	UserID      int
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
