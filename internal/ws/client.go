package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client wraps a websocket connection with a write mutex. Gorilla allows at
// most one concurrent writer per connection, while the hub fans out to the
// same connection from many goroutines (sends, presence broadcasts, read
// acknowledgements, reconcile updates). Every outbound frame goes through
// Write so those paths never interleave.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Write sends a single text frame, serialized against concurrent writers.
func (c *Client) Write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
