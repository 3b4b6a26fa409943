package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maps verified user identities to their live connections and tracks
// whiteboard room membership. It owns no persistent state: events to users
// without a session are dropped, not queued, and the delivery engine's
// durable records remain the only guaranteed path.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[int]map[*Client]bool
	rooms     map[string]map[*Client]bool
	connRooms map[*Client]map[string]bool
	presence  *Presence
}

// NewHub creates an empty hub with its own presence tracker.
func NewHub() *Hub {
	return &Hub{
		sessions:  make(map[int]map[*Client]bool),
		rooms:     make(map[string]map[*Client]bool),
		connRooms: make(map[*Client]map[string]bool),
		presence:  NewPresence(),
	}
}

// Presence exposes the tracker derived from this hub's registrations.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Register adds a connection to the user's session set. Multiple simultaneous
// connections per user are permitted. Returns true when the user transitioned
// from offline to online.
func (h *Hub) Register(userID int, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[userID]; !ok {
		h.sessions[userID] = make(map[*Client]bool)
	}
	h.sessions[userID][client] = true
	if len(h.sessions[userID]) == 1 {
		h.presence.setOnline(userID)
		return true
	}
	return false
}

// Unregister removes a connection and its room memberships. Returns true when
// the user's session set became empty, i.e. the user went offline.
func (h *Hub) Unregister(userID int, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropConnLocked(userID, client)
	if len(h.sessions[userID]) == 0 {
		delete(h.sessions, userID)
		h.presence.setOffline(userID)
		return true
	}
	return false
}

// EmitToUser delivers an event to all of the user's current connections. A
// no-op when the user has none.
func (h *Hub) EmitToUser(userID int, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[userID]))
	for client := range h.sessions[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Write(payload); err != nil {
			log.Printf("websocket write error: %v", err)
			client.Close()
			h.Unregister(userID, client)
		}
	}
}

// Broadcast delivers an event to every connected session except those of
// exceptUserID. Used for presence transitions.
func (h *Hub) Broadcast(exceptUserID int, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	targets := make(map[int][]*Client)
	for userID, clients := range h.sessions {
		if userID == exceptUserID {
			continue
		}
		for client := range clients {
			targets[userID] = append(targets[userID], client)
		}
	}
	h.mu.RUnlock()

	for userID, clients := range targets {
		for _, client := range clients {
			if err := client.Write(payload); err != nil {
				log.Printf("websocket write error: %v", err)
				client.Close()
				h.Unregister(userID, client)
			}
		}
	}
}

// JoinRoom adds a connection to a whiteboard room. Joining carries no replay
// of earlier strokes.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	if _, ok := h.connRooms[client]; !ok {
		h.connRooms[client] = make(map[string]bool)
	}
	h.connRooms[client][roomID] = true
}

// BroadcastToRoom relays an event to every connection in the room except the
// originating one.
func (h *Hub) BroadcastToRoom(origin *Client, roomID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		if client != origin {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Write(payload); err != nil {
			log.Printf("websocket write error: %v", err)
			client.Close()
			h.removeFromRooms(client)
		}
	}
}

func (h *Hub) removeFromRooms(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.connRooms[client] {
		delete(h.rooms[roomID], client)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.connRooms, client)
}

func (h *Hub) dropConnLocked(userID int, client *Client) {
	if clients, ok := h.sessions[userID]; ok {
		delete(clients, client)
	}
	for roomID := range h.connRooms[client] {
		delete(h.rooms[roomID], client)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.connRooms, client)
}
