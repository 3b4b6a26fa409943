package ws

import "sync"

// Presence tracks which users currently have at least one live connection.
// It is derived solely from hub register/unregister events and lives exactly
// as long as the hub that owns it.
type Presence struct {
	mu     sync.RWMutex
	online map[int]bool
}

// NewPresence creates an empty tracker.
func NewPresence() *Presence {
	return &Presence{online: make(map[int]bool)}
}

// IsOnline reports whether the user has an active session.
func (p *Presence) IsOnline(userID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userID]
}

// OnlineUsers returns a snapshot of all currently-online user ids.
func (p *Presence) OnlineUsers() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := make([]int, 0, len(p.online))
	for userID := range p.online {
		users = append(users, userID)
	}
	return users
}

func (p *Presence) setOnline(userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
}

func (p *Presence) setOffline(userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
}
