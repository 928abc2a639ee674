package server

import "sync"

// Hub tracks connected sessions and fans stream events out to them.
type Hub struct {
	sessions map[*Session]bool
	mu       sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]bool),
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session] = true
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
}

// SessionCount returns number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish delivers a stream event to every subscribed session and returns
// the number of deliveries.
func (h *Hub) Publish(stream, eventName string, args ...any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for session := range h.sessions {
		if session.push(stream, eventName, args) {
			delivered++
		}
	}
	return delivered
}

// CloseAll closes the connection of every session.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for session := range h.sessions {
		session.conn.Close()
	}
}
