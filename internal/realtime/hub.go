// Package realtime pushes auth-state changes to connected browser tabs over
// WebSocket, so every tab of a client observes sign-in and sign-out as the
// session tracker does.
package realtime

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	identitydomain "frootex/backend/internal/identity/domain"
)

// Hub tracks connected watchers. Each connection gets the current auth state
// on register, then one message per change.
type Hub struct {
	mu       sync.RWMutex
	watchers map[*wsConn]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[*wsConn]struct{})}
}

// wsConn wraps a websocket connection with a write mutex to serialize writes.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Register adds conn and immediately sends it the current state.
func (h *Hub) Register(conn *websocket.Conn, current *identitydomain.Principal) {
	wc := &wsConn{conn: conn}
	h.mu.Lock()
	h.watchers[wc] = struct{}{}
	h.mu.Unlock()
	if err := wc.write(stateMessage(current)); err != nil {
		h.unregister(wc)
	}
}

// Broadcast sends the auth state to every watcher. Dead connections are
// dropped.
func (h *Hub) Broadcast(p *identitydomain.Principal) {
	msg := stateMessage(p)
	h.mu.RLock()
	conns := make([]*wsConn, 0, len(h.watchers))
	for wc := range h.watchers {
		conns = append(conns, wc)
	}
	h.mu.RUnlock()
	for _, wc := range conns {
		if err := wc.write(msg); err != nil {
			log.Printf("ws: write failed, dropping watcher: %v", err)
			h.unregister(wc)
		}
	}
}

// Len reports the number of connected watchers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

func (h *Hub) unregister(wc *wsConn) {
	h.mu.Lock()
	if _, ok := h.watchers[wc]; ok {
		delete(h.watchers, wc)
		wc.conn.Close()
	}
	h.mu.Unlock()
}

func stateMessage(p *identitydomain.Principal) map[string]any {
	if p == nil {
		return map[string]any{"event": "auth_state", "principal": nil}
	}
	return map[string]any{
		"event": "auth_state",
		"principal": map[string]any{
			"id":    p.ID,
			"email": p.Email,
			"phone": p.PhoneNumber,
		},
	}
}

func (wc *wsConn) write(msg map[string]any) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.conn.WriteJSON(msg)
}
