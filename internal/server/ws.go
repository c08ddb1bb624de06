package server

import (
	"log"
	"net/http"
)

// handleSessionWatch upgrades to WebSocket and streams auth-state changes.
// The hub sends the current state on connect, then one message per sign-in
// or sign-out. The read loop only detects the peer going away.
func (s *Server) handleSessionWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	s.deps.Hub.Register(conn, s.deps.Tracker.Current())

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()
}
