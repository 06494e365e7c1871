package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/reedfamily/zedctl/internal/auth"
	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/stats"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler serves the live WebSocket feeds. Browsers cannot set headers on
// WebSocket upgrades, so auth rides on a token query parameter.
type WSHandler struct {
	auth      *auth.Service
	console   *console.Console
	collector *stats.Collector
}

func NewWSHandler(authSvc *auth.Service, con *console.Console, collector *stats.Collector) *WSHandler {
	return &WSHandler{auth: authSvc, console: con, collector: collector}
}

func (h *WSHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token required")
		return false
	}
	if _, err := h.auth.Validate(token); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return false
	}
	return true
}

// Events streams classified login/logout/chat events as JSON.
func (h *WSHandler) Events(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	mon := h.console.Monitor()
	ch := mon.Subscribe()
	defer mon.Unsubscribe(ch)

	// Read from client to detect disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Stats streams server snapshots as the collector takes them.
func (h *WSHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stats websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := h.collector.Subscribe()
	defer h.collector.Unsubscribe(ch)

	// Seed with the latest reading so clients render immediately.
	if latest := h.collector.Latest(); latest != nil {
		if err := conn.WriteJSON(latest); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Console streams raw server output and forwards incoming messages to the
// console as commands. Replies show up in the raw stream like any other
// output.
func (h *WSHandler) Console(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	lines, untap := h.console.TapLines()
	if lines == nil {
		writeError(w, http.StatusServiceUnavailable, "not connected to server")
		return
	}
	defer untap()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("console websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cmd := string(msg)
			if cmd == "" {
				continue
			}
			go func() {
				if _, err := h.console.Execute(cmd); err != nil {
					log.Printf("console websocket: execute %q: %v", cmd, err)
				}
			}()
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
