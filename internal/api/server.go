package api

import (
	"errors"
	"net/http"

	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/rcon"
)

// ServerHandler exposes live console operations over HTTP.
type ServerHandler struct {
	console *console.Console
}

func NewServerHandler(con *console.Console) *ServerHandler {
	return &ServerHandler{console: con}
}

// Status reports connection state and the online player count.
func (h *ServerHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"connected": h.console.Connected(),
		"addr":      h.console.Addr(),
		"game":      h.console.Adapter().Game(),
	}
	if h.console.Connected() {
		status["players_online"] = len(h.console.Monitor().Sessions())
	}
	writeJSON(w, http.StatusOK, status)
}

// Players returns the live online roster from the console.
func (h *ServerHandler) Players(w http.ResponseWriter, r *http.Request) {
	players, err := h.console.Players()
	if err != nil {
		writeConsoleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// Time returns the in-game clock.
func (h *ServerHandler) Time(w http.ResponseWriter, r *http.Request) {
	clock, err := h.console.Clock()
	if err != nil {
		writeConsoleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clock)
}

// SetTime sets the in-game clock, honoring the backwards-day safety check.
func (h *ServerHandler) SetTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day    int  `json:"day"`
		Hour   int  `json:"hour"`
		Minute int  `json:"minute"`
		Force  bool `json:"force"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.console.SetDay(req.Day, req.Hour, req.Minute, req.Force)
	if err != nil {
		if errors.Is(err, rcon.ErrNotConnected) {
			writeConsoleError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// Command executes a raw console command and returns the reply.
func (h *ServerHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command required")
		return
	}

	resp, err := h.console.Execute(req.Command)
	if err != nil {
		writeConsoleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp})
}

// Say broadcasts a message to all players.
func (h *ServerHandler) Say(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Sender  string `json:"sender"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	if err := h.console.Say(req.Message, req.Sender); err != nil {
		writeConsoleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "broadcast sent"})
}

func writeConsoleError(w http.ResponseWriter, err error) {
	if errors.Is(err, rcon.ErrNotConnected) {
		writeError(w, http.StatusServiceUnavailable, "not connected to server")
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
