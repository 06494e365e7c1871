package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reedfamily/zedctl/internal/db"
	"github.com/reedfamily/zedctl/internal/stats"
)

// PlayerHandler serves persisted session accounting and server snapshots.
type PlayerHandler struct {
	store     *db.Store
	collector *stats.Collector
}

func NewPlayerHandler(store *db.Store, collector *stats.Collector) *PlayerHandler {
	return &PlayerHandler{store: store, collector: collector}
}

// Stats aggregates a player's completed sessions. Aliases resolve.
func (h *PlayerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	name, err := h.store.ResolveName(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve player name")
		return
	}

	st, err := h.store.PlayerStatsFor(name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no statistics for player")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Sessions lists a player's recent sessions, newest first.
func (h *PlayerHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	name, err := h.store.ResolveName(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve player name")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	sessions, err := h.store.RecentSessions(name, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Snapshots returns server snapshots for a time range.
func (h *PlayerHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1h"
	}
	duration, err := time.ParseDuration(period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: use format like 1h, 6h, 24h")
		return
	}

	snaps, err := h.store.RecentSnapshots(time.Now().Add(-duration))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query snapshots")
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// LatestSnapshot returns the collector's most recent reading.
func (h *PlayerHandler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	latest := h.collector.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no snapshot available")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}
