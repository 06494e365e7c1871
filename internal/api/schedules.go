package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reedfamily/zedctl/internal/db"
	"github.com/reedfamily/zedctl/internal/scheduler"
)

type ScheduleHandler struct {
	store *db.Store
}

func NewScheduleHandler(store *db.Store) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.ListSchedules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		CronExpr string `json:"cron_expr"`
		Action   string `json:"action"`
		Payload  string `json:"payload"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.CronExpr == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "name, cron_expr, and action required")
		return
	}
	if _, err := scheduler.Parse(req.CronExpr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid cron expression: "+err.Error())
		return
	}
	if !scheduler.ValidAction(req.Action) {
		writeError(w, http.StatusBadRequest, "action must be one of: say, command, shutdown")
		return
	}
	if req.Action != "shutdown" && req.Payload == "" {
		writeError(w, http.StatusBadRequest, "payload required for say and command actions")
		return
	}

	sc := db.Schedule{
		ID:       uuid.New().String()[:8],
		Name:     req.Name,
		CronExpr: req.CronExpr,
		Action:   req.Action,
		Payload:  req.Payload,
		Enabled:  true,
	}
	if err := h.store.CreateSchedule(sc); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.store.SetScheduleEnabled(id, req.Enabled)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": req.Enabled})
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.store.DeleteSchedule(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "schedule deleted"})
}
