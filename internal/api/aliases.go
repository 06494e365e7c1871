package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reedfamily/zedctl/internal/db"
)

type AliasHandler struct {
	store *db.Store
}

func NewAliasHandler(store *db.Store) *AliasHandler {
	return &AliasHandler{store: store}
}

func (h *AliasHandler) List(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.store.ListAliases()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list aliases")
		return
	}
	writeJSON(w, http.StatusOK, aliases)
}

func (h *AliasHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name"`
		Alias    string `json:"alias"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FullName == "" || req.Alias == "" {
		writeError(w, http.StatusBadRequest, "full_name and alias required")
		return
	}

	if err := h.store.SetAlias(req.FullName, req.Alias); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set alias")
		return
	}
	writeJSON(w, http.StatusCreated, db.Alias{FullName: req.FullName, Alias: req.Alias})
}

func (h *AliasHandler) Delete(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	removed, err := h.store.RemoveAlias(alias)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove alias")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "alias not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "alias removed"})
}
