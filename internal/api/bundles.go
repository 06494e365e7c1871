package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/db"
)

type BundleHandler struct {
	store   *db.Store
	console *console.Console
}

func NewBundleHandler(store *db.Store, con *console.Console) *BundleHandler {
	return &BundleHandler{store: store, console: con}
}

func (h *BundleHandler) List(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.store.ListBundles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bundles")
		return
	}
	writeJSON(w, http.StatusOK, bundles)
}

func (h *BundleHandler) Get(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.store.BundleByName(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bundle not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get bundle")
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *BundleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	created, err := h.store.CreateBundle(req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create bundle")
		return
	}
	if !created {
		writeError(w, http.StatusConflict, "bundle already exists")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *BundleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteBundle(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete bundle")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "bundle not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "bundle deleted"})
}

func (h *BundleHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		ItemName string `json:"item_name"`
		Quantity int    `json:"quantity"`
		Quality  int    `json:"quality"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemName == "" {
		writeError(w, http.StatusBadRequest, "item_name required")
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	if req.Quality < 1 {
		req.Quality = 1
	}

	if err := h.store.AddBundleItem(name, req.ItemName, req.Quantity, req.Quality); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bundle not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "item added"})
}

func (h *BundleHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.RemoveBundleItem(chi.URLParam(r, "name"), chi.URLParam(r, "item"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove item")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "item not found in bundle")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item removed"})
}

// Give hands every item of a bundle to a player over the console.
func (h *BundleHandler) Give(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Player string `json:"player"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Player == "" {
		writeError(w, http.StatusBadRequest, "player required")
		return
	}

	results, err := h.console.GiveBundle(req.Player, name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bundle not found")
			return
		}
		writeConsoleError(w, err)
		return
	}

	given := 0
	items := make([]map[string]any, 0, len(results))
	for _, res := range results {
		if res.OK {
			given++
		}
		items = append(items, map[string]any{
			"item_name": res.Item.ItemName,
			"quantity":  res.Item.Quantity,
			"quality":   res.Item.Quality,
			"ok":        res.OK,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"given": given,
		"total": len(results),
		"items": items,
	})
}
