package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/starford/othala/internal/trash"
)

// GetStashRoot handles GET /api/stash-root.
//
//	@Summary		Get the currently designated stash root folder
//	@Tags			stash
//	@Produce		json
//	@Success		200	{object}	StashRootResponse
//	@Security		BearerAuth
//	@Router			/stash-root [get]
func (h *Handler) GetStashRoot(w http.ResponseWriter, r *http.Request) {
	st := h.model.StashRootInfo()
	writeJSON(w, http.StatusOK, StashRootResponse{Root: st.Root, Ambiguous: st.Ambiguous})
}

// EnsureStashRoot handles POST /api/stash-root/ensure.
//
//	@Summary		Return the stash root, creating the folder when none exists
//	@Tags			stash
//	@Produce		json
//	@Success		200	{object}	bookmarks.Node
//	@Security		BearerAuth
//	@Router			/stash-root/ensure [post]
func (h *Handler) EnsureStashRoot(w http.ResponseWriter, r *http.Request) {
	root, err := h.model.EnsureStashRoot(r.Context())
	if err != nil {
		writeError(w, "ensure stash root", err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// Stash handles POST /api/stash.
//
//	@Summary		File a URL into the current stash group
//	@Tags			stash
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StashRequest	true	"URL to stash"
//	@Success		201		{object}	bookmarks.Node
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stash [post]
func (h *Handler) Stash(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req StashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url is required"))
		return
	}
	title := req.Title
	if title == "" {
		title = req.URL
	}
	n, err := h.model.Stash(r.Context(), title, req.URL)
	if err != nil {
		writeError(w, "stash", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ListTrash handles GET /api/trash.
//
//	@Summary		List recently deleted items, newest first
//	@Tags			trash
//	@Produce		json
//	@Param			limit	query		int	false	"Max items"
//	@Success		200		{object}	map[string][]trash.Item
//	@Security		BearerAuth
//	@Router			/trash [get]
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.trash.List(r.Context(), limit)
	if err != nil {
		writeError(w, "list trash", err)
		return
	}
	if items == nil {
		items = []trash.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
