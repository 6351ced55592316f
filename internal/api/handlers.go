package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/favicon"
	"github.com/starford/othala/internal/trash"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	model *bookmarks.Model
	trash *trash.Store
	icons *favicon.Cache
}

// NewHandler creates a new Handler.
func NewHandler(model *bookmarks.Model, tr *trash.Store, icons *favicon.Cache) *Handler {
	return &Handler{model: model, trash: tr, icons: icons}
}

// nodeID extracts the {id} URL parameter.
func nodeID(r *http.Request) bookmarks.NodeID {
	return bookmarks.NodeID(chi.URLParam(r, "id"))
}

// GetTree handles GET /api/tree.
//
//	@Summary		Get the whole bookmark tree, nested
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	NodeView
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	view, ok := treeView(h.model, h.model.Root().ID)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetSubtree handles GET /api/tree/{id}.
//
//	@Summary		Get the subtree under a node, nested
//	@Tags			tree
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	NodeView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{id} [get]
func (h *Handler) GetSubtree(w http.ResponseWriter, r *http.Request) {
	view, ok := treeView(h.model, nodeID(r))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetNode handles GET /api/nodes/{id}.
//
//	@Summary		Get a single node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	bookmarks.Node
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	n, ok := h.model.Node(nodeID(r))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// GetNodePath handles GET /api/nodes/{id}/path.
//
//	@Summary		Get the chain of nodes from the root down to a node
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node id"
//	@Success		200	{object}	NodeListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/path [get]
func (h *Handler) GetNodePath(w http.ResponseWriter, r *http.Request) {
	path := h.model.PathTo(nodeID(r))
	if path == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: path})
}

// CreateNode handles POST /api/nodes.
//
//	@Summary		Create a bookmark, folder, or separator
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNodeRequest	true	"Node to create"
//	@Success		201		{object}	bookmarks.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes [post]
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ParentID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("parentId is required"))
		return
	}
	kind, err := bookmarks.ParseKind(req.Kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("kind must be bookmark, folder, or separator"))
		return
	}
	if kind == bookmarks.KindBookmark && req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url is required for bookmarks"))
		return
	}

	parentID := bookmarks.NodeID(req.ParentID)
	index := 0
	if req.Index != nil {
		index = *req.Index
	} else if parent, ok := h.model.Node(parentID); ok {
		// Absent index means append.
		index = len(parent.Children)
	}

	var n *bookmarks.Node
	switch kind {
	case bookmarks.KindBookmark:
		n, err = h.model.CreateBookmark(r.Context(), parentID, index, req.Title, req.URL)
	case bookmarks.KindFolder:
		n, err = h.model.CreateFolder(r.Context(), parentID, index, req.Title)
	case bookmarks.KindSeparator:
		n, err = h.model.CreateSeparator(r.Context(), parentID, index)
	}
	if err != nil {
		writeError(w, "create node", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// PatchNode handles PATCH /api/nodes/{id}.
//
//	@Summary		Update a node's title and/or url
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Node id"
//	@Param			body	body		PatchNodeRequest	true	"Fields to change"
//	@Success		200		{object}	bookmarks.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [patch]
func (h *Handler) PatchNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req PatchNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == nil && req.URL == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("title or url is required"))
		return
	}

	id := nodeID(r)
	if req.Title != nil {
		if err := h.model.Rename(r.Context(), id, *req.Title); err != nil {
			writeError(w, "rename node", err)
			return
		}
	}
	if req.URL != nil {
		if err := h.model.SetURL(r.Context(), id, *req.URL); err != nil {
			writeError(w, "set node url", err)
			return
		}
	}
	n, ok := h.model.Node(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MoveNode handles POST /api/nodes/{id}/move.
//
//	@Summary		Move a node to a new parent and/or sibling position
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Node id"
//	@Param			body	body		MoveNodeRequest	true	"Target position"
//	@Success		200		{object}	bookmarks.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/move [post]
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req MoveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ParentID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("parentId is required"))
		return
	}

	id := nodeID(r)
	if err := h.model.Move(r.Context(), id, bookmarks.NodeID(req.ParentID), req.Index); err != nil {
		writeError(w, "move node", err)
		return
	}
	n, ok := h.model.Node(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNode handles DELETE /api/nodes/{id}.
//
//	@Summary		Delete a node; recursive=true deletes a folder's subtree
//	@Tags			nodes
//	@Param			id			path	string	true	"Node id"
//	@Param			recursive	query	bool	false	"Delete descendants too"
//	@Success		204			"Node deleted"
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id := nodeID(r)
	var err error
	if r.URL.Query().Get("recursive") == "true" {
		err = h.model.RemoveTree(r.Context(), id)
	} else {
		err = h.model.Remove(r.Context(), id)
	}
	if err != nil {
		writeError(w, "delete node", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lookup handles GET /api/lookup.
//
//	@Summary		Find bookmarks by URL, optionally scoped to a folder's subtree
//	@Tags			lookup
//	@Produce		json
//	@Param			url		query		string	true	"URL to look up (normalized before matching)"
//	@Param			folder	query		string	false	"Folder id to scope the lookup"
//	@Success		200		{object}	NodeListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lookup [get]
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'url' is required"))
		return
	}
	var hits []*bookmarks.Node
	if folder := r.URL.Query().Get("folder"); folder != "" {
		hits = h.model.InFolderByURL(bookmarks.NodeID(folder), url)
	} else {
		hits = h.model.NodesByURL(url)
	}
	if hits == nil {
		hits = []*bookmarks.Node{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: hits})
}

// Search handles GET /api/search.
//
//	@Summary		Search bookmarks by title and URL
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	NodeListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.model.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []*bookmarks.Node{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: results})
}

// GetFavicon handles GET /api/favicon.
//
//	@Summary		Get the cached icon for a page URL
//	@Tags			favicon
//	@Param			url	query		string	true	"Page URL"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favicon [get]
func (h *Handler) GetFavicon(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'url' is required"))
		return
	}
	ic, ok := h.icons.Get(bookmarks.NormalizeURL(url))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	contentType := ic.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ic.Data)
}

// PutFavicon handles PUT /api/favicon.
//
//	@Summary		Store an icon for a page URL
//	@Tags			favicon
//	@Accept			json
//	@Param			body	body	FaviconRequest	true	"Icon bytes (base64 in JSON)"
//	@Success		204		"Icon stored"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favicon [put]
func (h *Handler) PutFavicon(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req FaviconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.URL == "" || len(req.Data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("url and data are required"))
		return
	}
	h.icons.Put(bookmarks.NormalizeURL(req.URL), favicon.Icon{
		Data:        req.Data,
		ContentType: req.ContentType,
	})
	w.WriteHeader(http.StatusNoContent)
}
