package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/favicon"
	"github.com/starford/othala/internal/trash"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(model *bookmarks.Model, tr *trash.Store, icons *favicon.Cache, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(model, tr, icons)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Nested tree views.
	r.Get("/tree", h.GetTree)
	r.Get("/tree/{id}", h.GetSubtree)

	// Nodes CRUD.
	r.Post("/nodes", h.CreateNode)
	r.Get("/nodes/{id}", h.GetNode)
	r.Patch("/nodes/{id}", h.PatchNode)
	r.Delete("/nodes/{id}", h.DeleteNode)
	r.Get("/nodes/{id}/path", h.GetNodePath)
	r.Post("/nodes/{id}/move", h.MoveNode)

	// Queries.
	r.Get("/lookup", h.Lookup)
	r.Get("/search", h.Search)

	// Stash.
	r.Get("/stash-root", h.GetStashRoot)
	r.Post("/stash-root/ensure", h.EnsureStashRoot)
	r.Post("/stash", h.Stash)

	// Trash.
	r.Get("/trash", h.ListTrash)

	// Favicons.
	r.Get("/favicon", h.GetFavicon)
	r.Put("/favicon", h.PutFavicon)

	// Import/export.
	r.Post("/import", h.Import)
	r.Get("/export", h.Export)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
